package service

import (
	"context"

	"github.com/mbeoliero/kit/log"
	"github.com/YetiPanda/jade-ecosystem-sub005/internal/entity"
	"github.com/YetiPanda/jade-ecosystem-sub005/internal/event"
	"github.com/YetiPanda/jade-ecosystem-sub005/pkg/errcode"
	"github.com/YetiPanda/jade-ecosystem-sub005/pkg/idgen"
)

// ConversationService handles conversation-related business logic
type ConversationService struct {
	convStore ConversationStore
	readStore ReadStore
	bus       *event.Bus
}

// NewConversationService creates a new ConversationService
func NewConversationService(convStore ConversationStore, readStore ReadStore, bus *event.Bus) *ConversationService {
	return &ConversationService{
		convStore: convStore,
		readStore: readStore,
		bus:       bus,
	}
}

// CreateConversationRequest represents create conversation request
type CreateConversationRequest struct {
	VendorId    string  `json:"vendor_id"`
	SpaId       string  `json:"spa_id"`
	Subject     string  `json:"subject"`
	ContextType *string `json:"context_type,omitempty"`
	ContextId   *string `json:"context_id,omitempty"`
}

func (r *CreateConversationRequest) validate() error {
	var fields []errcode.FieldError
	if r.VendorId == "" {
		fields = append(fields, errcode.FieldError{Field: "vendor_id", Message: "vendor id is required", Code: "required"})
	}
	if r.SpaId == "" {
		fields = append(fields, errcode.FieldError{Field: "spa_id", Message: "spa id is required", Code: "required"})
	}
	if len(r.Subject) > 255 {
		fields = append(fields, errcode.FieldError{Field: "subject", Message: "subject exceeds 255 characters", Code: "too_long"})
	}
	if r.ContextType == nil && r.ContextId != nil {
		fields = append(fields, errcode.FieldError{Field: "context_type", Message: "context type is required when context id is set", Code: "required"})
	}
	if len(fields) > 0 {
		return errcode.NewValidation(fields...)
	}
	return nil
}

// CreateConversation creates the conversation for the participant key, or
// returns the existing ACTIVE one unchanged. A ConversationCreated event is
// published only when a row was actually inserted, after the write.
func (s *ConversationService) CreateConversation(ctx context.Context, id entity.Identity, req *CreateConversationRequest) (*entity.Conversation, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	// A participant may only open conversations it takes part in.
	if !id.IsAdmin() {
		switch id.UserType {
		case entity.UserTypeVendor:
			if req.VendorId != id.UserId {
				return nil, errcode.ErrNoPermission
			}
		case entity.UserTypeSpa:
			if req.SpaId != id.UserId {
				return nil, errcode.ErrNoPermission
			}
		default:
			return nil, errcode.ErrNoPermission
		}
	}

	existing, err := s.convStore.GetByParticipantKey(ctx, req.VendorId, req.SpaId, req.ContextType, req.ContextId)
	if err != nil {
		log.CtxError(ctx, "conversation key lookup failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	if existing != nil {
		return existing, nil
	}

	convId, err := idgen.NextID()
	if err != nil {
		return nil, errcode.ErrConvCreateFailed.Wrap(err)
	}

	conv := &entity.Conversation{
		Id:          convId,
		VendorId:    req.VendorId,
		SpaId:       req.SpaId,
		Subject:     req.Subject,
		ContextType: req.ContextType,
		ContextId:   req.ContextId,
		Status:      entity.ConversationStatusActive,
	}

	if err := s.convStore.Create(ctx, conv); err != nil {
		log.CtxError(ctx, "create conversation failed: %v", err)
		return nil, errcode.ErrConvCreateFailed
	}

	s.bus.Publish(ctx, event.ConversationCreated{Conversation: conv})

	log.CtxInfo(ctx, "conversation created: id=%s, vendor_id=%s, spa_id=%s", conv.Id, conv.VendorId, conv.SpaId)
	return conv, nil
}

// GetConversations lists the requester's conversations.
func (s *ConversationService) GetConversations(ctx context.Context, id entity.Identity, status, contextType string, limit, offset int) ([]*entity.ConversationInfo, error) {
	if id.UserType != entity.UserTypeVendor && id.UserType != entity.UserTypeSpa {
		return nil, errcode.ErrNoPermission
	}

	convs, err := s.convStore.List(ctx, ConversationFilter{
		ParticipantType: id.UserType,
		ParticipantId:   id.UserId,
		Status:          status,
		ContextType:     contextType,
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		log.CtxError(ctx, "list conversations failed: user_id=%s, error=%v", id.UserId, err)
		return nil, errcode.ErrInternalServer
	}

	result := make([]*entity.ConversationInfo, 0, len(convs))
	for _, conv := range convs {
		result = append(result, conv.ToConversationInfo())
	}
	return result, nil
}

// GetConversation fetches one conversation; the requester must be one of the
// participants or an admin.
func (s *ConversationService) GetConversation(ctx context.Context, id entity.Identity, conversationId string) (*entity.ConversationInfo, error) {
	conv, err := s.getAuthorized(ctx, id, conversationId)
	if err != nil {
		return nil, err
	}
	return conv.ToConversationInfo(), nil
}

// MarkAsRead marks every unread message from the other party read for the
// requesting participant and resets their unread counter to zero.
func (s *ConversationService) MarkAsRead(ctx context.Context, id entity.Identity, conversationId string) error {
	conv, err := s.getAuthorized(ctx, id, conversationId)
	if err != nil {
		return err
	}

	side, ok := conv.ParticipantSide(id)
	if !ok {
		return errcode.ErrNotParticipant
	}

	marked, err := s.readStore.MarkConversationRead(ctx, conv, side, id.UserId, entity.NowUnixMilli())
	if err != nil {
		log.CtxError(ctx, "mark conversation read failed: conversation_id=%s, error=%v", conversationId, err)
		return errcode.ErrMarkReadFailed
	}

	log.CtxDebug(ctx, "conversation marked read: conversation_id=%s, reader=%s, marked=%d", conversationId, id.UserId, marked)
	return nil
}

// ArchiveConversation archives a conversation. Idempotent.
func (s *ConversationService) ArchiveConversation(ctx context.Context, id entity.Identity, conversationId string) error {
	conv, err := s.getAuthorized(ctx, id, conversationId)
	if err != nil {
		return err
	}

	if conv.Status == entity.ConversationStatusArchived {
		return nil
	}

	if err := s.convStore.Archive(ctx, conversationId); err != nil {
		log.CtxError(ctx, "archive conversation failed: conversation_id=%s, error=%v", conversationId, err)
		return errcode.ErrConvArchiveFailed
	}
	return nil
}

// GetUnreadCount returns the aggregate unread count across the requester's
// ACTIVE conversations. The counters are a cache maintained by the send and
// mark-read paths, not recomputed from read rows.
func (s *ConversationService) GetUnreadCount(ctx context.Context, id entity.Identity) (int64, error) {
	if id.UserType != entity.UserTypeVendor && id.UserType != entity.UserTypeSpa {
		return 0, errcode.ErrNoPermission
	}
	total, err := s.convStore.AggregateUnread(ctx, id.UserType, id.UserId)
	if err != nil {
		log.CtxError(ctx, "aggregate unread failed: user_id=%s, error=%v", id.UserId, err)
		return 0, errcode.ErrInternalServer
	}
	return total, nil
}

// SubscribeConversations returns a pull-based subscription over
// ConversationCreated events involving the requester. The caller must Close
// the subscription when done.
func (s *ConversationService) SubscribeConversations(ctx context.Context, id entity.Identity) (*event.Subscription, error) {
	if id.UserType != entity.UserTypeVendor && id.UserType != entity.UserTypeSpa {
		return nil, errcode.ErrNoPermission
	}

	sub := event.NewSubscription(s.bus, event.NameConversationCreated, func(evt event.Event) bool {
		created, ok := evt.(event.ConversationCreated)
		if !ok {
			return false
		}
		_, participant := created.Conversation.ParticipantSide(id)
		return participant
	})
	return sub, nil
}

func (s *ConversationService) getAuthorized(ctx context.Context, id entity.Identity, conversationId string) (*entity.Conversation, error) {
	if conversationId == "" {
		return nil, errcode.ErrInvalidParam
	}

	conv, err := s.convStore.GetById(ctx, conversationId)
	if err != nil {
		log.CtxError(ctx, "get conversation failed: conversation_id=%s, error=%v", conversationId, err)
		return nil, errcode.ErrInternalServer
	}
	if conv == nil {
		return nil, errcode.ErrConvNotFound
	}

	if _, ok := conv.ParticipantSide(id); !ok && !id.IsAdmin() {
		return nil, errcode.ErrNoPermission
	}
	return conv, nil
}
