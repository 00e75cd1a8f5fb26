package service

import (
	"context"

	"github.com/mbeoliero/kit/log"
	"github.com/YetiPanda/jade-ecosystem-sub005/internal/entity"
	"github.com/YetiPanda/jade-ecosystem-sub005/internal/event"
	"github.com/YetiPanda/jade-ecosystem-sub005/pkg/errcode"
	"github.com/YetiPanda/jade-ecosystem-sub005/pkg/idgen"
)

// MaxContentLength caps the size of a message body.
const MaxContentLength = 10000

// MessageService handles message-related business logic
type MessageService struct {
	msgStore  MessageStore
	convStore ConversationStore
	bus       *event.Bus
}

// NewMessageService creates a new MessageService
func NewMessageService(msgStore MessageStore, convStore ConversationStore, bus *event.Bus) *MessageService {
	return &MessageService{
		msgStore:  msgStore,
		convStore: convStore,
		bus:       bus,
	}
}

// SendMessageRequest represents send message request
type SendMessageRequest struct {
	ConversationId string                `json:"conversation_id"`
	SenderName     string                `json:"sender_name"`
	Content        string                `json:"content"`
	ContentType    string                `json:"content_type"`
	Attachments    entity.AttachmentList `json:"attachments,omitempty"`
}

func (r *SendMessageRequest) validate() error {
	var fields []errcode.FieldError
	if r.ConversationId == "" {
		fields = append(fields, errcode.FieldError{Field: "conversation_id", Message: "conversation id is required", Code: "required"})
	}
	if r.Content == "" && len(r.Attachments) == 0 {
		fields = append(fields, errcode.FieldError{Field: "content", Message: "content or attachments required", Code: "required"})
	}
	if len(r.Content) > MaxContentLength {
		fields = append(fields, errcode.FieldError{Field: "content", Message: "content too long", Code: "too_long"})
	}
	if r.ContentType != "" && r.ContentType != entity.ContentTypeText && r.ContentType != entity.ContentTypeRich {
		fields = append(fields, errcode.FieldError{Field: "content_type", Message: "content type must be text or rich", Code: "invalid"})
	}
	for i, att := range r.Attachments {
		if att.Url == "" {
			fields = append(fields, errcode.FieldError{Field: "attachments", Message: "attachment url is required", Code: "required"})
			_ = i
			break
		}
	}
	if len(fields) > 0 {
		return errcode.NewValidation(fields...)
	}
	return nil
}

// SendMessage persists a message from the authenticated participant, advances
// the conversation's last-message timestamp and the recipient's unread
// counter, then publishes MessageSent. The event is published only after the
// message write is confirmed; the counter update is a separate write, so a
// crash between the two leaves the counters stale until the next mark-read.
func (s *MessageService) SendMessage(ctx context.Context, id entity.Identity, req *SendMessageRequest) (*entity.Message, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	conv, err := s.convStore.GetById(ctx, req.ConversationId)
	if err != nil {
		log.CtxError(ctx, "get conversation failed: conversation_id=%s, error=%v", req.ConversationId, err)
		return nil, errcode.ErrInternalServer
	}
	if conv == nil {
		return nil, errcode.ErrConvNotFound
	}

	side, ok := conv.ParticipantSide(id)
	if !ok {
		return nil, errcode.ErrNotParticipant
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = entity.ContentTypeText
	}

	msgId, err := idgen.NextID()
	if err != nil {
		return nil, errcode.ErrSendFailed.Wrap(err)
	}

	msg := &entity.Message{
		Id:               msgId,
		ConversationId:   conv.Id,
		SenderType:       entity.SenderTypeForSide(side),
		SenderId:         id.UserId,
		SenderName:       req.SenderName,
		Content:          req.Content,
		ContentType:      contentType,
		Attachments:      req.Attachments,
		ModerationStatus: entity.ModerationApproved,
	}

	if err := s.msgStore.Create(ctx, msg); err != nil {
		log.CtxError(ctx, "create message failed: conversation_id=%s, error=%v", conv.Id, err)
		return nil, errcode.ErrSendFailed
	}

	// Separate write from the message insert; see the conversation counters
	// note above.
	recipient := entity.OtherSide(side)
	if err := s.convStore.AdvanceLastMessage(ctx, conv.Id, msg.CreatedAt, recipient); err != nil {
		log.CtxWarn(ctx, "advance last message failed: conversation_id=%s, error=%v", conv.Id, err)
	}

	s.bus.Publish(ctx, event.MessageSent{Message: msg, ConversationId: conv.Id})

	log.CtxInfo(ctx, "message sent: conversation_id=%s, message_id=%s, sender=%s", conv.Id, msg.Id, id.UserId)
	return msg, nil
}

// SendSystemMessage inserts a SYSTEM message into a conversation. Used by
// internal flows only; it advances last-message but leaves unread counters
// untouched. Publishes MessageSent like a participant send.
func (s *MessageService) SendSystemMessage(ctx context.Context, conversationId, content string) (*entity.Message, error) {
	conv, err := s.convStore.GetById(ctx, conversationId)
	if err != nil {
		return nil, errcode.ErrInternalServer
	}
	if conv == nil {
		return nil, errcode.ErrConvNotFound
	}

	msgId, err := idgen.NextID()
	if err != nil {
		return nil, errcode.ErrSendFailed.Wrap(err)
	}

	msg := &entity.Message{
		Id:               msgId,
		ConversationId:   conv.Id,
		SenderType:       entity.SenderTypeSystem,
		SenderId:         "system",
		SenderName:       "System",
		Content:          content,
		ContentType:      entity.ContentTypeText,
		IsSystemMessage:  true,
		ModerationStatus: entity.ModerationApproved,
	}

	if err := s.msgStore.Create(ctx, msg); err != nil {
		return nil, errcode.ErrSendFailed
	}

	s.bus.Publish(ctx, event.MessageSent{Message: msg, ConversationId: conv.Id})
	return msg, nil
}

// GetMessages returns a page of a conversation's messages in ascending
// chronological order, optionally only those before a timestamp cursor.
func (s *MessageService) GetMessages(ctx context.Context, id entity.Identity, f MessageFilter) ([]*entity.MessageInfo, error) {
	if f.ConversationId == "" {
		return nil, errcode.ErrInvalidParam
	}

	conv, err := s.convStore.GetById(ctx, f.ConversationId)
	if err != nil {
		log.CtxError(ctx, "get conversation failed: conversation_id=%s, error=%v", f.ConversationId, err)
		return nil, errcode.ErrInternalServer
	}
	if conv == nil {
		return nil, errcode.ErrConvNotFound
	}
	if _, ok := conv.ParticipantSide(id); !ok && !id.IsAdmin() {
		return nil, errcode.ErrNoPermission
	}

	messages, err := s.msgStore.List(ctx, f)
	if err != nil {
		log.CtxError(ctx, "list messages failed: conversation_id=%s, error=%v", f.ConversationId, err)
		return nil, errcode.ErrInternalServer
	}

	result := make([]*entity.MessageInfo, 0, len(messages))
	for _, msg := range messages {
		result = append(result, msg.ToMessageInfo())
	}
	return result, nil
}

// FlagMessage marks a message for moderation review and publishes
// MessageFlagged for the admin alert channel. Admin only. Flagging is
// advisory metadata; the message stays visible until a review acts on it.
func (s *MessageService) FlagMessage(ctx context.Context, id entity.Identity, messageId, reason string) error {
	if !id.IsAdmin() {
		return errcode.ErrNoPermission
	}
	if messageId == "" {
		return errcode.ErrInvalidParam
	}

	msg, err := s.msgStore.GetById(ctx, messageId)
	if err != nil {
		log.CtxError(ctx, "get message failed: message_id=%s, error=%v", messageId, err)
		return errcode.ErrInternalServer
	}
	if msg == nil {
		return errcode.ErrMessageNotFound
	}

	if err := s.msgStore.SetFlag(ctx, messageId, reason); err != nil {
		log.CtxError(ctx, "flag message failed: message_id=%s, error=%v", messageId, err)
		return errcode.ErrFlagFailed
	}

	s.bus.Publish(ctx, event.MessageFlagged{
		MessageId: messageId,
		Reason:    reason,
		FlaggedBy: id.UserId,
	})

	log.CtxInfo(ctx, "message flagged: message_id=%s, flagged_by=%s", messageId, id.UserId)
	return nil
}

// SubscribeMessages returns a pull-based subscription over MessageSent events
// for one conversation. The requester must be a participant or an admin. The
// caller must Close the subscription when done; Close is the only way its
// bus listener is released.
func (s *MessageService) SubscribeMessages(ctx context.Context, id entity.Identity, conversationId string) (*event.Subscription, error) {
	conv, err := s.convStore.GetById(ctx, conversationId)
	if err != nil {
		return nil, errcode.ErrInternalServer
	}
	if conv == nil {
		return nil, errcode.ErrConvNotFound
	}
	if _, ok := conv.ParticipantSide(id); !ok && !id.IsAdmin() {
		return nil, errcode.ErrNoPermission
	}

	sub := event.NewSubscription(s.bus, event.NameMessageSent, func(evt event.Event) bool {
		sent, ok := evt.(event.MessageSent)
		return ok && sent.ConversationId == conversationId
	})
	return sub, nil
}
