package service

import (
	"context"

	"github.com/YetiPanda/jade-ecosystem-sub005/internal/entity"
)

// ConversationFilter selects a page of a participant's conversations.
type ConversationFilter struct {
	ParticipantType string
	ParticipantId   string
	Status          string
	ContextType     string
	Limit           int
	Offset          int
}

// MessageFilter selects a page of a conversation's messages.
type MessageFilter struct {
	ConversationId string
	Limit          int
	Offset         int
	BeforeMs       int64
}

// ConversationStore is the persistence surface the services need for
// conversations. Implemented by repository.ConversationRepo.
type ConversationStore interface {
	Create(ctx context.Context, conv *entity.Conversation) error
	GetById(ctx context.Context, id string) (*entity.Conversation, error)
	GetByParticipantKey(ctx context.Context, vendorId, spaId string, contextType, contextId *string) (*entity.Conversation, error)
	List(ctx context.Context, f ConversationFilter) ([]*entity.Conversation, error)
	AdvanceLastMessage(ctx context.Context, id string, atMs int64, recipientSide string) error
	Archive(ctx context.Context, id string) error
	AggregateUnread(ctx context.Context, participantType, participantId string) (int64, error)
}

// MessageStore is the persistence surface for messages. Implemented by
// repository.MessageRepo.
type MessageStore interface {
	Create(ctx context.Context, msg *entity.Message) error
	GetById(ctx context.Context, id string) (*entity.Message, error)
	List(ctx context.Context, f MessageFilter) ([]*entity.Message, error)
	SetFlag(ctx context.Context, id, reason string) error
}

// ReadStore is the persistence surface for read acknowledgements.
// Implemented by repository.ReadStatusRepo.
type ReadStore interface {
	MarkConversationRead(ctx context.Context, conv *entity.Conversation, readerSide, readerId string, atMs int64) (int, error)
}
