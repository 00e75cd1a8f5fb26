package repository

import (
	"context"
	"errors"

	"github.com/YetiPanda/jade-ecosystem-sub005/internal/entity"
	"github.com/YetiPanda/jade-ecosystem-sub005/internal/service"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ConversationRepo is the repository for conversation operations
type ConversationRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewConversationRepo creates a new ConversationRepo
func NewConversationRepo(db *gorm.DB, rdb *redis.Client) *ConversationRepo {
	return &ConversationRepo{db: db, rdb: rdb}
}

// Create inserts a new conversation
func (r *ConversationRepo) Create(ctx context.Context, conv *entity.Conversation) error {
	now := entity.NowUnixMilli()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	return r.db.WithContext(ctx).Create(conv).Error
}

// GetById gets a conversation by id. Returns nil when not found.
func (r *ConversationRepo) GetById(ctx context.Context, id string) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// GetByParticipantKey looks up the ACTIVE conversation for the uniqueness key
// (vendor, spa, context type, context id). Returns nil when none exists.
func (r *ConversationRepo) GetByParticipantKey(ctx context.Context, vendorId, spaId string, contextType, contextId *string) (*entity.Conversation, error) {
	q := r.db.WithContext(ctx).
		Where("vendor_id = ? AND spa_id = ? AND status = ?", vendorId, spaId, entity.ConversationStatusActive)
	q = whereNullable(q, "context_type", contextType)
	q = whereNullable(q, "context_id", contextId)

	var conv entity.Conversation
	err := q.First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

func whereNullable(q *gorm.DB, column string, v *string) *gorm.DB {
	if v == nil {
		return q.Where(column + " IS NULL")
	}
	return q.Where(column+" = ?", *v)
}

// List returns conversations for a participant ordered by last_message_at
// descending with nulls last, then created_at descending.
func (r *ConversationRepo) List(ctx context.Context, f service.ConversationFilter) ([]*entity.Conversation, error) {
	q := r.db.WithContext(ctx).Model(&entity.Conversation{})

	switch f.ParticipantType {
	case entity.UserTypeVendor:
		q = q.Where("vendor_id = ?", f.ParticipantId)
	case entity.UserTypeSpa:
		q = q.Where("spa_id = ?", f.ParticipantId)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ContextType != "" {
		q = q.Where("context_type = ?", f.ContextType)
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var convs []*entity.Conversation
	err := q.Order("last_message_at IS NULL, last_message_at DESC, created_at DESC").
		Limit(limit).
		Offset(f.Offset).
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// AdvanceLastMessage sets last_message_at and bumps the recipient side's
// unread counter in a single UPDATE. Called by the send path after the
// message insert has committed; the two writes are deliberately separate.
func (r *ConversationRepo) AdvanceLastMessage(ctx context.Context, id string, atMs int64, recipientSide string) error {
	counter := "unread_count_spa"
	if recipientSide == entity.SideVendor {
		counter = "unread_count_vendor"
	}

	return r.db.WithContext(ctx).
		Model(&entity.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_message_at": atMs,
			counter:           gorm.Expr(counter+" + ?", 1),
			"updated_at":      entity.NowUnixMilli(),
		}).Error
}

// Archive sets a conversation's status to ARCHIVED. Idempotent.
func (r *ConversationRepo) Archive(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&entity.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     entity.ConversationStatusArchived,
			"updated_at": entity.NowUnixMilli(),
		}).Error
}

// AggregateUnread sums the unread counters across a participant's ACTIVE
// conversations.
func (r *ConversationRepo) AggregateUnread(ctx context.Context, participantType, participantId string) (int64, error) {
	counter := "unread_count_spa"
	owner := "spa_id"
	if participantType == entity.UserTypeVendor {
		counter = "unread_count_vendor"
		owner = "vendor_id"
	}

	var total int64
	err := r.db.WithContext(ctx).
		Model(&entity.Conversation{}).
		Select("COALESCE(SUM("+counter+"), 0)").
		Where(owner+" = ? AND status = ?", participantId, entity.ConversationStatusActive).
		Scan(&total).Error
	return total, err
}
