package repository

import (
	"context"
	"errors"

	"github.com/YetiPanda/jade-ecosystem-sub005/internal/entity"
	"github.com/YetiPanda/jade-ecosystem-sub005/internal/service"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// MessageRepo is the repository for message operations
type MessageRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewMessageRepo creates a new MessageRepo
func NewMessageRepo(db *gorm.DB, rdb *redis.Client) *MessageRepo {
	return &MessageRepo{db: db, rdb: rdb}
}

// Create inserts a new message
func (r *MessageRepo) Create(ctx context.Context, msg *entity.Message) error {
	msg.CreatedAt = entity.NowUnixMilli()
	return r.db.WithContext(ctx).Create(msg).Error
}

// GetById gets a message by id. Returns nil when not found.
func (r *MessageRepo) GetById(ctx context.Context, id string) (*entity.Message, error) {
	var msg entity.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// List returns a page of messages in ascending chronological order. The page
// is fetched newest-first for pagination efficiency, then reversed.
func (r *MessageRepo) List(ctx context.Context, f service.MessageFilter) ([]*entity.Message, error) {
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	q := r.db.WithContext(ctx).
		Where("conversation_id = ?", f.ConversationId)
	if f.BeforeMs > 0 {
		q = q.Where("created_at < ?", f.BeforeMs)
	}

	var messages []*entity.Message
	err := q.Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(f.Offset).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// SetFlag marks a message flagged and moves it to PENDING moderation.
// Returns gorm.ErrRecordNotFound via GetById callers; the update itself is a
// no-op for unknown ids.
func (r *MessageRepo) SetFlag(ctx context.Context, id, reason string) error {
	return r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_flagged":        true,
			"flagged_reason":    reason,
			"moderation_status": entity.ModerationPending,
		}).Error
}
