package repository

import (
	"context"

	"github.com/YetiPanda/jade-ecosystem-sub005/internal/entity"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReadStatusRepo is the repository for read acknowledgement operations
type ReadStatusRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewReadStatusRepo creates a new ReadStatusRepo
func NewReadStatusRepo(db *gorm.DB, rdb *redis.Client) *ReadStatusRepo {
	return &ReadStatusRepo{db: db, rdb: rdb}
}

// MarkConversationRead upserts a read row for every message in the
// conversation sent by the other party that this reader has not read yet,
// then resets the reader's unread counter to zero. All writes happen in one
// transaction so the counter cannot drift from the read rows.
// Returns the number of messages newly marked read.
func (r *ReadStatusRepo) MarkConversationRead(ctx context.Context, conv *entity.Conversation, readerSide, readerId string, atMs int64) (int, error) {
	otherSenderType := entity.SenderTypeForSide(entity.OtherSide(readerSide))
	readerType := entity.SenderTypeForSide(readerSide)

	counter := "unread_count_spa"
	if readerSide == entity.SideVendor {
		counter = "unread_count_vendor"
	}

	marked := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var unread []*entity.Message
		err := tx.
			Where("conversation_id = ? AND sender_type IN ?", conv.Id, []string{otherSenderType, entity.SenderTypeSystem}).
			Where(`NOT EXISTS (
				SELECT 1 FROM read_statuses rs
				WHERE rs.message_id = messages.id
				  AND rs.reader_type = ?
				  AND rs.reader_id = ?
				  AND rs.is_read = true
			)`, readerType, readerId).
			Find(&unread).Error
		if err != nil {
			return err
		}

		for _, msg := range unread {
			row := &entity.ReadStatus{
				MessageId:  msg.Id,
				ReaderType: readerType,
				ReaderId:   readerId,
				IsRead:     true,
				ReadAt:     &atMs,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "message_id"}, {Name: "reader_type"}, {Name: "reader_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"is_read": true,
					"read_at": gorm.Expr("GREATEST(COALESCE(read_at, 0), ?)", atMs),
				}),
			}).Create(row).Error
			if err != nil {
				return err
			}
		}
		marked = len(unread)

		return tx.Model(&entity.Conversation{}).
			Where("id = ?", conv.Id).
			Updates(map[string]interface{}{
				counter:      0,
				"updated_at": entity.NowUnixMilli(),
			}).Error
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}

// GetForMessage returns the read row for one reader on one message, or nil.
func (r *ReadStatusRepo) GetForMessage(ctx context.Context, messageId, readerType, readerId string) (*entity.ReadStatus, error) {
	var row entity.ReadStatus
	err := r.db.WithContext(ctx).
		Where("message_id = ? AND reader_type = ? AND reader_id = ?", messageId, readerType, readerId).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}
