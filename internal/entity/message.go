package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// Sender types
const (
	SenderTypeVendor = "VENDOR"
	SenderTypeSpa    = "SPA"
	SenderTypeSystem = "SYSTEM"
)

// Content types (fixed at creation)
const (
	ContentTypeText = "text"
	ContentTypeRich = "rich"
)

// Moderation statuses
const (
	ModerationApproved = "APPROVED"
	ModerationPending  = "PENDING"
	ModerationRejected = "REJECTED"
)

// Attachment is one file attached to a message.
type Attachment struct {
	Url      string `json:"url"`
	Filename string `json:"filename"`
	FileType string `json:"file_type"`
	FileSize int64  `json:"file_size"`
}

// AttachmentList stores the ordered attachment list as a JSON column.
type AttachmentList []Attachment

// Value implements driver.Valuer
func (a AttachmentList) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (a *AttachmentList) Scan(v interface{}) error {
	if v == nil {
		*a = nil
		return nil
	}
	switch data := v.(type) {
	case []byte:
		return json.Unmarshal(data, a)
	case string:
		return json.Unmarshal([]byte(data), a)
	default:
		return errors.New("unsupported attachment column type")
	}
}

// Message represents one content-immutable entry in a conversation. Only the
// moderation fields may change after creation.
type Message struct {
	Id               string         `json:"id" gorm:"column:id;primaryKey"`
	ConversationId   string         `json:"conversation_id" gorm:"column:conversation_id;index:idx_msg_conv"`
	SenderType       string         `json:"sender_type" gorm:"column:sender_type"`
	SenderId         string         `json:"sender_id" gorm:"column:sender_id"`
	SenderName       string         `json:"sender_name" gorm:"column:sender_name"`
	Content          string         `json:"content" gorm:"column:content;type:text"`
	ContentType      string         `json:"content_type" gorm:"column:content_type;default:text"`
	Attachments      AttachmentList `json:"attachments" gorm:"column:attachments;type:json"`
	IsSystemMessage  bool           `json:"is_system_message" gorm:"column:is_system_message;default:false"`
	ModerationStatus string         `json:"moderation_status" gorm:"column:moderation_status;default:APPROVED"`
	IsFlagged        bool           `json:"is_flagged" gorm:"column:is_flagged;default:false"`
	FlaggedReason    *string        `json:"flagged_reason" gorm:"column:flagged_reason"`
	CreatedAt        int64          `json:"created_at" gorm:"column:created_at;autoCreateTime:milli;index:idx_msg_conv"`
}

// TableName returns the table name for Message
func (Message) TableName() string {
	return "messages"
}

// MessageInfo represents message info for API response
type MessageInfo struct {
	Id               string         `json:"id"`
	ConversationId   string         `json:"conversation_id"`
	SenderType       string         `json:"sender_type"`
	SenderId         string         `json:"sender_id"`
	SenderName       string         `json:"sender_name"`
	Content          string         `json:"content"`
	ContentType      string         `json:"content_type"`
	Attachments      AttachmentList `json:"attachments"`
	IsSystemMessage  bool           `json:"is_system_message"`
	ModerationStatus string         `json:"moderation_status"`
	IsFlagged        bool           `json:"is_flagged"`
	FlaggedReason    *string        `json:"flagged_reason,omitempty"`
	CreatedAt        int64          `json:"created_at"`
}

// ToMessageInfo converts Message to MessageInfo
func (m *Message) ToMessageInfo() *MessageInfo {
	return &MessageInfo{
		Id:               m.Id,
		ConversationId:   m.ConversationId,
		SenderType:       m.SenderType,
		SenderId:         m.SenderId,
		SenderName:       m.SenderName,
		Content:          m.Content,
		ContentType:      m.ContentType,
		Attachments:      m.Attachments,
		IsSystemMessage:  m.IsSystemMessage,
		ModerationStatus: m.ModerationStatus,
		IsFlagged:        m.IsFlagged,
		FlaggedReason:    m.FlaggedReason,
		CreatedAt:        m.CreatedAt,
	}
}
