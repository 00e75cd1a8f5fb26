package entity

// Conversation status
const (
	ConversationStatusActive   = "ACTIVE"
	ConversationStatusArchived = "ARCHIVED"
)

// Participant sides of a conversation
const (
	SideVendor = "vendor"
	SideSpa    = "spa"
)

// Conversation represents a durable thread between one vendor and one spa,
// optionally scoped to an external business object via context type/id.
type Conversation struct {
	Id                string  `json:"id" gorm:"column:id;primaryKey"`
	VendorId          string  `json:"vendor_id" gorm:"column:vendor_id;index:idx_conv_participants"`
	SpaId             string  `json:"spa_id" gorm:"column:spa_id;index:idx_conv_participants"`
	Subject           string  `json:"subject" gorm:"column:subject"`
	ContextType       *string `json:"context_type" gorm:"column:context_type"`
	ContextId         *string `json:"context_id" gorm:"column:context_id"`
	Status            string  `json:"status" gorm:"column:status;default:ACTIVE"`
	UnreadCountVendor int64   `json:"unread_count_vendor" gorm:"column:unread_count_vendor;default:0"`
	UnreadCountSpa    int64   `json:"unread_count_spa" gorm:"column:unread_count_spa;default:0"`
	LastMessageAt     *int64  `json:"last_message_at" gorm:"column:last_message_at"`
	CreatedAt         int64   `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt         int64   `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for Conversation
func (Conversation) TableName() string {
	return "conversations"
}

// ParticipantSide returns which side of the conversation the identity is on.
// ok is false when the identity is not a participant.
func (c *Conversation) ParticipantSide(id Identity) (side string, ok bool) {
	switch {
	case id.UserType == UserTypeVendor && id.UserId == c.VendorId:
		return SideVendor, true
	case id.UserType == UserTypeSpa && id.UserId == c.SpaId:
		return SideSpa, true
	default:
		return "", false
	}
}

// UnreadFor returns the cached unread counter for a participant side.
func (c *Conversation) UnreadFor(side string) int64 {
	if side == SideVendor {
		return c.UnreadCountVendor
	}
	return c.UnreadCountSpa
}

// OtherSide returns the opposite participant side.
func OtherSide(side string) string {
	if side == SideVendor {
		return SideSpa
	}
	return SideVendor
}

// SenderTypeForSide maps a participant side to a message sender type.
func SenderTypeForSide(side string) string {
	if side == SideVendor {
		return SenderTypeVendor
	}
	return SenderTypeSpa
}

// ConversationInfo represents conversation info for API response
type ConversationInfo struct {
	Id                string  `json:"id"`
	VendorId          string  `json:"vendor_id"`
	SpaId             string  `json:"spa_id"`
	Subject           string  `json:"subject"`
	ContextType       *string `json:"context_type,omitempty"`
	ContextId         *string `json:"context_id,omitempty"`
	Status            string  `json:"status"`
	UnreadCountVendor int64   `json:"unread_count_vendor"`
	UnreadCountSpa    int64   `json:"unread_count_spa"`
	LastMessageAt     *int64  `json:"last_message_at"`
	CreatedAt         int64   `json:"created_at"`
	UpdatedAt         int64   `json:"updated_at"`
}

// ToConversationInfo converts Conversation to ConversationInfo
func (c *Conversation) ToConversationInfo() *ConversationInfo {
	return &ConversationInfo{
		Id:                c.Id,
		VendorId:          c.VendorId,
		SpaId:             c.SpaId,
		Subject:           c.Subject,
		ContextType:       c.ContextType,
		ContextId:         c.ContextId,
		Status:            c.Status,
		UnreadCountVendor: c.UnreadCountVendor,
		UnreadCountSpa:    c.UnreadCountSpa,
		LastMessageAt:     c.LastMessageAt,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}
