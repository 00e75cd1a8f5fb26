package entity

// ReadStatus is the per-reader, per-message acknowledgement record. A row only
// exists once a non-sender reader marks the message read; absence means unread.
type ReadStatus struct {
	Id         int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	MessageId  string `json:"message_id" gorm:"column:message_id;uniqueIndex:uk_read_status"`
	ReaderType string `json:"reader_type" gorm:"column:reader_type;uniqueIndex:uk_read_status"`
	ReaderId   string `json:"reader_id" gorm:"column:reader_id;uniqueIndex:uk_read_status"`
	IsRead     bool   `json:"is_read" gorm:"column:is_read;default:false"`
	ReadAt     *int64 `json:"read_at" gorm:"column:read_at"`
}

// TableName returns the table name for ReadStatus
func (ReadStatus) TableName() string {
	return "read_statuses"
}
