package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is one row per recipient. After insert only the read pair and
// the push pair change, each exactly once from unset to set.
type Notification struct {
	ID          string         `gorm:"primaryKey;size:26" json:"id"`
	RecipientID uint           `gorm:"not null;index:idx_notifications_recipient,priority:1" json:"recipient_id"`
	Type        string         `gorm:"size:20;not null;index" json:"type"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Body        string         `gorm:"type:text;not null" json:"body"`
	Data        datatypes.JSON `json:"data,omitempty"`
	ActionURL   *string        `gorm:"size:512" json:"action_url,omitempty"`
	IsRead      bool           `gorm:"not null;default:false;index:idx_notifications_recipient,priority:2" json:"is_read"`
	ReadAt      *time.Time     `json:"read_at"`
	IsPushSent  bool           `gorm:"not null;default:false" json:"is_push_sent"`
	PushSentAt  *time.Time     `json:"push_sent_at"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
