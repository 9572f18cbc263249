package models

import "time"

// ActivityLog is an audit entry for moderation and lifecycle actions.
type ActivityLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     string    `gorm:"size:64;index" json:"user_id"`
	Action     string    `gorm:"size:64;index" json:"action"`
	TargetID   string    `gorm:"size:64" json:"target_id"`
	TargetType string    `gorm:"size:32" json:"target_type"`
	CreatedAt  time.Time `json:"created_at"`
}
