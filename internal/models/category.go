package models

import (
	"time"

	"gorm.io/datatypes"
)

// Category is a node in the marketplace category forest. ParentID is a weak
// back-reference; a nil ParentID marks a root.
type Category struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"size:255;not null" json:"name"`
	Slug        string         `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	Description string         `gorm:"type:text" json:"description,omitempty"`
	Image       string         `gorm:"size:512" json:"image,omitempty"`
	IsActive    bool           `gorm:"not null;default:true;index" json:"is_active"`
	IsFeatured  bool           `gorm:"not null;default:false" json:"is_featured"`
	ParentID    *uint          `gorm:"index" json:"parent_id,omitempty"`
	Position    int            `gorm:"not null;default:0" json:"position"`
	Template    datatypes.JSON `gorm:"type:json" json:"template,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
