package models

import "time"

// Base carries the identity and timestamp columns shared by every table.
// Soft deletion is tracked per model with an IsActive flag, so there is no
// DeletedAt column here.
type Base struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
