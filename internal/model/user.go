package model

import "time"

// User stores Telegram user metadata and notification preferences.
type User struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	FirstName  string
	LastName   string
	Username   string
	// Timezone is an IANA zone identifier or a fixed "UTC±HH[:MM]" offset.
	// It is read when a reminder is materialized; changing it later only
	// affects future expansions, never already-scheduled reminders.
	Timezone  string `gorm:"default:UTC"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
