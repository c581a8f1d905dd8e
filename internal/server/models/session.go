package models

import "time"

// Session is a bearer credential issued after a successful code verification.
type Session struct {
	ID           string
	UserID       string
	Token        string
	DeviceInfo   string
	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time
}
