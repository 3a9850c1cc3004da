// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account row. PasswordHash is opaque output of the configured
// hasher; the plaintext never reaches this struct.
type User struct {
	ID                  int64
	UserName            string
	Email               string
	PasswordHash        string
	IsAdmin             bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
