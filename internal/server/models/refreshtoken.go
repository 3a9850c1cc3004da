package models

import "time"

// RefreshToken is one login session. Only the SHA-256 of the raw secret is
// stored; rows are revoked, never deleted, except by account deletion.
type RefreshToken struct {
	ID        int64
	UserID    int64
	TokenHash string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Valid reports whether the session can still be redeemed at now.
func (t *RefreshToken) Valid(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(now)
}

// SessionSummary is what callers may see about a session: never the secret
// nor its hash.
type SessionSummary struct {
	ID        int64
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}
