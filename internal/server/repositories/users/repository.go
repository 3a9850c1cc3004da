// Package users declares and implements the account side of the credential
// store.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository defines persistence operations on accounts. Implementations
// return common.ErrorNotFound for missing rows and common.ErrorConflict when
// a username or email is already taken.
type Repository interface {
	// Create inserts user and fills in its id and timestamps.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// Count returns the number of accounts ever kept; used for the
	// first-account-is-admin rule.
	Count(ctx context.Context) (int64, error)

	// LockTable serializes concurrent registrations for the rest of the
	// current transaction. Only meaningful on a transactional handle.
	LockTable(ctx context.Context) error

	// UpdateLoginState stores the lockout counters after a login attempt.
	UpdateLoginState(ctx context.Context, id int64, failedAttempts int, lockedUntil *time.Time) error

	// UpdatePassword stores a new hash and clears the lockout counters.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	UpdateEmail(ctx context.Context, id int64, email string) error

	// Delete removes the account; its refresh tokens go with it.
	Delete(ctx context.Context, id int64) error
}
