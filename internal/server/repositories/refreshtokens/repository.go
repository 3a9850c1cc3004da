// Package refreshtokens declares the server-side repository contract for
// login sessions (refresh tokens) and its PostgreSQL implementation.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository persists refresh token rows. Rows are keyed by the hash of the
// secret; the raw secret never reaches this layer. Every method takes now
// explicitly so validity is judged against a single clock reading.
type Repository interface {
	// Create inserts token and fills in its id and creation time.
	Create(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error)

	// Claim revokes the valid row with tokenHash in one conditional statement
	// and returns it as it was claimed. Unknown, expired or already revoked
	// rows yield common.ErrorNotFound, so at most one caller can ever claim a
	// given row.
	Claim(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error)

	// Revoke marks the row with tokenHash revoked if it is not already and
	// reports whether it did. A missing or already revoked row is not an error.
	Revoke(ctx context.Context, tokenHash string, now time.Time) (bool, error)

	// RevokeAllForUser revokes every valid row of userID and reports how many.
	RevokeAllForUser(ctx context.Context, userID int64, now time.Time) (int64, error)

	// RevokeByID revokes a valid row only if it belongs to userID. Missing,
	// foreign and no longer valid rows all yield common.ErrorNotFound.
	RevokeByID(ctx context.Context, id int64, userID int64, now time.Time) error

	// ListActive returns the valid sessions of userID, newest first.
	ListActive(ctx context.Context, userID int64, now time.Time) ([]models.SessionSummary, error)
}
