package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

// SessionService manages refresh token sessions. Raw secrets are handed out
// exactly once and only their hashes are stored.
type SessionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	issuer      *auth.Issuer
	ttl         time.Duration
	logger      logging.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
	newSecret   func() (raw string, hash string, err error)
}

// NewSessionService constructs a SessionService. m may be nil.
func NewSessionService(db *sql.DB, rm repomanager.RepositoryManager, issuer *auth.Issuer,
	cfg *config.Config, logger logging.Logger, m *metrics.Metrics) *SessionService {
	return &SessionService{
		db:          db,
		repomanager: rm,
		issuer:      issuer,
		ttl:         cfg.RefreshTokenValidityDuration,
		logger:      logger.With("module", "sessions"),
		metrics:     m,
		now:         time.Now,
		newSecret:   cryptox.NewSecret,
	}
}

// CreateSession opens a session for userID and returns its raw secret.
func (s *SessionService) CreateSession(ctx context.Context, userID int64, userAgent string) (string, error) {
	raw, err := s.createSession(ctx, s.db, userID, userAgent, s.now())
	if err != nil {
		return "", s.internal(ctx, "create session", err)
	}
	return raw, nil
}

// Rotate redeems raw for a new session and access token. The old session is
// claimed with a single conditional update, so a secret can be redeemed at
// most once; replays, unknown and expired secrets get common.ErrTokenInvalid.
// Claim and replacement commit together.
func (s *SessionService) Rotate(ctx context.Context, raw, userAgent string) (*AuthResult, error) {
	if raw == "" {
		s.metrics.Refresh(metrics.RefreshInvalid)
		return nil, common.ErrTokenInvalid
	}

	hash := cryptox.HashSecret(raw)
	now := s.now()

	var res *AuthResult
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		claimed, err := s.repomanager.RefreshTokens(tx).Claim(ctx, hash, now)
		if err != nil {
			return err
		}

		user, err := s.repomanager.Users(tx).GetByID(ctx, claimed.UserID)
		if err != nil {
			return err
		}

		next, err := s.createSession(ctx, tx, user.ID, userAgent, now)
		if err != nil {
			return err
		}

		access, err := s.issuer.Issue(user)
		if err != nil {
			return err
		}

		res = &AuthResult{User: user, AccessToken: access, RefreshToken: next}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.Refresh(metrics.RefreshInvalid)
			s.logger.Info(ctx, "refresh token rejected")
			return nil, common.ErrTokenInvalid
		}
		s.metrics.Refresh(metrics.RefreshError)
		return nil, s.internal(ctx, "rotate session", err)
	}

	s.metrics.Refresh(metrics.RefreshSuccess)
	return res, nil
}

// Revoke ends the session of raw. Unknown and already revoked secrets are
// not an error.
func (s *SessionService) Revoke(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	revoked, err := s.repomanager.RefreshTokens(s.db).Revoke(ctx, cryptox.HashSecret(raw), s.now())
	if err != nil {
		return s.internal(ctx, "revoke session", err)
	}
	if revoked {
		s.metrics.SessionsRevoked(metrics.RevokeLogout, 1)
	}
	return nil
}

// RevokeAll ends every valid session of userID and reports how many.
func (s *SessionService) RevokeAll(ctx context.Context, userID int64) (int64, error) {
	n, err := s.repomanager.RefreshTokens(s.db).RevokeAllForUser(ctx, userID, s.now())
	if err != nil {
		return 0, s.internal(ctx, "revoke all sessions", err)
	}
	s.metrics.SessionsRevoked(metrics.RevokeLogoutAll, n)
	s.logger.Info(ctx, "sessions revoked", "user_id", userID, "count", n)
	return n, nil
}

// RevokeByID ends sessionID if it belongs to userID. A foreign session is
// reported exactly like a missing one.
func (s *SessionService) RevokeByID(ctx context.Context, sessionID, userID int64) error {
	err := s.repomanager.RefreshTokens(s.db).RevokeByID(ctx, sessionID, userID, s.now())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return s.internal(ctx, "revoke session by id", err)
	}
	s.metrics.SessionsRevoked(metrics.RevokeByID, 1)
	return nil
}

// ListSessions returns the valid sessions of userID, newest first.
func (s *SessionService) ListSessions(ctx context.Context, userID int64) ([]models.SessionSummary, error) {
	sessions, err := s.repomanager.RefreshTokens(s.db).ListActive(ctx, userID, s.now())
	if err != nil {
		return nil, s.internal(ctx, "list sessions", err)
	}
	return sessions, nil
}

// --- helpers below ---

func (s *SessionService) createSession(ctx context.Context, db dbx.DBTX, userID int64, userAgent string, now time.Time) (string, error) {
	raw, hash, err := s.newSecret()
	if err != nil {
		return "", err
	}
	token := &models.RefreshToken{
		UserID:    userID,
		TokenHash: hash,
		UserAgent: userAgent,
		ExpiresAt: now.Add(s.ttl),
	}
	if _, err := s.repomanager.RefreshTokens(db).Create(ctx, token); err != nil {
		return "", err
	}
	return raw, nil
}

func (s *SessionService) internal(ctx context.Context, op string, err error) error {
	s.logger.Error(ctx, op+" failed", "error", err)
	return common.ErrorInternal
}
