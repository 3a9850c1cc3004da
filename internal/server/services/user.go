// Package services contains server-side business logic. This file implements
// UserService, the credential verifier: registration, password login with
// account lockout, and re-authenticated profile changes.
package services

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

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

// MaxPasswordBytes is the longest password accepted; bcrypt ignores or
// rejects anything past 72 bytes.
const MaxPasswordBytes = 72

var userNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{3,30}$`)

// UserService provides account operations:
//   - Register: create an account, the first one becomes admin
//   - Login: verify a password under the lockout policy and mint an access token
//   - ChangePassword / ChangeEmail: profile changes behind the current password
//   - GetAccount / DeleteAccount: lookup and admin-only removal
type UserService struct {
	db                *sql.DB
	repomanager       repomanager.RepositoryManager
	hasher            cryptox.PasswordHasher
	issuer            *auth.Issuer
	policy            auth.LockoutPolicy
	minPasswordLength int
	logger            logging.Logger
	metrics           *metrics.Metrics
	now               func() time.Time
}

// NewUserService constructs a UserService using repositories and server config.
// m may be nil.
func NewUserService(db *sql.DB, rm repomanager.RepositoryManager, hasher cryptox.PasswordHasher, issuer *auth.Issuer,
	cfg *config.Config, logger logging.Logger, m *metrics.Metrics) *UserService {
	return &UserService{
		db:                db,
		repomanager:       rm,
		hasher:            hasher,
		issuer:            issuer,
		policy:            auth.NewLockoutPolicy(cfg),
		minPasswordLength: cfg.MinPasswordLength,
		logger:            logger.With("module", "users"),
		metrics:           m,
		now:               time.Now,
	}
}

// Register validates the input, stores the account and returns it with an
// access token. The first account ever stored is granted admin.
func (s *UserService) Register(ctx context.Context, userName, email, password string) (*models.User, *auth.AccessToken, error) {
	email = normalizeEmail(email)
	if err := s.validateRegistration(userName, email, password); err != nil {
		return nil, nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, nil, s.internal(ctx, "hash password", err)
	}

	user := &models.User{UserName: userName, Email: email, PasswordHash: hash}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		if err := repo.LockTable(ctx); err != nil {
			return err
		}
		n, err := repo.Count(ctx)
		if err != nil {
			return err
		}
		user.IsAdmin = n == 0
		_, err = repo.Create(ctx, user)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			s.logger.Info(ctx, "registration conflict", "username", userName)
			return nil, nil, err
		}
		return nil, nil, s.internal(ctx, "create user", err)
	}

	access, err := s.issuer.Issue(user)
	if err != nil {
		return nil, nil, s.internal(ctx, "issue access token", err)
	}

	s.metrics.Registration()
	s.logger.Info(ctx, "user registered", "user_id", user.ID, "admin", user.IsAdmin)
	return user, access, nil
}

// Login checks, in order: the account exists, it is not locked, the password
// matches. An unknown email and a wrong password give the same error. A
// locked account is rejected before its password is looked at.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, *auth.AccessToken, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.Login(metrics.LoginInvalidCredentials)
			return nil, nil, common.ErrInvalidCredentials
		}
		s.metrics.Login(metrics.LoginError)
		return nil, nil, s.internal(ctx, "get user", err)
	}

	now := s.now()
	if state, remaining := s.policy.State(user, now); state == auth.Locked {
		s.metrics.Login(metrics.LoginLocked)
		s.logger.Info(ctx, "login rejected, account locked", "user_id", user.ID)
		return nil, nil, &common.AccountLockedError{Remaining: remaining}
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		next := s.policy.Failure(user, now)
		if err := repo.UpdateLoginState(ctx, user.ID, next.FailedAttempts, next.LockedUntil); err != nil {
			s.metrics.Login(metrics.LoginError)
			return nil, nil, s.internal(ctx, "store failed attempt", err)
		}
		if next.JustLocked {
			s.metrics.Lockout()
			s.logger.Warn(ctx, "account locked", "user_id", user.ID, "until", *next.LockedUntil)
		} else {
			s.logger.Info(ctx, "login failed", "user_id", user.ID, "failed_attempts", next.FailedAttempts)
		}
		s.metrics.Login(metrics.LoginInvalidCredentials)
		return nil, nil, common.ErrInvalidCredentials
	}

	next := s.policy.Success()
	if err := repo.UpdateLoginState(ctx, user.ID, next.FailedAttempts, next.LockedUntil); err != nil {
		s.metrics.Login(metrics.LoginError)
		return nil, nil, s.internal(ctx, "reset login state", err)
	}
	user.FailedLoginAttempts = next.FailedAttempts
	user.LockedUntil = next.LockedUntil

	access, err := s.issuer.Issue(user)
	if err != nil {
		s.metrics.Login(metrics.LoginError)
		return nil, nil, s.internal(ctx, "issue access token", err)
	}

	s.metrics.Login(metrics.LoginSuccess)
	return user, access, nil
}

// ChangePassword replaces the password after re-verifying the current one and
// clears the lockout counters. Existing sessions stay valid.
func (s *UserService) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	user, err := s.reauthenticate(ctx, userID, currentPassword)
	if err != nil {
		return err
	}
	if err := s.validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return s.internal(ctx, "hash password", err)
	}
	if err := s.repomanager.Users(s.db).UpdatePassword(ctx, user.ID, hash); err != nil {
		return s.passthrough(ctx, "update password", err)
	}

	s.logger.Info(ctx, "password changed", "user_id", user.ID)
	return nil
}

// ChangeEmail replaces the email after re-verifying the current password.
// An address held by another account yields common.ErrorConflict.
func (s *UserService) ChangeEmail(ctx context.Context, userID int64, currentPassword, newEmail string) error {
	user, err := s.reauthenticate(ctx, userID, currentPassword)
	if err != nil {
		return err
	}

	newEmail = normalizeEmail(newEmail)
	if err := validateEmail(newEmail); err != nil {
		return err
	}
	if newEmail == user.Email {
		return nil
	}

	if err := s.repomanager.Users(s.db).UpdateEmail(ctx, user.ID, newEmail); err != nil {
		return s.passthrough(ctx, "update email", err)
	}

	s.logger.Info(ctx, "email changed", "user_id", user.ID)
	return nil
}

// GetAccount returns the account with userID.
func (s *UserService) GetAccount(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, s.passthrough(ctx, "get user", err)
	}
	return user, nil
}

// DeleteAccount removes userID on behalf of adminID. The requester must
// exist and be an admin; its sessions are dropped with the row.
func (s *UserService) DeleteAccount(ctx context.Context, adminID, userID int64) error {
	repo := s.repomanager.Users(s.db)

	admin, err := repo.GetByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorForbidden
		}
		return s.internal(ctx, "get requester", err)
	}
	if !admin.IsAdmin {
		s.logger.Warn(ctx, "non-admin delete attempt", "user_id", adminID, "target_id", userID)
		return common.ErrorForbidden
	}

	if err := repo.Delete(ctx, userID); err != nil {
		return s.passthrough(ctx, "delete user", err)
	}

	s.logger.Info(ctx, "user deleted", "user_id", userID, "by", adminID)
	return nil
}

// --- helpers below ---

// reauthenticate loads userID and checks password. It does not touch the
// lockout counters.
func (s *UserService) reauthenticate(ctx context.Context, userID int64, password string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, s.passthrough(ctx, "get user", err)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) validateRegistration(userName, email, password string) error {
	if !userNameRe.MatchString(userName) {
		return common.NewValidationError("username", "must be 3-30 characters of letters, digits, '_' or '-'")
	}
	if err := validateEmail(email); err != nil {
		return err
	}
	return s.validatePassword(password)
}

func (s *UserService) validatePassword(password string) error {
	if utf8.RuneCountInString(password) < s.minPasswordLength {
		return common.NewValidationError("password", "too short")
	}
	if len(password) > MaxPasswordBytes {
		return common.NewValidationError("password", "too long")
	}
	return nil
}

func validateEmail(email string) error {
	if !strings.Contains(email, "@") {
		return common.NewValidationError("email", "must contain '@'")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// passthrough keeps taxonomy errors (not found, conflict) and collapses the
// rest to common.ErrorInternal.
func (s *UserService) passthrough(ctx context.Context, op string, err error) error {
	if common.Kind(err) != common.KindInternal {
		return err
	}
	return s.internal(ctx, op, err)
}

func (s *UserService) internal(ctx context.Context, op string, err error) error {
	s.logger.Error(ctx, op+" failed", "error", err)
	return common.ErrorInternal
}
