package services

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// AuthResult is what a successful register, login or refresh hands back.
// RefreshToken is the raw secret and is empty after Register.
type AuthResult struct {
	User         *models.User
	AccessToken  *auth.AccessToken
	RefreshToken string
}

// AuthService is the surface consumed by the transport layer. It composes
// the credential verifier and the session manager.
type AuthService struct {
	users    *UserService
	sessions *SessionService
}

func NewAuthService(users *UserService, sessions *SessionService) *AuthService {
	return &AuthService{users: users, sessions: sessions}
}

// Register creates an account and logs it in without opening a session.
func (a *AuthService) Register(ctx context.Context, userName, email, password string) (*AuthResult, error) {
	user, access, err := a.users.Register(ctx, userName, email, password)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, AccessToken: access}, nil
}

// Login verifies the password and opens a session for userAgent.
func (a *AuthService) Login(ctx context.Context, email, password, userAgent string) (*AuthResult, error) {
	user, access, err := a.users.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	raw, err := a.sessions.CreateSession(ctx, user.ID, userAgent)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, AccessToken: access, RefreshToken: raw}, nil
}

func (a *AuthService) Refresh(ctx context.Context, refreshToken, userAgent string) (*AuthResult, error) {
	return a.sessions.Rotate(ctx, refreshToken, userAgent)
}

func (a *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return a.sessions.Revoke(ctx, refreshToken)
}

func (a *AuthService) LogoutAll(ctx context.Context, userID int64) error {
	_, err := a.sessions.RevokeAll(ctx, userID)
	return err
}

func (a *AuthService) ListSessions(ctx context.Context, userID int64) ([]models.SessionSummary, error) {
	return a.sessions.ListSessions(ctx, userID)
}

func (a *AuthService) RevokeSession(ctx context.Context, sessionID, requestingUserID int64) error {
	return a.sessions.RevokeByID(ctx, sessionID, requestingUserID)
}

func (a *AuthService) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	return a.users.ChangePassword(ctx, userID, currentPassword, newPassword)
}

func (a *AuthService) ChangeEmail(ctx context.Context, userID int64, currentPassword, newEmail string) error {
	return a.users.ChangeEmail(ctx, userID, currentPassword, newEmail)
}

func (a *AuthService) GetAccount(ctx context.Context, userID int64) (*models.User, error) {
	return a.users.GetAccount(ctx, userID)
}

func (a *AuthService) DeleteAccount(ctx context.Context, adminID, userID int64) error {
	return a.users.DeleteAccount(ctx, adminID, userID)
}
