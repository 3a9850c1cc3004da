package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the payload of an access token: registered claims plus a
// snapshot of the account taken at issuance time.
type Claims struct {
	Email    string `json:"email"`
	UserName string `json:"username"`
	IsAdmin  bool   `json:"admin"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim back into an account id.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// AccessToken is a signed bearer credential. It is not persisted.
type AccessToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// Issuer mints stateless HS256 access tokens. Any Verifier holding the same
// secret, issuer and audience can validate them without shared state.
type Issuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewIssuer(cfg *config.Config) *Issuer {
	return &Issuer{
		secret:   []byte(cfg.SecretKey),
		issuer:   cfg.TokenIssuer,
		audience: cfg.TokenAudience,
		ttl:      cfg.AccessTokenValidityDuration,
		now:      time.Now,
	}
}

// Issue signs a token for user. The jti is a random UUID so a revocation list
// keyed by id can be added later without changing the token format.
func (i *Issuer) Issue(user *models.User) (*AccessToken, error) {
	now := i.now()
	id := uuid.NewString()
	expires := now.Add(i.ttl)

	claims := Claims{
		Email:    user.Email,
		UserName: user.UserName,
		IsAdmin:  user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, err
	}
	return &AccessToken{Token: signed, ID: id, ExpiresAt: expires}, nil
}

// Verifier checks access tokens at the system boundary: signature, expiry,
// issuer and audience, with a small clock-skew allowance.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(cfg *config.Config) *Verifier {
	return newVerifier(cfg, time.Now)
}

func newVerifier(cfg *config.Config, now func() time.Time) *Verifier {
	return &Verifier{
		secret: []byte(cfg.SecretKey),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(cfg.TokenIssuer),
			jwt.WithAudience(cfg.TokenAudience),
			jwt.WithLeeway(cfg.ClockSkew),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(now),
		),
	}
}

// Parse returns the claims of a valid token. Every failure wraps
// common.ErrTokenInvalid; the jwt cause (e.g. jwt.ErrTokenExpired) stays
// reachable through errors.Is.
func (v *Verifier) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, common.ErrTokenInvalid
	}
	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("%w: bad subject", common.ErrTokenInvalid)
	}
	return claims, nil
}
