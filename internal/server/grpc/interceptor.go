// Package grpc holds the gRPC boundary pieces of gophauth: a unary
// interceptor that verifies access tokens and the mapping from the error
// taxonomy to gRPC status codes.
package grpc

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// ClaimsFromContext returns the claims placed by AccessTokenInterceptor.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok
}

// UserIDFromContext returns the authenticated account id.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return 0, false
	}
	id, err := c.UserID()
	if err != nil {
		return 0, false
	}
	return id, true
}

// AccessTokenInterceptor verifies "authorization: Bearer <jwt>" on every call
// except the public methods (register, login, refresh) and stores the claims
// in the handler context.
type AccessTokenInterceptor struct {
	verifier *auth.Verifier
	public   map[string]struct{}
	logger   logging.Logger
}

func NewAccessTokenInterceptor(v *auth.Verifier, logger logging.Logger, publicMethods ...string) *AccessTokenInterceptor {
	public := make(map[string]struct{}, len(publicMethods))
	for _, m := range publicMethods {
		public[m] = struct{}{}
	}
	return &AccessTokenInterceptor{verifier: v, public: public, logger: logger.With("module", "grpc")}
}

// Unary is the grpc.UnaryServerInterceptor.
func (i *AccessTokenInterceptor) Unary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if _, ok := i.public[info.FullMethod]; ok {
		return handler(ctx, req)
	}

	token, ok := bearerToken(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := i.verifier.Parse(token)
	if err != nil {
		i.logger.Debug(ctx, "access token rejected", "method", info.FullMethod, "error", err)
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	return handler(context.WithValue(ctx, claimsKey, claims), req)
}

func bearerToken(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	values := md.Get(common.AuthorizationHeaderName)
	if len(values) == 0 {
		return "", false
	}
	scheme, token, found := strings.Cut(values[0], " ")
	if !found || !strings.EqualFold(scheme, common.BearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
