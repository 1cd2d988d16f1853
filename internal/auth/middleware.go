package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/Shivanand-hulikatti/eventreg/internal/httputil"
	"github.com/rs/zerolog"
)

type contextKey string

const identityKey contextKey = "identity"

// Verifier decodes a token into an identity.
type Verifier interface {
	Verify(token string) (*Identity, error)
}

// Middleware gates protected routes on a valid bearer token.
type Middleware struct {
	verifier Verifier
	logger   zerolog.Logger
}

func NewMiddleware(verifier Verifier, logger zerolog.Logger) *Middleware {
	return &Middleware{
		verifier: verifier,
		logger:   logger.With().Str("component", "auth").Logger(),
	}
}

// RequireAuth rejects requests without a usable bearer token and otherwise
// attaches the decoded identity to the request context.
//
//	no token          401 UNAUTHENTICATED
//	expired token     401 TOKEN_EXPIRED
//	malformed token   400 TOKEN_INVALID
//	anything else     500 SERVER_ERROR
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := TokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			m.logger.Warn().Str("path", r.URL.Path).Msg("no token provided")
			httputil.WriteError(w, http.StatusUnauthorized, httputil.CodeUnauthenticated, "access denied, no token provided")
			return
		}

		identity, err := m.verifier.Verify(token)
		if err != nil {
			switch {
			case errors.Is(err, ErrMissingToken):
				m.logger.Warn().Str("path", r.URL.Path).Msg("no token provided")
				httputil.WriteError(w, http.StatusUnauthorized, httputil.CodeUnauthenticated, "access denied, no token provided")
			case errors.Is(err, ErrTokenExpired):
				m.logger.Warn().Str("path", r.URL.Path).Msg("token has expired")
				httputil.WriteError(w, http.StatusUnauthorized, httputil.CodeTokenExpired, "token has expired")
			case errors.Is(err, ErrTokenMalformed):
				m.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("invalid token")
				httputil.WriteError(w, http.StatusBadRequest, httputil.CodeTokenInvalid, "invalid token")
			default:
				m.logger.Error().Err(err).Str("path", r.URL.Path).Msg("unexpected error during token verification")
				httputil.WriteError(w, http.StatusInternalServerError, httputil.CodeServerError, "internal server error during token verification")
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
	})
}

// ContextWithIdentity returns a copy of ctx carrying identity.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the identity attached by RequireAuth.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*Identity)
	return identity, ok && identity != nil
}
