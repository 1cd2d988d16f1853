package auth

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/eventreg/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	identity *Identity
	err      error
}

func (s stubVerifier) Verify(string) (*Identity, error) {
	return s.identity, s.err
}

func serve(t *testing.T, v Verifier, header string) (*httptest.ResponseRecorder, *Identity) {
	t.Helper()

	var seen *Identity
	h := NewMiddleware(v, zerolog.New(io.Discard)).RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		require.True(t, ok)
		seen = id
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res, seen
}

func decodeError(t *testing.T, res *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()
	var body model.ErrorResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	return body
}

func TestRequireAuthNoHeader(t *testing.T) {
	res, _ := serve(t, stubVerifier{}, "")
	require.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "UNAUTHENTICATED", decodeError(t, res).Code)
}

func TestRequireAuthNonBearerHeader(t *testing.T) {
	res, _ := serve(t, stubVerifier{}, "Basic Zm9vOmJhcg==")
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRequireAuthExpired(t *testing.T) {
	res, _ := serve(t, stubVerifier{err: ErrTokenExpired}, "Bearer t")
	require.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "TOKEN_EXPIRED", decodeError(t, res).Code)
}

func TestRequireAuthMalformed(t *testing.T) {
	res, _ := serve(t, stubVerifier{err: ErrTokenMalformed}, "Bearer t")
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "TOKEN_INVALID", decodeError(t, res).Code)
}

func TestRequireAuthUnknownFailure(t *testing.T) {
	res, _ := serve(t, stubVerifier{err: errors.New("boom")}, "Bearer t")
	require.Equal(t, http.StatusInternalServerError, res.Code)
	assert.Equal(t, "SERVER_ERROR", decodeError(t, res).Code)
}

func TestRequireAuthAttachesIdentity(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	tok, err := m.Issue("user-1", "a@x.com")
	require.NoError(t, err)

	res, id := serve(t, m, "Bearer "+tok)
	require.Equal(t, http.StatusOK, res.Code)
	require.NotNil(t, id)
	assert.Equal(t, "user-1", id.UserID)
	assert.Equal(t, "a@x.com", id.Email)
}

func TestRequireAuthRealExpiredToken(t *testing.T) {
	tok, err := NewTokenManager("secret", -time.Second).Issue("user-1", "a@x.com")
	require.NoError(t, err)

	res, _ := serve(t, NewTokenManager("secret", time.Hour), "Bearer "+tok)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "TOKEN_EXPIRED", decodeError(t, res).Code)
}

func TestRequireAuthRealWrongSecret(t *testing.T) {
	tok, err := NewTokenManager("other", time.Hour).Issue("user-1", "a@x.com")
	require.NoError(t, err)

	res, _ := serve(t, NewTokenManager("secret", time.Hour), "Bearer "+tok)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestIdentityFromContextMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := IdentityFromContext(req.Context())
	assert.False(t, ok)
}
