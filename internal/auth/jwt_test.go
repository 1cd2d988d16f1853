package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("secret", time.Hour)
	tok, err := m.Issue("user-1", "a@x.com")
	require.NoError(t, err)

	id, err := m.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)
	assert.Equal(t, "a@x.com", id.Email)
	assert.WithinDuration(t, time.Now().Add(time.Hour), id.ExpiresAt, 5*time.Second)
	assert.False(t, id.IssuedAt.IsZero())
}

func TestIssueRequiresUserID(t *testing.T) {
	t.Parallel()

	_, err := NewTokenManager("secret", time.Hour).Issue("", "a@x.com")
	require.Error(t, err)
}

func TestVerifyMissing(t *testing.T) {
	t.Parallel()

	_, err := NewTokenManager("secret", time.Hour).Verify("  ")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestVerifyExpired(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("secret", -time.Minute)
	tok, err := m.Issue("user-1", "a@x.com")
	require.NoError(t, err)

	_, err = m.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrTokenMalformed)
}

func TestVerifyWrongSecretIsMalformed(t *testing.T) {
	t.Parallel()

	tok, err := NewTokenManager("other-secret", time.Hour).Issue("user-1", "a@x.com")
	require.NoError(t, err)

	_, err = NewTokenManager("secret", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestVerifyAlteredPayloadIsMalformed(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("secret", time.Hour)
	tok, err := m.Issue("user-1", "a@x.com")
	require.NoError(t, err)

	other, err := m.Issue("user-2", "b@x.com")
	require.NoError(t, err)

	// user-2's payload with user-1's signature
	parts := strings.Split(tok, ".")
	otherParts := strings.Split(other, ".")
	forged := parts[0] + "." + otherParts[1] + "." + parts[2]

	_, err = m.Verify(forged)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestVerifyGarbageIsMalformed(t *testing.T) {
	t.Parallel()

	_, err := NewTokenManager("k", time.Hour).Verify("not.a.jwt")
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestVerifyRejectsOtherAlgorithm(t *testing.T) {
	t.Parallel()

	claims := &Claims{
		UserID:           "user-1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenManager("secret", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestVerifyNotYetValidIsNeitherExpiredNorMalformed(t *testing.T) {
	t.Parallel()

	tok := signClaims(t, "secret", &Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			NotBefore: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(2 * time.Hour)),
		},
	})

	_, err := NewTokenManager("secret", time.Hour).Verify(tok)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTokenExpired))
	assert.False(t, errors.Is(err, ErrTokenMalformed))
}

func TestVerifyWithoutUserIDIsMalformed(t *testing.T) {
	t.Parallel()

	tok := signClaims(t, "secret", &Claims{
		Email:            "a@x.com",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})

	_, err := NewTokenManager("secret", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestTokenFromHeader(t *testing.T) {
	t.Parallel()

	tok, err := TokenFromHeader("Bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	tok, err = TokenFromHeader("bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	for _, h := range []string{"", "Bearer", "Basic abc", "abc", "Bearer a b"} {
		_, err := TokenFromHeader(h)
		assert.ErrorIs(t, err, ErrMissingToken, "header %q", h)
	}
}

func TestPasswordHasher(t *testing.T) {
	t.Parallel()

	h := NewPasswordHasher(4)
	hash, err := h.Hash("p")
	require.NoError(t, err)
	assert.NotEqual(t, "p", hash)

	ok, err := h.Compare(hash, "p")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Compare(hash, "q")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.Compare("not-a-hash", "p")
	assert.Error(t, err)
}

func signClaims(t *testing.T, secret string, claims *Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}
