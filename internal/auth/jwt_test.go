package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxdocs/internal/model"
)

func TestVerifier_IssueVerify(t *testing.T) {
	v, err := NewVerifier("secret")
	require.NoError(t, err)

	tok, err := v.Issue(model.Identity{UserID: 12, Role: model.RoleClient}, "u@example.com", time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, model.Identity{UserID: 12, Role: model.RoleClient}, id)
}

func TestVerifier_Rejects(t *testing.T) {
	v, err := NewVerifier("secret")
	require.NoError(t, err)
	other, err := NewVerifier("another-secret")
	require.NoError(t, err)

	expired := &Verifier{secret: []byte("secret"), now: func() time.Time { return time.Now().Add(-48 * time.Hour) }}
	expiredTok, err := expired.Issue(model.Identity{UserID: 1, Role: model.RoleAdmin}, "", time.Hour)
	require.NoError(t, err)

	foreignTok, err := other.Issue(model.Identity{UserID: 1, Role: model.RoleAdmin}, "", time.Hour)
	require.NoError(t, err)

	noRoleTok, err := v.Issue(model.Identity{UserID: 1, Role: "superuser"}, "", time.Hour)
	require.NoError(t, err)

	noIDTok, err := v.Issue(model.Identity{Role: model.RoleClient}, "", time.Hour)
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: 1, Role: model.RoleClient}).SignedString([]byte("secret"))
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1, Role: model.RoleAdmin}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"expired":         expiredTok,
		"wrong secret":    foreignTok,
		"unknown role":    noRoleTok,
		"missing user id": noIDTok,
		"no expiry":       noExp,
		"alg none":        noneAlg,
		"garbage":         "not.a.jwt",
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err = v.Verify("")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestNewVerifier_EmptySecret(t *testing.T) {
	_, err := NewVerifier("")
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tok, err := BearerToken("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)

	tok, err = BearerToken("bearer xyz")
	require.NoError(t, err)
	assert.Equal(t, "xyz", tok)

	_, err = BearerToken("")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = BearerToken("Bearer ")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = BearerToken("Bearer")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = BearerToken("bearer   ")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = BearerToken("Basic dXNlcjpwYXNz")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = BearerToken("token-without-scheme")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
