// Package auth verifies the bearer tokens issued by the portal's login service and turns
// them into a model.Identity. Credential checking itself happens elsewhere.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taxdocs/internal/model"
)

var (
	ErrMissingToken = errors.New("access token required")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Claims mirrors the payload signed at login: numeric user id, role and display fields.
type Claims struct {
	UserID    int64      `json:"id"`
	Email     string     `json:"email,omitempty"`
	Role      model.Role `json:"role"`
	FirstName string     `json:"firstName,omitempty"`
	LastName  string     `json:"lastName,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier returns a Verifier for secret. An empty secret is rejected.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &Verifier{secret: []byte(secret), now: time.Now}, nil
}

// Verify parses and validates a raw token.
func (v *Verifier) Verify(raw string) (model.Identity, error) {
	if raw == "" {
		return model.Identity{}, ErrMissingToken
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID <= 0 {
		return model.Identity{}, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}
	switch claims.Role {
	case model.RoleAdmin, model.RoleClient:
	default:
		return model.Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	return model.Identity{UserID: claims.UserID, Role: claims.Role}, nil
}

// Issue signs a token for id valid for ttl. The portal's login flow uses the same format.
func (v *Verifier) Issue(id model.Identity, email string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		UserID: id.UserID,
		Email:  email,
		Role:   id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	// Servers trim trailing whitespace, so "Bearer " arrives as a bare scheme.
	if !ok && strings.EqualFold(strings.TrimSpace(header), "Bearer") {
		return "", ErrMissingToken
	}
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrInvalidToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
