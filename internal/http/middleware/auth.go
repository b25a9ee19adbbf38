package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"taxdocs/internal/auth"
	"taxdocs/internal/model"
)

// IdentityLocalKey is the key under which the verified caller is stored in Fiber locals.
const IdentityLocalKey = "identity"

// TokenVerifier turns a raw bearer token into a caller identity.
type TokenVerifier interface {
	Verify(raw string) (model.Identity, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the caller identity.
// A missing token is 401; a token that fails verification is 403.
func RequireAuth(v TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, err := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
		var id model.Identity
		if err == nil {
			id, err = v.Verify(raw)
		}
		if err != nil {
			if errors.Is(err, auth.ErrMissingToken) {
				return fiber.NewError(fiber.StatusUnauthorized, "access token required")
			}
			return fiber.NewError(fiber.StatusForbidden, "invalid or expired token")
		}
		c.Locals(IdentityLocalKey, id)
		return c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := IdentityFrom(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "access token required")
		}
		if !id.IsAdmin() {
			return fiber.NewError(fiber.StatusForbidden, "admin access required")
		}
		return c.Next()
	}
}

// IdentityFrom returns the identity stored by RequireAuth.
func IdentityFrom(c *fiber.Ctx) (model.Identity, bool) {
	id, ok := c.Locals(IdentityLocalKey).(model.Identity)
	return id, ok
}
