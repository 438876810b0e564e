package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/fleet-workorders/pkg/util/errorutil"
)

// RequireOperator ensures an operator is authenticated.
func RequireOperator() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("operator required")
		}
		return c.Next()
	}
}
