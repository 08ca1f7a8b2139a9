package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/consultorio_backend/pkg/authorize"
)

// RequirePermission checks the role of the authenticated principal against
// the policy for resource/action.
func RequirePermission(authz authorize.IAuthorization, resource authorize.Resource, action authorize.Action) fiber.Handler {
	return func(c fiber.Ctx) error {
		if err := authorize.Check(c.Context(), authz, resource, action); err != nil {
			if errors.Is(err, authorize.ErrForbidden) || errors.Is(err, authorize.ErrInvalidArgs) {
				return fiber.ErrForbidden
			}
			return err
		}
		return c.Next()
	}
}
