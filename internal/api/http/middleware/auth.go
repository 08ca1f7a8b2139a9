package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/consultorio_backend/internal/service/auth"
	"github.com/Alijeyrad/consultorio_backend/pkg/reqctx"
)

const LocalsIdentity = "auth.identity"

// AuthRequired validates a Bearer PASETO access token through the identity
// gate: the token must verify, its session must be live and the account
// profile must resolve. On success the identity is stored in Locals and the
// principal is attached to the request context.
func AuthRequired(svc auth.Service) fiber.Handler {
	return func(c fiber.Ctx) error {
		h := c.Get("Authorization")
		if h == "" {
			return fiber.ErrUnauthorized
		}

		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.ErrUnauthorized
		}

		id, err := svc.Authenticate(c.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrOrphanedCredential):
				return fiber.ErrForbidden
			case errors.Is(err, auth.ErrUnavailable):
				return fiber.ErrServiceUnavailable
			default:
				return fiber.ErrUnauthorized
			}
		}

		c.Locals(LocalsIdentity, id)
		c.SetContext(reqctx.WithPrincipal(c.Context(), &reqctx.Principal{
			AccountID: id.Account.UID,
			SessionID: id.SessionID,
			Username:  id.Account.Username,
			Role:      string(id.Account.Role),
		}))
		return c.Next()
	}
}

// IdentityFromFiber returns the identity set by AuthRequired.
func IdentityFromFiber(c fiber.Ctx) (*auth.Identity, bool) {
	id, ok := c.Locals(LocalsIdentity).(*auth.Identity)
	return id, ok && id != nil
}
