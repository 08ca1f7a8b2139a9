package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/consultorio_backend/internal/service/clinic"
	"github.com/Alijeyrad/consultorio_backend/pkg/reqctx"
)

const (
	HeaderClinicID = "X-Clinic-ID"
	LocalsClinic   = "clinic"
)

// ClinicHeader selects the active clinic from the X-Clinic-ID header. An
// absent header selects the account's default clinic; a clinic that is not
// configured for the account is rejected. Must run after AuthRequired.
func ClinicHeader(svc clinic.Service) fiber.Handler {
	return func(c fiber.Ctx) error {
		id, ok := IdentityFromFiber(c)
		if !ok {
			return fiber.ErrUnauthorized
		}

		cc, err := svc.Resolve(id.Account, c.Get(HeaderClinicID))
		if err != nil {
			if errors.Is(err, clinic.ErrUnknownClinic) {
				return fiber.NewError(fiber.StatusForbidden, err.Error())
			}
			return err
		}

		c.Locals(LocalsClinic, cc)
		if p, ok := reqctx.PrincipalFromContext(c.Context()); ok {
			scoped := *p
			scoped.ClinicID = cc.ClinicID
			c.SetContext(reqctx.WithPrincipal(c.Context(), &scoped))
		}
		return c.Next()
	}
}

// ClinicFromFiber returns the clinic selected by ClinicHeader.
func ClinicFromFiber(c fiber.Ctx) (clinic.Context, bool) {
	cc, ok := c.Locals(LocalsClinic).(clinic.Context)
	return cc, ok
}
