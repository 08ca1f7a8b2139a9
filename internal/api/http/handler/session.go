package handler

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/consultorio_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/consultorio_backend/internal/service/auth"
	"github.com/Alijeyrad/consultorio_backend/internal/service/clinic"
	"github.com/Alijeyrad/consultorio_backend/internal/syncstore"
	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
)

// scoped is the signed-in identity with the clinic chosen for the request.
type scoped struct {
	id     *auth.Identity
	clinic clinic.Context
	scope  syncstore.Scope
}

func scopeFromFiber(c fiber.Ctx) (scoped, bool) {
	id, ok := middleware.IdentityFromFiber(c)
	if !ok {
		return scoped{}, false
	}
	cc, ok := middleware.ClinicFromFiber(c)
	if !ok {
		return scoped{}, false
	}
	return scoped{
		id:     id,
		clinic: cc,
		scope:  syncstore.Scope{AccountID: id.Account.UID, ClinicID: cc.ClinicID},
	}, true
}

// confirmed reads the explicit delete confirmation from ?confirm=true or the
// X-Confirm-Delete header.
func confirmed(c fiber.Ctx) bool {
	if strings.EqualFold(c.Query("confirm"), "true") {
		return true
	}
	return strings.EqualFold(c.Get("X-Confirm-Delete"), "true")
}

// cursorFromQuery reads the paging cursor from ?after_value=&after_id=.
func cursorFromQuery(c fiber.Ctx) *docstore.Cursor {
	v, id := c.Query("after_value"), c.Query("after_id")
	if v == "" || id == "" {
		return nil
	}
	return &docstore.Cursor{Value: v, ID: id}
}

func boolQuery(c fiber.Ctx, key string) bool {
	return strings.EqualFold(c.Query(key), "true") || c.Query(key) == "1"
}
