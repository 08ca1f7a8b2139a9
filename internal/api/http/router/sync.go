package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/consultorio_backend/internal/api/http/handler"
	"github.com/Alijeyrad/consultorio_backend/pkg/authorize"
)

func (r *Router) registerSyncRoutes(
	api fiber.Router,
	h *handler.SyncHandler,
	authRequired fiber.Handler,
	clinicHeader fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	s := api.Group("/sync", authRequired)
	s.Get("/status", requirePerm(authorize.ResourceSync, authorize.ActionRead), h.Status)
	s.Get("/writes/:writeID", requirePerm(authorize.ResourceSync, authorize.ActionRead), h.Write)
	s.Post("/errors", clinicHeader, requirePerm(authorize.ResourceSync, authorize.ActionCreate), h.ReportError)
}
