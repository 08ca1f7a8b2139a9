package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/consultorio_backend/internal/api/http/handler"
	"github.com/Alijeyrad/consultorio_backend/pkg/authorize"
)

func (r *Router) registerClinicRoutes(
	api fiber.Router,
	h *handler.ClinicHandler,
	authRequired fiber.Handler,
	clinicHeader fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	api.Get("/clinics", authRequired, requirePerm(authorize.ResourceClinic, authorize.ActionList), h.List)

	c := api.Group("/clinic", authRequired, clinicHeader)
	c.Get("/", requirePerm(authorize.ResourceClinic, authorize.ActionRead), h.Current)
	c.Get("/dashboard", requirePerm(authorize.ResourceClinic, authorize.ActionRead), h.Dashboard)
	c.Put("/doctor-name", requirePerm(authorize.ResourceProfile, authorize.ActionUpdate), h.UpdateDoctorName)
}
