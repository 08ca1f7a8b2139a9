package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/consultorio_backend/internal/api/http/handler"
	"github.com/Alijeyrad/consultorio_backend/pkg/authorize"
)

func (r *Router) registerReportRoutes(
	api fiber.Router,
	rh *handler.ReportHandler,
	ih *handler.ImportHandler,
	authRequired fiber.Handler,
	clinicHeader fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	reports := api.Group("/reports", authRequired, clinicHeader)
	reports.Get("/patients", requirePerm(authorize.ResourceReport, authorize.ActionRead), rh.Preview)
	reports.Get("/patients.xlsx", requirePerm(authorize.ResourceReport, authorize.ActionExecute), rh.Download)
	reports.Post("/patients/deliver", requirePerm(authorize.ResourceReport, authorize.ActionExecute), rh.Deliver)

	api.Post("/imports", authRequired, clinicHeader, requirePerm(authorize.ResourceImport, authorize.ActionExecute), ih.Run)
}
