package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/consultorio_backend/internal/api/http/handler"
	"github.com/Alijeyrad/consultorio_backend/pkg/authorize"
)

func (r *Router) registerPatientRoutes(
	api fiber.Router,
	ph *handler.PatientHandler,
	rh *handler.RecordHandler,
	dh *handler.DocumentHandler,
	authRequired fiber.Handler,
	clinicHeader fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	patients := api.Group("/patients", authRequired, clinicHeader)

	// Patient CRUD
	patients.Get("/", requirePerm(authorize.ResourcePatient, authorize.ActionList), ph.List)
	patients.Post("/", requirePerm(authorize.ResourcePatient, authorize.ActionCreate), ph.Create)
	patients.Get("/duplicates", requirePerm(authorize.ResourcePatient, authorize.ActionRead), ph.FindDuplicate)
	patients.Get("/stream", requirePerm(authorize.ResourcePatient, authorize.ActionList), ph.Stream)

	p := patients.Group("/:patientID")
	p.Get("/", requirePerm(authorize.ResourcePatient, authorize.ActionRead), ph.Get)
	p.Patch("/", requirePerm(authorize.ResourcePatient, authorize.ActionUpdate), ph.Update)
	p.Delete("/", requirePerm(authorize.ResourcePatient, authorize.ActionDelete), ph.Delete)

	// Clinical history
	p.Get("/events", requirePerm(authorize.ResourceClinicalEvent, authorize.ActionList), rh.Timeline)
	p.Get("/events/stream", requirePerm(authorize.ResourceClinicalEvent, authorize.ActionList), rh.Stream)
	p.Post("/events", requirePerm(authorize.ResourceClinicalEvent, authorize.ActionCreate), rh.Create)
	p.Get("/events/:eventID", requirePerm(authorize.ResourceClinicalEvent, authorize.ActionRead), rh.Get)
	p.Put("/events/:eventID", requirePerm(authorize.ResourceClinicalEvent, authorize.ActionUpdate), rh.Update)
	p.Delete("/events/:eventID", requirePerm(authorize.ResourceClinicalEvent, authorize.ActionDelete), rh.Delete)

	// Printable documents
	p.Get("/events/:eventID/document", requirePerm(authorize.ResourceDocument, authorize.ActionRead), dh.Render)
}
