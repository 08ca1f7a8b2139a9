package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/consultorio_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/consultorio_backend/internal/service/clinic"
)

type ClinicHandler struct {
	svc clinic.Service
}

func NewClinicHandler(svc clinic.Service) *ClinicHandler {
	return &ClinicHandler{svc: svc}
}

// GET /api/v1/clinics
func (h *ClinicHandler) List(c fiber.Ctx) error {
	id, valid := middleware.IdentityFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	return ok(c, h.svc.List(id.Account))
}

// GET /api/v1/clinic  (X-Clinic-ID selects the clinic)
func (h *ClinicHandler) Current(c fiber.Ctx) error {
	s, valid := scopeFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	return ok(c, s.clinic)
}

// GET /api/v1/clinic/dashboard
func (h *ClinicHandler) Dashboard(c fiber.Ctx) error {
	s, valid := scopeFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	d, err := h.svc.Dashboard(c.Context(), s.id.Account, s.scope)
	if err != nil {
		return mapError(c, err)
	}
	return ok(c, d)
}

// PUT /api/v1/clinic/doctor-name
func (h *ClinicHandler) UpdateDoctorName(c fiber.Ctx) error {
	s, valid := scopeFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	var body struct {
		DoctorName string `json:"doctor_name"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	res, err := h.svc.UpdateDoctorName(c.Context(), s.scope, body.DoctorName)
	if err != nil {
		return mapError(c, err)
	}
	return ok(c, res)
}
