package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/consultorio_backend/internal/service/patient"
	"github.com/Alijeyrad/consultorio_backend/internal/syncstore"
)

type PatientHandler struct {
	svc patient.Service
}

func NewPatientHandler(svc patient.Service) *PatientHandler {
	return &PatientHandler{svc: svc}
}

// GET /api/v1/patients?after_value=&after_id=&q=
// With q the whole account is searched by name; otherwise the clinic's
// patients are paged newest first.
func (h *PatientHandler) List(c fiber.Ctx) error {
	s, valid := scopeFromFiber(c)
	if !valid {
		return unauthorized(c)
	}

	var (
		page *patient.Page
		err  error
	)
	if term := c.Query("q"); term != "" {
		page, err = h.svc.Search(c.Context(), s.scope, term)
	} else {
		page, err = h.svc.List(c.Context(), s.scope, cursorFromQuery(c))
	}
	if err != nil {
		return mapError(c, err)
	}
	return ok(c, page)
}

// GET /api/v1/patients/duplicates?name=
func (h *PatientHandler) FindDuplicate(c fiber.Ctx) error {
	s, valid := scopeFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	match, err := h.svc.FindDuplicate(c.Context(), s.scope, c.Query("name"))
	if err != nil {
		return mapError(c, err)
	}
	return ok(c, fiber.Map{"match": match})
}

// GET /api/v1/patients/stream  (server-sent events)
func (h *PatientHandler) Stream(c fiber.Ctx) error {
	s, valid := scopeFromFiber(c)
	if !valid {
		return unauthorized(c)
	}

	sub, err := h.svc.Watch(c.Context(), s.scope, cursorFromQuery(c), boolQuery(c, "broad"))
	if err != nil {
		return mapError(c, err)
	}
	return streamSnapshots(c, sub, func(snap syncstore.Snapshot) any {
		return fiber.Map{
			"patients":   h.svc.Views(snap),
			"from_cache": snap.FromCache,
			"pending":    snap.HasPendingWrites(),
		}
	})
}

// POST /api/v1/patients
func (h *PatientHandler) Create(c fiber.Ctx) error {
	s, valid := scopeFromFiber(c)
	if !valid {
		return unauthorized(c)
	}

	var body patient.CreateRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	out, err := h.svc.Create(c.Context(), s.id.Account, s.scope, body)
	if err != nil {
		return mapError(c, err)
	}
	return created(c, out)
}

// GET /api/v1/patients/:patientID
func (h *PatientHandler) Get(c fiber.Ctx) error {
	s, valid := scopeFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	p, err := h.svc.Get(c.Context(), s.scope, c.Params("patientID"))
	if err != nil {
		return mapError(c, err)
	}
	return ok(c, p)
}

// PATCH /api/v1/patients/:patientID
func (h *PatientHandler) Update(c fiber.Ctx) error {
	s, valid := scopeFromFiber(c)
	if !valid {
		return unauthorized(c)
	}

	var body patient.Input
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.svc.Update(c.Context(), s.scope, c.Params("patientID"), body)
	if err != nil {
		return mapError(c, err)
	}
	return ok(c, res)
}

// DELETE /api/v1/patients/:patientID?confirm=true
// Removes the patient and the whole clinical history.
func (h *PatientHandler) Delete(c fiber.Ctx) error {
	s, valid := scopeFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	out, err := h.svc.Delete(c.Context(), s.scope, c.Params("patientID"), confirmed(c))
	if err != nil {
		return mapError(c, err)
	}
	return ok(c, out)
}
