package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/consultorio_backend/internal/schema"
	"github.com/Alijeyrad/consultorio_backend/internal/service/record"
	"github.com/Alijeyrad/consultorio_backend/internal/syncstore"
)

type RecordHandler struct {
	svc record.Service
}

func NewRecordHandler(svc record.Service) *RecordHandler {
	return &RecordHandler{svc: svc}
}

// GET /api/v1/patients/:patientID/events?type=
func (h *RecordHandler) Timeline(c fiber.Ctx) error {
	s, valid := scopeFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	tl, err := h.svc.Timeline(c.Context(), s.scope, c.Params("patientID"), schema.EventType(c.Query("type")))
	if err != nil {
		return mapError(c, err)
	}
	return ok(c, tl)
}

// GET /api/v1/patients/:patientID/events/stream?type=  (server-sent events)
func (h *RecordHandler) Stream(c fiber.Ctx) error {
	s, valid := scopeFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	kind := schema.EventType(c.Query("type"))

	sub, err := h.svc.Watch(c.Context(), s.scope, c.Params("patientID"))
	if err != nil {
		return mapError(c, err)
	}
	return streamSnapshots(c, sub, func(snap syncstore.Snapshot) any {
		return record.Timeline{Events: h.svc.Events(snap, kind), FromCache: snap.FromCache}
	})
}

// POST /api/v1/patients/:patientID/events
func (h *RecordHandler) Create(c fiber.Ctx) error {
	s, valid := scopeFromFiber(c)
	if !valid {
		return unauthorized(c)
	}

	var body schema.ClinicalEvent
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	out, err := h.svc.Create(c.Context(), s.scope, c.Params("patientID"), body)
	if err != nil {
		return mapError(c, err)
	}
	return created(c, out)
}

// GET /api/v1/patients/:patientID/events/:eventID
func (h *RecordHandler) Get(c fiber.Ctx) error {
	s, valid := scopeFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	ev, err := h.svc.Get(c.Context(), s.scope, c.Params("patientID"), c.Params("eventID"))
	if err != nil {
		return mapError(c, err)
	}
	return ok(c, ev)
}

// PUT /api/v1/patients/:patientID/events/:eventID
func (h *RecordHandler) Update(c fiber.Ctx) error {
	s, valid := scopeFromFiber(c)
	if !valid {
		return unauthorized(c)
	}

	var body schema.ClinicalEvent
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	out, err := h.svc.Update(c.Context(), s.scope, c.Params("patientID"), c.Params("eventID"), body)
	if err != nil {
		return mapError(c, err)
	}
	return ok(c, out)
}

// DELETE /api/v1/patients/:patientID/events/:eventID?confirm=true
func (h *RecordHandler) Delete(c fiber.Ctx) error {
	s, valid := scopeFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	res, err := h.svc.Delete(c.Context(), s.scope, c.Params("patientID"), c.Params("eventID"), confirmed(c))
	if err != nil {
		return mapError(c, err)
	}
	return ok(c, res)
}
