package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/consultorio_backend/internal/service/document"
)

type DocumentHandler struct {
	svc document.Service
}

func NewDocumentHandler(svc document.Service) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

// GET /api/v1/patients/:patientID/events/:eventID/document
func (h *DocumentHandler) Render(c fiber.Ctx) error {
	s, valid := scopeFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	doc, err := h.svc.Render(c.Context(), s.id.Account, s.scope, c.Params("patientID"), c.Params("eventID"))
	if err != nil {
		return mapError(c, err)
	}
	return ok(c, doc)
}
