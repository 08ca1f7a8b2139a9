package handler

import (
	"bufio"
	"bytes"
	"context"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/consultorio_backend/internal/service/migration"
)

type ImportHandler struct {
	svc migration.Service
}

func NewImportHandler(svc migration.Service) *ImportHandler {
	return &ImportHandler{svc: svc}
}

// POST /api/v1/imports?mode=pacientes|consultas
// The body is the JSON array exported from the legacy system. Clients that
// accept text/event-stream receive one "line" event per row and a final
// "result"; closing the stream cancels the run between rows. Other clients
// get the full log when the run ends.
func (h *ImportHandler) Run(c fiber.Ctx) error {
	s, valid := scopeFromFiber(c)
	if !valid {
		return unauthorized(c)
	}

	mode := migration.Mode(c.Query("mode"))
	if !mode.Valid() {
		return badRequest(c, migration.ErrInvalidMode.Error())
	}
	rows, err := migration.ParseRows(bytes.NewReader(c.Body()))
	if err != nil {
		return mapError(c, err)
	}
	req := migration.Request{Mode: mode, Rows: rows}

	if !strings.Contains(c.Get(fiber.HeaderAccept), "text/event-stream") {
		var lines []migration.Line
		res, err := h.svc.Import(c.Context(), s.id.Account, s.scope, req, func(l migration.Line) {
			lines = append(lines, l)
		})
		if err != nil {
			return mapError(c, err)
		}
		return ok(c, fiber.Map{"result": res, "lines": lines})
	}

	base := c.Context()
	sseHeaders(c)
	return c.SendStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.WithoutCancel(base))
		defer cancel()

		res, err := h.svc.Import(ctx, s.id.Account, s.scope, req, func(l migration.Line) {
			if sseEvent(w, "line", l) != nil {
				cancel()
			}
		})
		if err != nil {
			_ = sseEvent(w, "error", fiber.Map{"error": err.Error()})
			return
		}
		_ = sseEvent(w, "result", res)
	})
}
