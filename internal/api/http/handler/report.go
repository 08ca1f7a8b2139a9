package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/consultorio_backend/internal/service/report"
)

type ReportHandler struct {
	svc report.Service
}

func NewReportHandler(svc report.Service) *ReportHandler {
	return &ReportHandler{svc: svc}
}

func (h *ReportHandler) request(s scoped, start, end string) report.Request {
	return report.Request{
		Start:        start,
		End:          end,
		ClinicName:   s.clinic.Name,
		DoctorName:   s.clinic.DoctorName,
		PrimaryColor: s.clinic.PrimaryColor,
	}
}

// GET /api/v1/reports/patients?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *ReportHandler) Preview(c fiber.Ctx) error {
	s, valid := scopeFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	rows, err := h.svc.Rows(c.Context(), s.scope, c.Query("start"), c.Query("end"))
	if err != nil {
		return mapError(c, err)
	}
	return ok(c, fiber.Map{"rows": rows, "total": len(rows)})
}

// GET /api/v1/reports/patients.xlsx?start=&end=
func (h *ReportHandler) Download(c fiber.Ctx) error {
	s, valid := scopeFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	rep, err := h.svc.Generate(c.Context(), s.scope, h.request(s, c.Query("start"), c.Query("end")))
	if err != nil {
		return mapError(c, err)
	}

	c.Set(fiber.HeaderContentType, report.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, rep.Filename))
	return c.Send(rep.Data)
}

// POST /api/v1/reports/patients/deliver
// Archives the report and e-mails it to the given or configured recipients.
func (h *ReportHandler) Deliver(c fiber.Ctx) error {
	s, valid := scopeFromFiber(c)
	if !valid {
		return unauthorized(c)
	}

	var body struct {
		Start string   `json:"start"`
		End   string   `json:"end"`
		To    []string `json:"to"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	rep, err := h.svc.Generate(c.Context(), s.scope, h.request(s, body.Start, body.End))
	if err != nil {
		return mapError(c, err)
	}
	out, err := h.svc.Deliver(c.Context(), s.scope, rep, body.To)
	if err != nil {
		return mapError(c, err)
	}
	return ok(c, fiber.Map{"report": rep, "delivery": out})
}
