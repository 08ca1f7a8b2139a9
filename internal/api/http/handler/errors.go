package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/consultorio_backend/internal/clinical"
	"github.com/Alijeyrad/consultorio_backend/internal/schema"
	"github.com/Alijeyrad/consultorio_backend/internal/service/auth"
	"github.com/Alijeyrad/consultorio_backend/internal/service/clinic"
	"github.com/Alijeyrad/consultorio_backend/internal/service/document"
	"github.com/Alijeyrad/consultorio_backend/internal/service/migration"
	"github.com/Alijeyrad/consultorio_backend/internal/service/patient"
	"github.com/Alijeyrad/consultorio_backend/internal/service/record"
	"github.com/Alijeyrad/consultorio_backend/internal/service/report"
	"github.com/Alijeyrad/consultorio_backend/internal/syncstore"
	"github.com/Alijeyrad/consultorio_backend/pkg/reqctx"
)

func status(c fiber.Ctx, code int, msg string) error {
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

func mapAuthError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return unauthorized(c)
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrSessionNotFound):
		return status(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrOrphanedCredential):
		return status(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, auth.ErrAccountLocked):
		return tooManyRequests(c, err.Error())
	case errors.Is(err, auth.ErrWrongPassword):
		return status(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, auth.ErrInvalidUsername),
		errors.Is(err, auth.ErrInvalidRole):
		return badRequest(c, err.Error())
	case errors.Is(err, auth.ErrUsernameTaken):
		return conflict(c, err.Error())
	case errors.Is(err, auth.ErrUnavailable):
		return status(c, fiber.StatusServiceUnavailable, err.Error())
	default:
		return mapError(c, err)
	}
}

// mapError converts domain and store errors to responses. Unknown errors are
// logged and reported as 500.
func mapError(c fiber.Ctx, err error) error {
	var dup *patient.DuplicateError
	switch {
	case errors.As(err, &dup):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
			"match": dup.Match,
		})

	case errors.Is(err, patient.ErrPatientNotFound),
		errors.Is(err, record.ErrEventNotFound),
		errors.Is(err, record.ErrPatientNotFound),
		errors.Is(err, syncstore.ErrNotFound):
		return notFound(c, err.Error())

	case errors.Is(err, patient.ErrNameRequired),
		errors.Is(err, patient.ErrInvalidBirthDate),
		errors.Is(err, patient.ErrClinicRequired),
		errors.Is(err, record.ErrClinicRequired),
		errors.Is(err, record.ErrTypeChanged),
		errors.Is(err, schema.ErrInvalidEventType),
		errors.Is(err, schema.ErrInvalidFormatting),
		errors.Is(err, clinical.ErrInvalidDate),
		errors.Is(err, clinical.ErrInvalidRange),
		errors.Is(err, clinic.ErrInvalidDoctorName),
		errors.Is(err, migration.ErrInvalidMode),
		errors.Is(err, migration.ErrNotArray),
		errors.Is(err, migration.ErrClinicRequired),
		errors.Is(err, report.ErrClinicRequired),
		errors.Is(err, report.ErrNoRecipients),
		errors.Is(err, document.ErrNotPrintable),
		errors.Is(err, syncstore.ErrInvalidScope),
		errors.Is(err, syncstore.ErrInvalidPatch):
		return badRequest(c, err.Error())

	case errors.Is(err, patient.ErrUnknownClinic),
		errors.Is(err, clinic.ErrUnknownClinic),
		errors.Is(err, migration.ErrForbidden),
		errors.Is(err, syncstore.ErrPermissionDenied):
		return status(c, fiber.StatusForbidden, err.Error())

	case errors.Is(err, report.ErrNoRecords):
		return notFound(c, err.Error())
	case errors.Is(err, report.ErrEmailDisabled):
		return status(c, fiber.StatusPreconditionFailed, err.Error())
	case errors.Is(err, syncstore.ErrNotConfirmed):
		return status(c, fiber.StatusPreconditionRequired, err.Error())
	case errors.Is(err, syncstore.ErrWriteRejected):
		return conflict(c, err.Error())
	case errors.Is(err, syncstore.ErrUnavailable), errors.Is(err, syncstore.ErrClosed):
		return status(c, fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, syncstore.ErrLocalPersistence):
		return status(c, fiber.StatusInsufficientStorage, err.Error())
	case errors.Is(err, auth.ErrUnauthenticated):
		return unauthorized(c)

	default:
		slog.ErrorContext(c.Context(), "request failed",
			"path", c.Path(),
			"request_id", reqctx.RequestIDFromContext(c.Context()),
			"err", err,
		)
		return internalError(c)
	}
}
