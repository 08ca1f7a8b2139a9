package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/consultorio_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/consultorio_backend/internal/syncstore"
)

type SyncHandler struct {
	store *syncstore.Store
}

func NewSyncHandler(store *syncstore.Store) *SyncHandler {
	return &SyncHandler{store: store}
}

// GET /api/v1/sync/status
func (h *SyncHandler) Status(c fiber.Ctx) error {
	out := fiber.Map{
		"online":  h.store.Online(),
		"pending": h.store.Pending(),
	}
	if id, found := middleware.IdentityFromFiber(c); found {
		out["subscriptions"] = h.store.Subscriptions(id.Account.UID)
	}
	return ok(c, out)
}

// GET /api/v1/sync/writes/:writeID?wait=true
// With wait the call blocks until the write is delivered or rejected.
func (h *SyncHandler) Write(c fiber.Ctx) error {
	id := c.Params("writeID")
	if !boolQuery(c, "wait") {
		st, err := h.store.Status(c.Context(), id)
		if err != nil {
			return h.writeError(c, err)
		}
		return ok(c, st)
	}

	st, err := h.store.Await(c.Context(), id)
	if err != nil && !errors.Is(err, syncstore.ErrWriteRejected) {
		return h.writeError(c, err)
	}
	return ok(c, st)
}

func (h *SyncHandler) writeError(c fiber.Ctx, err error) error {
	if errors.Is(err, syncstore.ErrUnknownWrite) {
		return notFound(c, err.Error())
	}
	return mapError(c, err)
}

// POST /api/v1/sync/errors
// Records a client-side failure in the diagnostics collection.
func (h *SyncHandler) ReportError(c fiber.Ctx) error {
	s, valid := scopeFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	var body struct {
		Message string `json:"message"`
		Context string `json:"context"`
	}
	if err := c.Bind().JSON(&body); err != nil || body.Message == "" {
		return badRequest(c, "message is required")
	}
	if err := h.store.ReportError(c.Context(), s.scope, errors.New(body.Message), body.Context); err != nil {
		return mapError(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}
