package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/consultorio_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/consultorio_backend/internal/service/auth"
	"github.com/Alijeyrad/consultorio_backend/internal/service/clinic"
)

type AuthHandler struct {
	svc     auth.Service
	clinics clinic.Service
}

func NewAuthHandler(svc auth.Service, clinics clinic.Service) *AuthHandler {
	return &AuthHandler{svc: svc, clinics: clinics}
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.Username == "" || body.Password == "" {
		return badRequest(c, "username and password are required")
	}

	tokens, id, err := h.svc.Login(c.Context(), body.Username, body.Password)
	if err != nil {
		return mapAuthError(c, err)
	}

	return ok(c, fiber.Map{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_in":    tokens.ExpiresIn,
		"account":       id.Account,
		"clinics":       h.clinics.List(id.Account),
	})
}

// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.RefreshToken == "" {
		return badRequest(c, "refresh_token is required")
	}

	tokens, err := h.svc.Refresh(c.Context(), body.RefreshToken)
	if err != nil {
		return mapAuthError(c, err)
	}

	return ok(c, tokens)
}

// POST /api/v1/auth/logout  (requires AuthRequired middleware)
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	id, valid := middleware.IdentityFromFiber(c)
	if !valid {
		return unauthorized(c)
	}

	if err := h.svc.Logout(c.Context(), id.Account.UID, id.SessionID); err != nil {
		return mapAuthError(c, err)
	}

	return noContent(c)
}

// GET /api/v1/auth/me  (requires AuthRequired middleware)
func (h *AuthHandler) Me(c fiber.Ctx) error {
	id, valid := middleware.IdentityFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	return ok(c, fiber.Map{
		"account": id.Account,
		"clinics": h.clinics.List(id.Account),
	})
}

// POST /api/v1/auth/password  (requires AuthRequired middleware)
func (h *AuthHandler) ChangePassword(c fiber.Ctx) error {
	id, valid := middleware.IdentityFromFiber(c)
	if !valid {
		return unauthorized(c)
	}

	var body struct {
		Current string `json:"current_password"`
		New     string `json:"new_password"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	if err := h.svc.ChangePassword(c.Context(), id.Account.UID, body.Current, body.New); err != nil {
		return mapAuthError(c, err)
	}
	return noContent(c)
}
