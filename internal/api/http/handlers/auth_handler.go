package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fleet-workorders/internal/api/dto"
	"github.com/spec-kit/fleet-workorders/internal/service"
	apperrors "github.com/spec-kit/fleet-workorders/pkg/util/errorutil"
)

// AuthHandler issues operator tokens.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{service: authService}
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	res, err := h.service.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AuthResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		Username:  res.Username,
		Sector:    res.Sector,
	}})
}
