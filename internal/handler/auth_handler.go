package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-api/internal/dto"
	"github.com/noah-isme/campus-api/internal/service"
	"github.com/noah-isme/campus-api/internal/utils"
)

// AuthHandler exposes registration, login and self-service account routes.
type AuthHandler struct {
	service service.AuthService
	logger  zerolog.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(service service.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register attaches auth routes. optional resolves a token when one is sent,
// protected requires one.
func (h *AuthHandler) Register(router fiber.Router, optional, protected fiber.Handler) {
	router.Post("/register", optional, h.register)
	router.Post("/login", h.login)
	router.Get("/me", protected, h.me)
	router.Put("/password", protected, h.changePassword)
}

func (h *AuthHandler) register(c *fiber.Ctx) error {
	var payload dto.RegisterRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	user, err := h.service.Register(c.UserContext(), payload, callerFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to register user")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "User registered successfully", user)
}

func (h *AuthHandler) login(c *fiber.Ctx) error {
	var payload dto.LoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	session, err := h.service.Login(c.UserContext(), payload, callerFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to log in")
	}
	return utils.SendSuccess(c, "Login successful", session)
}

func (h *AuthHandler) me(c *fiber.Ctx) error {
	user, err := h.service.Profile(c.UserContext(), callerFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load profile")
	}
	return utils.SendSuccess(c, "Profile retrieved", user)
}

func (h *AuthHandler) changePassword(c *fiber.Ctx) error {
	var payload dto.ChangePasswordRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	if err := h.service.ChangePassword(c.UserContext(), callerFromContext(c), payload); err != nil {
		return respondError(c, h.logger, err, "failed to change password")
	}
	return utils.SendSuccess(c, "Password changed successfully", nil)
}
