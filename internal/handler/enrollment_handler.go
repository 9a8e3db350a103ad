package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-api/internal/dto"
	"github.com/noah-isme/campus-api/internal/service"
	"github.com/noah-isme/campus-api/internal/utils"
)

// EnrollmentHandler manages student enrollments.
type EnrollmentHandler struct {
	service service.EnrollmentService
	logger  zerolog.Logger
}

// NewEnrollmentHandler constructs the handler.
func NewEnrollmentHandler(service service.EnrollmentService, logger zerolog.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{
		service: service,
		logger:  logger.With().Str("component", "enrollment_handler").Logger(),
	}
}

// Register attaches routes.
func (h *EnrollmentHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.enroll)
	router.Get("/mine", h.listMine)
	router.Delete("/:id", h.remove)
}

func (h *EnrollmentHandler) list(c *fiber.Ctx) error {
	page, pageSize, err := parsePaging(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.List(c.UserContext(), callerFromContext(c), dto.EnrollmentListRequest{Page: page, PageSize: pageSize})
	if err != nil {
		return respondError(c, h.logger, err, "failed to list enrollments")
	}
	return utils.OK(c, result.Items, "Enrollments retrieved", paginationMeta(result.Pagination))
}

func (h *EnrollmentHandler) listMine(c *fiber.Ctx) error {
	page, pageSize, err := parsePaging(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.ListMine(c.UserContext(), callerFromContext(c), dto.EnrollmentListRequest{Page: page, PageSize: pageSize})
	if err != nil {
		return respondError(c, h.logger, err, "failed to list enrollments")
	}
	return utils.OK(c, result.Items, "Enrollments retrieved", paginationMeta(result.Pagination))
}

func (h *EnrollmentHandler) enroll(c *fiber.Ctx) error {
	var payload dto.EnrollmentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	enrollment, err := h.service.Enroll(c.UserContext(), callerFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to enroll student")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "Student enrolled successfully", enrollment)
}

func (h *EnrollmentHandler) remove(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid enrollment id")
	}

	if err := h.service.Remove(c.UserContext(), callerFromContext(c), id); err != nil {
		return respondError(c, h.logger, err, "failed to remove enrollment")
	}
	return utils.SendSuccess(c, "Enrollment removed successfully", nil)
}
