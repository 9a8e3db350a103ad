package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-api/internal/dto"
	"github.com/noah-isme/campus-api/internal/service"
	"github.com/noah-isme/campus-api/internal/utils"
)

// AnnouncementHandler exposes announcement endpoints.
type AnnouncementHandler struct {
	service service.AnnouncementService
	logger  zerolog.Logger
}

// NewAnnouncementHandler constructs the handler.
func NewAnnouncementHandler(service service.AnnouncementService, logger zerolog.Logger) *AnnouncementHandler {
	return &AnnouncementHandler{
		service: service,
		logger:  logger.With().Str("component", "announcement_handler").Logger(),
	}
}

// Register attaches routes.
func (h *AnnouncementHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
}

func (h *AnnouncementHandler) list(c *fiber.Ctx) error {
	page, pageSize, err := parsePaging(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	courseID, err := parseQueryUint(c, "course_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course_id")
	}

	result, err := h.service.List(c.UserContext(), callerFromContext(c), dto.AnnouncementListRequest{
		Page:     page,
		PageSize: pageSize,
		Type:     c.Query("type"),
		CourseID: courseID,
	})
	if err != nil {
		return respondError(c, h.logger, err, "failed to list announcements")
	}
	return utils.OK(c, result.Items, "Announcements retrieved", paginationMeta(result.Pagination))
}

func (h *AnnouncementHandler) create(c *fiber.Ctx) error {
	var payload dto.AnnouncementCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	announcement, err := h.service.Create(c.UserContext(), callerFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create announcement")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "Announcement created successfully", announcement)
}

func (h *AnnouncementHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid announcement id")
	}

	announcement, err := h.service.Get(c.UserContext(), callerFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load announcement")
	}
	return utils.SendSuccess(c, "Announcement retrieved", announcement)
}

func (h *AnnouncementHandler) update(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid announcement id")
	}

	var payload dto.AnnouncementUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	announcement, err := h.service.Update(c.UserContext(), callerFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update announcement")
	}
	return utils.SendSuccess(c, "Announcement updated successfully", announcement)
}

func (h *AnnouncementHandler) delete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid announcement id")
	}

	if err := h.service.Delete(c.UserContext(), callerFromContext(c), id); err != nil {
		return respondError(c, h.logger, err, "failed to delete announcement")
	}
	return utils.SendSuccess(c, "Announcement deleted successfully", nil)
}
