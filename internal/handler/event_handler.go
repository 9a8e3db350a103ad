package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-api/internal/dto"
	"github.com/noah-isme/campus-api/internal/service"
	"github.com/noah-isme/campus-api/internal/utils"
)

// EventHandler exposes campus calendar endpoints.
type EventHandler struct {
	service service.EventService
	logger  zerolog.Logger
}

// NewEventHandler constructs the handler.
func NewEventHandler(service service.EventService, logger zerolog.Logger) *EventHandler {
	return &EventHandler{
		service: service,
		logger:  logger.With().Str("component", "event_handler").Logger(),
	}
}

// Register attaches routes.
func (h *EventHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
}

func (h *EventHandler) list(c *fiber.Ctx) error {
	page, pageSize, err := parsePaging(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	courseID, err := parseQueryUint(c, "course_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course_id")
	}
	upcoming := false
	if raw := c.Query("upcoming"); raw != "" {
		upcoming, err = strconv.ParseBool(raw)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid upcoming")
		}
	}

	result, err := h.service.List(c.UserContext(), callerFromContext(c), dto.EventListRequest{
		Page:     page,
		PageSize: pageSize,
		Type:     c.Query("type"),
		Priority: c.Query("priority"),
		CourseID: courseID,
		Upcoming: upcoming,
	})
	if err != nil {
		return respondError(c, h.logger, err, "failed to list events")
	}
	return utils.OK(c, result.Items, "Events retrieved", paginationMeta(result.Pagination))
}

func (h *EventHandler) create(c *fiber.Ctx) error {
	var payload dto.EventCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	event, err := h.service.Create(c.UserContext(), callerFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create event")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "Event created successfully", event)
}

func (h *EventHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid event id")
	}

	event, err := h.service.Get(c.UserContext(), callerFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load event")
	}
	return utils.SendSuccess(c, "Event retrieved", event)
}

func (h *EventHandler) update(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid event id")
	}

	var payload dto.EventUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	event, err := h.service.Update(c.UserContext(), callerFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update event")
	}
	return utils.SendSuccess(c, "Event updated successfully", event)
}

func (h *EventHandler) delete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid event id")
	}

	if err := h.service.Delete(c.UserContext(), callerFromContext(c), id); err != nil {
		return respondError(c, h.logger, err, "failed to delete event")
	}
	return utils.SendSuccess(c, "Event deleted successfully", nil)
}
