package handler

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-api/internal/dto"
	"github.com/noah-isme/campus-api/internal/models"
	"github.com/noah-isme/campus-api/internal/service"
	"github.com/noah-isme/campus-api/internal/utils"
)

// ActivityHandler exposes audit trail queries, statistics and retention purge.
type ActivityHandler struct {
	service service.ActivityService
	logger  zerolog.Logger
}

// NewActivityHandler constructs the handler.
func NewActivityHandler(service service.ActivityService, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "activity_handler").Logger(),
	}
}

// RegisterSelf attaches the caller-scoped route.
func (h *ActivityHandler) RegisterSelf(router fiber.Router) {
	router.Get("/me", h.listMine)
}

// RegisterAdmin attaches the admin-only routes. The router is expected to
// enforce the admin role already.
func (h *ActivityHandler) RegisterAdmin(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/stats", h.stats)
	router.Get("/user/:id", h.listByUser)
	router.Get("/entity/:type", h.listByEntityType)
	router.Get("/entity/:type/:id", h.listByEntity)
	router.Delete("/purge", h.purge)
}

func activityPage(c *fiber.Ctx) (dto.ActivityListRequest, error) {
	page, pageSize, err := parsePaging(c)
	if err != nil {
		return dto.ActivityListRequest{}, err
	}
	return dto.ActivityListRequest{Page: page, PageSize: pageSize}, nil
}

func (h *ActivityHandler) list(c *fiber.Ctx) error {
	req, err := activityPage(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.ListAll(c.UserContext(), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list activity logs")
	}
	return utils.OK(c, result.Items, "Activity logs retrieved", paginationMeta(result.Pagination))
}

func (h *ActivityHandler) listMine(c *fiber.Ctx) error {
	req, err := activityPage(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.ListMine(c.UserContext(), callerFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list activity logs")
	}
	return utils.OK(c, result.Items, "Activity logs retrieved", paginationMeta(result.Pagination))
}

func (h *ActivityHandler) listByUser(c *fiber.Ctx) error {
	userID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid user id")
	}
	req, err := activityPage(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.ListByUser(c.UserContext(), userID, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list activity logs")
	}
	return utils.OK(c, result.Items, "Activity logs retrieved", paginationMeta(result.Pagination))
}

func (h *ActivityHandler) listByEntityType(c *fiber.Ctx) error {
	req, err := activityPage(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.ListByEntityType(c.UserContext(), c.Params("type"), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list activity logs")
	}
	return utils.OK(c, result.Items, "Activity logs retrieved", paginationMeta(result.Pagination))
}

func (h *ActivityHandler) listByEntity(c *fiber.Ctx) error {
	entityID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid entity id")
	}
	req, err := activityPage(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.ListByEntity(c.UserContext(), c.Params("type"), entityID, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list activity logs")
	}
	return utils.OK(c, result.Items, "Activity logs retrieved", paginationMeta(result.Pagination))
}

func (h *ActivityHandler) stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err, "failed to compute activity statistics")
	}
	return utils.SendSuccess(c, "Activity statistics retrieved", stats)
}

func (h *ActivityHandler) purge(c *fiber.Ctx) error {
	days := 0
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid days")
		}
		days = parsed
	}

	result, err := h.service.PurgeOlderThan(c.UserContext(), days)
	if err != nil {
		return respondError(c, h.logger, err, "failed to purge activity logs")
	}

	caller := callerFromContext(c)
	h.service.Append(c.UserContext(), service.AuditEntry{
		ActorID:     caller.ID,
		Action:      models.ActionPurged,
		EntityType:  models.EntityUser,
		EntityID:    &caller.ID,
		Description: fmt.Sprintf("Purged %d activity logs older than %d days", result.DeletedCount, result.Days),
		IPAddress:   caller.IPAddress,
		UserAgent:   caller.UserAgent,
		Metadata: map[string]interface{}{
			"days":          result.Days,
			"deleted_count": result.DeletedCount,
		},
	})

	return utils.SendSuccess(c, "Activity logs purged", result)
}
