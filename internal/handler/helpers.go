package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-api/internal/middleware"
	"github.com/noah-isme/campus-api/internal/service"
	"github.com/noah-isme/campus-api/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

// parsePaging reads page and page_size, accepting pageSize as an alias.
func parsePaging(c *fiber.Ctx) (int, int, error) {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return 0, 0, errors.New("invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return 0, 0, errors.New("invalid page size")
	}
	if pageSize == 0 {
		if alias, aliasErr := parseQueryInt(c, "pageSize"); aliasErr == nil {
			pageSize = alias
		}
	}
	return page, pageSize, nil
}

func parseQueryUint(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(parsed), nil
}

func parseIDParam(c *fiber.Ctx, key string) (uint, error) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(c.Params(key)), 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(parsed), nil
}

// callerFromContext builds the service caller from verified token locals.
func callerFromContext(c *fiber.Ctx) service.Caller {
	caller := service.Caller{
		IPAddress: c.IP(),
		UserAgent: string(c.Request().Header.UserAgent()),
	}
	if id, ok := c.Locals(middleware.LocalUserID).(uint); ok {
		caller.ID = id
	}
	if role, ok := c.Locals(middleware.LocalUserRole).(string); ok {
		caller.Role = role
	}
	return caller
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// validationDetails lists failing fields as field -> rule.
func validationDetails(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[toSnake(fieldErr.Field())] = fieldErr.Tag()
	}
	return details
}

func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// respondError maps service error kinds onto HTTP statuses. Unknown errors are
// logged with the correlation id and answered with fallback only.
func respondError(c *fiber.Ctx, base zerolog.Logger, err error, fallback string) error {
	if isValidationError(err) {
		return utils.Fail(c, fiber.StatusBadRequest, "Validation failed", validationDetails(err))
	}

	message := err.Error()
	var svcErr *service.ServiceError
	if errors.As(err, &svcErr) {
		message = svcErr.Message()
	}

	switch {
	case errors.Is(err, service.ErrValidation):
		return utils.SendError(c, fiber.StatusBadRequest, message)
	case errors.Is(err, service.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, message)
	case errors.Is(err, service.ErrConflict):
		return utils.SendError(c, fiber.StatusConflict, message)
	case errors.Is(err, service.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, message)
	case errors.Is(err, service.ErrInvalidCredentials):
		return utils.SendError(c, fiber.StatusUnauthorized, message)
	case errors.Is(err, service.ErrTooManyAttempts):
		return utils.SendError(c, fiber.StatusTooManyRequests, message)
	case errors.Is(err, service.ErrPayloadTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, message)
	}

	requestLogger(base, c).Error().Err(err).Str("path", c.Path()).Msg(fallback)
	return utils.SendError(c, fiber.StatusInternalServerError, fallback)
}

func paginationMeta(pagination interface{}) fiber.Map {
	return fiber.Map{"pagination": pagination}
}

func errInvalidQuery(key string) error {
	return errors.New("invalid " + key)
}

func parseFormUint(value string) (uint, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(parsed), nil
}
