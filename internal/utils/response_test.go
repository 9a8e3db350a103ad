package utils_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-api/internal/utils"
)

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    json.RawMessage        `json:"data"`
	Meta    map[string]interface{} `json:"meta"`
	Details map[string]string      `json:"details"`
}

func call(t *testing.T, handler fiber.Handler) (*http.Response, envelope) {
	t.Helper()
	app := fiber.New()
	app.Get("/", handler)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func TestOKCarriesPagination(t *testing.T) {
	resp, body := call(t, func(c *fiber.Ctx) error {
		courses := []map[string]string{{"code": "CS101"}, {"code": "CS102"}}
		return utils.OK(c, courses, "Courses retrieved", fiber.Map{"pagination": fiber.Map{"page": 1, "total_items": 2}})
	})

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, body.Success)
	require.Equal(t, "Courses retrieved", body.Message)
	require.JSONEq(t, `[{"code":"CS101"},{"code":"CS102"}]`, string(body.Data))

	pagination, ok := body.Meta["pagination"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, float64(2), pagination["total_items"])
	require.Nil(t, body.Details)
}

func TestSendSuccessWithStatusCreated(t *testing.T) {
	resp, body := call(t, func(c *fiber.Ctx) error {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "", fiber.Map{"id": 7})
	})

	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.True(t, body.Success)
	require.Equal(t, "success", body.Message)
	require.JSONEq(t, `{"id":7}`, string(body.Data))
	require.Nil(t, body.Meta)
}

func TestFailCarriesValidationDetails(t *testing.T) {
	resp, body := call(t, func(c *fiber.Ctx) error {
		return utils.Fail(c, fiber.StatusBadRequest, "Validation failed", map[string]string{"course_code": "required"})
	})

	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.False(t, body.Success)
	require.Equal(t, "Validation failed", body.Message)
	require.Equal(t, "required", body.Details["course_code"])
	require.Empty(t, body.Data)
}

func TestSendErrorDefaultsToInternal(t *testing.T) {
	resp, body := call(t, func(c *fiber.Ctx) error {
		return utils.Fail(c, 0, "", nil)
	})

	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	require.False(t, body.Success)
	require.Equal(t, "error", body.Message)
	require.Nil(t, body.Details)

	resp, body = call(t, func(c *fiber.Ctx) error {
		return utils.SendError(c, fiber.StatusConflict, "Course code already exists!")
	})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	require.Equal(t, "Course code already exists!", body.Message)
}
