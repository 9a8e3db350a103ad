package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-api/internal/dto"
	"github.com/noah-isme/campus-api/internal/service"
	"github.com/noah-isme/campus-api/internal/utils"
)

// CourseHandler serves the course catalogue and per-course enrollment rosters.
type CourseHandler struct {
	courses     service.CourseService
	enrollments service.EnrollmentService
	logger      zerolog.Logger
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(courses service.CourseService, enrollments service.EnrollmentService, logger zerolog.Logger) *CourseHandler {
	return &CourseHandler{
		courses:     courses,
		enrollments: enrollments,
		logger:      logger.With().Str("component", "course_handler").Logger(),
	}
}

// Register attaches routes. /mine is registered before /:id so it is not
// captured as an id.
func (h *CourseHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/mine", h.listMine)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Get("/:id/enrollments", h.listEnrollments)
}

func (h *CourseHandler) listRequest(c *fiber.Ctx) (dto.CourseListRequest, error) {
	page, pageSize, err := parsePaging(c)
	if err != nil {
		return dto.CourseListRequest{}, err
	}
	semester, err := parseQueryInt(c, "semester")
	if err != nil {
		return dto.CourseListRequest{}, errInvalidQuery("semester")
	}
	facultyID, err := parseQueryUint(c, "faculty_id")
	if err != nil {
		return dto.CourseListRequest{}, errInvalidQuery("faculty_id")
	}
	return dto.CourseListRequest{
		Page:      page,
		PageSize:  pageSize,
		Semester:  semester,
		FacultyID: facultyID,
		Search:    c.Query("search"),
	}, nil
}

func (h *CourseHandler) list(c *fiber.Ctx) error {
	req, err := h.listRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.courses.List(c.UserContext(), callerFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list courses")
	}
	return utils.OK(c, result.Items, "Courses retrieved", paginationMeta(result.Pagination))
}

func (h *CourseHandler) listMine(c *fiber.Ctx) error {
	req, err := h.listRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.courses.ListMine(c.UserContext(), callerFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list courses")
	}
	return utils.OK(c, result.Items, "Courses retrieved", paginationMeta(result.Pagination))
}

func (h *CourseHandler) create(c *fiber.Ctx) error {
	var payload dto.CourseCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	course, err := h.courses.Create(c.UserContext(), callerFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create course")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "Course created successfully", course)
}

func (h *CourseHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	course, err := h.courses.Get(c.UserContext(), callerFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load course")
	}
	return utils.SendSuccess(c, "Course retrieved", course)
}

func (h *CourseHandler) update(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	var payload dto.CourseUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	course, err := h.courses.Update(c.UserContext(), callerFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update course")
	}
	return utils.SendSuccess(c, "Course updated successfully", course)
}

func (h *CourseHandler) delete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	if err := h.courses.Delete(c.UserContext(), callerFromContext(c), id); err != nil {
		return respondError(c, h.logger, err, "failed to delete course")
	}
	return utils.SendSuccess(c, "Course deleted successfully", nil)
}

func (h *CourseHandler) listEnrollments(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}
	page, pageSize, err := parsePaging(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.enrollments.ListByCourse(c.UserContext(), callerFromContext(c), id, dto.EnrollmentListRequest{Page: page, PageSize: pageSize})
	if err != nil {
		return respondError(c, h.logger, err, "failed to list enrollments")
	}
	return utils.OK(c, result.Items, "Enrollments retrieved", paginationMeta(result.Pagination))
}
