package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-api/internal/dto"
	"github.com/noah-isme/campus-api/internal/middleware"
	"github.com/noah-isme/campus-api/internal/service"
	"github.com/noah-isme/campus-api/internal/utils"
)

// NotesHandler handles course notes uploads, metadata and downloads.
type NotesHandler struct {
	service service.NotesService
	logger  zerolog.Logger
}

// NewNotesHandler constructs the handler.
func NewNotesHandler(service service.NotesService, logger zerolog.Logger) *NotesHandler {
	return &NotesHandler{
		service: service,
		logger:  logger.With().Str("component", "notes_handler").Logger(),
	}
}

// Register attaches the read and metadata routes.
func (h *NotesHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Get("/:id/download", h.download)
}

// RegisterUpload attaches the multipart upload route behind a coarse role gate.
func (h *NotesHandler) RegisterUpload(router fiber.Router, opts middleware.AuthOptions) {
	router.Post("", middleware.WithAuth(h.upload, opts))
}

func (h *NotesHandler) upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	courseID, err := parseFormUint(c.FormValue("course_id"))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course_id")
	}

	payload := dto.NotesUploadRequest{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		CourseID:    courseID,
		Tags:        formTags(c),
	}

	notes, err := h.service.Upload(c.UserContext(), callerFromContext(c), payload, file)
	if err != nil {
		return respondError(c, h.logger, err, "failed to upload notes")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "Notes uploaded successfully", notes)
}

// formTags accepts repeated "tags" fields as well as one comma separated value.
func formTags(c *fiber.Ctx) []string {
	var raw []string
	if form, err := c.MultipartForm(); err == nil && form != nil {
		raw = form.Value["tags"]
	}
	tags := make([]string, 0, len(raw))
	for _, value := range raw {
		for _, tag := range strings.Split(value, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

func (h *NotesHandler) list(c *fiber.Ctx) error {
	page, pageSize, err := parsePaging(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	courseID, err := parseQueryUint(c, "course_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course_id")
	}

	result, err := h.service.List(c.UserContext(), callerFromContext(c), dto.NotesListRequest{
		Page:     page,
		PageSize: pageSize,
		CourseID: courseID,
		Tag:      c.Query("tag"),
		Search:   c.Query("search"),
	})
	if err != nil {
		return respondError(c, h.logger, err, "failed to list notes")
	}
	return utils.OK(c, result.Items, "Notes retrieved", paginationMeta(result.Pagination))
}

func (h *NotesHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid notes id")
	}

	notes, err := h.service.Get(c.UserContext(), callerFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load notes")
	}
	return utils.SendSuccess(c, "Notes retrieved", notes)
}

func (h *NotesHandler) update(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid notes id")
	}

	var payload dto.NotesUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	notes, err := h.service.Update(c.UserContext(), callerFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update notes")
	}
	return utils.SendSuccess(c, "Notes updated successfully", notes)
}

func (h *NotesHandler) delete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid notes id")
	}

	if err := h.service.Delete(c.UserContext(), callerFromContext(c), id); err != nil {
		return respondError(c, h.logger, err, "failed to delete notes")
	}
	return utils.SendSuccess(c, "Notes deleted successfully", nil)
}

// download streams local files and redirects to remote ones. ?inline=false
// returns the location as JSON instead.
func (h *NotesHandler) download(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid notes id")
	}

	file, err := h.service.Download(c.UserContext(), callerFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to download notes")
	}

	if !c.QueryBool("inline", true) {
		return utils.SendSuccess(c, "Notes download ready", file)
	}
	if file.Remote {
		return c.Redirect(file.Location, fiber.StatusFound)
	}
	c.Set(fiber.HeaderContentType, file.FileType)
	return c.Download(file.Location, file.FileName)
}
