package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-api/internal/authz"
	"github.com/noah-isme/campus-api/internal/dto"
	"github.com/noah-isme/campus-api/internal/models"
	"github.com/noah-isme/campus-api/internal/observability"
	"github.com/noah-isme/campus-api/internal/repository"
)

const (
	msgNotesNotFound = "Notes not found!"

	defaultNotesMaxBytes = 10 * 1024 * 1024
)

// FileStorage abstracts where note files end up. Upload returns the
// location later handed back by Download: a local path or a URL.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// NotesOptions bounds what the notes service accepts.
type NotesOptions struct {
	MaxBytes          int64
	AllowedExtensions []string
}

// NotesService manages course notes and their files.
type NotesService interface {
	Upload(ctx context.Context, caller Caller, req dto.NotesUploadRequest, file *multipart.FileHeader) (dto.NotesResponse, error)
	Get(ctx context.Context, caller Caller, id uint) (dto.NotesResponse, error)
	List(ctx context.Context, caller Caller, req dto.NotesListRequest) (dto.NotesListResponse, error)
	Update(ctx context.Context, caller Caller, id uint, req dto.NotesUpdateRequest) (dto.NotesResponse, error)
	Delete(ctx context.Context, caller Caller, id uint) error
	Download(ctx context.Context, caller Caller, id uint) (dto.NotesDownload, error)
}

type notesService struct {
	repo       repository.NotesRepository
	courses    repository.CourseRepository
	storage    FileStorage
	policy     authz.Authorizer
	validator  *validator.Validate
	activity   AuditRecorder
	logger     zerolog.Logger
	tracer     trace.Tracer
	maxBytes   int64
	extensions map[string]struct{}
}

// NewNotesService constructs the notes service.
func NewNotesService(repo repository.NotesRepository, courses repository.CourseRepository, storage FileStorage, policy authz.Authorizer, validate *validator.Validate, activity AuditRecorder, opts NotesOptions, logger zerolog.Logger) NotesService {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultNotesMaxBytes
	}
	extensions := make(map[string]struct{}, len(opts.AllowedExtensions))
	for _, ext := range opts.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extensions[ext] = struct{}{}
	}
	return &notesService{
		repo:       repo,
		courses:    courses,
		storage:    storage,
		policy:     policy,
		validator:  validate,
		activity:   activity,
		logger:     logger.With().Str("component", "notes_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/campus-api/internal/service/notes"),
		maxBytes:   opts.MaxBytes,
		extensions: extensions,
	}
}

func (s *notesService) Upload(ctx context.Context, caller Caller, req dto.NotesUploadRequest, file *multipart.FileHeader) (dto.NotesResponse, error) {
	ctx, span := s.tracer.Start(ctx, "notes.upload")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("notes.max_bytes", s.maxBytes),
		attribute.Int("notes.course_id", int(req.CourseID)),
	)

	fail := func(err error, reason string) (dto.NotesResponse, error) {
		if reason != "" {
			observability.NotesUploadsRejected().WithLabelValues(reason).Inc()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return dto.NotesResponse{}, err
	}

	req.Title = sanitizePlain(req.Title)
	req.Description = sanitizePlain(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return fail(err, "")
	}
	if err := authorize(s.policy, caller, 0, authz.ResourceNotes, authz.ActionCreate); err != nil {
		return fail(err, "")
	}

	course, err := s.courses.GetByID(ctx, req.CourseID, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(notFoundError(msgCourseNotFound), "")
		}
		return fail(fmt.Errorf("load course: %w", err), "")
	}
	if caller.IsFaculty() && course.OwnerID() != caller.ID {
		return fail(forbiddenError("You can only upload notes to your own courses"), "")
	}

	if file == nil {
		return fail(validationError("A file is required"), "missing")
	}
	originalName := filepath.Base(strings.TrimSpace(file.Filename))
	ext := strings.ToLower(filepath.Ext(originalName))
	span.SetAttributes(
		attribute.String("notes.original_name", originalName),
		attribute.Int64("notes.request_size", file.Size),
	)
	if _, ok := s.extensions[ext]; !ok {
		return fail(validationError("File type %q is not allowed", ext), "extension")
	}
	if file.Size > s.maxBytes {
		return fail(newError(ErrPayloadTooLarge, "File exceeds the %d MB limit", s.maxBytes/(1024*1024)), "size")
	}

	handle, err := file.Open()
	if err != nil {
		return fail(fmt.Errorf("open upload: %w", err), "")
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxBytes+1)); err != nil {
		return fail(fmt.Errorf("read upload: %w", err), "")
	}
	if int64(buf.Len()) > s.maxBytes {
		return fail(newError(ErrPayloadTooLarge, "File exceeds the %d MB limit", s.maxBytes/(1024*1024)), "size")
	}
	if buf.Len() == 0 {
		return fail(validationError("File is empty"), "empty")
	}

	detected := mimetype.Detect(buf.Bytes())
	fileType := baseMime(detected.String())
	span.SetAttributes(attribute.String("notes.detected_mime", fileType))
	if !matchesExtension(detected, ext) {
		return fail(validationError("File content does not match the %s extension", ext), "type")
	}
	if err := s.scanArchive(buf.Bytes(), detected); err != nil {
		return fail(err, "scan")
	}

	storedName := uuid.NewString() + ext
	location, err := s.storage.Upload(ctx, storedName, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return fail(fmt.Errorf("store notes file: %w", err), "storage")
	}

	notes := models.Notes{
		Title:       req.Title,
		Description: req.Description,
		FileName:    originalName,
		FilePath:    location,
		FileType:    fileType,
		FileSize:    int64(buf.Len()),
		UploadedBy:  caller.ID,
		CourseID:    course.ID,
		Tags:        req.Tags,
		IsActive:    true,
	}
	if notes.Tags == nil {
		notes.Tags = []string{}
	}
	if err := s.repo.Create(ctx, &notes); err != nil {
		return fail(fmt.Errorf("create notes: %w", err), "")
	}

	entry := caller.entry(models.ActionCreated, models.EntityNotes, uintPtr(notes.ID),
		fmt.Sprintf("Uploaded %s to %s", notes.FileName, course.Code))
	entry.Metadata = map[string]interface{}{"file_type": fileType, "file_size": notes.FileSize}
	s.activity.Append(ctx, entry)

	span.SetStatus(codes.Ok, "stored")

	loaded, err := s.repo.GetByID(ctx, notes.ID, true)
	if err != nil {
		s.logger.Warn().Err(err).Uint("notes_id", notes.ID).Msg("failed to reload notes")
		return dto.NewNotesResponse(notes), nil
	}
	return dto.NewNotesResponse(loaded), nil
}

func (s *notesService) Get(ctx context.Context, caller Caller, id uint) (dto.NotesResponse, error) {
	notes, err := s.load(ctx, id)
	if err != nil {
		return dto.NotesResponse{}, err
	}
	if err := authorize(s.policy, caller, notes.UploadedBy, authz.ResourceNotes, authz.ActionRead); err != nil {
		return dto.NotesResponse{}, err
	}
	return dto.NewNotesResponse(notes), nil
}

func (s *notesService) List(ctx context.Context, caller Caller, req dto.NotesListRequest) (dto.NotesListResponse, error) {
	if err := authorize(s.policy, caller, 0, authz.ResourceNotes, authz.ActionRead); err != nil {
		return dto.NotesListResponse{}, err
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)
	filter := repository.NotesFilter{
		Page:     page,
		PageSize: pageSize,
		Tag:      strings.ToLower(strings.TrimSpace(req.Tag)),
		Search:   strings.TrimSpace(req.Search),
	}
	if req.CourseID > 0 {
		filter.CourseID = uintPtr(req.CourseID)
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.NotesListResponse{}, fmt.Errorf("list notes: %w", err)
	}

	resp := make([]dto.NotesResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, dto.NewNotesResponse(item))
	}
	return dto.NotesListResponse{Items: resp, Pagination: dto.NewPaginationMeta(page, pageSize, total)}, nil
}

func (s *notesService) Update(ctx context.Context, caller Caller, id uint, req dto.NotesUpdateRequest) (dto.NotesResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.NotesResponse{}, err
	}

	notes, err := s.load(ctx, id)
	if err != nil {
		return dto.NotesResponse{}, err
	}
	if err := authorize(s.policy, caller, notes.UploadedBy, authz.ResourceNotes, authz.ActionUpdate); err != nil {
		return dto.NotesResponse{}, err
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title := sanitizePlain(*req.Title)
		if title == "" {
			return dto.NotesResponse{}, validationError("Title must not be empty")
		}
		updates["title"] = title
	}
	if req.Description != nil {
		updates["description"] = sanitizePlain(*req.Description)
	}
	if req.Tags != nil {
		updates["tags"] = models.EncodeTags(*req.Tags)
	}

	if len(updates) == 0 {
		return dto.NewNotesResponse(notes), nil
	}

	updated, err := s.repo.Update(ctx, notes.ID, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NotesResponse{}, notFoundError(msgNotesNotFound)
		}
		return dto.NotesResponse{}, fmt.Errorf("update notes: %w", err)
	}

	entry := caller.entry(models.ActionUpdated, models.EntityNotes, uintPtr(updated.ID),
		fmt.Sprintf("Updated notes %q", updated.Title))
	entry.Metadata = map[string]interface{}{"fields": changedFields(updates)}
	s.activity.Append(ctx, entry)

	return dto.NewNotesResponse(updated), nil
}

func (s *notesService) Delete(ctx context.Context, caller Caller, id uint) error {
	notes, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(s.policy, caller, notes.UploadedBy, authz.ResourceNotes, authz.ActionDelete); err != nil {
		return err
	}

	if err := s.repo.SoftDelete(ctx, notes.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError(msgNotesNotFound)
		}
		return fmt.Errorf("delete notes: %w", err)
	}

	s.activity.Append(ctx, caller.entry(models.ActionDeleted, models.EntityNotes, uintPtr(notes.ID),
		fmt.Sprintf("Deleted notes %q", notes.Title)))
	return nil
}

// Download counts the download and returns where the file lives.
func (s *notesService) Download(ctx context.Context, caller Caller, id uint) (dto.NotesDownload, error) {
	ctx, span := s.tracer.Start(ctx, "notes.download")
	defer span.End()
	span.SetAttributes(attribute.Int("notes.id", int(id)))

	notes, err := s.load(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return dto.NotesDownload{}, err
	}
	if err := authorize(s.policy, caller, notes.UploadedBy, authz.ResourceNotes, authz.ActionDownload); err != nil {
		span.SetStatus(codes.Error, "forbidden")
		return dto.NotesDownload{}, err
	}

	if err := s.repo.IncrementDownloads(ctx, notes.ID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "increment failed")
		return dto.NotesDownload{}, fmt.Errorf("count download: %w", err)
	}
	observability.NotesDownloads().Inc()

	s.activity.Append(ctx, caller.entry(models.ActionDownloaded, models.EntityNotes, uintPtr(notes.ID),
		fmt.Sprintf("Downloaded %s", notes.FileName)))

	span.SetStatus(codes.Ok, "located")
	return dto.NotesDownload{
		Location:      notes.FilePath,
		FileName:      notes.FileName,
		FileType:      notes.FileType,
		DownloadCount: notes.DownloadCount + 1,
		Remote:        isRemoteLocation(notes.FilePath),
	}, nil
}

func (s *notesService) load(ctx context.Context, id uint) (models.Notes, error) {
	notes, err := s.repo.GetByID(ctx, id, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Notes{}, notFoundError(msgNotesNotFound)
		}
		return models.Notes{}, fmt.Errorf("load notes: %w", err)
	}
	return notes, nil
}

// scanArchive guards zip based office documents against decompression bombs.
func (s *notesService) scanArchive(payload []byte, detected *mimetype.MIME) error {
	if !isKind(detected, "application/zip") {
		return nil
	}
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return validationError("File could not be read as a document archive")
	}
	var total uint64
	for _, f := range reader.File {
		total += f.UncompressedSize64
		if total > uint64(s.maxBytes*20) {
			return validationError("Document archive expands beyond the allowed size")
		}
	}
	return nil
}

// extensionMimes maps each accepted extension to the sniffed types it may carry.
// Extensions configured beyond this table are accepted on extension alone.
var extensionMimes = map[string][]string{
	".pdf":  {"application/pdf"},
	".doc":  {"application/msword", "application/x-ole-storage"},
	".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/zip"},
	".ppt":  {"application/vnd.ms-powerpoint", "application/x-ole-storage"},
	".pptx": {"application/vnd.openxmlformats-officedocument.presentationml.presentation", "application/zip"},
	".txt":  {"text/plain"},
	".jpg":  {"image/jpeg"},
	".jpeg": {"image/jpeg"},
	".png":  {"image/png"},
}

func matchesExtension(detected *mimetype.MIME, ext string) bool {
	expected, ok := extensionMimes[ext]
	if !ok {
		return true
	}
	for _, candidate := range expected {
		if isKind(detected, candidate) {
			return true
		}
	}
	return false
}

// isKind walks the detected type and its parents.
func isKind(detected *mimetype.MIME, expected string) bool {
	for m := detected; m != nil; m = m.Parent() {
		if m.Is(expected) {
			return true
		}
	}
	return false
}

func baseMime(value string) string {
	if idx := strings.Index(value, ";"); idx >= 0 {
		value = value[:idx]
	}
	return strings.ToLower(strings.TrimSpace(value))
}

func isRemoteLocation(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

