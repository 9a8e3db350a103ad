package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/noah-isme/campus-api/internal/auth"
	"github.com/noah-isme/campus-api/internal/authz"
	"github.com/noah-isme/campus-api/internal/config"
	"github.com/noah-isme/campus-api/internal/handler"
	"github.com/noah-isme/campus-api/internal/middleware"
	"github.com/noah-isme/campus-api/internal/models"
	"github.com/noah-isme/campus-api/internal/repository"
	"github.com/noah-isme/campus-api/internal/router"
	"github.com/noah-isme/campus-api/internal/service"
	"github.com/noah-isme/campus-api/pkg/filestore"
)

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    json.RawMessage        `json:"data"`
	Meta    map[string]interface{} `json:"meta"`
	Details map[string]interface{} `json:"details"`
}

type apiServer struct {
	app *fiber.App
	db  *gorm.DB
}

func newAPIServer(t *testing.T) *apiServer {
	t.Helper()

	dsn := fmt.Sprintf("file:handler_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true, Logger: gormlogger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	logger := zerolog.Nop()
	policy := authz.MustNewPolicy()
	validate := validator.New(validator.WithRequiredStructEnabled())
	tokens := auth.NewTokenManager("handler-test-secret", auth.SessionTTL, "campus-test")

	storage, err := filestore.New(t.TempDir(), logger)
	require.NoError(t, err)

	users := repository.NewUserRepository(db)
	courses := repository.NewCourseRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)

	activity := service.NewActivityService(repository.NewActivityLogRepository(db), users, nil, 0, logger)
	authService := service.NewAuthService(users, auth.NewBcryptHasher(bcrypt.MinCost), tokens, nil, policy, validate, activity, logger)
	courseService := service.NewCourseService(courses, users, enrollments, policy, validate, activity, logger)
	enrollmentService := service.NewEnrollmentService(enrollments, users, courses, policy, validate, activity, logger)
	notesService := service.NewNotesService(repository.NewNotesRepository(db), courses, storage, policy, validate, activity, service.NotesOptions{
		MaxBytes:          1 << 20,
		AllowedExtensions: config.DefaultAllowedExtensions,
	}, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: logger})
	router.Register(app, config.Config{AppName: "Campus API", AppEnv: "test", AuthRateLimitPerMinute: 1000}, router.Dependencies{
		DB:                  db,
		Verifier:            authService,
		AuthHandler:         handler.NewAuthHandler(authService, logger),
		UserHandler:         handler.NewUserHandler(service.NewUserService(users, policy, validate, activity, logger), logger),
		CourseHandler:       handler.NewCourseHandler(courseService, enrollmentService, logger),
		EnrollmentHandler:   handler.NewEnrollmentHandler(enrollmentService, logger),
		AnnouncementHandler: handler.NewAnnouncementHandler(service.NewAnnouncementService(repository.NewAnnouncementRepository(db), courses, policy, validate, activity, logger), logger),
		EventHandler:        handler.NewEventHandler(service.NewEventService(repository.NewEventRepository(db), courses, policy, validate, activity, logger), logger),
		NotesHandler:        handler.NewNotesHandler(notesService, logger),
		ActivityHandler:     handler.NewActivityHandler(activity, logger),
	})

	return &apiServer{app: app, db: db}
}

func (s *apiServer) do(t *testing.T, req *http.Request, token string) (*http.Response, envelope) {
	t.Helper()
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(raw))

	var body envelope
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp, body
}

func (s *apiServer) call(t *testing.T, method, path, token string, payload interface{}) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return s.do(t, req, token)
}

func (s *apiServer) register(t *testing.T, username, role string) {
	t.Helper()
	resp, body := s.call(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@campus.test",
		"password": "password1",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body.Message)
}

func (s *apiServer) login(t *testing.T, username string) string {
	t.Helper()
	resp, body := s.call(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    username + "@campus.test",
		"password": "password1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Message)

	var session struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &session))
	require.NotEmpty(t, session.Token)
	return session.Token
}

func (s *apiServer) userID(t *testing.T, username string) uint {
	t.Helper()
	var user models.User
	require.NoError(t, s.db.Where("username = ?", username).First(&user).Error)
	return user.ID
}

func decodeData(t *testing.T, body envelope, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(body.Data, target))
}

func TestAuthFlow(t *testing.T) {
	srv := newAPIServer(t)
	srv.register(t, "alice", "")

	token := srv.login(t, "alice")

	resp, body := srv.call(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	decodeData(t, body, &me)
	require.Equal(t, "alice", me.Username)
	require.Equal(t, models.RoleStudent, me.Role)

	resp, body = srv.call(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "alice@campus.test", "password": "wrong-pass"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.False(t, body.Success)
	require.Equal(t, "Invalid credentials!", body.Message)

	resp, body = srv.call(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "nobody@campus.test", "password": "password1"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "User not found!", body.Message)

	resp, body = srv.call(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "alice", "email": "alice@campus.test", "password": "password1"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "Username or email already exists!", body.Message)

	resp, body = srv.call(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "b", "email": "not-an-email", "password": "short"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body.Details, "email")
	require.Contains(t, body.Details, "password")

	resp, _ = srv.call(t, http.MethodGet, "/api/v1/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = srv.call(t, http.MethodPut, "/api/v1/auth/password", token, map[string]string{"current_password": "password1", "new_password": "password2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = srv.call(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "alice@campus.test", "password": "password2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCourseEnrollmentFlow(t *testing.T) {
	srv := newAPIServer(t)
	srv.register(t, "root", models.RoleAdmin)
	srv.register(t, "prof", models.RoleFaculty)
	srv.register(t, "stud", models.RoleStudent)
	admin, faculty, student := srv.login(t, "root"), srv.login(t, "prof"), srv.login(t, "stud")

	course := map[string]interface{}{
		"title": "Algorithms", "description": "Sorting and graphs", "code": " cs201 ", "credit": 3, "semester": 2,
	}
	resp, body := srv.call(t, http.MethodPost, "/api/v1/courses", faculty, course)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body.Message)
	var created struct {
		ID        uint   `json:"id"`
		Code      string `json:"code"`
		FacultyID *uint  `json:"faculty_id"`
	}
	decodeData(t, body, &created)
	require.Equal(t, "CS201", created.Code)
	require.NotNil(t, created.FacultyID)
	require.Equal(t, srv.userID(t, "prof"), *created.FacultyID)

	resp, body = srv.call(t, http.MethodPost, "/api/v1/courses", admin, course)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "Course code already exists!", body.Message)

	course["code"] = "CS999"
	resp, _ = srv.call(t, http.MethodPost, "/api/v1/courses", student, course)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	enroll := map[string]string{"student_email": "stud@campus.test", "course_code": "cs201"}
	resp, _ = srv.call(t, http.MethodPost, "/api/v1/enrollments", faculty, enroll)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = srv.call(t, http.MethodPost, "/api/v1/enrollments", admin, enroll)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body.Message)

	resp, body = srv.call(t, http.MethodPost, "/api/v1/enrollments", admin, enroll)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "Student is already enrolled in this course!", body.Message)

	resp, body = srv.call(t, http.MethodGet, "/api/v1/enrollments/mine", student, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var mine []struct {
		CourseCode string `json:"course_code"`
	}
	decodeData(t, body, &mine)
	require.Len(t, mine, 1)
	require.Equal(t, "CS201", mine[0].CourseCode)
	require.Contains(t, body.Meta, "pagination")

	resp, body = srv.call(t, http.MethodGet, "/api/v1/courses/mine", student, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var enrolledCourses []struct {
		Code string `json:"code"`
	}
	decodeData(t, body, &enrolledCourses)
	require.Len(t, enrolledCourses, 1)

	resp, _ = srv.call(t, http.MethodGet, fmt.Sprintf("/api/v1/courses/%d/enrollments", created.ID), faculty, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = srv.call(t, http.MethodDelete, fmt.Sprintf("/api/v1/courses/%d", created.ID), student, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = srv.call(t, http.MethodGet, "/api/v1/courses/999999", student, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "Course not found!", body.Message)

	resp, _ = srv.call(t, http.MethodGet, "/api/v1/courses/abc", student, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEventAndAnnouncementRoutes(t *testing.T) {
	srv := newAPIServer(t)
	srv.register(t, "prof", models.RoleFaculty)
	srv.register(t, "stud", models.RoleStudent)
	faculty, student := srv.login(t, "prof"), srv.login(t, "stud")

	past := map[string]interface{}{
		"title": "Orientation", "description": "Welcome week", "event_type": "academic",
		"event_date": time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
	}
	resp, body := srv.call(t, http.MethodPost, "/api/v1/events", faculty, past)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Event date cannot be in the past!", body.Message)

	past["event_date"] = time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	resp, body = srv.call(t, http.MethodPost, "/api/v1/events", faculty, past)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body.Message)

	resp, body = srv.call(t, http.MethodGet, "/api/v1/events?upcoming=true", student, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var events []map[string]interface{}
	decodeData(t, body, &events)
	require.Len(t, events, 1)

	resp, _ = srv.call(t, http.MethodGet, "/api/v1/events?upcoming=maybe", student, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = srv.call(t, http.MethodPost, "/api/v1/announcements", faculty, map[string]string{
		"title":   "Lab <b>moved</b>",
		"content": `<p>Room 4</p><script>alert(1)</script>`,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body.Message)
	var announcement struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	decodeData(t, body, &announcement)
	require.Equal(t, "Lab moved", announcement.Title)
	require.NotContains(t, announcement.Content, "<script>")

	resp, _ = srv.call(t, http.MethodPost, "/api/v1/announcements", student, map[string]string{"title": "x", "content": "y"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func notesUploadRequest(t *testing.T, fields map[string]string, fileName string, content []byte) *http.Request {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notes", buf)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	return req
}

func TestNotesUploadAndDownload(t *testing.T) {
	srv := newAPIServer(t)
	srv.register(t, "prof", models.RoleFaculty)
	srv.register(t, "stud", models.RoleStudent)
	faculty, student := srv.login(t, "prof"), srv.login(t, "stud")

	resp, body := srv.call(t, http.MethodPost, "/api/v1/courses", faculty, map[string]interface{}{
		"title": "Databases", "description": "Relational design", "code": "DB101", "credit": 3, "semester": 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body.Message)
	var course struct {
		ID uint `json:"id"`
	}
	decodeData(t, body, &course)

	fields := map[string]string{"title": "Week 1", "course_id": fmt.Sprint(course.ID), "tags": "Intro, SQL"}
	content := []byte("Week one lecture notes on normal forms.\n")

	resp, _ = srv.do(t, notesUploadRequest(t, fields, "week1.txt", content), student)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = srv.do(t, notesUploadRequest(t, fields, "week1.exe", content), faculty)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = srv.do(t, notesUploadRequest(t, fields, "week1.txt", content), faculty)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body.Message)
	var notes struct {
		ID            uint     `json:"id"`
		Tags          []string `json:"tags"`
		DownloadCount int64    `json:"download_count"`
	}
	decodeData(t, body, &notes)
	require.ElementsMatch(t, []string{"intro", "sql"}, notes.Tags)

	resp, _ = srv.call(t, http.MethodGet, fmt.Sprintf("/api/v1/notes/%d/download", notes.ID), student, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	downloaded, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, content, downloaded)

	resp, body = srv.call(t, http.MethodGet, fmt.Sprintf("/api/v1/notes/%d", notes.ID), student, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, body, &notes)
	require.Equal(t, int64(1), notes.DownloadCount)
}

func TestActivityLogAccess(t *testing.T) {
	srv := newAPIServer(t)
	srv.register(t, "root", models.RoleAdmin)
	srv.register(t, "stud", models.RoleStudent)
	admin, student := srv.login(t, "root"), srv.login(t, "stud")

	resp, _ := srv.call(t, http.MethodGet, "/api/v1/activity-logs", student, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := srv.call(t, http.MethodGet, "/api/v1/activity-logs/me", student, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var mine []struct {
		Action  string `json:"action"`
		ActorID uint   `json:"actor_id"`
	}
	decodeData(t, body, &mine)
	require.NotEmpty(t, mine)
	for _, entry := range mine {
		require.Equal(t, srv.userID(t, "stud"), entry.ActorID)
	}

	resp, body = srv.call(t, http.MethodGet, "/api/v1/activity-logs?page_size=2", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pagination, ok := body.Meta["pagination"].(map[string]interface{})
	require.True(t, ok)
	require.EqualValues(t, 2, pagination["page_size"])

	resp, _ = srv.call(t, http.MethodGet, "/api/v1/activity-logs/entity/spaceship", admin, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = srv.call(t, http.MethodGet, fmt.Sprintf("/api/v1/activity-logs/entity/user/%d", srv.userID(t, "stud")), admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = srv.call(t, http.MethodGet, "/api/v1/activity-logs/stats", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = srv.call(t, http.MethodDelete, "/api/v1/activity-logs/purge?days=-3", admin, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = srv.call(t, http.MethodDelete, "/api/v1/activity-logs/purge?days=30", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var purge struct {
		Days         int   `json:"days"`
		DeletedCount int64 `json:"deleted_count"`
	}
	decodeData(t, body, &purge)
	require.Equal(t, 30, purge.Days)
	require.Zero(t, purge.DeletedCount)

	var purged int64
	require.NoError(t, srv.db.Model(&models.ActivityLog{}).Where("action = ?", models.ActionPurged).Count(&purged).Error)
	require.Equal(t, int64(1), purged)

	resp, _ = srv.call(t, http.MethodGet, "/api/v1/users", student, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = srv.call(t, http.MethodGet, "/api/v1/users", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newAPIServer(t)

	resp, body := srv.call(t, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health handler.HealthResponse
	decodeData(t, body, &health)
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "up", health.Database)

	resp, _ = srv.call(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
