package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/noah-isme/campus-api/internal/auth"
	"github.com/noah-isme/campus-api/internal/authz"
	"github.com/noah-isme/campus-api/internal/models"
	"github.com/noah-isme/campus-api/internal/repository"
)

const testPassword = "password1"

type testEnv struct {
	db            *gorm.DB
	users         repository.UserRepository
	courses       repository.CourseRepository
	enrollments   repository.EnrollmentRepository
	announcements repository.AnnouncementRepository
	events        repository.EventRepository
	notes         repository.NotesRepository
	activityLogs  repository.ActivityLogRepository
	activity      ActivityService
	policy        *authz.Policy
	validate      *validator.Validate
	hasher        auth.Hasher
	logger        zerolog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true, Logger: gormlogger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	env := &testEnv{
		db:            db,
		users:         repository.NewUserRepository(db),
		courses:       repository.NewCourseRepository(db),
		enrollments:   repository.NewEnrollmentRepository(db),
		announcements: repository.NewAnnouncementRepository(db),
		events:        repository.NewEventRepository(db),
		notes:         repository.NewNotesRepository(db),
		activityLogs:  repository.NewActivityLogRepository(db),
		policy:        authz.MustNewPolicy(),
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		hasher:        auth.NewBcryptHasher(bcrypt.MinCost),
		logger:        zerolog.Nop(),
	}
	env.activity = NewActivityService(env.activityLogs, env.users, nil, 0, env.logger)
	return env
}

func (e *testEnv) seedUser(t *testing.T, username, role string) models.User {
	t.Helper()

	digest, err := e.hasher.Hash(testPassword)
	require.NoError(t, err)
	user := models.User{
		Username:     username,
		Email:        username + "@campus.test",
		PasswordHash: digest,
		Role:         role,
	}
	require.NoError(t, e.users.Create(context.Background(), &user))
	return user
}

func (e *testEnv) seedCourse(t *testing.T, code string, owner *models.User) models.Course {
	t.Helper()

	course := models.Course{
		Title:       "Course " + code,
		Description: "Description for " + code,
		Code:        code,
		Credit:      3,
		Semester:    1,
		IsActive:    true,
	}
	if owner != nil {
		course.FacultyID = uintPtr(owner.ID)
	}
	require.NoError(t, e.courses.Create(context.Background(), &course))
	return course
}

func (e *testEnv) auditRows(t *testing.T, action, entityType string) []models.ActivityLog {
	t.Helper()

	var rows []models.ActivityLog
	require.NoError(t, e.db.Where("action = ? AND entity_type = ?", action, entityType).Order("id").Find(&rows).Error)
	return rows
}

func (e *testEnv) countAudit(t *testing.T) int64 {
	t.Helper()

	var total int64
	require.NoError(t, e.db.Model(&models.ActivityLog{}).Count(&total).Error)
	return total
}

func callerOf(user models.User) Caller {
	return Caller{ID: user.ID, Role: user.Role, IPAddress: "10.0.0.1", UserAgent: "service-test"}
}

func setActivityClock(t *testing.T, svc ActivityService, now func() time.Time) {
	t.Helper()

	concrete, ok := svc.(*activityService)
	require.True(t, ok)
	concrete.now = now
}

// requireKind asserts err carries kind and, when message is set, that exact text.
func requireKind(t *testing.T, err error, kind error, message string) {
	t.Helper()

	require.Error(t, err)
	require.ErrorIs(t, err, kind)
	if message == "" {
		return
	}
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	require.Equal(t, message, svcErr.Message())
}

// failingActivityRepository simulates an unavailable audit store.
type failingActivityRepository struct {
	repository.ActivityLogRepository
	attempts int
}

func (r *failingActivityRepository) Create(context.Context, *models.ActivityLog) error {
	r.attempts++
	return errors.New("audit store unavailable")
}
