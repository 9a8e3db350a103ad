package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/campus-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username, role string) models.User {
	t.Helper()
	user := models.User{Username: username, Email: username + "@x.edu", PasswordHash: "digest", Role: role}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedCourse(t *testing.T, db *gorm.DB, code string, facultyID *uint) models.Course {
	t.Helper()
	course := models.Course{Title: "Course " + code, Description: "desc", Code: code, Credit: 3, Semester: 1, FacultyID: facultyID, IsActive: true}
	require.NoError(t, db.Omit("Faculty").Create(&course).Error)
	return course
}

func TestUserRepositoryLookupsAndUniqueness(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := models.User{Username: "drlee", Email: "drlee@x.edu", PasswordHash: "digest", Role: models.RoleFaculty}
	require.NoError(t, repo.Create(ctx, &user))
	require.NotZero(t, user.ID)

	found, err := repo.GetByEmail(ctx, " DrLee@X.edu ")
	require.NoError(t, err)
	require.Equal(t, user.ID, found.ID)

	exists, err := repo.ExistsByUsernameOrEmail(ctx, "DRLEE", "other@x.edu", 0)
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = repo.ExistsByUsernameOrEmail(ctx, "drlee", "drlee@x.edu", user.ID)
	require.NoError(t, err)
	require.False(t, exists)

	duplicate := models.User{Username: "drlee", Email: "second@x.edu", PasswordHash: "digest", Role: models.RoleStudent}
	require.ErrorIs(t, repo.Create(ctx, &duplicate), gorm.ErrDuplicatedKey)

	_, err = repo.GetByEmail(ctx, "missing@x.edu")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepositoryUpdatePasswordAndDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	user := seedUser(t, db, "sam", models.RoleStudent)

	require.NoError(t, repo.UpdatePassword(ctx, user.ID, "new-digest"))
	stored, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "new-digest", stored.PasswordHash)

	require.NoError(t, repo.Delete(ctx, user.ID))
	require.ErrorIs(t, repo.Delete(ctx, user.ID), gorm.ErrRecordNotFound)
	require.ErrorIs(t, repo.UpdatePassword(ctx, user.ID, "x"), gorm.ErrRecordNotFound)
}

func TestCourseRepositorySoftDeleteVisibility(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCourseRepository(db)
	ctx := context.Background()
	faculty := seedUser(t, db, "drlee", models.RoleFaculty)

	course := models.Course{Title: "Intro", Description: "Basics", Code: "CS101", Credit: 3, Semester: 1, FacultyID: &faculty.ID}
	require.NoError(t, repo.Create(ctx, &course))
	require.True(t, course.IsActive)

	loaded, err := repo.GetByCode(ctx, "cs101", false)
	require.NoError(t, err)
	require.Equal(t, course.ID, loaded.ID)
	require.NotNil(t, loaded.Faculty)
	require.Equal(t, "drlee", loaded.Faculty.Username)

	require.NoError(t, repo.SoftDelete(ctx, course.ID))
	require.ErrorIs(t, repo.SoftDelete(ctx, course.ID), gorm.ErrRecordNotFound)

	_, err = repo.GetByID(ctx, course.ID, false)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	inactive, err := repo.GetByID(ctx, course.ID, true)
	require.NoError(t, err)
	require.False(t, inactive.IsActive)

	items, total, err := repo.List(ctx, CourseFilter{})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, items)

	exists, err := repo.CodeExists(ctx, "CS101", 0)
	require.NoError(t, err)
	require.True(t, exists, "inactive courses still hold their code")
}

func TestCourseRepositoryListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCourseRepository(db)
	ctx := context.Background()
	faculty := seedUser(t, db, "drlee", models.RoleFaculty)

	seedCourse(t, db, "CS101", &faculty.ID)
	seedCourse(t, db, "CS201", nil)
	math := models.Course{Title: "Calculus", Description: "d", Code: "MA101", Credit: 4, Semester: 2, IsActive: true}
	require.NoError(t, repo.Create(ctx, &math))

	mine, total, err := repo.List(ctx, CourseFilter{FacultyID: &faculty.ID})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "CS101", mine[0].Code)

	bySemester, total, err := repo.List(ctx, CourseFilter{Semester: 2})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "MA101", bySemester[0].Code)

	searched, _, err := repo.List(ctx, CourseFilter{Search: "calc"})
	require.NoError(t, err)
	require.Len(t, searched, 1)

	paged, total, err := repo.List(ctx, CourseFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, paged, 1)
	require.Equal(t, "MA101", paged[0].Code)
}

func TestEnrollmentRepositoryUniquePair(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEnrollmentRepository(db)
	ctx := context.Background()
	student := seedUser(t, db, "sam", models.RoleStudent)
	course := seedCourse(t, db, "CS101", nil)

	first := models.Enrollment{StudentID: student.ID, CourseID: course.ID, EnrolledAt: time.Now()}
	require.NoError(t, repo.Create(ctx, &first))

	exists, err := repo.Exists(ctx, student.ID, course.ID)
	require.NoError(t, err)
	require.True(t, exists)

	second := models.Enrollment{StudentID: student.ID, CourseID: course.ID, EnrolledAt: time.Now()}
	require.ErrorIs(t, repo.Create(ctx, &second), gorm.ErrDuplicatedKey)

	items, total, err := repo.List(ctx, EnrollmentFilter{StudentID: &student.ID})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "sam", items[0].Student.Username)
	require.Equal(t, "CS101", items[0].Course.Code)

	require.NoError(t, repo.Delete(ctx, first.ID))
	_, err = repo.GetByID(ctx, first.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestNotesRepositoryDownloadsAndTags(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotesRepository(db)
	ctx := context.Background()
	faculty := seedUser(t, db, "drlee", models.RoleFaculty)
	course := seedCourse(t, db, "CS101", &faculty.ID)

	notes := models.Notes{
		Title: "Week 1", FileName: "week1.pdf", FilePath: "uploads/week1.pdf", FileType: "application/pdf",
		FileSize: 1024, UploadedBy: faculty.ID, CourseID: course.ID, Tags: []string{"Intro", " intro ", "Basics"},
	}
	require.NoError(t, repo.Create(ctx, &notes))

	require.NoError(t, repo.IncrementDownloads(ctx, notes.ID))
	require.NoError(t, repo.IncrementDownloads(ctx, notes.ID))

	stored, err := repo.GetByID(ctx, notes.ID, false)
	require.NoError(t, err)
	require.Equal(t, int64(2), stored.DownloadCount)
	require.Equal(t, []string{"intro", "basics"}, stored.Tags)

	tagged, total, err := repo.List(ctx, NotesFilter{Tag: "BASICS"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, notes.ID, tagged[0].ID)

	_, total, err = repo.List(ctx, NotesFilter{Tag: "basic"})
	require.NoError(t, err)
	require.Zero(t, total, "tags match whole words only")

	updated, err := repo.Update(ctx, notes.ID, map[string]interface{}{"title": "Week 1 (rev)"})
	require.NoError(t, err)
	require.Equal(t, "Week 1 (rev)", updated.Title)
	require.Equal(t, []string{"intro", "basics"}, updated.Tags)
}

func TestAnnouncementAndEventFilters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	faculty := seedUser(t, db, "drlee", models.RoleFaculty)
	course := seedCourse(t, db, "CS101", &faculty.ID)

	announcements := NewAnnouncementRepository(db)
	global := models.Announcement{Title: "Welcome", Content: "hi", AnnouncementType: models.AnnouncementGeneral, CreatedBy: faculty.ID, IsActive: true}
	scoped := models.Announcement{Title: "Exam", Content: "soon", AnnouncementType: models.AnnouncementExam, CreatedBy: faculty.ID, CourseID: &course.ID, IsActive: true}
	require.NoError(t, announcements.Create(ctx, &global))
	require.NoError(t, announcements.Create(ctx, &scoped))

	items, total, err := announcements.List(ctx, AnnouncementFilter{CourseID: &course.ID})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "Exam", items[0].Title)
	require.NotNil(t, items[0].Course)
	require.Equal(t, "CS101", items[0].Course.Code)

	items, _, err = announcements.List(ctx, AnnouncementFilter{Type: models.AnnouncementGeneral})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "drlee", items[0].Creator.Username)

	events := NewEventRepository(db)
	now := time.Now()
	past := models.Event{Title: "Old", Description: "d", EventType: "seminar", EventDate: now.Add(-48 * time.Hour), Priority: models.PriorityLow, CreatedBy: faculty.ID, IsActive: true}
	future := models.Event{Title: "New", Description: "d", EventType: "exam", EventDate: now.Add(48 * time.Hour), Priority: models.PriorityHigh, CreatedBy: faculty.ID, IsActive: true}
	require.NoError(t, events.Create(ctx, &past))
	require.NoError(t, events.Create(ctx, &future))

	upcoming, total, err := events.List(ctx, EventFilter{From: &now})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "New", upcoming[0].Title)

	high, _, err := events.List(ctx, EventFilter{Priority: models.PriorityHigh})
	require.NoError(t, err)
	require.Len(t, high, 1)

	require.NoError(t, events.SoftDelete(ctx, future.ID))
	_, total, err = events.List(ctx, EventFilter{})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
}

func TestActivityLogRepositoryEnrichesActors(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityLogRepository(db)
	ctx := context.Background()
	admin := seedUser(t, db, "root", models.RoleAdmin)

	courseID := uint(5)
	require.NoError(t, repo.Create(ctx, &models.ActivityLog{ActorID: admin.ID, Action: models.ActionCreated, EntityType: models.EntityCourse, EntityID: &courseID, CreatedAt: time.Now().Add(-time.Minute)}))
	require.NoError(t, repo.Create(ctx, &models.ActivityLog{ActorID: 999, Action: models.ActionLogin, EntityType: models.EntityUser, CreatedAt: time.Now()}))

	entries, total, err := repo.List(ctx, ActivityLogFilter{PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, entries, 2)

	require.Equal(t, uint(999), entries[0].ActorID, "newest first")
	require.Nil(t, entries[0].ActorUsername)
	require.NotNil(t, entries[1].ActorUsername)
	require.Equal(t, "root", *entries[1].ActorUsername)
	require.Equal(t, models.RoleAdmin, *entries[1].ActorRole)

	history, total, err := repo.List(ctx, ActivityLogFilter{EntityType: models.EntityCourse, EntityID: &courseID})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, models.ActionCreated, history[0].Action)

	mine, total, err := repo.List(ctx, ActivityLogFilter{ActorID: &admin.ID, Page: 1, PageSize: 1})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, mine, 1)
}

func TestActivityLogRepositoryStatsAndPurge(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityLogRepository(db)
	ctx := context.Background()

	now := time.Now()
	old := now.Add(-100 * 24 * time.Hour)
	for _, entry := range []models.ActivityLog{
		{ActorID: 1, Action: models.ActionCreated, EntityType: models.EntityCourse, CreatedAt: old},
		{ActorID: 1, Action: models.ActionCreated, EntityType: models.EntityEvent, CreatedAt: now.Add(-time.Hour)},
		{ActorID: 1, Action: models.ActionLogin, EntityType: models.EntityUser, CreatedAt: now},
	} {
		entry := entry
		require.NoError(t, repo.Create(ctx, &entry))
	}

	stats, err := repo.Stats(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.Total)
	require.Equal(t, int64(2), stats.Since)
	require.Equal(t, ActivityCount{Label: models.ActionCreated, Total: 2}, stats.ByAction[0])
	require.Len(t, stats.ByEntityType, 3)

	deleted, err := repo.PurgeBefore(ctx, now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	deleted, err = repo.PurgeBefore(ctx, now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	require.Zero(t, deleted)
}
