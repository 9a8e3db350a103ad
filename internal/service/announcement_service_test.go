package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-api/internal/dto"
	"github.com/noah-isme/campus-api/internal/models"
)

func newAnnouncementService(env *testEnv) AnnouncementService {
	return NewAnnouncementService(env.announcements, env.courses, env.policy, env.validate, env.activity, env.logger)
}

func TestAnnouncementServiceSanitizesContent(t *testing.T) {
	env := newTestEnv(t)
	svc := newAnnouncementService(env)
	faculty := env.seedUser(t, "prof", models.RoleFaculty)
	course := env.seedCourse(t, "CS101", &faculty)

	created, err := svc.Create(context.Background(), callerOf(faculty), dto.AnnouncementCreateRequest{
		Title:    "<em>Quiz</em> moved",
		Content:  `<p>See <a href="https://campus.test">portal</a></p><script>alert(1)</script>`,
		CourseID: &course.ID,
	})
	require.NoError(t, err)
	require.Equal(t, "Quiz moved", created.Title)
	require.NotContains(t, created.Content, "<script>")
	require.Contains(t, created.Content, "<p>See")
	require.Equal(t, models.AnnouncementGeneral, created.AnnouncementType)
	require.Equal(t, "CS101", created.CourseCode)
	require.Equal(t, "prof", created.CreatorUsername)
}

func TestAnnouncementServiceOwnershipAndVisibility(t *testing.T) {
	env := newTestEnv(t)
	svc := newAnnouncementService(env)
	admin := env.seedUser(t, "admin", models.RoleAdmin)
	f1 := env.seedUser(t, "prof1", models.RoleFaculty)
	f2 := env.seedUser(t, "prof2", models.RoleFaculty)
	student := env.seedUser(t, "stud", models.RoleStudent)
	ctx := context.Background()

	created, err := svc.Create(ctx, callerOf(f1), dto.AnnouncementCreateRequest{Title: "Holiday", Content: "Campus closed", AnnouncementType: "urgent"})
	require.NoError(t, err)
	require.Nil(t, created.CourseID)

	_, err = svc.Create(ctx, callerOf(student), dto.AnnouncementCreateRequest{Title: "Hi", Content: "Hello"})
	requireKind(t, err, ErrForbidden, "")

	content := "Changed"
	_, err = svc.Update(ctx, callerOf(f2), created.ID, dto.AnnouncementUpdateRequest{Content: &content})
	requireKind(t, err, ErrForbidden, "")

	updated, err := svc.Update(ctx, callerOf(f1), created.ID, dto.AnnouncementUpdateRequest{Content: &content})
	require.NoError(t, err)
	require.Equal(t, "Changed", updated.Content)

	got, err := svc.Get(ctx, callerOf(student), created.ID)
	require.NoError(t, err)
	require.Equal(t, "Holiday", got.Title)

	require.NoError(t, svc.Delete(ctx, callerOf(admin), created.ID))
	_, err = svc.Get(ctx, callerOf(student), created.ID)
	requireKind(t, err, ErrNotFound, "Announcement not found!")

	list, err := svc.List(ctx, callerOf(student), dto.AnnouncementListRequest{Type: "urgent"})
	require.NoError(t, err)
	require.Empty(t, list.Items)
}

func TestAnnouncementServiceRejectsInactiveCourse(t *testing.T) {
	env := newTestEnv(t)
	svc := newAnnouncementService(env)
	admin := env.seedUser(t, "admin", models.RoleAdmin)
	course := env.seedCourse(t, "CS101", nil)
	require.NoError(t, env.courses.SoftDelete(context.Background(), course.ID))

	_, err := svc.Create(context.Background(), callerOf(admin), dto.AnnouncementCreateRequest{Title: "Exam", Content: "Room 4", CourseID: &course.ID})
	requireKind(t, err, ErrNotFound, "Course not found!")
}

func TestAnnouncementServiceUpdateRejectsBlankAfterSanitizing(t *testing.T) {
	env := newTestEnv(t)
	svc := newAnnouncementService(env)
	faculty := env.seedUser(t, "prof", models.RoleFaculty)
	ctx := context.Background()

	created, err := svc.Create(ctx, callerOf(faculty), dto.AnnouncementCreateRequest{Title: "Exam room", Content: "Room 12"})
	require.NoError(t, err)

	markup := "<i></i>"
	_, err = svc.Update(ctx, callerOf(faculty), created.ID, dto.AnnouncementUpdateRequest{Title: &markup})
	requireKind(t, err, ErrValidation, "Title must not be empty")

	spaces := "  "
	_, err = svc.Update(ctx, callerOf(faculty), created.ID, dto.AnnouncementUpdateRequest{Content: &spaces})
	requireKind(t, err, ErrValidation, "Announcement content must not be empty")

	got, err := svc.Get(ctx, callerOf(faculty), created.ID)
	require.NoError(t, err)
	require.Equal(t, "Exam room", got.Title)
	require.Equal(t, "Room 12", got.Content)
}
