package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-api/internal/dto"
	"github.com/noah-isme/campus-api/internal/models"
)

func newUserService(env *testEnv) UserService {
	return NewUserService(env.users, env.policy, env.validate, env.activity, env.logger)
}

func TestUserServiceAdminOnlyManagement(t *testing.T) {
	env := newTestEnv(t)
	svc := newUserService(env)
	admin := env.seedUser(t, "admin", models.RoleAdmin)
	faculty := env.seedUser(t, "prof", models.RoleFaculty)
	student := env.seedUser(t, "stud", models.RoleStudent)
	ctx := context.Background()

	list, err := svc.List(ctx, callerOf(admin), dto.UserListRequest{Role: "student"})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, student.ID, list.Items[0].ID)

	_, err = svc.List(ctx, callerOf(faculty), dto.UserListRequest{})
	requireKind(t, err, ErrForbidden, "")

	self, err := svc.Get(ctx, callerOf(student), student.ID)
	require.NoError(t, err)
	require.Equal(t, "stud", self.Username)

	_, err = svc.Get(ctx, callerOf(student), faculty.ID)
	requireKind(t, err, ErrForbidden, "")

	_, err = svc.Get(ctx, callerOf(admin), 404)
	requireKind(t, err, ErrNotFound, "User not found!")
}

func TestUserServiceUpdateConflicts(t *testing.T) {
	env := newTestEnv(t)
	svc := newUserService(env)
	admin := env.seedUser(t, "admin", models.RoleAdmin)
	student := env.seedUser(t, "stud", models.RoleStudent)
	ctx := context.Background()

	taken := admin.Email
	_, err := svc.Update(ctx, callerOf(admin), student.ID, dto.UserUpdateRequest{Email: &taken})
	requireKind(t, err, ErrConflict, "Username or email already exists!")

	username := "student-one"
	updated, err := svc.Update(ctx, callerOf(admin), student.ID, dto.UserUpdateRequest{Username: &username})
	require.NoError(t, err)
	require.Equal(t, "student-one", updated.Username)
	require.Equal(t, models.RoleStudent, updated.Role)

	rows := env.auditRows(t, models.ActionUpdated, models.EntityUser)
	require.Len(t, rows, 1)
	require.Equal(t, []interface{}{"username"}, rows[0].Metadata["fields"])
}

func TestUserServiceDeleteKeepsAuditTrail(t *testing.T) {
	env := newTestEnv(t)
	svc := newUserService(env)
	admin := env.seedUser(t, "admin", models.RoleAdmin)
	student := env.seedUser(t, "stud", models.RoleStudent)
	ctx := context.Background()

	env.activity.Append(ctx, callerOf(student).entry(models.ActionLogin, models.EntityUser, uintPtr(student.ID), "login"))

	requireKind(t, svc.Delete(ctx, callerOf(admin), admin.ID), ErrValidation, "")
	requireKind(t, svc.Delete(ctx, callerOf(student), admin.ID), ErrForbidden, "")

	require.NoError(t, svc.Delete(ctx, callerOf(admin), student.ID))
	_, err := env.users.GetByID(ctx, student.ID)
	require.Error(t, err)

	history, err := env.activity.ListByEntity(ctx, models.EntityUser, student.ID, dto.ActivityListRequest{})
	require.NoError(t, err)
	require.Len(t, history.Items, 2)
	for _, item := range history.Items {
		if item.ActorID == student.ID {
			require.Equal(t, dto.UnknownActor, item.ActorUsername)
		}
	}
}
