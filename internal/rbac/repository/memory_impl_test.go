package repository

import (
	"context"
	"errors"
	"rbacgate/internal/rbac/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_PermissionCRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	require.NoError(t, repo.CreatePermission(ctx, &model.Permission{Code: "task.view", Name: "View", IsActive: true}))
	assert.ErrorIs(t, repo.CreatePermission(ctx, &model.Permission{Code: "task.view"}), ErrDuplicate)

	p, err := repo.GetPermission(ctx, "task.view")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "View", p.Name)
	assert.False(t, p.CreatedAt.IsZero())

	// Returned records are copies.
	p.Name = "mutated"
	again, _ := repo.GetPermission(ctx, "task.view")
	assert.Equal(t, "View", again.Name)

	missing, err := repo.GetPermission(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	assert.ErrorIs(t, repo.UpdatePermission(ctx, &model.Permission{Code: "nope"}), ErrNotFound)
	assert.ErrorIs(t, repo.DeletePermission(ctx, "nope"), ErrNotFound)
	require.NoError(t, repo.DeletePermission(ctx, "task.view"))
}

func TestMemoryRepository_ListPermissions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	for _, p := range []*model.Permission{
		{Code: "task", Name: "Tasks", IsActive: true},
		{Code: "task.view", Name: "View tasks", ParentCode: "task", IsActive: true},
		{Code: "task.edit", Name: "Edit tasks", ParentCode: "task", IsActive: false},
		{Code: "meeting.view", Name: "View meetings", IsActive: true},
	} {
		require.NoError(t, repo.CreatePermission(ctx, p))
	}

	all, total, err := repo.ListPermissions(ctx, model.PermissionFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Equal(t, "meeting.view", all[0].Code)

	active := true
	items, total, err := repo.ListPermissions(ctx, model.PermissionFilter{ParentCode: "task", IsActive: &active})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "task.view", items[0].Code)

	items, total, err = repo.ListPermissions(ctx, model.PermissionFilter{Search: "TASKS", Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, items, 1)
	assert.Equal(t, "task.view", items[0].Code)

	children, err := repo.FindChildCodes(ctx, "task")
	require.NoError(t, err)
	assert.Equal(t, []string{"task.edit", "task.view"}, children)

	require.NoError(t, repo.ClearParent(ctx, "task", "u1"))
	children, _ = repo.FindChildCodes(ctx, "task")
	assert.Empty(t, children)
}

func TestMemoryRepository_GroupCodeUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	require.NoError(t, repo.CreateGroup(ctx, &model.Group{ID: "g1", Code: "admin"}))
	assert.ErrorIs(t, repo.CreateGroup(ctx, &model.Group{ID: "g2", Code: "admin"}), ErrDuplicate)
}

func TestMemoryRepository_Relations(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	require.NoError(t, repo.AddGroupCodes(ctx, "g1", []string{"a", "b", "a"}, ""))
	require.NoError(t, repo.AddGroupCodes(ctx, "g2", []string{"b", "c"}, ""))

	codes, _ := repo.GetGroupCodes(ctx, "g1")
	assert.Equal(t, []string{"a", "b"}, codes)

	union, _ := repo.GetCodesForGroups(ctx, []string{"g1", "g2"})
	assert.Equal(t, []string{"a", "b", "c"}, union)

	granting, _ := repo.FindGroupsGrantingCode(ctx, "b")
	assert.Equal(t, []string{"g1", "g2"}, granting)

	require.NoError(t, repo.RemoveCodeFromAllGroups(ctx, "b"))
	granting, _ = repo.FindGroupsGrantingCode(ctx, "b")
	assert.Empty(t, granting)

	require.NoError(t, repo.AddMemberships(ctx, []model.UserGroup{
		{UserID: "u1", GroupID: "g1"},
		{UserID: "u2", GroupID: "g1"},
		{UserID: "u1", GroupID: "g2"},
	}))
	users, _ := repo.GetGroupUserIDs(ctx, "g1")
	assert.Equal(t, []string{"u1", "u2"}, users)

	detached, err := repo.DeleteMembershipsByGroup(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, detached)

	groups, _ := repo.GetUserGroupIDs(ctx, "u1")
	assert.Equal(t, []string{"g2"}, groups)
}

func TestMemoryRepository_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.CreateGroup(ctx, &model.Group{ID: "g1", Code: "ops"}))

	boom := errors.New("boom")
	err := repo.WithTx(ctx, func(ctx context.Context) error {
		require.NoError(t, repo.Lock(ctx, GroupLockKey("g1")))
		require.NoError(t, repo.AddGroupCodes(ctx, "g1", []string{"a"}, ""))
		require.NoError(t, repo.DeleteGroup(ctx, "g1"))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	g, _ := repo.GetGroup(ctx, "g1")
	assert.NotNil(t, g)
	codes, _ := repo.GetGroupCodes(ctx, "g1")
	assert.Empty(t, codes)
}

func TestMemoryRepository_WithTxActivityLog(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.CreateActivity(ctx, &model.ActivityRecord{ID: "before", Action: "create"}))

	err := repo.WithTx(ctx, func(ctx context.Context) error {
		require.NoError(t, repo.CreateActivity(ctx, &model.ActivityRecord{ID: "dropped", Action: "create"}))
		return errors.New("boom")
	})
	require.Error(t, err)

	require.NoError(t, repo.WithTx(ctx, func(ctx context.Context) error {
		return repo.CreateActivity(ctx, &model.ActivityRecord{ID: "kept", Action: "create"})
	}))
	require.NoError(t, repo.CreateActivity(ctx, &model.ActivityRecord{ID: "after", Action: "create"}))

	records, total, err := repo.FindActivities(ctx, model.ActivityFilter{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	assert.ElementsMatch(t, []string{"before", "kept", "after"}, ids)
}

func TestMemoryRepository_SnapshotIsReadOnly(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	err := repo.Snapshot(ctx, func(ctx context.Context) error {
		_, err := repo.AllPermissions(ctx)
		require.NoError(t, err)
		return repo.CreatePermission(ctx, &model.Permission{Code: "x"})
	})
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestMemoryRepository_FindActivities(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	actor := "u1"
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, rec := range []model.ActivityRecord{
		{ID: "1", ActorID: &actor, Action: "create", Resource: "group", ResourceID: "g1", Label: "create group", Status: "success"},
		{ID: "2", Action: "assign", Resource: "group", ResourceID: "g1", Label: "assign group", Status: "success"},
		{ID: "3", ActorID: &actor, Action: "delete", Resource: "permission", ResourceID: "task.view", Label: "delete permission", Status: "error"},
	} {
		rec := rec
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.CreateActivity(ctx, &rec))
	}

	all, total, err := repo.FindActivities(ctx, model.ActivityFilter{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Equal(t, "3", all[0].ID)
	assert.Equal(t, "1", all[2].ID)

	byActor, total, _ := repo.FindActivities(ctx, model.ActivityFilter{ActorID: "u1", Page: 1, Size: 10})
	assert.EqualValues(t, 2, total)
	assert.Equal(t, "3", byActor[0].ID)

	byText, total, _ := repo.FindActivities(ctx, model.ActivityFilter{Text: "ASSIGN", Page: 1, Size: 10})
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "2", byText[0].ID)

	start := base.Add(30 * time.Second)
	end := base.Add(90 * time.Second)
	window, total, _ := repo.FindActivities(ctx, model.ActivityFilter{StartTime: &start, EndTime: &end, Page: 1, Size: 10})
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "2", window[0].ID)
}
