package service

import (
	"context"
	"errors"
	"rbacgate/internal/rbac/model"
	"rbacgate/internal/rbac/repository"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_UnionAcrossGroups(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, code := range []string{"user.create", "user.view", "group.view", "group.delete"} {
		env.mustPermission(t, code, "")
	}
	a := env.mustGroup(t, "a", "user.create", "user.view")
	b := env.mustGroup(t, "b", "user.view", "group.view")
	env.mustUser(t, "u1")
	_, err := env.svc.SetGroupsForUser(ctx, admin, "u1", model.SetUserGroupsReq{GroupIDs: []string{a.ID, b.ID}})
	require.NoError(t, err)

	perms, err := NewResolver(env.repo).Resolve(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{
		"user.create": {},
		"user.view":   {},
		"group.view":  {},
	}, perms)
}

func TestResolve_SkipsInactive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.mustPermission(t, "a", "")
	env.mustPermission(t, "b", "")
	g1 := env.mustGroup(t, "g1", "a", "b")
	g2 := env.mustGroup(t, "g2", "b")
	env.mustUser(t, "u1")
	_, err := env.svc.SetGroupsForUser(ctx, admin, "u1", model.SetUserGroupsReq{GroupIDs: []string{g1.ID, g2.ID}})
	require.NoError(t, err)

	resolver := NewResolver(env.repo)

	_, err = env.svc.UpdatePermission(ctx, admin, "a", model.UpdatePermissionReq{IsActive: boolPtr(false)})
	require.NoError(t, err)
	perms, _ := resolver.Resolve(ctx, "u1")
	assert.Equal(t, map[string]struct{}{"b": {}}, perms)

	_, err = env.svc.UpdateGroup(ctx, admin, g1.ID, model.UpdateGroupReq{IsActive: boolPtr(false)})
	require.NoError(t, err)
	_, err = env.svc.UpdateGroup(ctx, admin, g2.ID, model.UpdateGroupReq{IsActive: boolPtr(false)})
	require.NoError(t, err)
	perms, _ = resolver.Resolve(ctx, "u1")
	assert.Empty(t, perms)
}

func TestResolve_UnknownUserIsEmpty(t *testing.T) {
	env := newTestEnv(t)

	perms, err := NewResolver(env.repo).Resolve(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, perms)
	assert.Empty(t, perms)
}

type failingSnapshotRepo struct {
	*repository.MemoryRepository
}

func (r failingSnapshotRepo) Snapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	return errors.New("store unavailable")
}

func TestResolve_StoreFailure(t *testing.T) {
	repo := failingSnapshotRepo{repository.NewMemoryRepository()}

	perms, err := NewResolver(repo).Resolve(context.Background(), "u1")
	assert.Error(t, err)
	assert.Nil(t, perms)
}
