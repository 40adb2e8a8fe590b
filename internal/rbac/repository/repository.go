package repository

import (
	"context"
	"errors"
	"rbacgate/internal/rbac/model"
)

var (
	ErrDuplicate = errors.New("duplicate record")
	ErrNotFound  = errors.New("record not found")
	ErrReadOnly  = errors.New("write attempted inside read-only snapshot")
)

// Lock keys for Store.Lock
const (
	LockCatalog = "catalog"
)

func GroupLockKey(groupID string) string { return "group:" + groupID }
func UserLockKey(userID string) string   { return "user:" + userID }
func PermissionLockKey(code string) string {
	return "permission:" + code
}

// RBACRepository owns permissions, groups, users and the two assignment
// relations behind a single transactional boundary.
//
// Getters return (nil, nil) when the record does not exist.
type RBACRepository interface {
	// Initialize Indexes
	EnsureIndexes(ctx context.Context) error
	// Run fn in one transaction; fn must use the ctx it is given
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// Run read-only fn against one consistent view
	Snapshot(ctx context.Context, fn func(ctx context.Context) error) error
	// Take a logical row lock inside WithTx; held until the transaction ends
	Lock(ctx context.Context, key string) error

	// Permission catalog
	CreatePermission(ctx context.Context, p *model.Permission) error
	GetPermission(ctx context.Context, code string) (*model.Permission, error)
	GetPermissions(ctx context.Context, codes []string) ([]*model.Permission, error)
	UpdatePermission(ctx context.Context, p *model.Permission) error
	DeletePermission(ctx context.Context, code string) error
	ListPermissions(ctx context.Context, filter model.PermissionFilter) ([]*model.Permission, int64, error)
	AllPermissions(ctx context.Context) ([]*model.Permission, error)
	FindChildCodes(ctx context.Context, parentCode string) ([]string, error)
	// Promote every child of parentCode to a root
	ClearParent(ctx context.Context, parentCode, updatedBy string) error

	// Groups
	CreateGroup(ctx context.Context, g *model.Group) error
	GetGroup(ctx context.Context, id string) (*model.Group, error)
	GetGroups(ctx context.Context, ids []string) ([]*model.Group, error)
	UpdateGroup(ctx context.Context, g *model.Group) error
	DeleteGroup(ctx context.Context, id string) error
	ListGroups(ctx context.Context, filter model.GroupFilter) ([]*model.Group, int64, error)

	// Group -> permission relation
	GetGroupCodes(ctx context.Context, groupID string) ([]string, error)
	GetCodesForGroups(ctx context.Context, groupIDs []string) ([]string, error)
	AddGroupCodes(ctx context.Context, groupID string, codes []string, createdBy string) error
	RemoveGroupCodes(ctx context.Context, groupID string, codes []string) error
	DeleteGroupCodesByGroup(ctx context.Context, groupID string) ([]string, error)
	FindGroupsGrantingCode(ctx context.Context, code string) ([]string, error)
	RemoveCodeFromAllGroups(ctx context.Context, code string) error

	// Users
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUsers(ctx context.Context, ids []string) ([]*model.User, error)
	DeleteUser(ctx context.Context, id string) error

	// User -> group relation
	GetUserGroupIDs(ctx context.Context, userID string) ([]string, error)
	GetGroupUserIDs(ctx context.Context, groupID string) ([]string, error)
	AddMemberships(ctx context.Context, rows []model.UserGroup) error
	RemoveMemberships(ctx context.Context, rows []model.UserGroup) error
	DeleteMembershipsByUser(ctx context.Context, userID string) ([]string, error)
	DeleteMembershipsByGroup(ctx context.Context, groupID string) ([]string, error)
}
