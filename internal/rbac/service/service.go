package service

import (
	"context"
	"rbacgate/internal/rbac/audit"
	"rbacgate/internal/rbac/events"
	"rbacgate/internal/rbac/metrics"
	"rbacgate/internal/rbac/model"
	"rbacgate/internal/rbac/repository"

	"github.com/sirupsen/logrus"
)

type RBACService interface {
	// Permission catalog
	CreatePermission(ctx context.Context, actor model.Actor, req model.CreatePermissionReq) (*model.Permission, error)
	UpdatePermission(ctx context.Context, actor model.Actor, code string, req model.UpdatePermissionReq) (*model.Permission, error)
	DeletePermission(ctx context.Context, actor model.Actor, code string, force bool) error
	GetPermission(ctx context.Context, code string) (*model.Permission, error)
	ListPermissions(ctx context.Context, req model.ListPermissionsReq) (*model.ListPermissionsResp, error)
	PermissionTree(ctx context.Context) ([]*model.PermissionNode, error)
	ExpandCodes(ctx context.Context, codes []string) ([]string, error)
	// Groups
	CreateGroup(ctx context.Context, actor model.Actor, req model.CreateGroupReq) (*model.Group, error)
	UpdateGroup(ctx context.Context, actor model.Actor, id string, req model.UpdateGroupReq) (*model.Group, error)
	DeleteGroup(ctx context.Context, actor model.Actor, id string) error
	GetGroup(ctx context.Context, id string) (*model.Group, error)
	ListGroups(ctx context.Context, req model.ListGroupsReq) (*model.ListGroupsResp, error)
	SetGroupPermissions(ctx context.Context, actor model.Actor, groupID string, req model.SetGroupPermissionsReq) (*model.AssignmentDelta, error)
	GetGroupPermissions(ctx context.Context, groupID string) ([]string, error)
	// Users and memberships
	CreateUser(ctx context.Context, actor model.Actor, req model.CreateUserReq) (*model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	DeleteUser(ctx context.Context, actor model.Actor, id string) error
	SetGroupsForUser(ctx context.Context, actor model.Actor, userID string, req model.SetUserGroupsReq) (*model.AssignmentDelta, error)
	SetUsersForGroup(ctx context.Context, actor model.Actor, groupID string, req model.SetGroupUsersReq) (*model.AssignmentDelta, error)
	AddUserToGroup(ctx context.Context, actor model.Actor, userID, groupID string) error
	RemoveUserFromGroup(ctx context.Context, actor model.Actor, userID, groupID string) error
	GetUserGroups(ctx context.Context, userID string) ([]*model.Group, error)
	GetGroupUsers(ctx context.Context, groupID string) ([]*model.User, error)
}

type Config struct {
	// Reject grants of inactive permissions instead of storing them inert
	RequireActiveGrants bool
}

type Service struct {
	Repo   repository.RBACRepository
	Audit  audit.Recorder
	Bus    events.Bus
	Config Config

	// Optional; counts undelivered invalidation events
	Metrics *metrics.Metrics

	log *logrus.Logger
}

func NewService(repo repository.RBACRepository, recorder audit.Recorder, bus events.Bus, cfg Config, log *logrus.Logger) *Service {
	if bus == nil {
		bus = events.NewLocalBus()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{Repo: repo, Audit: recorder, Bus: bus, Config: cfg, log: log}
}
