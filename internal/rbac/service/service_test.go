package service

import (
	"context"
	"rbacgate/internal/rbac/audit"
	"rbacgate/internal/rbac/events"
	"rbacgate/internal/rbac/model"
	"rbacgate/internal/rbac/repository"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	svc   *Service
	repo  *repository.MemoryRepository
	audit *audit.Logger

	mu     sync.Mutex
	events []events.Event
}

var admin = model.Actor{UserID: "admin", IPAddress: "127.0.0.1", Method: "POST", Path: "/test"}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	repo := repository.NewMemoryRepository()
	bus := events.NewLocalBus()
	env := &testEnv{
		repo:  repo,
		audit: audit.NewLogger(repo, time.Second, logger, nil),
	}
	bus.Subscribe(func(ev events.Event) {
		env.mu.Lock()
		defer env.mu.Unlock()
		env.events = append(env.events, ev)
	})
	env.svc = NewService(repo, env.audit, bus, Config{}, logger)
	return env
}

func (e *testEnv) activities(t *testing.T, filter model.QueryActivitiesReq) []*model.ActivityRecord {
	t.Helper()
	resp, err := e.audit.Query(context.Background(), filter)
	require.NoError(t, err)
	return resp.Data
}

func (e *testEnv) mustPermission(t *testing.T, code, parent string) *model.Permission {
	t.Helper()
	p, err := e.svc.CreatePermission(context.Background(), admin, model.CreatePermissionReq{
		Code:       code,
		Name:       code,
		ParentCode: parent,
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) mustGroup(t *testing.T, code string, codes ...string) *model.Group {
	t.Helper()
	g, err := e.svc.CreateGroup(context.Background(), admin, model.CreateGroupReq{Code: code, Name: code})
	require.NoError(t, err)
	if len(codes) > 0 {
		_, err = e.svc.SetGroupPermissions(context.Background(), admin, g.ID, model.SetGroupPermissionsReq{Codes: codes})
		require.NoError(t, err)
	}
	return g
}

func (e *testEnv) mustUser(t *testing.T, id string) *model.User {
	t.Helper()
	u, err := e.svc.CreateUser(context.Background(), admin, model.CreateUserReq{ID: id})
	require.NoError(t, err)
	return u
}

func boolPtr(b bool) *bool { return &b }
func strPtr(s string) *string { return &s }
