package service

import (
	"context"
	"errors"
	"rbacgate/internal/rbac/events"
	"rbacgate/internal/rbac/metrics"
	"rbacgate/internal/rbac/model"
	"rbacgate/internal/rbac/repository"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// peerlessBus delivers locally but never reaches peers.
type peerlessBus struct {
	*events.LocalBus
}

func (b peerlessBus) Publish(ctx context.Context, ev events.Event) error {
	_ = b.LocalBus.Publish(ctx, ev)
	return errors.New("redis publish failed: connection refused")
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	ctx := context.Background()
	logger, hook := test.NewNullLogger()
	m := metrics.NewMetrics(nil)

	repo := repository.NewMemoryRepository()
	svc := NewService(repo, nil, peerlessBus{events.NewLocalBus()}, Config{}, logger)
	svc.Metrics = m

	_, err := svc.CreateUser(ctx, admin, model.CreateUserReq{ID: "u1"})
	require.NoError(t, err)
	g, err := svc.CreateGroup(ctx, admin, model.CreateGroupReq{Code: "ops", Name: "Ops"})
	require.NoError(t, err)

	require.NoError(t, svc.AddUserToGroup(ctx, admin, "u1", g.ID))

	ids, err := repo.GetUserGroupIDs(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{g.ID}, ids)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventPublishFailures))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}
