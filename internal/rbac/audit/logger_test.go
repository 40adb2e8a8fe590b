package audit

import (
	"context"
	"errors"
	"rbacgate/internal/rbac/metrics"
	"rbacgate/internal/rbac/model"
	"rbacgate/internal/rbac/repository"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockActivityRepository struct {
	mock.Mock
}

func (m *MockActivityRepository) EnsureActivityIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockActivityRepository) CreateActivity(ctx context.Context, record *model.ActivityRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockActivityRepository) FindActivities(ctx context.Context, filter model.ActivityFilter) ([]*model.ActivityRecord, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*model.ActivityRecord), args.Get(1).(int64), args.Error(2)
}

func TestRecord_WritesRecordWithProvenance(t *testing.T) {
	repo := repository.NewMemoryRepository()
	l := NewLogger(repo, time.Second, nil, nil)

	l.Record(context.Background(), Entry{
		Actor:      model.Actor{UserID: "u1", IPAddress: "10.0.0.1", Method: "PUT", Path: "/api/v1/groups/g1/permissions"},
		Action:     model.ActionAssign,
		Resource:   model.ResourceGroup,
		ResourceID: "g1",
		Details:    map[string]interface{}{"added": []string{"a"}, "removed": []string{}},
	})

	resp, err := l.Query(context.Background(), model.QueryActivitiesReq{})
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)

	rec := resp.Data[0]
	assert.NotEmpty(t, rec.ID)
	require.NotNil(t, rec.ActorID)
	assert.Equal(t, "u1", *rec.ActorID)
	assert.Equal(t, "assign group", rec.Label)
	assert.Equal(t, model.StatusSuccess, rec.Status)
	assert.Equal(t, "10.0.0.1", rec.IPAddress)
	assert.Equal(t, time.UTC, rec.CreatedAt.Location())
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 100, resp.Size)
}

func TestRecord_SystemActorHasNoActorID(t *testing.T) {
	repo := repository.NewMemoryRepository()
	l := NewLogger(repo, time.Second, nil, nil)

	l.Record(context.Background(), Entry{Actor: model.SystemActor, Action: model.ActionCreate, Resource: model.ResourcePermission, ResourceID: "task.view"})

	resp, err := l.Query(context.Background(), model.QueryActivitiesReq{})
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Nil(t, resp.Data[0].ActorID)
}

func TestRecord_SurvivesCancelledRequestContext(t *testing.T) {
	repo := repository.NewMemoryRepository()
	l := NewLogger(repo, time.Second, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l.Record(ctx, Entry{Action: model.ActionDelete, Resource: model.ResourceGroup, ResourceID: "g1"})

	_, total, err := repo.FindActivities(context.Background(), model.ActivityFilter{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestRecord_FailureIsReportedNotReturned(t *testing.T) {
	repo := new(MockActivityRepository)
	repo.On("CreateActivity", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	logger, hook := test.NewNullLogger()
	m := metrics.NewMetrics(nil)
	l := NewLogger(repo, time.Second, logger, m)

	var failed *model.ActivityRecord
	l.OnFailure = func(record *model.ActivityRecord, err error) {
		failed = record
		assert.EqualError(t, err, "disk full")
	}

	l.Record(context.Background(), Entry{
		Actor:      model.Actor{UserID: "u1"},
		Action:     model.ActionDelete,
		Resource:   model.ResourcePermission,
		ResourceID: "task.view",
	})

	require.NotNil(t, failed)
	assert.Equal(t, "task.view", failed.ResourceID)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AuditWriteFailuresTotal))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "task.view", entry.Data["resource_id"])
	repo.AssertExpectations(t)
}

func TestRecord_RejectsUnknownAction(t *testing.T) {
	repo := new(MockActivityRepository)
	l := NewLogger(repo, time.Second, nil, nil)

	var called bool
	l.OnFailure = func(*model.ActivityRecord, error) { called = true }
	l.Record(context.Background(), Entry{Action: "explode", Resource: model.ResourceGroup})

	assert.True(t, called)
	repo.AssertNotCalled(t, "CreateActivity", mock.Anything, mock.Anything)
}

func TestQuery_ValidatesAndFilters(t *testing.T) {
	repo := repository.NewMemoryRepository()
	l := NewLogger(repo, time.Second, nil, nil)
	ctx := context.Background()

	l.Record(ctx, Entry{Actor: model.Actor{UserID: "u1"}, Action: model.ActionCreate, Resource: model.ResourceGroup, ResourceID: "g1"})
	l.Record(ctx, Entry{Actor: model.Actor{UserID: "u2"}, Action: model.ActionCreate, Resource: model.ResourcePermission, ResourceID: "task.view"})
	l.Record(ctx, Entry{Actor: model.Actor{UserID: "u1"}, Action: model.ActionDelete, Resource: model.ResourceGroup, ResourceID: "g1", Status: model.StatusError})

	resp, err := l.Query(ctx, model.QueryActivitiesReq{ActorID: "u1", Resource: "GROUP"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, resp.TotalCount)

	resp, err = l.Query(ctx, model.QueryActivitiesReq{Status: "error"})
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, model.ActionDelete, resp.Data[0].Action)

	resp, err = l.Query(ctx, model.QueryActivitiesReq{Q: "permission"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, resp.TotalCount)

	_, err = l.Query(ctx, model.QueryActivitiesReq{Action: "explode"})
	var detail *model.ErrorDetail
	require.ErrorAs(t, err, &detail)
	assert.Equal(t, "bad_request", detail.Code)
}
