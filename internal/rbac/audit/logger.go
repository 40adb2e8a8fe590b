package audit

import (
	"context"
	"fmt"
	"rbacgate/internal/rbac/metrics"
	"rbacgate/internal/rbac/model"
	"rbacgate/internal/rbac/repository"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const DefaultTimeout = 3 * time.Second

// Entry describes one mutation to be recorded.
type Entry struct {
	Actor      model.Actor
	Action     string
	Resource   string
	ResourceID string
	Details    map[string]interface{}
	// Status defaults to success
	Status string
}

// Recorder is what mutating services depend on.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Logger writes activity records. A failed write never propagates to the
// mutation that triggered it; it is logged, counted and handed to OnFailure.
type Logger struct {
	repo    repository.ActivityRepository
	timeout time.Duration
	log     *logrus.Logger
	metrics *metrics.Metrics

	// OnFailure is called with the record that could not be written
	OnFailure func(record *model.ActivityRecord, err error)

	now func() time.Time
}

func NewLogger(repo repository.ActivityRepository, timeout time.Duration, log *logrus.Logger, m *metrics.Metrics) *Logger {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if m == nil {
		m = metrics.NewMetrics(nil)
	}
	return &Logger{
		repo:    repo,
		timeout: timeout,
		log:     log,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Record builds the activity record and writes it synchronously. The write
// is bounded by the logger timeout and survives cancellation of ctx.
func (l *Logger) Record(ctx context.Context, e Entry) {
	record := l.build(e)

	if !model.AllowedActions[record.Action] || !model.AllowedResources[record.Resource] {
		l.fail(record, fmt.Errorf("unsupported action/resource %q/%q", record.Action, record.Resource))
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()

	if err := l.repo.CreateActivity(writeCtx, record); err != nil {
		l.fail(record, err)
		return
	}
	l.metrics.AuditWritesTotal.Inc()
}

func (l *Logger) build(e Entry) *model.ActivityRecord {
	status := e.Status
	if status == "" {
		status = model.StatusSuccess
	}

	record := &model.ActivityRecord{
		ID:         uuid.NewString(),
		Action:     e.Action,
		Resource:   e.Resource,
		ResourceID: e.ResourceID,
		Details:    e.Details,
		Status:     status,
		Label:      e.Action + " " + e.Resource,
		IPAddress:  e.Actor.IPAddress,
		Method:     e.Actor.Method,
		Path:       e.Actor.Path,
		CreatedAt:  l.now(),
	}
	if e.Actor.UserID != "" {
		actorID := e.Actor.UserID
		record.ActorID = &actorID
	}
	return record
}

func (l *Logger) fail(record *model.ActivityRecord, err error) {
	l.metrics.AuditWriteFailuresTotal.Inc()

	actor := ""
	if record.ActorID != nil {
		actor = *record.ActorID
	}
	l.log.WithError(err).WithFields(logrus.Fields{
		"activity_id": record.ID,
		"actor_id":    actor,
		"action":      record.Action,
		"resource":    record.Resource,
		"resource_id": record.ResourceID,
		"status":      record.Status,
		"details":     record.Details,
		"ip_address":  record.IPAddress,
		"method":      record.Method,
		"path":        record.Path,
		"created_at":  record.CreatedAt,
	}).Error("audit write failed")

	if l.OnFailure != nil {
		l.OnFailure(record, err)
	}
}

// Query returns activity records newest first.
func (l *Logger) Query(ctx context.Context, req model.QueryActivitiesReq) (*model.QueryActivitiesResp, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	data, total, err := l.repo.FindActivities(ctx, req.Filter())
	if err != nil {
		return nil, err
	}

	return &model.QueryActivitiesResp{
		Data:       data,
		Page:       req.Page,
		Size:       req.Size,
		TotalCount: total,
	}, nil
}
