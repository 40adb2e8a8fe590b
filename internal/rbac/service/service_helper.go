package service

import (
	"context"
	"errors"
	"fmt"
	"rbacgate/internal/rbac/audit"
	"rbacgate/internal/rbac/events"
	"rbacgate/internal/rbac/model"
	"sort"

	"github.com/sirupsen/logrus"
)

// validationError turns a request validation failure into a service error.
func validationError(err error) error {
	var detail *model.ErrorDetail
	if errors.As(err, &detail) {
		if detail.Code == "invalid_code_format" {
			return fmt.Errorf("%w: %s", ErrInvalidCodeFormat, detail.Message)
		}
		return fmt.Errorf("%w: %s", ErrBadRequest, detail.Message)
	}
	return fmt.Errorf("%w: %s", ErrBadRequest, err.Error())
}

// isDomainError reports whether err is a validation or conflict outcome
// rather than an infrastructure failure.
func isDomainError(err error) bool {
	for _, target := range []error{
		ErrBadRequest, ErrNotFound, ErrInvalidCodeFormat, ErrDuplicateCode, ErrDuplicateUser,
		ErrInvalidParent, ErrInUse, ErrUnknownPermission, ErrUnknownGroup, ErrUnknownUser,
		ErrInactivePermission,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *Service) record(ctx context.Context, actor model.Actor, action, resource, resourceID string, details map[string]interface{}) {
	if s.Audit == nil {
		return
	}
	s.Audit.Record(ctx, audit.Entry{
		Actor:      actor,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    details,
	})
}

// fail records a rejected mutation with status=error and returns err.
// Infrastructure failures are only logged.
func (s *Service) fail(ctx context.Context, actor model.Actor, action, resource, resourceID string, err error) error {
	if !isDomainError(err) {
		s.log.WithError(err).WithFields(logrus.Fields{
			"action":      action,
			"resource":    resource,
			"resource_id": resourceID,
		}).Error("mutation failed")
		return err
	}
	if s.Audit != nil {
		details := map[string]interface{}{"error": err.Error()}
		var inUse *InUseError
		if errors.As(err, &inUse) {
			details["groups"] = inUse.Groups
			details["children"] = inUse.Children
		}
		var refs *UnknownRefsError
		if errors.As(err, &refs) {
			details["refs"] = refs.Refs
		}
		s.Audit.Record(ctx, audit.Entry{
			Actor:      actor,
			Action:     action,
			Resource:   resource,
			ResourceID: resourceID,
			Details:    details,
			Status:     model.StatusError,
		})
	}
	return err
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if err := s.Bus.Publish(ctx, ev); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"kind":   ev.Kind,
			"reason": ev.Reason,
		}).Warn("invalidation event not delivered to peers")
		if s.Metrics != nil {
			s.Metrics.EventPublishFailures.Inc()
		}
	}
}

// normalizeSet drops empties and duplicates and sorts.
func normalizeSet(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// diffSets returns desired minus current and current minus desired, sorted.
func diffSets(current, desired []string) (added, removed []string) {
	cur := make(map[string]struct{}, len(current))
	for _, v := range current {
		cur[v] = struct{}{}
	}
	want := make(map[string]struct{}, len(desired))
	for _, v := range desired {
		want[v] = struct{}{}
	}

	added = []string{}
	removed = []string{}
	for v := range want {
		if _, ok := cur[v]; !ok {
			added = append(added, v)
		}
	}
	for v := range cur {
		if _, ok := want[v]; !ok {
			removed = append(removed, v)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

// missing returns the wanted values absent from have, sorted.
func missing(want []string, have map[string]struct{}) []string {
	out := []string{}
	for _, v := range want {
		if _, ok := have[v]; !ok {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func deltaDetails(d *model.AssignmentDelta) map[string]interface{} {
	return map[string]interface{}{
		"added":   d.Added,
		"removed": d.Removed,
	}
}
