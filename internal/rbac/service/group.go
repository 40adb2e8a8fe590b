package service

import (
	"context"
	"errors"
	"fmt"
	"rbacgate/internal/rbac/events"
	"rbacgate/internal/rbac/model"
	"rbacgate/internal/rbac/repository"

	"github.com/google/uuid"
)

func (s *Service) CreateGroup(ctx context.Context, actor model.Actor, req model.CreateGroupReq) (*model.Group, error) {
	if err := req.Validate(); err != nil {
		return nil, s.fail(ctx, actor, model.ActionCreate, model.ResourceGroup, req.Code, validationError(err))
	}

	g := &model.Group{
		ID:          uuid.NewString(),
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.Active(),
		CreatedBy:   actor.UserID,
		UpdatedBy:   actor.UserID,
	}
	if err := s.Repo.CreateGroup(ctx, g); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			err = fmt.Errorf("%w: %s", ErrDuplicateCode, req.Code)
		}
		return nil, s.fail(ctx, actor, model.ActionCreate, model.ResourceGroup, req.Code, err)
	}

	s.record(ctx, actor, model.ActionCreate, model.ResourceGroup, g.ID, map[string]interface{}{
		"code":      g.Code,
		"name":      g.Name,
		"is_active": g.IsActive,
	})
	return g, nil
}

func (s *Service) UpdateGroup(ctx context.Context, actor model.Actor, id string, req model.UpdateGroupReq) (*model.Group, error) {
	if err := req.Validate(); err != nil {
		return nil, s.fail(ctx, actor, model.ActionUpdate, model.ResourceGroup, id, validationError(err))
	}

	var (
		updated       *model.Group
		changes       map[string]interface{}
		activeChanged bool
	)
	err := s.Repo.WithTx(ctx, func(ctx context.Context) error {
		if err := s.Repo.Lock(ctx, repository.GroupLockKey(id)); err != nil {
			return err
		}
		g, err := s.Repo.GetGroup(ctx, id)
		if err != nil {
			return err
		}
		if g == nil {
			return fmt.Errorf("%w: group %s", ErrNotFound, id)
		}

		changes = map[string]interface{}{}
		activeChanged = false
		if req.Name != nil && *req.Name != g.Name {
			changes["name"] = change(g.Name, *req.Name)
			g.Name = *req.Name
		}
		if req.Description != nil && *req.Description != g.Description {
			changes["description"] = change(g.Description, *req.Description)
			g.Description = *req.Description
		}
		if req.IsActive != nil && *req.IsActive != g.IsActive {
			changes["is_active"] = change(g.IsActive, *req.IsActive)
			g.IsActive = *req.IsActive
			activeChanged = true
		}
		g.UpdatedBy = actor.UserID

		if err := s.Repo.UpdateGroup(ctx, g); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: group %s", ErrNotFound, id)
			}
			return err
		}
		updated = g
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, actor, model.ActionUpdate, model.ResourceGroup, id, err)
	}

	if activeChanged {
		s.publish(ctx, events.PurgeAll("group_active_changed"))
	}
	s.record(ctx, actor, model.ActionUpdate, model.ResourceGroup, id, map[string]interface{}{
		"code":    updated.Code,
		"changes": changes,
	})
	return updated, nil
}

// DeleteGroup removes the group together with its grants and memberships.
func (s *Service) DeleteGroup(ctx context.Context, actor model.Actor, id string) error {
	var (
		group   *model.Group
		codes   []string
		userIDs []string
	)
	err := s.Repo.WithTx(ctx, func(ctx context.Context) error {
		if err := s.Repo.Lock(ctx, repository.GroupLockKey(id)); err != nil {
			return err
		}
		g, err := s.Repo.GetGroup(ctx, id)
		if err != nil {
			return err
		}
		if g == nil {
			return fmt.Errorf("%w: group %s", ErrNotFound, id)
		}

		detachedCodes, err := s.Repo.DeleteGroupCodesByGroup(ctx, id)
		if err != nil {
			return err
		}
		detachedUsers, err := s.Repo.DeleteMembershipsByGroup(ctx, id)
		if err != nil {
			return err
		}
		if err := s.Repo.DeleteGroup(ctx, id); err != nil {
			return err
		}
		group, codes, userIDs = g, detachedCodes, detachedUsers
		return nil
	})
	if err != nil {
		return s.fail(ctx, actor, model.ActionDelete, model.ResourceGroup, id, err)
	}

	s.publish(ctx, events.PurgeAll("group_deleted"))
	s.record(ctx, actor, model.ActionDelete, model.ResourceGroup, id, map[string]interface{}{
		"code":           group.Code,
		"detached_codes": emptyIfNil(codes),
		"detached_users": emptyIfNil(userIDs),
	})
	return nil
}

func (s *Service) GetGroup(ctx context.Context, id string) (*model.Group, error) {
	g, err := s.Repo.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("%w: group %s", ErrNotFound, id)
	}
	return g, nil
}

func (s *Service) ListGroups(ctx context.Context, req model.ListGroupsReq) (*model.ListGroupsResp, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	data, total, err := s.Repo.ListGroups(ctx, req.Filter())
	if err != nil {
		return nil, err
	}

	return &model.ListGroupsResp{
		Data:       data,
		Page:       req.Page,
		Limit:      req.Limit,
		TotalCount: total,
	}, nil
}

// SetGroupPermissions replaces the group's permission set. Only the
// difference is written; concurrent calls for one group are serialized.
func (s *Service) SetGroupPermissions(ctx context.Context, actor model.Actor, groupID string, req model.SetGroupPermissionsReq) (*model.AssignmentDelta, error) {
	if err := req.Validate(); err != nil {
		return nil, s.fail(ctx, actor, model.ActionAssign, model.ResourceGroup, groupID, validationError(err))
	}
	desired := normalizeSet(req.Codes)

	var delta *model.AssignmentDelta
	err := s.Repo.WithTx(ctx, func(ctx context.Context) error {
		if err := s.Repo.Lock(ctx, repository.GroupLockKey(groupID)); err != nil {
			return err
		}
		g, err := s.Repo.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if g == nil {
			return fmt.Errorf("%w: group %s", ErrNotFound, groupID)
		}

		perms, err := s.Repo.GetPermissions(ctx, desired)
		if err != nil {
			return err
		}
		known := make(map[string]struct{}, len(perms))
		var inactive []string
		for _, p := range perms {
			known[p.Code] = struct{}{}
			if !p.IsActive {
				inactive = append(inactive, p.Code)
			}
		}
		if unknown := missing(desired, known); len(unknown) > 0 {
			return &UnknownRefsError{Err: ErrUnknownPermission, Refs: unknown}
		}
		if s.Config.RequireActiveGrants && len(inactive) > 0 {
			return &UnknownRefsError{Err: ErrInactivePermission, Refs: normalizeSet(inactive)}
		}

		current, err := s.Repo.GetGroupCodes(ctx, groupID)
		if err != nil {
			return err
		}
		added, removed := diffSets(current, desired)

		// a concurrent delete of an added code must conflict with this grant
		for _, code := range added {
			if err := s.Repo.Lock(ctx, repository.PermissionLockKey(code)); err != nil {
				return err
			}
		}
		if err := s.Repo.RemoveGroupCodes(ctx, groupID, removed); err != nil {
			return err
		}
		if err := s.Repo.AddGroupCodes(ctx, groupID, added, actor.UserID); err != nil {
			return err
		}
		delta = &model.AssignmentDelta{Added: added, Removed: removed}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, actor, model.ActionAssign, model.ResourceGroup, groupID, err)
	}

	if len(delta.Added) > 0 || len(delta.Removed) > 0 {
		s.publish(ctx, events.PurgeAll("group_permissions_changed"))
	}
	s.record(ctx, actor, model.ActionAssign, model.ResourceGroup, groupID, deltaDetails(delta))
	return delta, nil
}

// GetGroupPermissions returns the literal codes granted to the group.
func (s *Service) GetGroupPermissions(ctx context.Context, groupID string) ([]string, error) {
	var codes []string
	err := s.Repo.Snapshot(ctx, func(ctx context.Context) error {
		g, err := s.Repo.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if g == nil {
			return fmt.Errorf("%w: group %s", ErrNotFound, groupID)
		}
		granted, err := s.Repo.GetGroupCodes(ctx, groupID)
		if err != nil {
			return err
		}
		codes = normalizeSet(granted)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return codes, nil
}
