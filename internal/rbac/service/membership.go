package service

import (
	"context"
	"errors"
	"fmt"
	"rbacgate/internal/rbac/events"
	"rbacgate/internal/rbac/model"
	"rbacgate/internal/rbac/repository"
	"sort"
)

func (s *Service) CreateUser(ctx context.Context, actor model.Actor, req model.CreateUserReq) (*model.User, error) {
	if err := req.Validate(); err != nil {
		return nil, s.fail(ctx, actor, model.ActionCreate, model.ResourceUser, req.ID, validationError(err))
	}

	u := &model.User{
		ID:          req.ID,
		DisplayName: req.DisplayName,
		CreatedBy:   actor.UserID,
	}
	if err := s.Repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			err = fmt.Errorf("%w: %s", ErrDuplicateUser, req.ID)
		}
		return nil, s.fail(ctx, actor, model.ActionCreate, model.ResourceUser, req.ID, err)
	}

	s.record(ctx, actor, model.ActionCreate, model.ResourceUser, u.ID, map[string]interface{}{
		"display_name": u.DisplayName,
	})
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := s.Repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	return u, nil
}

// DeleteUser removes the user and every membership it holds.
func (s *Service) DeleteUser(ctx context.Context, actor model.Actor, id string) error {
	var groupIDs []string
	err := s.Repo.WithTx(ctx, func(ctx context.Context) error {
		if err := s.Repo.Lock(ctx, repository.UserLockKey(id)); err != nil {
			return err
		}
		u, err := s.Repo.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		detached, err := s.Repo.DeleteMembershipsByUser(ctx, id)
		if err != nil {
			return err
		}
		if err := s.Repo.DeleteUser(ctx, id); err != nil {
			return err
		}
		groupIDs = detached
		return nil
	})
	if err != nil {
		return s.fail(ctx, actor, model.ActionDelete, model.ResourceUser, id, err)
	}

	s.publish(ctx, events.MembershipChanged("user_deleted", id))
	s.record(ctx, actor, model.ActionDelete, model.ResourceUser, id, map[string]interface{}{
		"detached_groups": emptyIfNil(groupIDs),
	})
	return nil
}

// SetGroupsForUser replaces the user's group set.
func (s *Service) SetGroupsForUser(ctx context.Context, actor model.Actor, userID string, req model.SetUserGroupsReq) (*model.AssignmentDelta, error) {
	if err := req.Validate(); err != nil {
		return nil, s.fail(ctx, actor, model.ActionAssign, model.ResourceUser, userID, validationError(err))
	}
	desired := normalizeSet(req.GroupIDs)

	var delta *model.AssignmentDelta
	err := s.Repo.WithTx(ctx, func(ctx context.Context) error {
		if err := s.Repo.Lock(ctx, repository.UserLockKey(userID)); err != nil {
			return err
		}
		u, err := s.Repo.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}

		groups, err := s.Repo.GetGroups(ctx, desired)
		if err != nil {
			return err
		}
		known := make(map[string]struct{}, len(groups))
		for _, g := range groups {
			known[g.ID] = struct{}{}
		}
		if unknown := missing(desired, known); len(unknown) > 0 {
			return &UnknownRefsError{Err: ErrUnknownGroup, Refs: unknown}
		}

		current, err := s.Repo.GetUserGroupIDs(ctx, userID)
		if err != nil {
			return err
		}
		added, removed := diffSets(current, desired)
		if err := s.lockAll(ctx, repository.GroupLockKey, added, removed); err != nil {
			return err
		}
		if err := s.Repo.RemoveMemberships(ctx, edges(userID, removed, actor, false)); err != nil {
			return err
		}
		if err := s.Repo.AddMemberships(ctx, edges(userID, added, actor, false)); err != nil {
			return err
		}
		delta = &model.AssignmentDelta{Added: added, Removed: removed}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, actor, model.ActionAssign, model.ResourceUser, userID, err)
	}

	if len(delta.Added) > 0 || len(delta.Removed) > 0 {
		s.publish(ctx, events.MembershipChanged("user_groups_changed", userID))
	}
	s.record(ctx, actor, model.ActionAssign, model.ResourceUser, userID, deltaDetails(delta))
	return delta, nil
}

// SetUsersForGroup replaces the group's user set. It writes the same
// relation as SetGroupsForUser.
func (s *Service) SetUsersForGroup(ctx context.Context, actor model.Actor, groupID string, req model.SetGroupUsersReq) (*model.AssignmentDelta, error) {
	if err := req.Validate(); err != nil {
		return nil, s.fail(ctx, actor, model.ActionAssign, model.ResourceGroup, groupID, validationError(err))
	}
	desired := normalizeSet(req.UserIDs)

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

		users, err := s.Repo.GetUsers(ctx, desired)
		if err != nil {
			return err
		}
		known := make(map[string]struct{}, len(users))
		for _, u := range users {
			known[u.ID] = struct{}{}
		}
		if unknown := missing(desired, known); len(unknown) > 0 {
			return &UnknownRefsError{Err: ErrUnknownUser, Refs: unknown}
		}

		current, err := s.Repo.GetGroupUserIDs(ctx, groupID)
		if err != nil {
			return err
		}
		added, removed := diffSets(current, desired)
		if err := s.lockAll(ctx, repository.UserLockKey, added, removed); err != nil {
			return err
		}
		if err := s.Repo.RemoveMemberships(ctx, edges(groupID, removed, actor, true)); err != nil {
			return err
		}
		if err := s.Repo.AddMemberships(ctx, edges(groupID, added, actor, true)); err != nil {
			return err
		}
		delta = &model.AssignmentDelta{Added: added, Removed: removed}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, actor, model.ActionAssign, model.ResourceGroup, groupID, err)
	}

	affected := append(append([]string{}, delta.Added...), delta.Removed...)
	if len(affected) > 0 {
		s.publish(ctx, events.MembershipChanged("group_users_changed", affected...))
	}
	s.record(ctx, actor, model.ActionAssign, model.ResourceGroup, groupID, map[string]interface{}{
		"added":   delta.Added,
		"removed": delta.Removed,
		"target":  model.ResourceUser,
	})
	return delta, nil
}

// AddUserToGroup adds one membership edge. Adding an existing edge is a
// silent no-op.
func (s *Service) AddUserToGroup(ctx context.Context, actor model.Actor, userID, groupID string) error {
	var added bool
	err := s.Repo.WithTx(ctx, func(ctx context.Context) error {
		if err := s.Repo.Lock(ctx, repository.UserLockKey(userID)); err != nil {
			return err
		}
		if err := s.Repo.Lock(ctx, repository.GroupLockKey(groupID)); err != nil {
			return err
		}
		u, err := s.Repo.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		g, err := s.Repo.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if g == nil {
			return &UnknownRefsError{Err: ErrUnknownGroup, Refs: []string{groupID}}
		}

		current, err := s.Repo.GetUserGroupIDs(ctx, userID)
		if err != nil {
			return err
		}
		added = !contains(current, groupID)
		if !added {
			return nil
		}
		return s.Repo.AddMemberships(ctx, edges(userID, []string{groupID}, actor, false))
	})
	if err != nil {
		return s.fail(ctx, actor, model.ActionAssign, model.ResourceUser, userID, err)
	}
	if !added {
		return nil
	}

	s.publish(ctx, events.MembershipChanged("membership_added", userID))
	s.record(ctx, actor, model.ActionAssign, model.ResourceUser, userID, deltaDetails(&model.AssignmentDelta{
		Added:   []string{groupID},
		Removed: []string{},
	}))
	return nil
}

// RemoveUserFromGroup removes one membership edge. Removing an absent edge
// succeeds without recording anything.
func (s *Service) RemoveUserFromGroup(ctx context.Context, actor model.Actor, userID, groupID string) error {
	var removed bool
	err := s.Repo.WithTx(ctx, func(ctx context.Context) error {
		if err := s.Repo.Lock(ctx, repository.UserLockKey(userID)); err != nil {
			return err
		}
		if err := s.Repo.Lock(ctx, repository.GroupLockKey(groupID)); err != nil {
			return err
		}
		current, err := s.Repo.GetUserGroupIDs(ctx, userID)
		if err != nil {
			return err
		}
		removed = contains(current, groupID)
		if !removed {
			return nil
		}
		return s.Repo.RemoveMemberships(ctx, edges(userID, []string{groupID}, actor, false))
	})
	if err != nil {
		return s.fail(ctx, actor, model.ActionUnassign, model.ResourceUser, userID, err)
	}
	if !removed {
		return nil
	}

	s.publish(ctx, events.MembershipChanged("membership_removed", userID))
	s.record(ctx, actor, model.ActionUnassign, model.ResourceUser, userID, map[string]interface{}{
		"group_id": groupID,
	})
	return nil
}

// GetUserGroups returns the user's groups ordered by code.
func (s *Service) GetUserGroups(ctx context.Context, userID string) ([]*model.Group, error) {
	var groups []*model.Group
	err := s.Repo.Snapshot(ctx, func(ctx context.Context) error {
		u, err := s.Repo.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		ids, err := s.Repo.GetUserGroupIDs(ctx, userID)
		if err != nil {
			return err
		}
		found, err := s.Repo.GetGroups(ctx, ids)
		if err != nil {
			return err
		}
		groups = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Code < groups[j].Code })
	return groups, nil
}

// GetGroupUsers returns the group's members ordered by id.
func (s *Service) GetGroupUsers(ctx context.Context, groupID string) ([]*model.User, error) {
	var users []*model.User
	err := s.Repo.Snapshot(ctx, func(ctx context.Context) error {
		g, err := s.Repo.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if g == nil {
			return fmt.Errorf("%w: group %s", ErrNotFound, groupID)
		}
		ids, err := s.Repo.GetGroupUserIDs(ctx, groupID)
		if err != nil {
			return err
		}
		found, err := s.Repo.GetUsers(ctx, ids)
		if err != nil {
			return err
		}
		users = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// lockAll locks the counterpart of every edge a set-replace touches so that
// it serializes with replaces issued from the other side of the relation.
func (s *Service) lockAll(ctx context.Context, key func(string) string, sets ...[]string) error {
	for _, ids := range sets {
		for _, id := range ids {
			if err := s.Repo.Lock(ctx, key(id)); err != nil {
				return err
			}
		}
	}
	return nil
}

// edges builds UserGroup rows for one subject. When fromGroup is set the
// subject is a group id and others are user ids.
func edges(subject string, others []string, actor model.Actor, fromGroup bool) []model.UserGroup {
	rows := make([]model.UserGroup, 0, len(others))
	for _, other := range others {
		row := model.UserGroup{UserID: subject, GroupID: other, CreatedBy: actor.UserID}
		if fromGroup {
			row.UserID, row.GroupID = other, subject
		}
		rows = append(rows, row)
	}
	return rows
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
