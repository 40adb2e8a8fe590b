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

func (s *Service) CreatePermission(ctx context.Context, actor model.Actor, req model.CreatePermissionReq) (*model.Permission, error) {
	if err := req.Validate(); err != nil {
		return nil, s.fail(ctx, actor, model.ActionCreate, model.ResourcePermission, req.Code, validationError(err))
	}

	var created *model.Permission
	err := s.Repo.WithTx(ctx, func(ctx context.Context) error {
		if err := s.Repo.Lock(ctx, repository.LockCatalog); err != nil {
			return err
		}
		if req.ParentCode != "" {
			parent, err := s.Repo.GetPermission(ctx, req.ParentCode)
			if err != nil {
				return err
			}
			if parent == nil {
				return fmt.Errorf("%w: parent %s does not exist", ErrInvalidParent, req.ParentCode)
			}
		}

		p := &model.Permission{
			Code:        req.Code,
			Name:        req.Name,
			Description: req.Description,
			ParentCode:  req.ParentCode,
			IsActive:    req.Active(),
			CreatedBy:   actor.UserID,
			UpdatedBy:   actor.UserID,
		}
		if err := s.Repo.CreatePermission(ctx, p); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return fmt.Errorf("%w: %s", ErrDuplicateCode, req.Code)
			}
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, actor, model.ActionCreate, model.ResourcePermission, req.Code, err)
	}

	s.record(ctx, actor, model.ActionCreate, model.ResourcePermission, created.Code, map[string]interface{}{
		"name":        created.Name,
		"parent_code": created.ParentCode,
		"is_active":   created.IsActive,
	})
	return created, nil
}

func (s *Service) UpdatePermission(ctx context.Context, actor model.Actor, code string, req model.UpdatePermissionReq) (*model.Permission, error) {
	if err := req.Validate(); err != nil {
		return nil, s.fail(ctx, actor, model.ActionUpdate, model.ResourcePermission, code, validationError(err))
	}

	var (
		updated       *model.Permission
		changes       map[string]interface{}
		activeChanged bool
	)
	err := s.Repo.WithTx(ctx, func(ctx context.Context) error {
		if err := s.Repo.Lock(ctx, repository.LockCatalog); err != nil {
			return err
		}
		if err := s.Repo.Lock(ctx, repository.PermissionLockKey(code)); err != nil {
			return err
		}
		p, err := s.Repo.GetPermission(ctx, code)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("%w: permission %s", ErrNotFound, code)
		}

		changes = map[string]interface{}{}
		activeChanged = false
		if req.Name != nil && *req.Name != p.Name {
			changes["name"] = change(p.Name, *req.Name)
			p.Name = *req.Name
		}
		if req.Description != nil && *req.Description != p.Description {
			changes["description"] = change(p.Description, *req.Description)
			p.Description = *req.Description
		}
		if req.ParentCode != nil && *req.ParentCode != p.ParentCode {
			if *req.ParentCode != "" {
				if err := s.checkParent(ctx, code, *req.ParentCode); err != nil {
					return err
				}
			}
			changes["parent_code"] = change(p.ParentCode, *req.ParentCode)
			p.ParentCode = *req.ParentCode
		}
		if req.IsActive != nil && *req.IsActive != p.IsActive {
			changes["is_active"] = change(p.IsActive, *req.IsActive)
			p.IsActive = *req.IsActive
			activeChanged = true
		}
		p.UpdatedBy = actor.UserID

		if err := s.Repo.UpdatePermission(ctx, p); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: permission %s", ErrNotFound, code)
			}
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, actor, model.ActionUpdate, model.ResourcePermission, code, err)
	}

	if activeChanged {
		s.publish(ctx, events.PurgeAll("permission_active_changed"))
	}
	s.record(ctx, actor, model.ActionUpdate, model.ResourcePermission, code, map[string]interface{}{"changes": changes})
	return updated, nil
}

// checkParent walks the ancestor chain of parent. It fails when parent does
// not exist or when code is among its ancestors.
func (s *Service) checkParent(ctx context.Context, code, parent string) error {
	if parent == code {
		return fmt.Errorf("%w: %s cannot be its own parent", ErrInvalidParent, code)
	}

	seen := map[string]bool{}
	cur := parent
	for cur != "" {
		if cur == code {
			return fmt.Errorf("%w: %s is an ancestor of %s", ErrInvalidParent, code, parent)
		}
		if seen[cur] {
			// stored chain is already cyclic; it cannot lead back to code
			return nil
		}
		seen[cur] = true

		p, err := s.Repo.GetPermission(ctx, cur)
		if err != nil {
			return err
		}
		if p == nil {
			if cur == parent {
				return fmt.Errorf("%w: parent %s does not exist", ErrInvalidParent, parent)
			}
			return nil
		}
		cur = p.ParentCode
	}
	return nil
}

// DeletePermission removes a permission. Without force it refuses while any
// group grants the code or any permission names it as parent. With force the
// children become roots and the code is stripped from every group first.
func (s *Service) DeletePermission(ctx context.Context, actor model.Actor, code string, force bool) error {
	var usage model.PermissionUsage
	err := s.Repo.WithTx(ctx, func(ctx context.Context) error {
		if err := s.Repo.Lock(ctx, repository.LockCatalog); err != nil {
			return err
		}
		if err := s.Repo.Lock(ctx, repository.PermissionLockKey(code)); err != nil {
			return err
		}
		p, err := s.Repo.GetPermission(ctx, code)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("%w: permission %s", ErrNotFound, code)
		}

		groups, err := s.Repo.FindGroupsGrantingCode(ctx, code)
		if err != nil {
			return err
		}
		children, err := s.Repo.FindChildCodes(ctx, code)
		if err != nil {
			return err
		}
		usage = model.PermissionUsage{Groups: groups, Children: children}

		if usage.InUse() {
			if !force {
				return &InUseError{Code: code, Groups: groups, Children: children}
			}
			if err := s.Repo.ClearParent(ctx, code, actor.UserID); err != nil {
				return err
			}
			if err := s.Repo.RemoveCodeFromAllGroups(ctx, code); err != nil {
				return err
			}
		}

		if err := s.Repo.DeletePermission(ctx, code); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: permission %s", ErrNotFound, code)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return s.fail(ctx, actor, model.ActionDelete, model.ResourcePermission, code, err)
	}

	s.publish(ctx, events.PurgeAll("permission_deleted"))
	s.record(ctx, actor, model.ActionDelete, model.ResourcePermission, code, map[string]interface{}{
		"force":             force,
		"detached_children": emptyIfNil(usage.Children),
		"stripped_groups":   emptyIfNil(usage.Groups),
	})
	return nil
}

func (s *Service) GetPermission(ctx context.Context, code string) (*model.Permission, error) {
	p, err := s.Repo.GetPermission(ctx, code)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: permission %s", ErrNotFound, code)
	}
	return p, nil
}

func (s *Service) ListPermissions(ctx context.Context, req model.ListPermissionsReq) (*model.ListPermissionsResp, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	data, total, err := s.Repo.ListPermissions(ctx, req.Filter())
	if err != nil {
		return nil, err
	}

	return &model.ListPermissionsResp{
		Data:       data,
		Tree:       model.BuildTree(data),
		Page:       req.Page,
		Limit:      req.Limit,
		TotalCount: total,
	}, nil
}

// PermissionTree returns the whole catalog as a forest.
func (s *Service) PermissionTree(ctx context.Context) ([]*model.PermissionNode, error) {
	var perms []*model.Permission
	err := s.Repo.Snapshot(ctx, func(ctx context.Context) error {
		all, err := s.Repo.AllPermissions(ctx)
		if err != nil {
			return err
		}
		perms = all
		return nil
	})
	if err != nil {
		return nil, err
	}
	return model.BuildTree(perms), nil
}

// ExpandCodes returns codes plus all of their descendants, sorted.
// Holding a parent never implies its children; callers that want that
// behaviour expand explicitly.
func (s *Service) ExpandCodes(ctx context.Context, codes []string) ([]string, error) {
	codes = normalizeSet(codes)
	if len(codes) == 0 {
		return []string{}, nil
	}

	var perms []*model.Permission
	err := s.Repo.Snapshot(ctx, func(ctx context.Context) error {
		all, err := s.Repo.AllPermissions(ctx)
		if err != nil {
			return err
		}
		perms = all
		return nil
	})
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(perms))
	children := map[string][]string{}
	for _, p := range perms {
		known[p.Code] = struct{}{}
		if p.ParentCode != "" {
			children[p.ParentCode] = append(children[p.ParentCode], p.Code)
		}
	}
	if unknown := missing(codes, known); len(unknown) > 0 {
		return nil, &UnknownRefsError{Err: ErrUnknownPermission, Refs: unknown}
	}

	out := map[string]struct{}{}
	queue := append([]string(nil), codes...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, ok := out[cur]; ok {
			continue
		}
		out[cur] = struct{}{}
		queue = append(queue, children[cur]...)
	}

	expanded := make([]string, 0, len(out))
	for code := range out {
		expanded = append(expanded, code)
	}
	sort.Strings(expanded)
	return expanded, nil
}

func change(from, to interface{}) map[string]interface{} {
	return map[string]interface{}{"from": from, "to": to}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
