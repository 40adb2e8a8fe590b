package service

import (
	"context"
	"errors"
	"fmt"
	"rbacgate/internal/rbac/model"
)

const AdminGroupCode = "admin"

// Bootstrap makes sure the catalog entries exist, that an admin group grants
// all of them, and that adminUserID belongs to it. Running it again changes
// nothing. Catalog entries must list parents before children.
func (s *Service) Bootstrap(ctx context.Context, catalog []model.CreatePermissionReq, adminUserID string) error {
	actor := model.SystemActor
	codes := make([]string, 0, len(catalog))

	for _, req := range catalog {
		existing, err := s.Repo.GetPermission(ctx, req.Code)
		if err != nil {
			return err
		}
		codes = append(codes, req.Code)
		if existing != nil {
			continue
		}
		if _, err := s.CreatePermission(ctx, actor, req); err != nil && !errors.Is(err, ErrDuplicateCode) {
			return fmt.Errorf("seed permission %s: %w", req.Code, err)
		}
	}

	group, err := s.findGroupByCode(ctx, AdminGroupCode)
	if err != nil {
		return err
	}
	if group == nil {
		group, err = s.CreateGroup(ctx, actor, model.CreateGroupReq{
			Code:        AdminGroupCode,
			Name:        "Administrators",
			Description: "Full access to the RBAC management API",
		})
		if err != nil && !errors.Is(err, ErrDuplicateCode) {
			return fmt.Errorf("seed admin group: %w", err)
		}
		if group == nil {
			if group, err = s.findGroupByCode(ctx, AdminGroupCode); err != nil {
				return err
			}
		}
		if group == nil {
			return fmt.Errorf("seed admin group: %s not found after create", AdminGroupCode)
		}
	}

	current, err := s.Repo.GetGroupCodes(ctx, group.ID)
	if err != nil {
		return err
	}
	desired := normalizeSet(append(append([]string{}, current...), codes...))
	if added, _ := diffSets(current, desired); len(added) > 0 {
		if _, err := s.SetGroupPermissions(ctx, actor, group.ID, model.SetGroupPermissionsReq{Codes: desired}); err != nil {
			return fmt.Errorf("seed admin grants: %w", err)
		}
	}

	if adminUserID == "" {
		return nil
	}
	user, err := s.Repo.GetUser(ctx, adminUserID)
	if err != nil {
		return err
	}
	if user == nil {
		_, err := s.CreateUser(ctx, actor, model.CreateUserReq{ID: adminUserID, DisplayName: "Bootstrap administrator"})
		if err != nil && !errors.Is(err, ErrDuplicateUser) {
			return fmt.Errorf("seed admin user: %w", err)
		}
	}
	return s.AddUserToGroup(ctx, actor, adminUserID, group.ID)
}

func (s *Service) findGroupByCode(ctx context.Context, code string) (*model.Group, error) {
	groups, _, err := s.Repo.ListGroups(ctx, model.GroupFilter{Search: code})
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.Code == code {
			return g, nil
		}
	}
	return nil, nil
}
