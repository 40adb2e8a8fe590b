package service

import (
	"context"
	"rbacgate/internal/rbac/model"
	"rbacgate/internal/rbac/repository"
)

// Resolver computes a user's effective permission set.
type Resolver struct {
	Repo repository.RBACRepository
}

func NewResolver(repo repository.RBACRepository) *Resolver {
	return &Resolver{Repo: repo}
}

// Resolve returns the active codes granted through the user's active groups.
// All reads come from one snapshot. An unknown user resolves to the empty
// set; only store failures return an error.
func (r *Resolver) Resolve(ctx context.Context, userID string) (map[string]struct{}, error) {
	var perms map[string]struct{}
	err := r.Repo.Snapshot(ctx, func(ctx context.Context) error {
		perms = map[string]struct{}{}

		groupIDs, err := r.Repo.GetUserGroupIDs(ctx, userID)
		if err != nil {
			return err
		}
		if len(groupIDs) == 0 {
			return nil
		}

		groups, err := r.Repo.GetGroups(ctx, groupIDs)
		if err != nil {
			return err
		}
		active := activeGroupIDs(groups)
		if len(active) == 0 {
			return nil
		}

		codes, err := r.Repo.GetCodesForGroups(ctx, active)
		if err != nil {
			return err
		}
		granted, err := r.Repo.GetPermissions(ctx, codes)
		if err != nil {
			return err
		}
		for _, p := range granted {
			if p.IsActive {
				perms[p.Code] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return perms, nil
}

func activeGroupIDs(groups []*model.Group) []string {
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		if g.IsActive {
			ids = append(ids, g.ID)
		}
	}
	return ids
}
