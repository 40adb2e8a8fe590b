package model

import "strings"

const (
	DefaultPageSize = 20
	MaxPageSize     = 500
)

type ListPermissionsReq struct {
	Search     string `query:"search" validate:"omitempty,max=100"`
	ParentCode string `query:"parent_code" validate:"omitempty,max=100"`
	IsActive   *bool  `query:"is_active"`
	Page       int    `query:"page" validate:"omitempty,min=1"`
	Limit      int    `query:"limit" validate:"omitempty,min=1"`
}

func (r *ListPermissionsReq) Validate() error {
	r.Search = strings.TrimSpace(r.Search)
	r.ParentCode = strings.TrimSpace(r.ParentCode)
	r.Page, r.Limit = normalizePage(r.Page, r.Limit)

	if err := GetValidator().Struct(r); err != nil {
		return FormatValidationError(err)
	}
	return nil
}

func (r *ListPermissionsReq) Filter() PermissionFilter {
	return PermissionFilter{
		Search:     r.Search,
		ParentCode: r.ParentCode,
		IsActive:   r.IsActive,
		Page:       r.Page,
		Limit:      r.Limit,
	}
}

type ListPermissionsResp struct {
	Data       []*Permission     `json:"data"`
	Tree       []*PermissionNode `json:"tree"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalCount int64             `json:"total_count"`
}

type ListGroupsReq struct {
	Search   string `query:"search" validate:"omitempty,max=100"`
	IsActive *bool  `query:"is_active"`
	Page     int    `query:"page" validate:"omitempty,min=1"`
	Limit    int    `query:"limit" validate:"omitempty,min=1"`
}

func (r *ListGroupsReq) Validate() error {
	r.Search = strings.TrimSpace(r.Search)
	r.Page, r.Limit = normalizePage(r.Page, r.Limit)

	if err := GetValidator().Struct(r); err != nil {
		return FormatValidationError(err)
	}
	return nil
}

func (r *ListGroupsReq) Filter() GroupFilter {
	return GroupFilter{
		Search:   r.Search,
		IsActive: r.IsActive,
		Page:     r.Page,
		Limit:    r.Limit,
	}
}

type ListGroupsResp struct {
	Data       []*Group `json:"data"`
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
	TotalCount int64    `json:"total_count"`
}

func normalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}
