package model

import "strings"

// UpdatePermissionReq is a partial update. Nil fields are left unchanged;
// a non-nil empty ParentCode promotes the permission to a root.
type UpdatePermissionReq struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=255"`
	ParentCode  *string `json:"parent_code" validate:"omitempty,max=100"`
	IsActive    *bool   `json:"is_active"`
}

func (r *UpdatePermissionReq) Validate() error {
	trimPtr(r.Name)
	trimPtr(r.Description)
	trimPtr(r.ParentCode)

	if err := GetValidator().Struct(r); err != nil {
		return FormatValidationError(err)
	}
	if r.Name == nil && r.Description == nil && r.ParentCode == nil && r.IsActive == nil {
		return &ErrorDetail{Code: "bad_request", Message: "at least one field is required"}
	}
	return nil
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
