package model

import "strings"

type CreateGroupReq struct {
	Code        string `json:"code" validate:"required,permcode"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"omitempty,max=255"`
	IsActive    *bool  `json:"is_active"`
}

// Validate folds the code to lower case before checking the pattern.
func (r *CreateGroupReq) Validate() error {
	r.Code = strings.ToLower(strings.TrimSpace(r.Code))
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)

	if err := GetValidator().Struct(r); err != nil {
		return FormatValidationError(err)
	}
	return nil
}

func (r *CreateGroupReq) Active() bool {
	if r.IsActive == nil {
		return true
	}
	return *r.IsActive
}

// UpdateGroupReq has no code field: group codes are immutable.
type UpdateGroupReq struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=255"`
	IsActive    *bool   `json:"is_active"`
}

func (r *UpdateGroupReq) Validate() error {
	trimPtr(r.Name)
	trimPtr(r.Description)

	if err := GetValidator().Struct(r); err != nil {
		return FormatValidationError(err)
	}
	if r.Name == nil && r.Description == nil && r.IsActive == nil {
		return &ErrorDetail{Code: "bad_request", Message: "at least one field is required"}
	}
	return nil
}
