package model

import "strings"

type CreatePermissionReq struct {
	Code        string `json:"code" validate:"required,permcode"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"omitempty,max=255"`
	ParentCode  string `json:"parent_code" validate:"omitempty,max=100"`
	IsActive    *bool  `json:"is_active"`
}

func (r *CreatePermissionReq) Validate() error {
	r.Code = strings.TrimSpace(r.Code)
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	r.ParentCode = strings.TrimSpace(r.ParentCode)

	if err := GetValidator().Struct(r); err != nil {
		return FormatValidationError(err)
	}
	return nil
}

// Active returns the requested active flag, defaulting to true.
func (r *CreatePermissionReq) Active() bool {
	if r.IsActive == nil {
		return true
	}
	return *r.IsActive
}

// ExpandCodesReq asks for codes plus every descendant in the catalog.
type ExpandCodesReq struct {
	Codes []string `json:"codes" validate:"max=1000,dive,required,max=100"`
}

func (r *ExpandCodesReq) Validate() error {
	if r.Codes == nil {
		return &ErrorDetail{Code: "bad_request", Message: "codes is required"}
	}
	r.Codes = trimAll(r.Codes)
	if err := GetValidator().Struct(r); err != nil {
		return FormatValidationError(err)
	}
	return nil
}

type ExpandCodesResp struct {
	Codes []string `json:"codes"`
}
