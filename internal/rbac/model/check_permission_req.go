package model

import "strings"

// CheckPermissionReq asks whether UserID holds Code, or Codes combined by Mode.
type CheckPermissionReq struct {
	UserID string   `json:"user_id"`
	Code   string   `json:"code"`
	Codes  []string `json:"codes"`
	Mode   string   `json:"mode"`
}

func (r *CheckPermissionReq) Validate() error {
	r.UserID = strings.TrimSpace(r.UserID)
	r.Code = strings.TrimSpace(r.Code)
	r.Codes = trimAll(r.Codes)
	r.Mode = strings.ToLower(strings.TrimSpace(r.Mode))

	if r.UserID == "" {
		return &ErrorDetail{Code: "bad_request", Message: "user_id is required"}
	}
	if r.Code == "" && len(r.Codes) == 0 {
		return &ErrorDetail{Code: "bad_request", Message: "code or codes is required"}
	}
	if r.Code != "" && len(r.Codes) > 0 {
		return &ErrorDetail{Code: "bad_request", Message: "code and codes are mutually exclusive"}
	}
	if len(r.Codes) > 0 {
		if r.Mode == "" {
			r.Mode = CheckModeAny
		}
		if r.Mode != CheckModeAny && r.Mode != CheckModeAll {
			return &ErrorDetail{Code: "bad_request", Message: "mode must be one of [any, all]"}
		}
	}
	return nil
}

type CheckPermissionResponse struct {
	Allowed bool `json:"allowed"`
}

type EffectivePermissionsResponse struct {
	UserID      string   `json:"user_id"`
	Permissions []string `json:"permissions"`
}
