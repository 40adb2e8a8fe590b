package model

import "strings"

// SetGroupPermissionsReq replaces a group's full permission set. A missing
// codes key is rejected; an explicit empty list clears the set.
type SetGroupPermissionsReq struct {
	Codes []string `json:"codes" validate:"max=1000,dive,required,max=100"`
}

func (r *SetGroupPermissionsReq) Validate() error {
	if r.Codes == nil {
		return &ErrorDetail{Code: "bad_request", Message: "codes is required"}
	}
	r.Codes = trimAll(r.Codes)
	if err := GetValidator().Struct(r); err != nil {
		return FormatValidationError(err)
	}
	return nil
}

// SetUserGroupsReq replaces a user's full group set.
type SetUserGroupsReq struct {
	GroupIDs []string `json:"group_ids" validate:"max=500,dive,required,max=64"`
}

func (r *SetUserGroupsReq) Validate() error {
	if r.GroupIDs == nil {
		return &ErrorDetail{Code: "bad_request", Message: "group_ids is required"}
	}
	r.GroupIDs = trimAll(r.GroupIDs)
	if err := GetValidator().Struct(r); err != nil {
		return FormatValidationError(err)
	}
	return nil
}

// SetGroupUsersReq replaces a group's full user set.
type SetGroupUsersReq struct {
	UserIDs []string `json:"user_ids" validate:"max=5000,dive,required,max=64"`
}

func (r *SetGroupUsersReq) Validate() error {
	if r.UserIDs == nil {
		return &ErrorDetail{Code: "bad_request", Message: "user_ids is required"}
	}
	r.UserIDs = trimAll(r.UserIDs)
	if err := GetValidator().Struct(r); err != nil {
		return FormatValidationError(err)
	}
	return nil
}

type CreateUserReq struct {
	ID          string `json:"id" validate:"required,max=64"`
	DisplayName string `json:"display_name" validate:"omitempty,max=100"`
}

func (r *CreateUserReq) Validate() error {
	r.ID = strings.TrimSpace(r.ID)
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	if err := GetValidator().Struct(r); err != nil {
		return FormatValidationError(err)
	}
	return nil
}

// AssignmentDelta is the audit payload for set-replace operations.
type AssignmentDelta struct {
	Added   []string `json:"added" bson:"added"`
	Removed []string `json:"removed" bson:"removed"`
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.TrimSpace(s))
	}
	return out
}
