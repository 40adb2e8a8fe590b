package model

import (
	"strings"
	"time"
)

// ActivityRecord is an append-only audit entry (read-only after creation).
type ActivityRecord struct {
	ID         string                 `bson:"_id" json:"id"`
	ActorID    *string                `bson:"actor_id" json:"actor_id"`
	Action     string                 `bson:"action" json:"action"`
	Resource   string                 `bson:"resource" json:"resource"`
	ResourceID string                 `bson:"resource_id,omitempty" json:"resource_id,omitempty"`
	Details    map[string]interface{} `bson:"details,omitempty" json:"details,omitempty"`
	Status     string                 `bson:"status" json:"status"`

	// Denormalized "<action> <resource>" used by free-text search
	Label string `bson:"label" json:"label"`

	// Request provenance
	IPAddress string `bson:"ip_address,omitempty" json:"ip_address,omitempty"`
	Method    string `bson:"method,omitempty" json:"method,omitempty"`
	Path      string `bson:"path,omitempty" json:"path,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// ActivityFilter is the store-level query for activity records.
type ActivityFilter struct {
	ActorID    string
	Action     string
	Resource   string
	ResourceID string
	Status     string
	Text       string
	StartTime  *time.Time
	EndTime    *time.Time
	Page       int
	Size       int
}

// QueryActivitiesReq binds GET /activities.
type QueryActivitiesReq struct {
	ActorID    string     `query:"actor_id" validate:"omitempty,max=64"`
	Action     string     `query:"action" validate:"omitempty,oneof=create update delete assign unassign view login logout"`
	Resource   string     `query:"resource" validate:"omitempty,oneof=permission group user menu profile system"`
	ResourceID string     `query:"resource_id" validate:"omitempty,max=100"`
	Status     string     `query:"status" validate:"omitempty,oneof=success error"`
	Q          string     `query:"q" validate:"omitempty,max=100"`
	StartTime  *time.Time `query:"start_time"`
	EndTime    *time.Time `query:"end_time"`

	Page int `query:"page" validate:"omitempty,min=1"`
	Size int `query:"size" validate:"omitempty,min=1,max=1000"`
}

func (r *QueryActivitiesReq) Validate() error {
	r.ActorID = strings.TrimSpace(r.ActorID)
	r.Action = strings.ToLower(strings.TrimSpace(r.Action))
	r.Resource = strings.ToLower(strings.TrimSpace(r.Resource))
	r.ResourceID = strings.TrimSpace(r.ResourceID)
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
	r.Q = strings.TrimSpace(r.Q)

	if r.Page <= 0 {
		r.Page = 1
	}
	if r.Size <= 0 {
		r.Size = 100
	}
	if r.Size > 1000 {
		r.Size = 1000
	}

	if err := GetValidator().Struct(r); err != nil {
		return FormatValidationError(err)
	}
	if r.StartTime != nil && r.EndTime != nil && r.EndTime.Before(*r.StartTime) {
		return &ErrorDetail{Code: "bad_request", Message: "end_time must not be before start_time"}
	}
	return nil
}

func (r *QueryActivitiesReq) Filter() ActivityFilter {
	return ActivityFilter{
		ActorID:    r.ActorID,
		Action:     r.Action,
		Resource:   r.Resource,
		ResourceID: r.ResourceID,
		Status:     r.Status,
		Text:       r.Q,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		Page:       r.Page,
		Size:       r.Size,
	}
}

// QueryActivitiesResp 分頁回應
type QueryActivitiesResp struct {
	Data       []*ActivityRecord `json:"data"`
	Page       int               `json:"page"`
	Size       int               `json:"size"`
	TotalCount int64             `json:"total_count"`
}
