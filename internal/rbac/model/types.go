package model

import "time"

// Permission is a grantable capability keyed by its code.
// ParentCode is a referential link only; the tree is a read-time projection.
type Permission struct {
	Code        string    `json:"code" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	ParentCode  string    `json:"parent_code,omitempty" bson:"parent_code,omitempty"`
	IsActive    bool      `json:"is_active" bson:"is_active"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
	CreatedBy   string    `json:"created_by,omitempty" bson:"created_by,omitempty"`
	UpdatedBy   string    `json:"updated_by,omitempty" bson:"updated_by,omitempty"`
}

// Group bundles permission codes that can be attached to users.
type Group struct {
	ID          string    `json:"id" bson:"_id"`
	Code        string    `json:"code" bson:"code"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	IsActive    bool      `json:"is_active" bson:"is_active"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
	CreatedBy   string    `json:"created_by,omitempty" bson:"created_by,omitempty"`
	UpdatedBy   string    `json:"updated_by,omitempty" bson:"updated_by,omitempty"`
}

// User only carries the identity needed for memberships.
type User struct {
	ID          string    `json:"id" bson:"_id"`
	DisplayName string    `json:"display_name,omitempty" bson:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	CreatedBy   string    `json:"created_by,omitempty" bson:"created_by,omitempty"`
}

// GroupPermission is one row of the group -> permission relation.
type GroupPermission struct {
	GroupID   string    `bson:"group_id"`
	Code      string    `bson:"code"`
	CreatedAt time.Time `bson:"created_at"`
	CreatedBy string    `bson:"created_by,omitempty"`
}

// UserGroup is one row of the user -> group relation.
type UserGroup struct {
	UserID    string    `bson:"user_id"`
	GroupID   string    `bson:"group_id"`
	CreatedAt time.Time `bson:"created_at"`
	CreatedBy string    `bson:"created_by,omitempty"`
}

// PermissionUsage lists everything that references a permission code.
type PermissionUsage struct {
	Groups   []string `json:"groups,omitempty"`
	Children []string `json:"children,omitempty"`
}

func (u PermissionUsage) InUse() bool {
	return len(u.Groups) > 0 || len(u.Children) > 0
}

// Actor identifies who triggered a mutation and where the request came from.
// A zero UserID means a system-initiated change.
type Actor struct {
	UserID    string
	IPAddress string
	Method    string
	Path      string
}

// SystemActor is used for bootstrap and background changes.
var SystemActor = Actor{}

// ErrorResponse for consistent error handling
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"request_id,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func (e *ErrorDetail) Error() string {
	return e.Message
}

// PermissionFilter narrows permission listings.
type PermissionFilter struct {
	Search     string
	ParentCode string
	IsActive   *bool
	Page       int
	Limit      int
}

// GroupFilter narrows group listings.
type GroupFilter struct {
	Search   string
	IsActive *bool
	Page     int
	Limit    int
}
