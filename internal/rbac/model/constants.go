package model

import "regexp"

// Activity actions
const (
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionAssign   = "assign"
	ActionUnassign = "unassign"
	ActionView     = "view"
	ActionLogin    = "login"
	ActionLogout   = "logout"
)

// AllowedActions is the closed set of activity actions
var AllowedActions = map[string]bool{
	ActionCreate:   true,
	ActionUpdate:   true,
	ActionDelete:   true,
	ActionAssign:   true,
	ActionUnassign: true,
	ActionView:     true,
	ActionLogin:    true,
	ActionLogout:   true,
}

// Activity resources
const (
	ResourcePermission = "permission"
	ResourceGroup      = "group"
	ResourceUser       = "user"
	ResourceMenu       = "menu"
	ResourceProfile    = "profile"
	ResourceSystem     = "system"
)

var AllowedResources = map[string]bool{
	ResourcePermission: true,
	ResourceGroup:      true,
	ResourceUser:       true,
	ResourceMenu:       true,
	ResourceProfile:    true,
	ResourceSystem:     true,
}

// Activity status
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Permission codes guarding the engine's own management API.
// These are seeded by the bootstrap catalog.
const (
	PermPermissionView   = "permission.view"
	PermPermissionManage = "permission.manage"
	PermGroupView        = "group.view"
	PermGroupManage      = "group.manage"
	PermUserView         = "user.view"
	PermUserManage       = "user.manage"
	PermActivityView     = "activity.view"
	PermSystemManage     = "system.manage"
)

// Check modes for multi-code checks
const (
	CheckModeAny = "any"
	CheckModeAll = "all"
)

// CodePattern restricts permission and group codes to lowercase letters,
// digits, '.' and '_'.
var CodePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._]{0,99}$`)

// ValidCode reports whether code satisfies CodePattern.
func ValidCode(code string) bool {
	return CodePattern.MatchString(code)
}
