package policy

import "rbacgate/internal/rbac/model"

// RoutePolicy names the permission an API route requires.
type RoutePolicy struct {
	Method string `json:"method"`
	Path   string `json:"path"` // echo route template, e.g. /api/v1/groups/:id

	// Permissions required by the route; Mode combines them (default any)
	Permissions []string `json:"permissions"`
	Mode        string   `json:"mode,omitempty"`

	// AllowSelf names a path param; the caller passes when it equals the param
	AllowSelf string `json:"allow_self,omitempty"`
}

// Key is the lookup key, "METHOD:PATH".
func (p *RoutePolicy) Key() string {
	return p.Method + ":" + p.Path
}

type RoutesConfig struct {
	Routes []*RoutePolicy `json:"routes"`
}

// SeedCatalog is the permission set installed by bootstrap.
type SeedCatalog struct {
	Permissions []model.CreatePermissionReq `json:"permissions"`
}
