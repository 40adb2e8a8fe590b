package policy

import (
	"embed"
	"encoding/json"
	"fmt"
	"rbacgate/internal/rbac/model"
	"strings"
)

//go:embed policies/routes.json policies/seed.json
var policiesFS embed.FS

// Loader loads policy configurations from embedded JSON files
type Loader struct{}

func NewLoader() *Loader {
	return &Loader{}
}

// LoadRoutePolicies loads the route guard table keyed by "METHOD:PATH"
func (l *Loader) LoadRoutePolicies() (map[string]*RoutePolicy, error) {
	data, err := policiesFS.ReadFile("policies/routes.json")
	if err != nil {
		return nil, fmt.Errorf("failed to read routes.json: %w", err)
	}
	return ParseRoutePolicies(data)
}

// ParseRoutePolicies parses and validates a routes document
func ParseRoutePolicies(data []byte) (map[string]*RoutePolicy, error) {
	var config RoutesConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse routes.json: %w", err)
	}

	policies := make(map[string]*RoutePolicy, len(config.Routes))
	for _, route := range config.Routes {
		route.Method = strings.ToUpper(strings.TrimSpace(route.Method))
		route.Mode = strings.ToLower(strings.TrimSpace(route.Mode))
		if route.Mode == "" {
			route.Mode = model.CheckModeAny
		}
		if route.Method == "" || route.Path == "" {
			return nil, fmt.Errorf("route policy missing method or path: %+v", route)
		}
		if route.Mode != model.CheckModeAny && route.Mode != model.CheckModeAll {
			return nil, fmt.Errorf("route %s: unsupported mode %q", route.Key(), route.Mode)
		}
		for _, code := range route.Permissions {
			if !model.ValidCode(code) {
				return nil, fmt.Errorf("route %s: invalid permission code %q", route.Key(), code)
			}
		}
		if _, dup := policies[route.Key()]; dup {
			return nil, fmt.Errorf("route %s declared twice", route.Key())
		}
		policies[route.Key()] = route
	}

	return policies, nil
}

// LoadSeedCatalog loads the bootstrap permission catalog, parents first
func (l *Loader) LoadSeedCatalog() ([]model.CreatePermissionReq, error) {
	data, err := policiesFS.ReadFile("policies/seed.json")
	if err != nil {
		return nil, fmt.Errorf("failed to read seed.json: %w", err)
	}

	var catalog SeedCatalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse seed.json: %w", err)
	}
	return catalog.Permissions, nil
}
