package router

import (
	"rbacgate/internal/rbac/handler"
	"rbacgate/internal/rbac/metrics"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// RegisterRoutes mounts the API. A nil guard leaves management routes open.
func RegisterRoutes(e *echo.Echo, h *handler.Handler, guard *handler.RBACMiddleware, m *metrics.Metrics) {
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.PUT, echo.POST, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, handler.CallerHeader},
	}))
	if m != nil {
		e.Use(m.HTTPMiddleware())
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}

	// Health Check
	e.GET("/health", handler.HealthCheck)

	v1 := e.Group("/api/v1")
	v1.Use(handler.RequestIDMiddleware)

	// Permissions check endpoint - NO RBAC middleware (anyone can check permissions)
	v1.POST("/permissions/check", h.CheckPermission)

	if guard != nil {
		v1.Use(guard.Middleware())
	}

	// Permission catalog
	v1.POST("/permissions", h.CreatePermission)
	v1.GET("/permissions", h.ListPermissions)
	v1.GET("/permissions/tree", h.GetPermissionTree)
	v1.POST("/permissions/expand", h.ExpandPermissions)
	v1.GET("/permissions/:code", h.GetPermission)
	v1.PUT("/permissions/:code", h.UpdatePermission)
	v1.DELETE("/permissions/:code", h.DeletePermission)

	// Groups
	v1.POST("/groups", h.CreateGroup)
	v1.GET("/groups", h.ListGroups)
	v1.GET("/groups/:id", h.GetGroup)
	v1.PUT("/groups/:id", h.UpdateGroup)
	v1.DELETE("/groups/:id", h.DeleteGroup)
	v1.GET("/groups/:id/permissions", h.GetGroupPermissions)
	v1.PUT("/groups/:id/permissions", h.SetGroupPermissions)
	v1.GET("/groups/:id/users", h.GetGroupUsers)
	v1.PUT("/groups/:id/users", h.SetGroupUsers)

	// Users and memberships
	v1.POST("/users", h.CreateUser)
	v1.GET("/users/:id", h.GetUser)
	v1.DELETE("/users/:id", h.DeleteUser)
	v1.GET("/users/:id/groups", h.GetUserGroups)
	v1.PUT("/users/:id/groups", h.SetUserGroups)
	v1.DELETE("/users/:id/groups/:groupId", h.RemoveUserGroup)
	v1.GET("/users/:id/permissions", h.GetUserPermissions)

	// Audit trail
	v1.GET("/activities", h.QueryActivities)
}
