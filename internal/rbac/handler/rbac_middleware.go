package handler

import (
	"rbacgate/internal/rbac/model"
	"rbacgate/internal/rbac/policy"
	"rbacgate/internal/rbac/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// RBACMiddleware guards routes with the permissions named in the route policies
type RBACMiddleware struct {
	authz    Authorizer
	policies map[string]*policy.RoutePolicy // key: "METHOD:PATH"
	log      *logrus.Logger
}

func NewRBACMiddleware(authz Authorizer, policies map[string]*policy.RoutePolicy, log *logrus.Logger) *RBACMiddleware {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RBACMiddleware{authz: authz, policies: policies, log: log}
}

// Middleware returns the Echo middleware function
func (m *RBACMiddleware) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// 1. Build lookup key
			key := c.Request().Method + ":" + c.Path()

			// 2. Routes without a policy pass through
			p, exists := m.policies[key]
			if !exists || len(p.Permissions) == 0 {
				return next(c)
			}

			// 3. Extract caller ID
			callerID, err := extractCallerID(c)
			if err != nil {
				return respondError(c, err)
			}

			if p.AllowSelf != "" && c.Param(p.AllowSelf) == callerID {
				return next(c)
			}

			// 4. Check permission
			ctx := c.Request().Context()
			var allowed bool
			if p.Mode == model.CheckModeAll {
				allowed = m.authz.CheckAll(ctx, callerID, p.Permissions)
			} else {
				allowed = m.authz.CheckAny(ctx, callerID, p.Permissions)
			}

			if !allowed {
				m.log.WithFields(logrus.Fields{
					"user_id": callerID,
					"route":   key,
				}).Debug("route denied")
				return respondError(c, service.ErrForbidden)
			}

			return next(c)
		}
	}
}
