package handler

import (
	"context"
	"net/http"
	"rbacgate/internal/rbac/model"
	"rbacgate/internal/rbac/service"

	"github.com/labstack/echo/v4"
)

// Authorizer answers permission checks; *authz.Gate implements it.
type Authorizer interface {
	Check(ctx context.Context, userID, code string) bool
	CheckAny(ctx context.Context, userID string, codes []string) bool
	CheckAll(ctx context.Context, userID string, codes []string) bool
	Effective(ctx context.Context, userID string) []string
}

type ActivityQuerier interface {
	Query(ctx context.Context, req model.QueryActivitiesReq) (*model.QueryActivitiesResp, error)
}

type Handler struct {
	Service    service.RBACService
	Authz      Authorizer
	Activities ActivityQuerier
}

func NewHandler(s service.RBACService, authz Authorizer, activities ActivityQuerier) *Handler {
	return &Handler{Service: s, Authz: authz, Activities: activities}
}

// CallerHeader carries the authenticated caller's user id.
const CallerHeader = "x-user-id"

func extractCallerID(c echo.Context) (string, error) {
	callerID := c.Request().Header.Get(CallerHeader)
	if callerID == "" {
		return "", service.ErrUnauthorized
	}
	return callerID, nil
}

// extractActor builds the audit actor for a mutating request.
func extractActor(c echo.Context) (model.Actor, error) {
	callerID, err := extractCallerID(c)
	if err != nil {
		return model.Actor{}, err
	}
	return model.Actor{
		UserID:    callerID,
		IPAddress: c.RealIP(),
		Method:    c.Request().Method,
		Path:      c.Request().URL.Path,
	}, nil
}

func HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
