package handler

import (
	"net/http"
	"rbacgate/internal/rbac/model"

	"github.com/labstack/echo/v4"
)

// CheckPermission handles POST /permissions/check. Any internal failure
// answers allowed=false.
func (h *Handler) CheckPermission(c echo.Context) error {
	var req model.CheckPermissionReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid body")
	}

	if err := req.Validate(); err != nil {
		return respondError(c, err)
	}

	ctx := c.Request().Context()
	var allowed bool
	switch {
	case req.Code != "":
		allowed = h.Authz.Check(ctx, req.UserID, req.Code)
	case req.Mode == model.CheckModeAll:
		allowed = h.Authz.CheckAll(ctx, req.UserID, req.Codes)
	default:
		allowed = h.Authz.CheckAny(ctx, req.UserID, req.Codes)
	}

	return c.JSON(http.StatusOK, model.CheckPermissionResponse{Allowed: allowed})
}

// QueryActivities handles GET /activities
func (h *Handler) QueryActivities(c echo.Context) error {
	var req model.QueryActivitiesReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid parameters")
	}

	resp, err := h.Activities.Query(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}
