package handler

import (
	"net/http"
	"rbacgate/internal/rbac/model"
	"strconv"

	"github.com/labstack/echo/v4"
)

// CreatePermission handles POST /permissions
func (h *Handler) CreatePermission(c echo.Context) error {
	actor, err := extractActor(c)
	if err != nil {
		return respondError(c, err)
	}

	var req model.CreatePermissionReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid body")
	}

	perm, err := h.Service.CreatePermission(c.Request().Context(), actor, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, perm)
}

func (h *Handler) ListPermissions(c echo.Context) error {
	var req model.ListPermissionsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid parameters")
	}

	resp, err := h.Service.ListPermissions(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetPermissionTree(c echo.Context) error {
	tree, err := h.Service.PermissionTree(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": tree})
}

func (h *Handler) GetPermission(c echo.Context) error {
	perm, err := h.Service.GetPermission(c.Request().Context(), c.Param("code"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, perm)
}

// UpdatePermission handles PUT /permissions/:code
func (h *Handler) UpdatePermission(c echo.Context) error {
	actor, err := extractActor(c)
	if err != nil {
		return respondError(c, err)
	}

	var req model.UpdatePermissionReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid body")
	}

	perm, err := h.Service.UpdatePermission(c.Request().Context(), actor, c.Param("code"), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, perm)
}

// DeletePermission handles DELETE /permissions/:code?force=true
func (h *Handler) DeletePermission(c echo.Context) error {
	actor, err := extractActor(c)
	if err != nil {
		return respondError(c, err)
	}

	force := false
	if raw := c.QueryParam("force"); raw != "" {
		force, err = strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "force must be a boolean")
		}
	}

	if err := h.Service.DeletePermission(c.Request().Context(), actor, c.Param("code"), force); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ExpandPermissions handles POST /permissions/expand
func (h *Handler) ExpandPermissions(c echo.Context) error {
	var req model.ExpandCodesReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid body")
	}
	if err := req.Validate(); err != nil {
		return respondError(c, err)
	}

	codes, err := h.Service.ExpandCodes(c.Request().Context(), req.Codes)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, model.ExpandCodesResp{Codes: codes})
}
