package handler

import (
	"net/http"
	"rbacgate/internal/rbac/model"

	"github.com/labstack/echo/v4"
)

func (h *Handler) CreateGroup(c echo.Context) error {
	actor, err := extractActor(c)
	if err != nil {
		return respondError(c, err)
	}

	var req model.CreateGroupReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid body")
	}

	group, err := h.Service.CreateGroup(c.Request().Context(), actor, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, group)
}

func (h *Handler) ListGroups(c echo.Context) error {
	var req model.ListGroupsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid parameters")
	}

	resp, err := h.Service.ListGroups(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetGroup(c echo.Context) error {
	group, err := h.Service.GetGroup(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, group)
}

func (h *Handler) UpdateGroup(c echo.Context) error {
	actor, err := extractActor(c)
	if err != nil {
		return respondError(c, err)
	}

	var req model.UpdateGroupReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid body")
	}

	group, err := h.Service.UpdateGroup(c.Request().Context(), actor, c.Param("id"), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, group)
}

func (h *Handler) DeleteGroup(c echo.Context) error {
	actor, err := extractActor(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := h.Service.DeleteGroup(c.Request().Context(), actor, c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetGroupPermissions handles GET /groups/:id/permissions
func (h *Handler) GetGroupPermissions(c echo.Context) error {
	codes, err := h.Service.GetGroupPermissions(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"codes": emptyIfNil(codes)})
}

// SetGroupPermissions handles PUT /groups/:id/permissions, replacing the
// whole set and answering with the applied delta.
func (h *Handler) SetGroupPermissions(c echo.Context) error {
	actor, err := extractActor(c)
	if err != nil {
		return respondError(c, err)
	}

	var req model.SetGroupPermissionsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid body")
	}

	delta, err := h.Service.SetGroupPermissions(c.Request().Context(), actor, c.Param("id"), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, delta)
}

func (h *Handler) GetGroupUsers(c echo.Context) error {
	users, err := h.Service.GetGroupUsers(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": users})
}

func (h *Handler) SetGroupUsers(c echo.Context) error {
	actor, err := extractActor(c)
	if err != nil {
		return respondError(c, err)
	}

	var req model.SetGroupUsersReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid body")
	}

	delta, err := h.Service.SetUsersForGroup(c.Request().Context(), actor, c.Param("id"), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, delta)
}
