package handler

import (
	"net/http"
	"rbacgate/internal/rbac/model"

	"github.com/labstack/echo/v4"
)

func (h *Handler) CreateUser(c echo.Context) error {
	actor, err := extractActor(c)
	if err != nil {
		return respondError(c, err)
	}

	var req model.CreateUserReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid body")
	}

	user, err := h.Service.CreateUser(c.Request().Context(), actor, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *Handler) GetUser(c echo.Context) error {
	user, err := h.Service.GetUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	actor, err := extractActor(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := h.Service.DeleteUser(c.Request().Context(), actor, c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetUserGroups(c echo.Context) error {
	groups, err := h.Service.GetUserGroups(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": groups})
}

// SetUserGroups handles PUT /users/:id/groups
func (h *Handler) SetUserGroups(c echo.Context) error {
	actor, err := extractActor(c)
	if err != nil {
		return respondError(c, err)
	}

	var req model.SetUserGroupsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid body")
	}

	delta, err := h.Service.SetGroupsForUser(c.Request().Context(), actor, c.Param("id"), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, delta)
}

// RemoveUserGroup handles DELETE /users/:id/groups/:groupId
func (h *Handler) RemoveUserGroup(c echo.Context) error {
	actor, err := extractActor(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := h.Service.RemoveUserFromGroup(c.Request().Context(), actor, c.Param("id"), c.Param("groupId")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetUserPermissions handles GET /users/:id/permissions
func (h *Handler) GetUserPermissions(c echo.Context) error {
	userID := c.Param("id")
	return c.JSON(http.StatusOK, model.EffectivePermissionsResponse{
		UserID:      userID,
		Permissions: h.Authz.Effective(c.Request().Context(), userID),
	})
}
