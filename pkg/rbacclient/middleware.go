package rbacclient

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequirePermission is echo middleware for consuming services. The caller
// is read from the x-user-id header; a missing caller or a deny answers 403.
func (c *Client) RequirePermission(code string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			userID := ec.Request().Header.Get("x-user-id")
			if userID == "" || !c.Check(ec.Request().Context(), userID, code) {
				return ec.JSON(http.StatusForbidden, map[string]interface{}{
					"error": map[string]string{"code": "forbidden", "message": "Permission denied"},
				})
			}
			return next(ec)
		}
	}
}
