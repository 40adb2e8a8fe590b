package handler

import (
	"errors"
	"net/http"
	"rbacgate/internal/rbac/model"
	"rbacgate/internal/rbac/service"
	"rbacgate/internal/rbac/util"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// Helper to map errors to HTTP status and body
func httpError(err error) (int, model.ErrorResponse) {
	var (
		status  int
		code    string
		msg     = err.Error()
		details interface{}
	)

	var inUse *service.InUseError
	var refs *service.UnknownRefsError
	var detail *model.ErrorDetail

	switch {
	case errors.As(err, &detail):
		// request validation, already carries its code
		status = http.StatusBadRequest
		code = detail.Code
		msg = detail.Message
	case errors.As(err, &inUse):
		status = http.StatusConflict
		code = "in_use"
		details = map[string][]string{
			"groups":   emptyIfNil(inUse.Groups),
			"children": emptyIfNil(inUse.Children),
		}
	case errors.As(err, &refs):
		status = http.StatusBadRequest
		code = refCode(refs.Err)
		details = map[string][]string{"refs": emptyIfNil(refs.Refs)}
	case errors.Is(err, service.ErrUnauthorized):
		status = http.StatusUnauthorized
		code = "unauthorized"
		msg = "Unauthorized"
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
		code = "forbidden"
		msg = "Permission denied"
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, service.ErrDuplicateCode):
		status = http.StatusConflict
		code = "duplicate_code"
	case errors.Is(err, service.ErrDuplicateUser):
		status = http.StatusConflict
		code = "duplicate_user"
	case errors.Is(err, service.ErrInvalidCodeFormat):
		status = http.StatusBadRequest
		code = "invalid_code_format"
	case errors.Is(err, service.ErrInvalidParent):
		status = http.StatusBadRequest
		code = "invalid_parent"
	case errors.Is(err, service.ErrUnknownPermission),
		errors.Is(err, service.ErrUnknownGroup),
		errors.Is(err, service.ErrUnknownUser),
		errors.Is(err, service.ErrInactivePermission):
		status = http.StatusBadRequest
		code = refCode(err)
	case errors.Is(err, service.ErrBadRequest):
		status = http.StatusBadRequest
		code = "bad_request"
	default:
		status = http.StatusInternalServerError
		code = "internal_error"
		msg = "Internal server error"
	}

	return status, model.ErrorResponse{
		Error: model.ErrorDetail{Code: code, Message: msg, Details: details},
	}
}

func refCode(err error) string {
	switch {
	case errors.Is(err, service.ErrUnknownPermission):
		return "unknown_permission"
	case errors.Is(err, service.ErrUnknownGroup):
		return "unknown_group"
	case errors.Is(err, service.ErrUnknownUser):
		return "unknown_user"
	case errors.Is(err, service.ErrInactivePermission):
		return "inactive_permission"
	}
	return "bad_request"
}

// respondError writes the error envelope stamped with the request id.
func respondError(c echo.Context, err error) error {
	code, body := httpError(err)
	if code == http.StatusInternalServerError {
		util.GetLogger().WithError(err).WithFields(logrus.Fields{
			"method":     c.Request().Method,
			"path":       c.Path(),
			"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
		}).Error("request failed")
	}
	body.Error.RequestID = c.Response().Header().Get(echo.HeaderXRequestID)
	return c.JSON(code, body)
}

func badRequest(c echo.Context, msg string) error {
	return respondError(c, &model.ErrorDetail{Code: "bad_request", Message: msg})
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
