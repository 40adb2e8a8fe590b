package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrBadRequest         = errors.New("bad request")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCodeFormat  = errors.New("invalid code format")
	ErrDuplicateCode      = errors.New("duplicate code")
	ErrDuplicateUser      = errors.New("user already exists")
	ErrInvalidParent      = errors.New("invalid parent")
	ErrInUse              = errors.New("in use")
	ErrUnknownPermission  = errors.New("unknown permission")
	ErrUnknownGroup       = errors.New("unknown group")
	ErrUnknownUser        = errors.New("unknown user")
	ErrInactivePermission = errors.New("inactive permission")
)

// InUseError blocks deletion of a permission that is still referenced.
type InUseError struct {
	Code     string
	Groups   []string
	Children []string
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("permission %s is in use by %d group(s) and %d child permission(s)",
		e.Code, len(e.Groups), len(e.Children))
}

func (e *InUseError) Unwrap() error { return ErrInUse }

// UnknownRefsError carries the offending references of a set-replace call.
// Err is one of ErrUnknownPermission, ErrUnknownGroup, ErrUnknownUser or
// ErrInactivePermission.
type UnknownRefsError struct {
	Err  error
	Refs []string
}

func (e *UnknownRefsError) Error() string {
	return e.Err.Error() + ": " + strings.Join(e.Refs, ", ")
}

func (e *UnknownRefsError) Unwrap() error { return e.Err }
