package model

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

func GetValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("permcode", func(fl validator.FieldLevel) bool {
			return ValidCode(fl.Field().String())
		})
	})
	return validate
}

// FormatValidationError converts validator errors to ErrorDetail
// This is a helper for Validate() methods to keep consistent error return types
func FormatValidationError(err error) *ErrorDetail {
	if err == nil {
		return nil
	}

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		// Report the first failing field only.
		e := validationErrors[0]
		code := "bad_request"
		if e.Tag() == "permcode" {
			code = "invalid_code_format"
		}
		return &ErrorDetail{
			Code:    code,
			Message: "Field validation for '" + e.Field() + "' failed on the '" + e.Tag() + "' tag",
		}
	}

	return &ErrorDetail{
		Code:    "bad_request",
		Message: err.Error(),
	}
}
