package handler

import (
    "github.com/go-playground/validator/v10"
)

// RequestValidator plugs go-playground/validator into echo so handlers can
// call c.Validate on bound request bodies.
type RequestValidator struct {
    v *validator.Validate
}

// NewRequestValidator returns a validator using the `validate` struct tag.
func NewRequestValidator() *RequestValidator {
    return &RequestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate implements echo.Validator.
func (r *RequestValidator) Validate(i interface{}) error {
    return r.v.Struct(i)
}

// validationMessage turns the first field error into a short client message.
func validationMessage(err error) string {
    if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
        fe := errs[0]
        switch fe.Tag() {
        case "required":
            return fe.Field() + " is required"
        case "gt", "gte", "min":
            return fe.Field() + " must be at least " + fe.Param()
        case "lte", "max":
            return fe.Field() + " must be at most " + fe.Param()
        }
        return fe.Field() + " is invalid"
    }
    return "invalid request"
}
