package validation

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"gueststay/internal/app/middleware"
	"gueststay/internal/domain/shared/money"
)

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Error carries every rejected field and matches middleware.ErrValidation.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *Error) Unwrap() error { return middleware.ErrValidation }

// Validator checks `validate` struct tags on commands and queries.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(moneyValue, money.Money{})
	return &Validator{v: v}
}

// moneyValue lets numeric tags such as gt=0 apply to money amounts.
func moneyValue(field reflect.Value) any {
	if m, ok := field.Interface().(money.Money); ok {
		return m.Float64()
	}
	return nil
}

func (v *Validator) Validate(ctx context.Context, message any) error {
	if message == nil {
		return &Error{Fields: []FieldError{{Field: "message", Message: "This field is required", Type: "required"}}}
	}
	rv := reflect.ValueOf(message)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	err := v.v.StructCtx(ctx, message)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   lowerFirst(fe.Field()),
			Message: describe(fe),
			Type:    fe.Tag(),
		})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "max":
		return "Value is too long"
	case "gt":
		return "Value must be greater than " + fe.Param()
	case "gte":
		return "Value must be greater than or equal to " + fe.Param()
	case "datetime":
		return "Value must be a date formatted as " + fe.Param()
	default:
		return "Invalid value"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

var _ middleware.Validator = (*Validator)(nil)
