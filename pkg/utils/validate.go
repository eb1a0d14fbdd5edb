package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = newValidator()

// newValidator reports fields by their json (UXON) name rather than the Go field name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return field.Name
		}
		return name
	})
	return v
}

// FieldError is one failed rule.
type FieldError struct {
	Field string
	Rule  string
	Param string
	Value any
}

func (f FieldError) String() string {
	if f.Param == "" {
		return fmt.Sprintf("'%s' failed rule '%s'", f.Field, f.Rule)
	}
	return fmt.Sprintf("'%s' failed rule '%s=%s' (got '%v')", f.Field, f.Rule, f.Param, f.Value)
}

type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return strings.Join(parts, "; ")
}

// ToHTTPError is a 400 listing the failed fields in the meta.
func (e *ValidationError) ToHTTPError() *httperror.HTTPError {
	httpErr := httperror.NewHTTPError(http.StatusBadRequest, e.Error())
	for _, f := range e.Fields {
		httpErr = httpErr.AddMetaValue(f.Field, f.Rule)
	}
	return httpErr
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	result := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		// drop the root struct name from Namespace
		_, field, found := strings.Cut(fe.Namespace(), ".")
		if !found {
			field = fe.Field()
		}
		result.Fields = append(result.Fields, FieldError{
			Field: field,
			Rule:  fe.Tag(),
			Param: fe.Param(),
			Value: fe.Value(),
		})
	}
	return result
}

// ParseArguments converts a decoded UXON value (usually map[string]any) into T.
func ParseArguments[T any](args any) (T, error) {
	var result T

	if arg, ok := args.(T); ok {
		return arg, nil
	}

	b, err := json.Marshal(args)
	if err != nil {
		return result, err
	}

	if err = json.Unmarshal(b, &result); err != nil {
		return result, fmt.Errorf("argument %v is not a valid %T: %v", args, result, err)
	}

	return result, nil
}

// ValidateArguments parses args into T and runs the struct validation tags.
func ValidateArguments[T any](args any) (T, error) {
	result, err := ParseArguments[T](args)
	if err != nil {
		return result, err
	}
	return Validate(result)
}

func Validate[T any](value T) (T, error) {
	if err := validate.Struct(value); err != nil {
		return value, toValidationError(err)
	}
	return value, nil
}

// BindRequest binds path params and the body into T and validates it. Failures are
// 400 errors.
func BindRequest[T any](c echo.Context) (T, error) {
	var v T

	if err := c.Bind(&v); err != nil {
		return v, httperror.WrapError(http.StatusBadRequest, err)
	}

	v, err := Validate(v)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return v, verr.ToHTTPError()
		}
		return v, httperror.WrapError(http.StatusBadRequest, err)
	}

	return v, nil
}
