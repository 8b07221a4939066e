package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		validate = v
	})
	return validate
}

// bind decodes the JSON body into v and validates its tags. On failure the
// error response is written and false is returned.
func bind(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeJSON(w, r, v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return false
	}
	if err := getValidator().Struct(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    "validation_failed",
			Message: ErrBadRequest.Error(),
			Fields:  formatValidationError(err),
		})
		return false
	}
	return true
}

// formatValidationError turns validator errors into a field -> message map.
func formatValidationError(err error) map[string]string {
	errs := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errs["error"] = "invalid request format"
		return errs
	}

	for _, e := range validationErrors {
		field := e.Field()
		switch e.Tag() {
		case "required":
			errs[field] = "this field is required"
		case "oneof":
			errs[field] = "must be one of: " + e.Param()
		case "max":
			errs[field] = fmt.Sprintf("must be at most %s", e.Param())
		case "min", "gte":
			errs[field] = fmt.Sprintf("must be at least %s", e.Param())
		case "url":
			errs[field] = "must be a URL"
		default:
			errs[field] = "invalid value"
		}
	}
	return errs
}
