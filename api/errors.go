package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/warp/vacation-engine/vacation"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CodeValidation is reported for malformed bodies and query strings.
const CodeValidation = "VALIDATION_ERROR"

// newValidator reports fields by their json name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// statusFor maps an engine failure kind onto an HTTP status.
func statusFor(kind vacation.Kind) int {
	switch kind {
	case vacation.KindInvalidDateRange, vacation.KindInvalidArgument:
		return http.StatusBadRequest
	case vacation.KindNotFound:
		return http.StatusNotFound
	case vacation.KindConflict:
		return http.StatusConflict
	case vacation.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError renders err. Internal failures are logged and their message
// is replaced with a generic one.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := vacation.KindOf(err)
	status := statusFor(kind)

	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		message = "internal server error"
	}

	writeJSON(w, status, ErrorResponse{Code: string(kind), Message: message})
}

// writeValidationError renders a 400 listing every rejected field.
func writeValidationError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Code: CodeValidation, Message: "invalid input"}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			resp.Errors = append(resp.Errors, FieldError{
				Field:   fe.Field(),
				Message: fieldMessage(fe),
			})
		}
		resp.Message = resp.Errors[0].Message
	} else {
		resp.Message = err.Error()
	}

	writeJSON(w, http.StatusBadRequest, resp)
}

func fieldMessage(fe validator.FieldError) string {
	name := humanize(fe.Field())
	switch fe.Tag() {
	case "required", "required_without":
		return name + " is required"
	case "datetime":
		return name + " must be a valid date (YYYY-MM-DD)"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "max":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Ptr {
			return fmt.Sprintf("%s must not exceed %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	default:
		return name + " is invalid"
	}
}

// humanize turns start_date into "Start Date".
func humanize(field string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(field, "_", " "))
}
