package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"derjachat/internal/middleware"
	"derjachat/internal/models"
	contextutils "derjachat/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerTagNamesOnce sync.Once

// useJSONFieldNames makes the binding validator report fields by their JSON
// names, so rendered field errors match what the caller sent.
func useJSONFieldNames() {
	registerTagNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
}

// HandleBindingError renders a failed ShouldBindJSON as a 400 soft error.
// Validator failures are listed field by field.
func HandleBindingError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		middleware.RenderSoftError(c, http.StatusBadRequest, &models.SoftError{
			Code:    string(contextutils.ErrorCodeValidationFailed),
			Message: "Request validation failed",
			Fields:  fieldErrors(validationErrs),
		})
		return
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		middleware.HandleAppError(c, contextutils.WrapErrorf(contextutils.ErrInvalidFormat, "malformed JSON at offset %d", syntaxErr.Offset))
	case errors.Is(err, io.ErrUnexpectedEOF):
		middleware.HandleAppError(c, contextutils.WrapError(contextutils.ErrInvalidFormat, "truncated JSON body"))
	case errors.Is(err, io.EOF):
		middleware.HandleAppError(c, contextutils.WrapError(contextutils.ErrMissingRequired, "request body is required"))
	case errors.As(err, &typeErr):
		middleware.RenderSoftError(c, http.StatusBadRequest, &models.SoftError{
			Code:    string(contextutils.ErrorCodeInvalidFormat),
			Message: "Request body has a field of the wrong type",
			Fields: []models.FieldError{{
				Field:  typeErr.Field,
				Rule:   "type",
				Detail: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value),
			}},
		})
	default:
		middleware.HandleAppError(c, contextutils.WrapError(contextutils.ErrInvalidInput, "request body could not be read"))
	}
}

func fieldErrors(errs validator.ValidationErrors) []models.FieldError {
	fields := make([]models.FieldError, 0, len(errs))
	for _, fe := range errs {
		fields = append(fields, models.FieldError{
			Field:  fieldPath(fe.Namespace()),
			Rule:   fe.Tag(),
			Detail: ruleDetail(fe),
		})
	}
	return fields
}

// fieldPath drops the leading struct name: "ChatRequest.history[0].sender"
// becomes "history[0].sender"
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func ruleDetail(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must have at most " + fe.Param() + " entries"
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed the %s=%s rule", fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("failed the %s rule", fe.Tag())
	}
}
