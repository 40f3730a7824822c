package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"derjachat/internal/models"
	"derjachat/internal/observability"
	contextutils "derjachat/internal/utils"

	"github.com/gin-gonic/gin"
)

// ErrorRecoveryMiddleware turns a panic anywhere in the handler chain into
// the soft-error body with status 500, so callers always get a well-formed reply.
func ErrorRecoveryMiddleware(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				stackTrace := string(debug.Stack())

				panicErr, ok := rec.(error)
				if !ok {
					panicErr = fmt.Errorf("panic: %v", rec)
				}

				appErr := contextutils.NewAppErrorWithCause(
					contextutils.ErrorCodeInternalError,
					contextutils.SeverityFatal,
					"Internal server error",
					"A panic occurred while processing the request",
					panicErr,
				)

				if logger != nil {
					logger.Error(c.Request.Context(), "Panic recovered", panicErr, map[string]interface{}{
						"http.method": c.Request.Method,
						"http.path":   c.Request.URL.Path,
						"stack":       stackTrace,
					})
				}

				HandleAppError(c, appErr)
				c.Abort()
			}
		}()

		c.Next()
	}
}

// HandleAppError renders err as the soft-error body with the status its code maps to
func HandleAppError(c *gin.Context, err error) {
	if appErr, ok := err.(*contextutils.AppError); ok {
		StandardizeAppError(c, appErr)
		return
	}
	StandardizeAppError(c, contextutils.NewAppErrorWithCause(
		contextutils.ErrorCodeInternalError,
		contextutils.SeverityError,
		"Internal server error",
		"",
		err,
	))
}

// StandardizeAppError sends the soft-error body for an AppError. Caller-input
// errors keep their message; server-side ones get a generic text so no
// internal or upstream detail leaks.
func StandardizeAppError(c *gin.Context, err *contextutils.AppError) {
	statusCode := mapErrorCodeToHTTPStatus(err.Code)

	message := err.Message
	if statusCode >= http.StatusInternalServerError {
		message = contextutils.DefaultMessage(err.Code)
	}

	RenderSoftError(c, statusCode, &models.SoftError{Code: string(err.Code), Message: message})
}

// RenderSoftError writes {reply, error} with a reply text localized from the
// Accept-Language header
func RenderSoftError(c *gin.Context, statusCode int, softErr *models.SoftError) {
	locale := contextutils.ParseLocale(c.GetHeader("Accept-Language"))

	reply := contextutils.GetLocalizedMessage(contextutils.ErrorCode(softErr.Code), locale)
	if statusCode >= http.StatusInternalServerError {
		reply = contextutils.SoftFailureMessage(locale)
	}

	c.JSON(statusCode, models.ChatResponse{Reply: reply, Error: softErr})
}

// mapErrorCodeToHTTPStatus maps AppError codes to HTTP status codes
func mapErrorCodeToHTTPStatus(code contextutils.ErrorCode) int {
	switch code {
	// 4xx Client Errors
	case contextutils.ErrorCodeInvalidInput, contextutils.ErrorCodeMissingRequired,
		contextutils.ErrorCodeInvalidFormat, contextutils.ErrorCodeValidationFailed:
		return http.StatusBadRequest

	case contextutils.ErrorCodeRequestTooLarge:
		return http.StatusRequestEntityTooLarge

	// 5xx Server Errors
	case contextutils.ErrorCodeServiceUnavailable, contextutils.ErrorCodeAIProviderUnavailable:
		return http.StatusServiceUnavailable

	case contextutils.ErrorCodeTimeout:
		return http.StatusGatewayTimeout

	case contextutils.ErrorCodeAIRequestFailed, contextutils.ErrorCodeAIResponseInvalid,
		contextutils.ErrorCodeAIConfigInvalid, contextutils.ErrorCodeSearchFailed,
		contextutils.ErrorCodeFetchFailed:
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}
