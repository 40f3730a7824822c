package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"derjachat/internal/models"
	"derjachat/internal/observability"
	contextutils "derjachat/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// RequestValidationMiddleware bounds request bodies to maxBytes and checks
// JSON bodies of routes bound in the loader against their schema. The body is
// restored so handlers can bind it.
func RequestValidationMiddleware(schemaLoader *SchemaLoader, maxBytes int64, logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "request_validation",
			attribute.String("http.path", c.Request.URL.Path),
		)
		defer span.End()

		body, err := readBounded(c.Request.Body, maxBytes)
		if err != nil {
			span.SetAttributes(attribute.String("validation.result", "too_large"))
			logger.Warn(ctx, "Request body rejected", map[string]interface{}{
				"method":    c.Request.Method,
				"path":      c.Request.URL.Path,
				"max_bytes": maxBytes,
				"error":     err.Error(),
			})
			HandleAppError(c, contextutils.WrapError(contextutils.ErrRequestTooLarge, "request body exceeds the configured limit"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		schemaName := schemaLoader.SchemaFor(c.Request.Method, c.FullPath())
		if schemaName == "" || len(body) == 0 {
			span.SetAttributes(attribute.String("validation.result", "skipped"))
			c.Next()
			return
		}
		span.SetAttributes(attribute.String("validation.schema", schemaName))

		violations, err := schemaLoader.ValidateJSON(body, schemaName)
		if err != nil {
			span.SetAttributes(attribute.String("validation.result", "unparsable"))
			logger.Warn(ctx, "Request body is not valid JSON", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			HandleAppError(c, err)
			c.Abort()
			return
		}
		if len(violations) > 0 {
			span.SetAttributes(
				attribute.String("validation.result", "failed"),
				attribute.Int("validation.violations", len(violations)),
			)
			fields := make([]models.FieldError, 0, len(violations))
			for _, v := range violations {
				fields = append(fields, models.FieldError{Field: v.Field, Rule: v.Rule, Detail: v.Description})
			}
			logger.Info(ctx, "Request body failed schema validation", map[string]interface{}{
				"path":       c.Request.URL.Path,
				"schema":     schemaName,
				"violations": len(violations),
				"first":      violations[0].String(),
			})
			RenderSoftError(c, http.StatusBadRequest, &models.SoftError{
				Code:    string(contextutils.ErrorCodeValidationFailed),
				Message: "Request body does not match the " + schemaName + " schema",
				Fields:  fields,
			})
			c.Abort()
			return
		}

		span.SetAttributes(attribute.String("validation.result", "passed"))
		c.Next()
	}
}

var errBodyTooLarge = errors.New("request body too large")

// readBounded reads at most maxBytes; a longer body is an error. A
// non-positive maxBytes disables the bound.
func readBounded(body io.ReadCloser, maxBytes int64) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	defer func() { _ = body.Close() }()

	if maxBytes <= 0 {
		return io.ReadAll(body)
	}
	data, err := io.ReadAll(io.LimitReader(body, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, errBodyTooLarge
	}
	return data, nil
}
