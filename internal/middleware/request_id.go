package middleware

import (
	contextutils "derjachat/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID in both directions
const RequestIDHeader = "X-Request-ID"

const maxInboundRequestIDLength = 128

// RequestIDMiddleware reuses a sane inbound X-Request-ID or mints a UUID, echoes
// it on the response and stores it in the request context for logs and spans.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > maxInboundRequestIDLength {
			requestID = uuid.NewString()
		}

		c.Header(RequestIDHeader, requestID)
		c.Set(string(contextutils.RequestIDKey), requestID)
		c.Request = c.Request.WithContext(contextutils.WithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}
