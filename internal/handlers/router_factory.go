package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"

	"derjachat/internal/config"
	"derjachat/internal/middleware"
	"derjachat/internal/observability"
	"derjachat/internal/services"
	contextutils "derjachat/internal/utils"
	"derjachat/internal/version"
)

// IMPORTANT: When adding new POST endpoints, bind them to a request schema in
// bindSchemas so the body limit and schema check apply.

// NewRouter creates the gin engine with all middleware and routes
func NewRouter(
	cfg *config.Config,
	chatService services.ChatServiceInterface,
	logger *observability.Logger,
) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	schemas, err := middleware.LoadEmbeddedSchemas()
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load request schemas: %w", err)
	}
	bindSchemas(schemas)

	router := gin.New()
	router.Use(middleware.ErrorRecoveryMiddleware(logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(requestLogger(logger))

	// Health check endpoint (defined before tracing so probes stay out of traces)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.OpenTelemetry.ServiceName})
	})

	router.Use(observability.GinMiddleware(cfg.OpenTelemetry.ServiceName))
	router.Use(observability.GinErrorAttributes())

	router.RedirectTrailingSlash = false

	router.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))

	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.IsDevelopment = cfg.Server.Debug
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	chatHandler := NewChatHandler(chatService, cfg, logger)

	v1 := router.Group("/v1")
	v1.Use(middleware.RequestValidationMiddleware(schemas, cfg.Server.MaxRequestBytes, logger))
	{
		v1.GET("/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, version.Current(cfg.OpenTelemetry.ServiceName))
		})
		v1.POST("/chat", chatHandler.Chat)
		v1.POST("/quiz", chatHandler.Quiz)
	}

	if cfg.Server.Debug {
		routeListing := NewRouteListingHandler(cfg.OpenTelemetry.ServiceName)
		v1.GET("/routes", routeListing.GetRouteListingJSON)
		routeListing.CollectRoutes(router)
	}

	return router, nil
}

func bindSchemas(schemas *middleware.SchemaLoader) {
	schemas.Route(http.MethodPost, "/v1/chat", "chat_request")
	schemas.Route(http.MethodPost, "/v1/quiz", "chat_request")
}

// corsConfig allows the configured origins with credentials, or any origin
// without credentials when none are configured.
func corsConfig(origins []string) cors.Config {
	corsConfig := cors.DefaultConfig()
	if len(origins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Accept-Language", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	return corsConfig
}

// requestLogger logs one line per request at a level chosen by status code
func requestLogger(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		statusCode := c.Writer.Status()
		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": statusCode,
			"http.latency_ms":  time.Since(start).Milliseconds(),
			"http.client_ip":   c.ClientIP(),
			"http.user_agent":  c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}

		switch {
		case statusCode >= 500:
			fields["http.error_type"] = "server_error"
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		case statusCode >= 400:
			fields["http.error_type"] = "client_error"
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		default:
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	}
}
