package handlers

import (
	"context"
	"net/http"

	"derjachat/internal/config"
	"derjachat/internal/middleware"
	"derjachat/internal/models"
	"derjachat/internal/observability"
	"derjachat/internal/services"
	contextutils "derjachat/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// ChatHandler serves the chat and quiz endpoints
type ChatHandler struct {
	chatService services.ChatServiceInterface
	cfg         *config.Config
	logger      *observability.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(chatService services.ChatServiceInterface, cfg *config.Config, logger *observability.Logger) *ChatHandler {
	useJSONFieldNames()
	return &ChatHandler{
		chatService: chatService,
		cfg:         cfg,
		logger:      logger,
	}
}

// Chat handles POST /v1/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	h.serve(c, "chat", h.chatService.Reply)
}

// Quiz handles POST /v1/quiz. The request is always answered in quiz mode.
func (h *ChatHandler) Quiz(c *gin.Context) {
	h.serve(c, "quiz", h.chatService.ReplyQuiz)
}

type replyFunc func(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error)

func (h *ChatHandler) serve(c *gin.Context, endpoint string, reply replyFunc) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), endpoint)
	defer observability.FinishSpan(span, nil)

	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn(ctx, "Invalid chat request", map[string]interface{}{
			"endpoint": endpoint,
			"error":    err.Error(),
		})
		span.SetAttributes(attribute.String("call.result", "bind_failed"))
		HandleBindingError(c, err)
		return
	}

	span.SetAttributes(
		attribute.Int("request.message_length", len(req.Message)),
		attribute.Int("request.history_turns", len(req.History)),
		attribute.Bool("request.has_document", req.DocumentText != ""),
		attribute.Bool("request.has_image", req.Image != nil),
	)

	resp, err := reply(ctx, &req)
	if err != nil {
		code := contextutils.GetErrorCode(err)
		h.logger.Warn(ctx, "Chat request rejected", map[string]interface{}{
			"endpoint":   endpoint,
			"error_code": string(code),
			"error":      err.Error(),
		})
		span.SetAttributes(
			attribute.String("call.result", "rejected"),
			attribute.String("error.code", string(code)),
		)
		_ = c.Error(err)
		middleware.HandleAppError(c, err)
		return
	}

	span.SetAttributes(attribute.Bool("response.is_quiz", resp.IsQuiz))
	if resp.Meta != nil {
		span.SetAttributes(
			attribute.Bool("response.degraded", resp.Meta.Degraded),
			attribute.Bool("response.grounded", resp.Meta.Grounded),
		)
	}
	if resp.Error != nil {
		span.SetAttributes(attribute.String("response.soft_error", resp.Error.Code))
	}

	c.JSON(http.StatusOK, resp)
}
