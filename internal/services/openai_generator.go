package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"derjachat/internal/config"
	"derjachat/internal/models"
	"derjachat/internal/observability"
	contextutils "derjachat/internal/utils"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// maxGenerationBodyBytes caps how much of a completion response is read
const maxGenerationBodyBytes = 4 << 20

// OpenAIRequest represents a request to the OpenAI-compatible API
type OpenAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Message represents a chat message in the API request. Content is either a
// string or a list of ContentPart for multimodal turns.
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// ContentPart is one element of a multimodal message
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries an image as a data: URL
type ImageURL struct {
	URL string `json:"url"`
}

// OpenAIResponse represents a response from the OpenAI-compatible API
type OpenAIResponse struct {
	Choices []Choice  `json:"choices"`
	Error   *APIError `json:"error,omitempty"`
}

// Choice represents a choice in the API response
type Choice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// APIError represents an error response from the API
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// OpenAICompatibleGenerator posts to {url}/chat/completions of any
// OpenAI-compatible server
type OpenAICompatibleGenerator struct {
	httpClient   *http.Client
	baseURL      string
	model        string
	apiKey       string
	providerCode string
	logger       *observability.Logger
}

// NewOpenAICompatibleGenerator creates a generator for the given provider
func NewOpenAICompatibleGenerator(cfg *config.Config, provider *config.ProviderConfig, logger *observability.Logger) (*OpenAICompatibleGenerator, error) {
	if provider == nil || provider.URL == "" {
		return nil, contextutils.WrapError(contextutils.ErrAIConfigInvalid, "an OpenAI-compatible provider needs a url")
	}
	if cfg.Generation.Model == "" {
		return nil, contextutils.WrapError(contextutils.ErrAIConfigInvalid, "generation.model is required")
	}

	return &OpenAICompatibleGenerator{
		httpClient: &http.Client{
			Timeout: cfg.GenerationTimeout(),
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanOptions(trace.WithSpanKind(trace.SpanKindClient)),
			),
		},
		baseURL:      strings.TrimRight(provider.URL, "/"),
		model:        cfg.Generation.Model,
		apiKey:       cfg.Generation.APIKey,
		providerCode: provider.Code,
		logger:       logger,
	}, nil
}

// Name identifies the provider kind
func (g *OpenAICompatibleGenerator) Name() string { return "openai" }

// Generate sends one chat completion request
func (g *OpenAICompatibleGenerator) Generate(ctx context.Context, genReq *models.GenerationRequest) (result0 string, err error) {
	ctx, span := observability.TraceAIFunction(ctx, "call_openai",
		observability.AttributeProvider(g.providerCode),
		attribute.String("ai.model", g.model),
		attribute.String("ai.purpose", genReq.Purpose),
		attribute.Int("segments.count", len(genReq.Segments)),
		attribute.Bool("inline.present", genReq.HasInline()),
	)
	defer observability.FinishSpan(span, &err)

	if len(genReq.Segments) == 0 {
		span.SetAttributes(attribute.String("call.result", "empty_prompt"))
		return "", contextutils.WrapError(contextutils.ErrAIConfigInvalid, "prompt cannot be empty")
	}

	reqBody := OpenAIRequest{
		Model:       g.model,
		Messages:    toOpenAIMessages(genReq.Segments),
		Temperature: genReq.Temperature,
		MaxTokens:   genReq.MaxOutputTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		span.SetAttributes(attribute.String("call.result", "marshal_failed"))
		return "", contextutils.WrapErrorf(err, "failed to marshal request body")
	}

	url := g.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		span.SetAttributes(attribute.String("call.result", "request_creation_failed"))
		return "", contextutils.WrapErrorf(err, "failed to create HTTP request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", config.DefaultUserAgent)
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	startTime := time.Now()
	resp, err := g.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		span.SetAttributes(attribute.String("call.result", "http_request_failed"), attribute.String("duration", duration.String()))
		return "", contextutils.WrapErrorf(contextutils.ErrAIRequestFailed, "HTTP request failed after %v: %v", duration, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			g.logger.Warn(ctx, "Failed to close response body", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	g.logger.Debug(ctx, "Generation HTTP request completed", map[string]interface{}{
		"purpose":     genReq.Purpose,
		"duration":    duration.String(),
		"status_code": resp.StatusCode,
	})

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGenerationBodyBytes))
	if err != nil {
		span.SetAttributes(attribute.String("call.result", "body_read_failed"))
		return "", contextutils.WrapErrorf(contextutils.ErrAIRequestFailed, "failed to read response body: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetAttributes(attribute.String("call.result", "http_error"), attribute.Int("status_code", resp.StatusCode))
		return "", contextutils.WrapErrorf(contextutils.ErrAIRequestFailed, "API request failed with status %d: %s",
			resp.StatusCode, contextutils.TruncateRunes(string(body), 500))
	}

	var openAIResp OpenAIResponse
	if err := json.Unmarshal(body, &openAIResp); err != nil {
		// an unreadable envelope is an empty answer, not a failed call
		span.SetAttributes(attribute.String("call.result", "json_unmarshal_failed"))
		g.logger.Warn(ctx, "Unreadable generation response envelope", map[string]interface{}{
			"error":       err.Error(),
			"body_length": len(body),
		})
		return "", nil
	}

	if openAIResp.Error != nil {
		span.SetAttributes(attribute.String("call.result", "api_error"), attribute.String("error_type", openAIResp.Error.Type))
		return "", contextutils.WrapErrorf(contextutils.ErrAIRequestFailed, "API error: %s", openAIResp.Error.Message)
	}

	if len(openAIResp.Choices) == 0 {
		span.SetAttributes(attribute.String("call.result", "no_choices"))
		return "", nil
	}

	content := StripThinking(openAIResp.Choices[0].Message.Content)
	span.SetAttributes(attribute.String("call.result", "success"), attribute.Int("content_length", len(content)), attribute.String("duration", duration.String()))
	return content, nil
}

// Shutdown releases idle connections
func (g *OpenAICompatibleGenerator) Shutdown(ctx context.Context) error {
	g.httpClient.CloseIdleConnections()
	g.logger.Info(ctx, "OpenAI-compatible generator shutdown completed")
	return nil
}

func toOpenAIMessages(segments []models.Segment) []Message {
	messages := make([]Message, 0, len(segments))
	for _, seg := range segments {
		role := string(seg.Role)
		if seg.Role == models.RoleModel {
			role = "assistant"
		}
		if seg.Inline == nil {
			messages = append(messages, Message{Role: role, Content: seg.Text})
			continue
		}
		parts := []ContentPart{}
		if seg.Text != "" {
			parts = append(parts, ContentPart{Type: "text", Text: seg.Text})
		}
		parts = append(parts, ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: seg.Inline.DataURL()}})
		messages = append(messages, Message{Role: role, Content: parts})
	}
	return messages
}

var (
	thinkingTags  = regexp.MustCompile(`(?is)<(think|thinking|reasoning)>.*?</(think|thinking|reasoning)>`)
	thinkingFence = regexp.MustCompile("(?s)```(?:thinking|think|reasoning)\\s*\\n.*?```")
)

// StripThinking removes the reasoning blocks some models prepend to their answer
func StripThinking(content string) string {
	content = thinkingTags.ReplaceAllString(content, "")
	content = thinkingFence.ReplaceAllString(content, "")
	return strings.TrimSpace(content)
}
