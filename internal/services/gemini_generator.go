package services

import (
	"context"
	"net/http"
	"strings"

	"derjachat/internal/config"
	"derjachat/internal/models"
	"derjachat/internal/observability"
	contextutils "derjachat/internal/utils"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

// GeminiGenerator calls the Gemini API through the genai SDK
type GeminiGenerator struct {
	client       *genai.Client
	httpClient   *http.Client
	model        string
	providerCode string
	logger       *observability.Logger
}

// NewGeminiGenerator creates a Gemini generator. A provider url, when set,
// overrides the SDK's base URL.
func NewGeminiGenerator(ctx context.Context, cfg *config.Config, provider *config.ProviderConfig, logger *observability.Logger) (*GeminiGenerator, error) {
	if cfg.Generation.APIKey == "" {
		return nil, contextutils.WrapError(contextutils.ErrAIConfigInvalid, "generation.api_key is required for gemini")
	}
	if cfg.Generation.Model == "" {
		return nil, contextutils.WrapError(contextutils.ErrAIConfigInvalid, "generation.model is required")
	}

	httpClient := &http.Client{
		Timeout: cfg.GenerationTimeout(),
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanOptions(trace.WithSpanKind(trace.SpanKindClient)),
		),
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     cfg.Generation.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if provider != nil && provider.URL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: provider.URL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrAIConfigInvalid, "failed to create GenAI client: %v", err)
	}

	code := "gemini"
	if provider != nil {
		code = provider.Code
	}
	return &GeminiGenerator{
		client:       client,
		httpClient:   httpClient,
		model:        cfg.Generation.Model,
		providerCode: code,
		logger:       logger,
	}, nil
}

// Name identifies the provider kind
func (g *GeminiGenerator) Name() string { return "gemini" }

// Generate sends one GenerateContent call. System segments become the
// system instruction; the rest keep their order.
func (g *GeminiGenerator) Generate(ctx context.Context, genReq *models.GenerationRequest) (result0 string, err error) {
	ctx, span := observability.TraceAIFunction(ctx, "call_gemini",
		observability.AttributeProvider(g.providerCode),
		attribute.String("ai.model", g.model),
		attribute.String("ai.purpose", genReq.Purpose),
		attribute.Int("segments.count", len(genReq.Segments)),
		attribute.Bool("inline.present", genReq.HasInline()),
	)
	defer observability.FinishSpan(span, &err)

	system, contents := toGeminiContents(genReq.Segments)
	if len(contents) == 0 {
		span.SetAttributes(attribute.String("call.result", "empty_prompt"))
		return "", contextutils.WrapError(contextutils.ErrAIConfigInvalid, "prompt cannot be empty")
	}

	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       genai.Ptr(float32(genReq.Temperature)),
	}
	if genReq.MaxOutputTokens > 0 {
		genConfig.MaxOutputTokens = int32(genReq.MaxOutputTokens)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, genConfig)
	if err != nil {
		span.SetAttributes(attribute.String("call.result", "api_error"))
		return "", contextutils.WrapErrorf(contextutils.ErrAIRequestFailed, "gemini request failed: %v", err)
	}
	if resp == nil {
		span.SetAttributes(attribute.String("call.result", "no_response"))
		return "", nil
	}

	content := StripThinking(resp.Text())
	span.SetAttributes(attribute.String("call.result", "success"), attribute.Int("content_length", len(content)))
	return content, nil
}

// Shutdown releases idle connections
func (g *GeminiGenerator) Shutdown(ctx context.Context) error {
	g.httpClient.CloseIdleConnections()
	g.logger.Info(ctx, "Gemini generator shutdown completed")
	return nil
}

// toGeminiContents merges system segments into one instruction and maps the
// other segments to user/model contents in order.
func toGeminiContents(segments []models.Segment) (*genai.Content, []*genai.Content) {
	var systemTexts []string
	contents := make([]*genai.Content, 0, len(segments))

	for _, seg := range segments {
		if seg.Role == models.RoleSystem {
			if seg.Text != "" {
				systemTexts = append(systemTexts, seg.Text)
			}
			continue
		}

		parts := make([]*genai.Part, 0, 2)
		if seg.Text != "" {
			parts = append(parts, genai.NewPartFromText(seg.Text))
		}
		if seg.Inline != nil {
			parts = append(parts, genai.NewPartFromBytes(seg.Inline.Data, seg.Inline.MIMEType))
		}
		if len(parts) == 0 {
			continue
		}

		role := genai.Role(genai.RoleUser)
		if seg.Role == models.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}

	var system *genai.Content
	if len(systemTexts) > 0 {
		system = genai.NewContentFromText(strings.Join(systemTexts, "\n\n"), genai.RoleUser)
	}
	return system, contents
}
