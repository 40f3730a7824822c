package services

import (
	"context"
	"strings"

	"derjachat/internal/config"
	"derjachat/internal/models"
	"derjachat/internal/observability"
	"derjachat/internal/serviceinterfaces"
	contextutils "derjachat/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// ChatServiceInterface is what the HTTP layer needs from the chat pipeline
type ChatServiceInterface interface {
	Reply(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error)
	ReplyQuiz(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error)
}

var _ ChatServiceInterface = (*ChatService)(nil)

// ChatService runs one chat request end to end: resolve the mode, classify,
// ground, assemble, generate and keep the reply in the dialect.
type ChatService struct {
	cfg        *config.Config
	classifier *IntentClassifier
	aggregator *ContextAggregator
	assembler  *PromptAssembler
	generator  serviceinterfaces.Generator
	enforcer   *DialectEnforcer
	quiz       *QuizService
	logger     *observability.Logger
	metrics    *observability.PipelineMetrics
}

// NewChatService creates the chat pipeline
func NewChatService(cfg *config.Config, classifier *IntentClassifier, aggregator *ContextAggregator, assembler *PromptAssembler, generator serviceinterfaces.Generator, enforcer *DialectEnforcer, quiz *QuizService, logger *observability.Logger, metrics *observability.PipelineMetrics) *ChatService {
	if metrics == nil {
		metrics = observability.GetPipelineMetrics()
	}
	return &ChatService{
		cfg:        cfg,
		classifier: classifier,
		aggregator: aggregator,
		assembler:  assembler,
		generator:  generator,
		enforcer:   enforcer,
		quiz:       quiz,
		logger:     logger,
		metrics:    metrics,
	}
}

// Reply answers a chat request. Invalid requests return a caller-input error;
// upstream failures never do, they yield a soft reply instead.
func (s *ChatService) Reply(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	return s.reply(ctx, req, false)
}

// ReplyQuiz is Reply restricted to quiz mode
func (s *ChatService) ReplyQuiz(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	return s.reply(ctx, req, true)
}

func (s *ChatService) reply(ctx context.Context, req *models.ChatRequest, forceQuiz bool) (result0 *models.ChatResponse, err error) {
	ctx, span := observability.TracePipelineFunction(ctx, "reply",
		attribute.Bool("request.force_quiz", forceQuiz),
	)
	defer observability.FinishSpan(span, &err)

	mode, err := models.ResolveMode(req, forceQuiz)
	if err != nil {
		span.SetAttributes(attribute.String("call.result", "rejected"))
		return nil, err
	}
	span.SetAttributes(
		observability.AttributeMode(models.ModeName(mode)),
		attribute.Int("history.turns", len(req.History)),
	)

	switch m := mode.(type) {
	case models.QuizMode:
		return s.replyQuiz(ctx, req, m), nil
	case models.VisionMode:
		return s.replyChat(ctx, req, models.ToolToggles{}, &m.Image), nil
	case models.ChatMode:
		return s.replyChat(ctx, req, models.ToolToggles{WebSearch: m.WebSearch, URLFetch: m.URLFetch}, nil), nil
	default:
		return nil, contextutils.ErrorWithContextf("unsupported request mode %s", models.ModeName(mode))
	}
}

func (s *ChatService) replyChat(ctx context.Context, req *models.ChatRequest, tools models.ToolToggles, image *models.InlineData) *models.ChatResponse {
	intent := s.classifier.Classify(ctx, req.Message, tools)
	language := intent.Language.Resolved()
	locale := replyLocale(req.Locale, language)

	grounding := s.aggregator.Aggregate(ctx, AggregateInput{
		Message:      req.Message,
		History:      req.History,
		DocumentText: req.DocumentText,
		Intent:       intent,
		Tools:        tools,
		Purpose:      PurposeChat,
	})

	meta := &models.ChatMeta{
		Language: language.String(),
		Grounded: !grounding.Value.IsEmpty(),
		Degraded: grounding.IsDegraded(),
	}

	genReq, err := s.assembler.AssembleChat(ChatPromptInput{
		Intent:  intent,
		History: req.History,
		Message: req.Message,
		Bundle:  grounding.Value,
		Image:   image,
	})
	if err != nil {
		s.logger.Error(ctx, "Failed to assemble chat request", err)
		return s.softReply(ctx, contextutils.ErrorCodeInternalError, locale, meta)
	}

	text, err := s.generator.Generate(ctx, genReq)
	if err != nil {
		s.metrics.GenerationFailed(ctx, "chat")
		s.logger.Error(ctx, "Chat generation failed", err, map[string]interface{}{
			"error_code": string(contextutils.GetErrorCode(err)),
			"upstream":   contextutils.IsUpstreamFailure(err),
		})
		return s.softReply(ctx, contextutils.GetErrorCode(err), locale, meta)
	}
	if strings.TrimSpace(text) == "" {
		s.metrics.GenerationFailed(ctx, "chat")
		s.logger.Warn(ctx, "Chat generation returned no text")
		return s.softReply(ctx, contextutils.ErrorCodeAIResponseInvalid, locale, meta)
	}

	if language.IsDialect() {
		enforced, report := s.enforcer.EnforceWithReport(ctx, text, language)
		text = enforced.Value
		meta.Rewritten = report.Rewritten
		meta.Degraded = meta.Degraded || enforced.IsDegraded()
	}

	resp := &models.ChatResponse{Reply: text, Meta: meta}
	if intent.WantsExport {
		resp.IsPDFExport = true
		resp.PDFContent = text
	}

	s.logger.Info(ctx, "Chat reply produced", map[string]interface{}{
		"language":  meta.Language,
		"grounded":  meta.Grounded,
		"degraded":  meta.Degraded,
		"rewritten": meta.Rewritten,
		"export":    resp.IsPDFExport,
	})
	return resp
}

func (s *ChatService) replyQuiz(ctx context.Context, req *models.ChatRequest, mode models.QuizMode) *models.ChatResponse {
	result := s.quiz.Generate(ctx, QuizRequest{
		Params:       mode.Params,
		DocumentText: req.DocumentText,
		History:      req.History,
		Tools:        models.ToolToggles{WebSearch: req.WebSearchEnabled, URLFetch: req.URLFetchEnabled},
	})

	return &models.ChatResponse{
		IsQuiz:            true,
		Quiz:              result.Value,
		TimerMinutes:      mode.Params.TimerMinutes,
		HintsEnabled:      mode.Params.HintsEnabled,
		ImmediateFeedback: mode.Params.ImmediateFeedback,
		Meta: &models.ChatMeta{
			Language: models.LanguageDialect.String(),
			Grounded: req.DocumentText != "",
			Degraded: result.IsDegraded(),
		},
	}
}

// softReply is the well-formed reply shown when the primary generation call
// failed. It never names the provider.
func (s *ChatService) softReply(ctx context.Context, code contextutils.ErrorCode, locale contextutils.Locale, meta *models.ChatMeta) *models.ChatResponse {
	meta.Degraded = true
	return &models.ChatResponse{
		Reply: contextutils.SoftFailureMessage(locale),
		Error: &models.SoftError{
			Code:    string(code),
			Message: contextutils.DefaultMessage(code),
		},
		Meta: meta,
	}
}

// replyLocale picks the soft-message locale: the caller's explicit locale,
// otherwise the language the reply would have been in.
func replyLocale(explicit string, language models.RequestedLanguage) contextutils.Locale {
	if strings.TrimSpace(explicit) != "" {
		return contextutils.ParseLocale(explicit)
	}
	switch language {
	case models.LanguageEnglish:
		return contextutils.LocaleEnglish
	case models.LanguageFrench:
		return contextutils.LocaleFrench
	case models.LanguageFormal:
		return contextutils.LocaleFormal
	default:
		return contextutils.LocaleDialect
	}
}
