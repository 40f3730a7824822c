package services

import (
	"context"
	"fmt"

	"derjachat/internal/bounded"
	"derjachat/internal/config"
	"derjachat/internal/models"
	"derjachat/internal/observability"
	"derjachat/internal/serviceinterfaces"
	contextutils "derjachat/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// QuizState is a step of quiz synthesis
type QuizState string

// Quiz synthesis states, in order. Accepted and FallbackGenerated are terminal.
const (
	QuizRequested         QuizState = "requested"
	QuizPrompted          QuizState = "prompted"
	QuizRawParsed         QuizState = "raw_parsed"
	QuizSanitized         QuizState = "sanitized"
	QuizAccepted          QuizState = "accepted"
	QuizFallbackGenerated QuizState = "fallback_generated"
)

// QuizRequest is one quiz synthesis request
type QuizRequest struct {
	Params       models.QuizParams
	DocumentText string
	History      []models.Turn
	Tools        models.ToolToggles
}

// QuizService turns quiz parameters into a validated item list. It always
// returns a quiz: anything that goes wrong ends in the fallback quiz.
type QuizService struct {
	cfg        *config.Config
	classifier *IntentClassifier
	aggregator *ContextAggregator
	assembler  *PromptAssembler
	generator  serviceinterfaces.Generator
	sanitizer  *QuizSanitizer
	logger     *observability.Logger
	metrics    *observability.PipelineMetrics
}

// NewQuizService creates a quiz service. enforcer supplies the lexical
// normalizer applied to dialect items and may be nil.
func NewQuizService(cfg *config.Config, classifier *IntentClassifier, aggregator *ContextAggregator, assembler *PromptAssembler, generator serviceinterfaces.Generator, enforcer *DialectEnforcer, logger *observability.Logger, metrics *observability.PipelineMetrics) *QuizService {
	if metrics == nil {
		metrics = observability.GetPipelineMetrics()
	}
	var normalize func(string) string
	if enforcer != nil {
		normalize = enforcer.NormalizeField
	}
	return &QuizService{
		cfg:        cfg,
		classifier: classifier,
		aggregator: aggregator,
		assembler:  assembler,
		generator:  generator,
		sanitizer:  NewQuizSanitizer(cfg.Quiz, normalize),
		logger:     logger,
		metrics:    metrics,
	}
}

// Generate runs the quiz state machine. The result is Degraded, carrying the
// fallback quiz, when no acceptable quiz came back from the model.
func (s *QuizService) Generate(ctx context.Context, req QuizRequest) bounded.Result[[]models.QuizItem] {
	params := req.Params.Normalize()

	ctx, span := observability.TraceQuizFunction(ctx, "generate_quiz",
		attribute.Int("quiz.question_count", params.QuestionCount),
		attribute.Int("quiz.option_count", params.OptionCount),
		observability.AttributeQuestionType(params.AllowedTypes),
		attribute.Bool("quiz.has_document", req.DocumentText != ""),
	)
	defer span.End()

	enter(span, QuizRequested)

	language := s.classifier.DetectRequestedLanguage(params.Subject)
	span.SetAttributes(observability.AttributeLanguage(language.Resolved().String()))

	grounding := s.ground(ctx, req, params)

	genReq, err := s.assembler.AssembleQuiz(params, grounding, language)
	if err != nil {
		s.logger.Error(ctx, "Failed to assemble quiz prompt", err, map[string]interface{}{
			"subject": params.Subject,
		})
		return s.fallback(ctx, span, params, "assemble", "prompt not assembled")
	}
	enter(span, QuizPrompted)

	response, err := s.generator.Generate(ctx, genReq)
	if err != nil {
		s.logger.Warn(ctx, "Quiz generation failed", map[string]interface{}{
			"error":      err.Error(),
			"error_code": string(contextutils.GetErrorCode(err)),
		})
		return s.fallback(ctx, span, params, "generation", "generation failed: "+string(contextutils.GetErrorCode(err)))
	}

	raw, discarded := ParseRawItems(response)
	enter(span, QuizRawParsed, attribute.Int("quiz.raw_items", len(raw)), attribute.Int("quiz.discarded", discarded))
	if len(raw) == 0 {
		s.logger.Warn(ctx, "Quiz response held no parsable items", map[string]interface{}{
			"response_length": len(response),
			"discarded":       discarded,
		})
		return s.fallback(ctx, span, params, "parse", "no parsable items")
	}

	sanitized := s.sanitizer.Sanitize(raw, params, language.IsDialect())
	enter(span, QuizSanitized,
		attribute.Int("quiz.valid_items", len(sanitized.Items)),
		attribute.Int("quiz.disallowed_items", sanitized.Disallowed),
		attribute.Int("quiz.invalid_items", sanitized.Invalid),
	)

	threshold := s.acceptanceThreshold()
	if len(sanitized.Items) < threshold {
		s.logger.Warn(ctx, "Too few valid quiz items", map[string]interface{}{
			"valid":      len(sanitized.Items),
			"required":   threshold,
			"disallowed": sanitized.Disallowed,
			"invalid":    sanitized.Invalid,
		})
		return s.fallback(ctx, span, params, "sanitize", fmt.Sprintf("too few valid items (%d of %d)", len(sanitized.Items), threshold))
	}

	items := sanitized.Items
	if len(items) > params.QuestionCount {
		items = items[:params.QuestionCount]
	}
	enter(span, QuizAccepted, attribute.Int("quiz.accepted_items", len(items)))
	span.SetAttributes(attribute.String("call.result", "accepted"))

	s.logger.Info(ctx, "Quiz accepted", map[string]interface{}{
		"items":     len(items),
		"requested": params.QuestionCount,
	})
	return bounded.Ok(items)
}

// ground builds the quiz grounding: the document when present, otherwise web
// context for the subject. Grounding failures only thin the prompt.
func (s *QuizService) ground(ctx context.Context, req QuizRequest, params models.QuizParams) string {
	if s.aggregator == nil {
		return contextutils.TruncateRunes(contextutils.CollapseWhitespace(req.DocumentText), s.cfg.Context.DocumentQuizChars)
	}

	tools := req.Tools
	intent := s.classifier.Classify(ctx, params.Subject, tools)
	if req.DocumentText == "" && tools.WebSearch {
		// with search enabled, a bare subject is grounded on the web whatever its wording
		intent.NeedsWebSearch = true
	}

	result := s.aggregator.Aggregate(ctx, AggregateInput{
		Message:      params.Subject,
		History:      req.History,
		DocumentText: req.DocumentText,
		Intent:       intent,
		Tools:        tools,
		Purpose:      PurposeQuiz,
	})
	if result.IsDegraded() {
		s.logger.Info(ctx, "Quiz grounding degraded", map[string]interface{}{
			"reason": result.Reason,
		})
	}
	return result.Value.GroundingText()
}

// acceptanceThreshold is the configured minimum number of valid items. It
// applies even when fewer questions were requested.
func (s *QuizService) acceptanceThreshold() int {
	return s.cfg.Quiz.MinAcceptedItems
}

// fallback serves the deterministic quiz. stage labels the metric; reason is
// the detailed degradation reason.
func (s *QuizService) fallback(ctx context.Context, span trace.Span, params models.QuizParams, stage, reason string) bounded.Result[[]models.QuizItem] {
	items := FallbackQuiz(params)
	enter(span, QuizFallbackGenerated, attribute.Int("quiz.fallback_items", len(items)))
	span.SetAttributes(attribute.String("call.result", "fallback"))
	observability.MarkDegraded(span, reason)
	s.metrics.QuizFallback(ctx, stage)

	s.logger.Warn(ctx, "Serving fallback quiz", map[string]interface{}{
		"reason": reason,
		"items":  len(items),
	})
	return bounded.Degraded(items, reason)
}

func enter(span trace.Span, state QuizState, attrs ...attribute.KeyValue) {
	span.SetAttributes(observability.AttributeQuizState(string(state)))
	span.AddEvent("quiz.state", trace.WithAttributes(append(attrs, observability.AttributeQuizState(string(state)))...))
}
