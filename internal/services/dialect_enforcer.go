package services

import (
	"context"
	"strings"

	"derjachat/internal/bounded"
	"derjachat/internal/config"
	"derjachat/internal/dialect"
	"derjachat/internal/models"
	"derjachat/internal/observability"
	"derjachat/internal/serviceinterfaces"
	contextutils "derjachat/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// EnforcementReport describes what enforcement did to one reply
type EnforcementReport struct {
	Drift         dialect.Report
	Rewritten     bool
	Substitutions int
}

// DialectEnforcer keeps replies in the dialect: drift triggers at most one
// rewrite call, then the lexical rule table runs over whatever text won.
type DialectEnforcer struct {
	engine    *dialect.Engine
	detector  *dialect.Detector
	generator serviceinterfaces.Generator
	assembler *PromptAssembler
	rewrite   bool
	logger    *observability.Logger
	metrics   *observability.PipelineMetrics
}

// NewDialectEnforcer creates an enforcer. generator may be nil, which
// disables the rewrite step.
func NewDialectEnforcer(cfg *config.Config, engine *dialect.Engine, generator serviceinterfaces.Generator, assembler *PromptAssembler, logger *observability.Logger, metrics *observability.PipelineMetrics) *DialectEnforcer {
	if engine == nil {
		engine = dialect.DefaultEngine()
	}
	if metrics == nil {
		metrics = observability.GetPipelineMetrics()
	}
	return &DialectEnforcer{
		engine: engine,
		detector: dialect.NewDetector(dialect.Thresholds{
			LatinRatio:     cfg.Dialect.LatinRatio,
			MinScriptChars: cfg.Dialect.MinScriptChars,
			MinLatinChars:  cfg.Dialect.MinLatinChars,
		}),
		generator: generator,
		assembler: assembler,
		rewrite:   !cfg.Dialect.DisableRewrite && generator != nil && assembler != nil,
		logger:    logger,
		metrics:   metrics,
	}
}

// Enforce returns text in the dialect. Replies in an explicitly requested
// other language pass through untouched.
func (e *DialectEnforcer) Enforce(ctx context.Context, text string, lang models.RequestedLanguage) bounded.Result[string] {
	result, _ := e.EnforceWithReport(ctx, text, lang)
	return result
}

// EnforceWithReport is Enforce that also reports drift, rewrite and substitutions
func (e *DialectEnforcer) EnforceWithReport(ctx context.Context, text string, lang models.RequestedLanguage) (bounded.Result[string], EnforcementReport) {
	var report EnforcementReport
	if !lang.IsDialect() || strings.TrimSpace(text) == "" {
		return bounded.Ok(text), report
	}

	ctx, span := observability.TraceDialectFunction(ctx, "enforce",
		attribute.Int("text.length", len(text)),
	)
	defer span.End()

	result := bounded.Ok(text)
	report.Drift = e.detector.Detect(text)
	span.SetAttributes(
		attribute.Bool("dialect.drifted", report.Drift.Drifted),
		attribute.Int("dialect.latin", report.Drift.Latin),
		attribute.Int("dialect.script", report.Drift.Script),
	)

	if report.Drift.Drifted {
		e.metrics.DriftDetected(ctx, report.Drift.Reason)
		e.logger.Info(ctx, "Dialect drift detected", map[string]interface{}{
			"reason":     report.Drift.Reason,
			"latin":      report.Drift.Latin,
			"script":     report.Drift.Script,
			"connectors": report.Drift.Connectors,
		})

		rewritten, reason := e.rewriteOnce(ctx, text)
		if reason != "" {
			result = bounded.Degraded(text, "drift "+report.Drift.Reason+": "+reason)
		} else {
			result = bounded.Ok(rewritten)
			report.Rewritten = true
		}
	}

	out, matches := e.engine.ApplyWithReport(result.Value)
	result.Value = out
	report.Substitutions = len(matches)

	span.SetAttributes(
		attribute.Bool("dialect.rewritten", report.Rewritten),
		attribute.Int("dialect.substitutions", report.Substitutions),
	)
	if result.IsDegraded() {
		observability.MarkDegraded(span, result.Reason)
	}
	return result, report
}

// rewriteOnce issues the single rewrite call. It returns the rewritten text or
// the reason the original has to be kept.
func (e *DialectEnforcer) rewriteOnce(ctx context.Context, text string) (string, string) {
	if !e.rewrite {
		return "", "rewrite disabled"
	}

	req, err := e.assembler.AssembleRewrite(text)
	if err != nil {
		e.logger.Error(ctx, "Failed to assemble rewrite request", err)
		return "", "rewrite not assembled"
	}

	rewritten, err := e.generator.Generate(ctx, req)
	if err != nil {
		e.metrics.RewriteAttempted(ctx, false)
		e.logger.Warn(ctx, "Dialect rewrite failed, keeping original reply", map[string]interface{}{
			"error":      err.Error(),
			"error_code": string(contextutils.GetErrorCode(err)),
		})
		return "", "rewrite failed"
	}

	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		e.metrics.RewriteAttempted(ctx, false)
		return "", "rewrite empty"
	}

	e.metrics.RewriteAttempted(ctx, true)
	return rewritten, ""
}

// NormalizeField applies only the lexical rule table. Quiz fields use it.
func (e *DialectEnforcer) NormalizeField(text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	return e.engine.Apply(text)
}

// Detector exposes the configured drift detector
func (e *DialectEnforcer) Detector() *dialect.Detector {
	return e.detector
}
