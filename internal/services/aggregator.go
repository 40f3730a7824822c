package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"derjachat/internal/bounded"
	"derjachat/internal/config"
	"derjachat/internal/models"
	"derjachat/internal/observability"
	"derjachat/internal/serviceinterfaces"
	contextutils "derjachat/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// Purpose selects the document cap applied by the aggregator
type Purpose string

const (
	// PurposeChat builds grounding for a conversational reply
	PurposeChat Purpose = "chat"
	// PurposeQuiz builds grounding for quiz synthesis
	PurposeQuiz Purpose = "quiz"
)

// AggregateInput is everything the aggregator may draw grounding from
type AggregateInput struct {
	Message      string
	History      []models.Turn
	DocumentText string
	Intent       models.Intent
	Tools        models.ToolToggles
	Purpose      Purpose
}

// ContextAggregator gathers document, page and search grounding into one
// bounded ContextBundle. Grounding failures never reach the caller: they are
// logged and reported as a degraded result.
type ContextAggregator struct {
	cfg      *config.Config
	searcher serviceinterfaces.Searcher
	fetcher  serviceinterfaces.PageFetcher
	logger   *observability.Logger
	metrics  *observability.PipelineMetrics
	now      func() time.Time
}

// NewContextAggregator creates an aggregator. searcher and fetcher may be nil,
// which disables the corresponding step.
func NewContextAggregator(cfg *config.Config, searcher serviceinterfaces.Searcher, fetcher serviceinterfaces.PageFetcher, logger *observability.Logger, metrics *observability.PipelineMetrics) *ContextAggregator {
	if metrics == nil {
		metrics = observability.GetPipelineMetrics()
	}
	return &ContextAggregator{
		cfg:      cfg,
		searcher: searcher,
		fetcher:  fetcher,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Aggregate runs the document, URL-fetch and web-search steps in order and
// enforces the total context budget.
func (a *ContextAggregator) Aggregate(ctx context.Context, in AggregateInput) bounded.Result[models.ContextBundle] {
	ctx, span := observability.TracePipelineFunction(ctx, "aggregate",
		attribute.String("purpose", string(in.Purpose)),
		attribute.Bool("tools.web_search", in.Tools.WebSearch),
		attribute.Bool("tools.url_fetch", in.Tools.URLFetch),
	)
	defer span.End()

	result := bounded.Ok(models.ContextBundle{})

	result.Value.DocumentText = a.prepareDocument(in.DocumentText, in.Purpose)

	if in.Tools.URLFetch && a.fetcher != nil {
		if pageURL := FindURL(in.Message, in.History, a.cfg.Fetch.HistoryScanTurns); pageURL != "" {
			text, reason := a.fetchPage(ctx, pageURL)
			if reason != "" {
				result = result.Join(reason)
			} else {
				result.Value.FetchedPageText = text
				result.Value.FetchedPageURL = pageURL
			}
		}
	}

	if a.cfg.Search.Enabled && in.Intent.NeedsWebSearch && a.searcher != nil {
		snippet, reason := a.search(ctx, in.Message, in.Intent.IsLocationDependent)
		if reason != "" {
			result = result.Join(reason)
		}
		result.Value.WebSnippet = snippet
	}

	result.Value = a.enforceBudget(result.Value)

	span.SetAttributes(
		attribute.Int("context.size", result.Value.Size()),
		attribute.Bool("context.web", result.Value.WebSnippet != ""),
		attribute.Bool("context.page", result.Value.FetchedPageText != ""),
		attribute.Bool("context.document", result.Value.DocumentText != ""),
	)
	if result.IsDegraded() {
		observability.MarkDegraded(span, result.Reason)
	}
	return result
}

func (a *ContextAggregator) prepareDocument(text string, purpose Purpose) string {
	text = contextutils.CollapseWhitespace(text)
	if text == "" {
		return ""
	}
	limit := a.cfg.Context.DocumentChatChars
	if purpose == PurposeQuiz {
		limit = a.cfg.Context.DocumentQuizChars
	}
	return contextutils.TruncateRunes(text, limit)
}

// fetchPage returns the capped page text, or a degradation reason
func (a *ContextAggregator) fetchPage(ctx context.Context, pageURL string) (string, string) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.FetchTimeout())
	defer cancel()

	page, err := a.fetcher.FetchPage(ctx, pageURL)
	if err != nil {
		a.metrics.GroundingDegraded(ctx, "page")
		a.logger.Warn(ctx, "Page fetch failed, continuing without page text", map[string]interface{}{
			"url":        pageURL,
			"error":      err.Error(),
			"error_code": string(contextutils.GetErrorCode(err)),
		})
		return "", "page: " + string(contextutils.GetErrorCode(err))
	}

	text := contextutils.CollapseWhitespace(page.BodyText)
	if text == "" {
		a.metrics.GroundingDegraded(ctx, "page")
		return "", "page: empty"
	}
	return contextutils.TruncateRunes(text, a.cfg.Fetch.MaxIncludedChars), ""
}

// SearchQuery prefixes the message with today's date in the configured zone
// and, for location-dependent questions, appends the default place.
func (a *ContextAggregator) SearchQuery(message string, locationDependent bool) string {
	parts := []string{contextutils.DateStamp(a.now(), a.cfg.Locale.Timezone), strings.TrimSpace(message)}
	if locationDependent {
		parts = append(parts, a.cfg.Locale.Place)
	}
	return strings.Join(parts, " ")
}

// search returns the formatted snippet, or a degradation reason
func (a *ContextAggregator) search(ctx context.Context, message string, locationDependent bool) (string, string) {
	query := a.SearchQuery(message, locationDependent)
	maxResults := a.cfg.Search.MaxResults

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.SearchTimeout())
	res, err := a.searcher.Search(callCtx, query)
	cancel()

	var reasons []string
	if err != nil {
		a.logger.Warn(ctx, "Structured search failed, trying results page", map[string]interface{}{
			"error": err.Error(),
		})
		reasons = append(reasons, "search: "+string(contextutils.GetErrorCode(err)))
		res = &models.SearchResult{}
	}

	if len(res.Results) < maxResults {
		callCtx, cancel := context.WithTimeout(ctx, a.cfg.SearchTimeout())
		hits, herr := a.searcher.SearchHTML(callCtx, query)
		cancel()
		if herr != nil {
			a.logger.Warn(ctx, "Results page scrape failed", map[string]interface{}{"error": herr.Error()})
			reasons = append(reasons, "search_html: "+string(contextutils.GetErrorCode(herr)))
		}
		res.Results = mergeHits(res.Results, hits, maxResults)
	}

	snippet := FormatSnippet(res, maxResults, a.cfg.Context.WebSnippetChars)
	if snippet == "" {
		a.metrics.GroundingDegraded(ctx, "search")
		if len(reasons) == 0 {
			reasons = append(reasons, "search: no results")
		}
		return "", strings.Join(reasons, "; ")
	}
	return snippet, ""
}

func mergeHits(primary, extra []models.SearchHit, limit int) []models.SearchHit {
	seen := make(map[string]bool, len(primary))
	out := make([]models.SearchHit, 0, limit)
	for _, h := range append(append([]models.SearchHit{}, primary...), extra...) {
		if len(out) >= limit {
			break
		}
		if seen[h.URL] {
			continue
		}
		seen[h.URL] = true
		out = append(out, h)
	}
	return out
}

// FormatSnippet renders the abstract and up to maxResults "title - url" lines,
// capped to limit runes.
func FormatSnippet(res *models.SearchResult, maxResults, limit int) string {
	if res == nil {
		return ""
	}
	var lines []string
	if abstract := strings.TrimSpace(res.Abstract); abstract != "" {
		if res.Source != "" {
			abstract = fmt.Sprintf("%s (%s)", abstract, res.Source)
		}
		lines = append(lines, abstract)
	}
	for i, hit := range res.Results {
		if i >= maxResults {
			break
		}
		lines = append(lines, fmt.Sprintf("- %s - %s", strings.TrimSpace(hit.Title), hit.URL))
	}
	return contextutils.TruncateRunes(strings.Join(lines, "\n"), limit)
}

// enforceBudget shrinks the bundle to the total context budget, taking from
// the document first, then the page, then the web snippet.
func (a *ContextAggregator) enforceBudget(b models.ContextBundle) models.ContextBundle {
	budget := a.cfg.Context.TotalContextChars
	excess := b.Size() - budget
	if budget <= 0 || excess <= 0 {
		return b
	}

	shrink := func(s string) string {
		if excess <= 0 || s == "" {
			return s
		}
		n := len([]rune(s))
		keep := n - excess
		if keep <= 0 {
			excess -= n
			return ""
		}
		excess = 0
		return contextutils.TruncateRunes(s, keep)
	}

	b.DocumentText = shrink(b.DocumentText)
	b.FetchedPageText = shrink(b.FetchedPageText)
	if b.FetchedPageText == "" {
		b.FetchedPageURL = ""
	}
	b.WebSnippet = shrink(b.WebSnippet)
	return b
}

var urlPattern = regexp.MustCompile(`https?://[^\s<>"'` + "`" + `]+`)

// FindURL returns the first URL in message or, failing that, the most recent
// URL in the last scanTurns history turns.
func FindURL(message string, history []models.Turn, scanTurns int) string {
	if u := firstURL(message); u != "" {
		return u
	}
	recent := models.RecentTurns(history, scanTurns)
	for i := len(recent) - 1; i >= 0; i-- {
		if u := firstURL(recent[i].Text); u != "" {
			return u
		}
	}
	return ""
}

func firstURL(text string) string {
	m := urlPattern.FindString(text)
	if m == "" {
		return ""
	}
	m = strings.TrimRight(m, ".,;:!?)]}،؟»")
	if !contextutils.IsValidHTTPURL(m) {
		return ""
	}
	return m
}
