package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"derjachat/internal/config"
	"derjachat/internal/models"
	"derjachat/internal/observability"
	contextutils "derjachat/internal/utils"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

// maxSearchBodyBytes caps how much of a search response is read
const maxSearchBodyBytes = 1 << 20

// SearchClient queries DuckDuckGo: the Instant Answer JSON endpoint first and
// the HTML results page as a fallback.
type SearchClient struct {
	httpClient *http.Client
	apiURL     string
	htmlURL    string
	userAgent  string
	maxResults int
	logger     *observability.Logger
}

// NewSearchClient creates a search client with an instrumented HTTP client
func NewSearchClient(cfg *config.Config, logger *observability.Logger) *SearchClient {
	return &SearchClient{
		httpClient: &http.Client{
			Timeout: cfg.SearchTimeout(),
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanOptions(trace.WithSpanKind(trace.SpanKindClient)),
			),
		},
		apiURL:     cfg.Search.APIURL,
		htmlURL:    cfg.Search.HTMLURL,
		userAgent:  cfg.Search.UserAgent,
		maxResults: cfg.Search.MaxResults,
		logger:     logger,
	}
}

// instantAnswer is the subset of the Instant Answer response we read
type instantAnswer struct {
	Heading        string         `json:"Heading"`
	AbstractText   string         `json:"AbstractText"`
	AbstractURL    string         `json:"AbstractURL"`
	AbstractSource string         `json:"AbstractSource"`
	Answer         string         `json:"Answer"`
	Definition     string         `json:"Definition"`
	Results        []relatedTopic `json:"Results"`
	RelatedTopics  []relatedTopic `json:"RelatedTopics"`
}

type relatedTopic struct {
	Text     string         `json:"Text"`
	FirstURL string         `json:"FirstURL"`
	Name     string         `json:"Name"`
	Topics   []relatedTopic `json:"Topics"`
}

// Search queries the structured endpoint and returns the abstract plus up to
// maxResults titled links.
func (s *SearchClient) Search(ctx context.Context, query string) (result0 *models.SearchResult, err error) {
	ctx, span := observability.TraceGroundingFunction(ctx, "search",
		attribute.Int("query.length", len(query)),
	)
	defer observability.FinishSpan(span, &err)

	endpoint, err := url.Parse(s.apiURL)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrSearchFailed, "invalid search api url: %v", err)
	}
	q := endpoint.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")
	endpoint.RawQuery = q.Encode()

	body, err := s.get(ctx, endpoint.String(), "application/json")
	if err != nil {
		span.SetAttributes(attribute.String("search.result", "http_failed"))
		return nil, err
	}

	var answer instantAnswer
	if err := json.Unmarshal(body, &answer); err != nil {
		span.SetAttributes(attribute.String("search.result", "json_unmarshal_failed"))
		return nil, contextutils.WrapErrorf(contextutils.ErrSearchFailed, "failed to parse search response: %v", err)
	}

	result := &models.SearchResult{
		Abstract: firstNonEmpty(answer.AbstractText, answer.Answer, answer.Definition),
		Source:   answer.AbstractSource,
	}
	if answer.AbstractURL != "" && answer.AbstractText != "" {
		result.Results = append(result.Results, models.SearchHit{
			Title: firstNonEmpty(answer.Heading, answer.AbstractSource, answer.AbstractURL),
			URL:   answer.AbstractURL,
		})
	}

	var collect func(topics []relatedTopic)
	collect = func(topics []relatedTopic) {
		for _, t := range topics {
			if len(result.Results) >= s.maxResults {
				return
			}
			if len(t.Topics) > 0 {
				collect(t.Topics)
				continue
			}
			if t.FirstURL == "" || t.Text == "" {
				continue
			}
			result.Results = append(result.Results, models.SearchHit{Title: t.Text, URL: t.FirstURL})
		}
	}
	collect(answer.Results)
	collect(answer.RelatedTopics)

	span.SetAttributes(
		attribute.String("search.result", "success"),
		attribute.Int("search.hits", len(result.Results)),
		attribute.Bool("search.abstract", result.Abstract != ""),
	)
	return result, nil
}

// SearchHTML scrapes the HTML results page for result links, unwrapping
// redirect wrappers to their real targets.
func (s *SearchClient) SearchHTML(ctx context.Context, query string) (result0 []models.SearchHit, err error) {
	ctx, span := observability.TraceGroundingFunction(ctx, "search_html",
		attribute.Int("query.length", len(query)),
	)
	defer observability.FinishSpan(span, &err)

	endpoint, err := url.Parse(s.htmlURL)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrSearchFailed, "invalid search html url: %v", err)
	}
	q := endpoint.Query()
	q.Set("q", query)
	endpoint.RawQuery = q.Encode()

	body, err := s.get(ctx, endpoint.String(), "text/html,application/xhtml+xml")
	if err != nil {
		return nil, err
	}

	hits, err := parseSearchResultsHTML(string(body), s.maxResults)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("search.hits", len(hits)))
	return hits, nil
}

func (s *SearchClient) get(ctx context.Context, target, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrSearchFailed, "failed to create search request: %v", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "ar-TN,ar;q=0.9,fr;q=0.8,en;q=0.7")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrSearchFailed, "search request failed: %v", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && s.logger != nil {
			s.logger.Warn(ctx, "Failed to close search response body", map[string]interface{}{"error": cerr.Error()})
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, contextutils.WrapErrorf(contextutils.ErrSearchFailed, "search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchBodyBytes))
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrSearchFailed, "failed to read search response: %v", err)
	}
	return body, nil
}

// parseSearchResultsHTML pulls result anchors (class "result__a") out of a
// results page. Sponsored links are skipped.
func parseSearchResultsHTML(markup string, maxResults int) ([]models.SearchHit, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrSearchFailed, "failed to parse search html: %v", err)
	}

	var hits []models.SearchHit
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(hits) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" && strings.Contains(attrValue(n, "class"), "result__a") {
			href := attrValue(n, "href")
			target := unwrapRedirect(href)
			title := textContent(n)
			if title != "" && strings.HasPrefix(target, "http") && !strings.Contains(href, "/y.js") && !seen[target] {
				seen[target] = true
				hits = append(hits, models.SearchHit{Title: title, URL: target})
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return hits, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
