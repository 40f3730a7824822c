package services

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strings"

	"derjachat/internal/config"
	"derjachat/internal/models"
	"derjachat/internal/observability"
	contextutils "derjachat/internal/utils"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PageFetcher downloads a single page and reduces it to plain text
type PageFetcher struct {
	httpClient  *http.Client
	maxRawBytes int64
	userAgent   string
	logger      *observability.Logger
}

// NewPageFetcher creates a page fetcher with an instrumented HTTP client
func NewPageFetcher(cfg *config.Config, logger *observability.Logger) *PageFetcher {
	return &PageFetcher{
		httpClient: &http.Client{
			Timeout: cfg.FetchTimeout(),
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanOptions(trace.WithSpanKind(trace.SpanKindClient)),
			),
		},
		maxRawBytes: cfg.Fetch.MaxRawBytes,
		userAgent:   cfg.Fetch.UserAgent,
		logger:      logger,
	}
}

// FetchPage GETs pageURL, reading at most the configured raw byte budget.
// Markup is converted to visible text; plain text, JSON and XML are returned
// as read. Any other content type is an error.
func (f *PageFetcher) FetchPage(ctx context.Context, pageURL string) (result0 *models.FetchedPage, err error) {
	ctx, span := observability.TraceGroundingFunction(ctx, "fetch_page",
		attribute.String("page.url", pageURL),
	)
	defer observability.FinishSpan(span, &err)

	if !contextutils.IsValidHTTPURL(pageURL) {
		return nil, contextutils.WrapErrorf(contextutils.ErrFetchFailed, "not an http(s) url: %q", pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrFetchFailed, "failed to create fetch request: %v", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrFetchFailed, "fetch failed: %v", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && f.logger != nil {
			f.logger.Warn(ctx, "Failed to close page response body", map[string]interface{}{"error": cerr.Error()})
		}
	}()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, contextutils.WrapErrorf(contextutils.ErrFetchFailed, "page returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxRawBytes))
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrFetchFailed, "failed to read page: %v", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(raw)
	}
	mediaType, _, perr := mime.ParseMediaType(contentType)
	if perr != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	span.SetAttributes(
		attribute.String("page.content_type", mediaType),
		attribute.Int("page.raw_bytes", len(raw)),
	)

	page := &models.FetchedPage{URL: pageURL, ContentType: mediaType}
	body := strings.ToValidUTF8(string(raw), "")

	switch {
	case page.IsMarkup() && strings.Contains(mediaType, "html"):
		text, err := HTMLToText(body)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrFetchFailed, "failed to extract page text: %v", err)
		}
		page.BodyText = text
	case strings.HasPrefix(mediaType, "text/"), strings.Contains(mediaType, "json"), strings.Contains(mediaType, "xml"):
		page.BodyText = contextutils.CollapseWhitespace(body)
	default:
		return nil, contextutils.WrapErrorf(contextutils.ErrFetchFailed, "unsupported content type %q", mediaType)
	}

	return page, nil
}
