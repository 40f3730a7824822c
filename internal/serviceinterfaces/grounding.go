package serviceinterfaces

import (
	"context"

	"derjachat/internal/models"
)

// Searcher is the web-search boundary
type Searcher interface {
	// Search queries the structured endpoint for an abstract and results
	Search(ctx context.Context, query string) (*models.SearchResult, error)

	// SearchHTML scrapes a results page for result links
	SearchHTML(ctx context.Context, query string) ([]models.SearchHit, error)
}

// PageFetcher is the page-fetch boundary
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (*models.FetchedPage, error)
}
