package pagination

import (
	"context"
	"fmt"
)

// PageFetcher retrieves one page of search results.
type PageFetcher[T any] interface {
	// FetchPage fetches the 1-based page of results for query and returns the
	// page's items plus the total number of matches across all pages.
	FetchPage(ctx context.Context, query string, page, pageSize int) (PageResult[T], error)
}

// PageFetcherFunc adapts a plain function to PageFetcher.
type PageFetcherFunc[T any] func(ctx context.Context, query string, page, pageSize int) (PageResult[T], error)

// FetchPage calls f.
func (f PageFetcherFunc[T]) FetchPage(ctx context.Context, query string, page, pageSize int) (PageResult[T], error) {
	return f(ctx, query, page, pageSize)
}

// PageResult is the response for a single page.
type PageResult[T any] struct {
	// Items are passed through to the renderer unmodified.
	Items []T

	// TotalHits is the number of matches reported for the query across all pages.
	TotalHits int
}

// FetchError reports a failed page fetch.
type FetchError struct {
	Query string
	Page  int
	Err   error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch page %d for %q: %v", e.Page, e.Query, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}
