package pixabay

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Sternrassler/pixabay-gallery/pkg/logging"
	"github.com/Sternrassler/pixabay-gallery/pkg/pagination"
	"github.com/rs/zerolog"
)

// API limits.
const (
	MinPerPage     = 3
	MaxPerPage     = 200
	MaxQueryLength = 100
)

var (
	// ErrInvalidQuery is returned for an empty or overlong query.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidPage is returned for a page below 1.
	ErrInvalidPage = errors.New("page must be >= 1")

	// ErrPageSizeOutOfRange is returned for a page size the API would not
	// honour. The controller's end-of-results arithmetic assumes every full
	// page holds exactly pageSize hits.
	ErrPageSizeOutOfRange = errors.New("page size out of range")
)

// JSONGetter performs a GET against the search endpoint and decodes the body.
// *client.Client implements it.
type JSONGetter interface {
	GetJSON(ctx context.Context, params url.Values, out any) error
}

// Options are the fixed search filters sent with every request.
type Options struct {
	// ImageType is one of all, photo, illustration, vector.
	ImageType string

	// Orientation is one of all, horizontal, vertical.
	Orientation string

	SafeSearch bool
}

// DefaultOptions returns the filters the gallery has always used.
func DefaultOptions() Options {
	return Options{
		ImageType:   "photo",
		Orientation: "horizontal",
		SafeSearch:  true,
	}
}

var (
	validImageTypes   = []string{"all", "photo", "illustration", "vector"}
	validOrientations = []string{"all", "horizontal", "vertical"}
)

// Validate checks the filters against the values the API accepts.
func (o Options) Validate() error {
	if !slices.Contains(validImageTypes, o.ImageType) {
		return fmt.Errorf("image_type must be one of %s (got %q)", strings.Join(validImageTypes, ", "), o.ImageType)
	}
	if !slices.Contains(validOrientations, o.Orientation) {
		return fmt.Errorf("orientation must be one of %s (got %q)", strings.Join(validOrientations, ", "), o.Orientation)
	}
	return nil
}

// Fetcher retrieves pages of Hits. It implements pagination.PageFetcher[Hit].
// Each call issues exactly one request; it never retries on its own.
type Fetcher struct {
	client JSONGetter
	opts   Options
	logger zerolog.Logger
}

var _ pagination.PageFetcher[Hit] = (*Fetcher)(nil)

// NewFetcher creates a fetcher that sends requests through c.
func NewFetcher(c JSONGetter, opts Options) (*Fetcher, error) {
	if c == nil {
		return nil, errors.New("client is required")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Fetcher{
		client: c,
		opts:   opts,
		logger: logging.NewLogger("pixabay"),
	}, nil
}

// FetchPage implements pagination.PageFetcher. Failures are returned as
// *pagination.FetchError.
func (f *Fetcher) FetchPage(ctx context.Context, query string, page, pageSize int) (pagination.PageResult[Hit], error) {
	query = strings.TrimSpace(query)
	fail := func(err error) (pagination.PageResult[Hit], error) {
		return pagination.PageResult[Hit]{}, &pagination.FetchError{Query: query, Page: page, Err: err}
	}

	if query == "" {
		return fail(fmt.Errorf("%w: empty", ErrInvalidQuery))
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return fail(fmt.Errorf("%w: longer than %d characters", ErrInvalidQuery, MaxQueryLength))
	}
	if page < 1 {
		return fail(fmt.Errorf("%w (got %d)", ErrInvalidPage, page))
	}

	if err := ValidatePageSize(pageSize); err != nil {
		return fail(err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("image_type", f.opts.ImageType)
	params.Set("orientation", f.opts.Orientation)
	params.Set("safesearch", strconv.FormatBool(f.opts.SafeSearch))
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(pageSize))

	var resp SearchResponse
	if err := f.client.GetJSON(ctx, params, &resp); err != nil {
		return fail(err)
	}

	f.logger.Debug().
		Str(logging.FieldQuery, query).
		Int(logging.FieldPage, page).
		Int(logging.FieldItems, len(resp.Hits)).
		Int(logging.FieldTotalHits, resp.TotalHits).
		Msg("Search page received")

	return pagination.PageResult[Hit]{Items: resp.Hits, TotalHits: resp.TotalHits}, nil
}

// ValidatePageSize reports whether n is a per_page value the API accepts.
func ValidatePageSize(n int) error {
	if n < MinPerPage || n > MaxPerPage {
		return fmt.Errorf("%w: must be between %d and %d (got %d)", ErrPageSizeOutOfRange, MinPerPage, MaxPerPage, n)
	}
	return nil
}
