package pagination

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/pixabay-gallery/pkg/logging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultPageSize matches the page size the gallery has always requested.
const DefaultPageSize = 15

// Config holds controller configuration.
type Config struct {
	// PageSize is the number of items requested per page. It is fixed for the
	// lifetime of the controller and therefore of every session it owns.
	PageSize int
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{PageSize: DefaultPageSize}
}

// Hooks are optional callbacks invoked after an operation's state change has
// been applied. They run on the caller's goroutine without the controller
// lock held.
type Hooks[T any] struct {
	OnItemsReady func(items []T, mode RenderMode)
	OnEvent      func(ev Event)
}

// Controller owns the live search session and decides when pages are fetched.
// It is safe for concurrent use.
type Controller[T any] struct {
	fetcher  PageFetcher[T]
	hooks    Hooks[T]
	pageSize int
	logger   zerolog.Logger

	mu      sync.Mutex
	session session
}

type session struct {
	id          string
	query       string
	currentPage int
	totalHits   int
	isLoading   bool
	hasMore     bool
	state       State
}

// NewController creates a controller for fetcher.
func NewController[T any](fetcher PageFetcher[T], cfg Config, hooks Hooks[T]) (*Controller[T], error) {
	if fetcher == nil {
		return nil, errors.New("page fetcher is required")
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidPageSize, cfg.PageSize)
	}

	return &Controller[T]{
		fetcher:  fetcher,
		hooks:    hooks,
		pageSize: cfg.PageSize,
		logger:   logging.NewLogger("pagination"),
		session:  session{state: StateIdle},
	}, nil
}

// PageSize returns the fixed page size.
func (c *Controller[T]) PageSize() int {
	return c.pageSize
}

// Snapshot returns a copy of the live session.
func (c *Controller[T]) Snapshot() SearchSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// State returns the current state machine position.
func (c *Controller[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.state
}

// StartSearch replaces the live session with one for query and fetches its
// first page. A blank query is rejected without touching the session.
func (c *Controller[T]) StartSearch(ctx context.Context, query string) Outcome[T] {
	query = strings.TrimSpace(query)
	if query == "" {
		c.logger.Debug().Msg("Rejected empty query")
		out := Outcome[T]{
			Op:      OpStartSearch,
			Err:     ErrEmptyQuery,
			Events:  []Event{{Kind: EventEmptyQuery, Message: MsgEmptyQuery}},
			Session: c.Snapshot(),
		}
		c.dispatch(out)
		return out
	}

	c.mu.Lock()
	previous := c.session.id
	c.session = session{
		id:        uuid.NewString(),
		query:     query,
		hasMore:   true,
		isLoading: true,
		state:     StateLoading,
	}
	id := c.session.id
	c.mu.Unlock()

	SessionStartsTotal.Inc()
	logEvent := c.logger.Info().
		Str(logging.FieldSessionID, id).
		Str(logging.FieldQuery, query)
	if previous != "" {
		logEvent = logEvent.Str("replaced_session_id", previous)
	}
	logEvent.Msg("Search started")

	return c.fetch(ctx, OpStartSearch, id, query, 1)
}

// LoadNextPage fetches the page after the last one fetched. It returns a
// skipped Outcome without fetching when no session is active, a fetch is
// already in flight, or the session is exhausted.
func (c *Controller[T]) LoadNextPage(ctx context.Context) Outcome[T] {
	c.mu.Lock()
	if reason := c.skipReasonLocked(); reason != "" {
		snap := c.snapshotLocked()
		c.mu.Unlock()

		LoadsSkippedTotal.WithLabelValues(string(reason)).Inc()
		c.logger.Debug().
			Str(logging.FieldSessionID, snap.ID).
			Str("reason", string(reason)).
			Msg("Load skipped")
		return Outcome[T]{Op: OpLoadNextPage, Mode: RenderAppend, Session: snap, Skipped: true, SkipReason: reason}
	}

	// The flag is raised before the fetch begins so a concurrent trigger
	// observes it and backs off.
	c.session.isLoading = true
	c.session.state = StateLoading
	id, query, page := c.session.id, c.session.query, c.session.currentPage+1
	c.mu.Unlock()

	return c.fetch(ctx, OpLoadNextPage, id, query, page)
}

// ShouldAutoLoad reports whether a viewport near its bottom should trigger
// LoadNextPage. It does not change any state.
func (c *Controller[T]) ShouldAutoLoad(viewportNearBottom bool) bool {
	if !viewportNearBottom {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.query != "" && c.session.hasMore
}

func (c *Controller[T]) skipReasonLocked() SkipReason {
	switch {
	case c.session.query == "":
		return SkipNoSession
	case c.session.isLoading:
		return SkipLoading
	case !c.session.hasMore:
		return SkipExhausted
	default:
		return ""
	}
}

// fetch performs the fetch for session id and applies its result.
func (c *Controller[T]) fetch(ctx context.Context, op Op, id, query string, page int) Outcome[T] {
	logger := c.logger.With().
		Str("op", string(op)).
		Str(logging.FieldSessionID, id).
		Str(logging.FieldQuery, query).
		Int(logging.FieldPage, page).
		Logger()

	applied := false
	defer func() {
		if applied {
			return
		}
		// Reached only when the fetcher panicked; never leave the session loading.
		c.mu.Lock()
		if c.session.id == id {
			c.session.isLoading = false
			c.session.state = StateFailed
		}
		c.mu.Unlock()
	}()

	logger.Debug().Int(logging.FieldPageSize, c.pageSize).Msg("Fetching page")
	start := time.Now()
	result, err := c.fetcher.FetchPage(ctx, query, page, c.pageSize)
	PageFetchDuration.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())

	c.mu.Lock()
	if c.session.id != id {
		applied = true
		snap := c.snapshotLocked()
		c.mu.Unlock()

		StaleResponsesTotal.Inc()
		PageFetchesTotal.WithLabelValues(string(op), "stale").Inc()
		logger.Debug().
			Str("live_session_id", snap.ID).
			Msg("Discarded response for replaced session")
		return Outcome[T]{Op: op, Mode: modeFor(op, page), Session: snap, Stale: true}
	}

	out := c.applyLocked(op, page, result, err)
	applied = true
	c.mu.Unlock()

	switch {
	case out.Err != nil:
		PageFetchesTotal.WithLabelValues(string(op), "error").Inc()
		logger.Warn().Err(out.Err).Msg("Page fetch failed")
	case len(out.Items) == 0:
		PageFetchesTotal.WithLabelValues(string(op), "empty").Inc()
		logger.Info().Str(logging.FieldState, out.Session.State.String()).Msg("Page fetch returned no items")
	default:
		PageFetchesTotal.WithLabelValues(string(op), "items").Inc()
		logger.Debug().
			Int(logging.FieldItems, len(out.Items)).
			Int(logging.FieldTotalHits, out.Session.TotalHits).
			Bool("has_more", out.Session.HasMore).
			Str(logging.FieldState, out.Session.State.String()).
			Msg("Page fetched")
	}

	c.dispatch(out)
	return out
}

// applyLocked folds a completed fetch into the live session. c.mu must be held
// and the session must be the one the fetch was issued for.
func (c *Controller[T]) applyLocked(op Op, page int, result PageResult[T], err error) Outcome[T] {
	s := &c.session
	s.isLoading = false

	out := Outcome[T]{Op: op, Mode: modeFor(op, page)}

	if err != nil {
		s.state = StateFailed
		msg := MsgFetchFailed
		if op == OpLoadNextPage {
			msg = MsgLoadMoreFailed
		}
		out.Err = err
		out.Events = []Event{{Kind: EventFetchFailed, Message: msg}}
		out.Session = c.snapshotLocked()
		return out
	}

	if len(result.Items) == 0 {
		s.hasMore = false
		s.state = StateExhausted
		if op == OpStartSearch {
			out.Events = []Event{{Kind: EventNoResults, Message: MsgNoResults}}
		} else {
			// The reported total overstated what the service would serve.
			out.Events = []Event{{Kind: EventEndOfResults, Message: MsgEmptyPage}}
		}
		out.Session = c.snapshotLocked()
		return out
	}

	// The total is taken from the first page that succeeds; a session whose
	// first attempt failed adopts it on the retried page 1.
	if op == OpStartSearch || s.currentPage == 0 {
		s.totalHits = result.TotalHits
	}
	s.currentPage = page
	out.Items = result.Items

	if s.currentPage*c.pageSize >= s.totalHits {
		s.hasMore = false
		s.state = StateExhausted
		if op == OpLoadNextPage {
			out.Events = []Event{{Kind: EventEndOfResults, Message: MsgEndOfResults}}
		}
	} else {
		s.state = StateReady
	}

	out.Session = c.snapshotLocked()
	return out
}

func (c *Controller[T]) dispatch(out Outcome[T]) {
	if len(out.Items) > 0 && c.hooks.OnItemsReady != nil {
		c.hooks.OnItemsReady(out.Items, out.Mode)
	}
	if c.hooks.OnEvent != nil {
		for _, ev := range out.Events {
			c.hooks.OnEvent(ev)
		}
	}
}

func (c *Controller[T]) snapshotLocked() SearchSession {
	return SearchSession{
		ID:          c.session.id,
		Query:       c.session.query,
		CurrentPage: c.session.currentPage,
		TotalHits:   c.session.totalHits,
		IsLoading:   c.session.isLoading,
		HasMore:     c.session.hasMore,
		PageSize:    c.pageSize,
		State:       c.session.state,
	}
}

// modeFor picks the render mode: page 1 always starts a fresh gallery.
func modeFor(op Op, page int) RenderMode {
	if op == OpStartSearch || page == 1 {
		return RenderReplace
	}
	return RenderAppend
}
