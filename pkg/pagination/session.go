package pagination

import "errors"

var (
	// ErrEmptyQuery is returned when a search is started with a blank query.
	ErrEmptyQuery = errors.New("search query is empty")

	// ErrInvalidPageSize is returned when the configured page size is not positive.
	ErrInvalidPageSize = errors.New("page size must be > 0")
)

// User-visible messages attached to events.
const (
	MsgEmptyQuery     = "Search query cannot be empty!"
	MsgNoResults      = "No images found!"
	MsgFetchFailed    = "Failed to fetch images."
	MsgLoadMoreFailed = "Failed to load more images."
	MsgEmptyPage      = "You've reached the end of the results."
	MsgEndOfResults   = "We're sorry, but you've reached the end of search results."
)

// State is the controller's position in the session state machine.
type State int

const (
	// StateIdle means no search has been started.
	StateIdle State = iota
	// StateLoading means a page fetch is in flight.
	StateLoading
	// StateReady means the session is idle and more pages may exist.
	StateReady
	// StateExhausted means the session is idle and no more pages will be fetched.
	StateExhausted
	// StateFailed means the last fetch attempt errored.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RenderMode tells the renderer how new items relate to what is shown.
type RenderMode int

const (
	// RenderReplace clears previously shown items.
	RenderReplace RenderMode = iota
	// RenderAppend adds items after the ones already shown.
	RenderAppend
)

func (m RenderMode) String() string {
	if m == RenderAppend {
		return "append"
	}
	return "replace"
}

// EventKind classifies a user-visible outcome that is not a render.
type EventKind string

const (
	EventNoResults    EventKind = "no_results"
	EventEndOfResults EventKind = "end_of_results"
	EventFetchFailed  EventKind = "fetch_failed"
	EventEmptyQuery   EventKind = "empty_query"
)

// Event is a notification for the user.
type Event struct {
	Kind    EventKind
	Message string
}

// Op names the controller operation that produced an Outcome.
type Op string

const (
	OpStartSearch  Op = "start_search"
	OpLoadNextPage Op = "load_next_page"
)

// SkipReason explains why LoadNextPage did not fetch.
type SkipReason string

const (
	SkipNoSession SkipReason = "no_session"
	SkipLoading   SkipReason = "loading"
	SkipExhausted SkipReason = "exhausted"
)

// SearchSession is a snapshot of the live session.
type SearchSession struct {
	// ID tags every fetch issued for this session.
	ID          string
	Query       string
	CurrentPage int
	TotalHits   int
	IsLoading   bool
	HasMore     bool
	PageSize    int
	State       State
}

// Active reports whether a query is set.
func (s SearchSession) Active() bool {
	return s.Query != ""
}

// Outcome is the structured result of a controller operation.
type Outcome[T any] struct {
	Op Op

	// Items to render, using Mode. Empty when nothing should be rendered.
	Items []T
	Mode  RenderMode

	Events []Event

	// Err is the fetcher error, unchanged, or ErrEmptyQuery.
	Err error

	// Session is the state after the operation.
	Session SearchSession

	// Skipped is set when LoadNextPage returned without fetching.
	Skipped    bool
	SkipReason SkipReason

	// Stale is set when the response belonged to a replaced session and was discarded.
	Stale bool
}

// HasEvent reports whether the outcome carries an event of the given kind.
func (o Outcome[T]) HasEvent(kind EventKind) bool {
	for _, ev := range o.Events {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}
