package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/pixabay-gallery/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for rate limit tracking.
var (
	pixabayRateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pixabay_ratelimit_remaining",
		Help: "Number of requests remaining in the current Pixabay rate limit window",
	})

	pixabayRateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pixabay_ratelimit_blocks_total",
		Help: "Total number of requests blocked because the rate limit window was exhausted",
	})

	pixabayRateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pixabay_ratelimit_waits_total",
		Help: "Total number of requests delayed by local pacing",
	})
)

// Tracker monitors the Pixabay quota and gates requests.
type Tracker struct {
	store   Store
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewTracker creates a new rate limit tracker. A nil store keeps state in
// memory. requestsPerMinute <= 0 disables local pacing.
func NewTracker(store Store, requestsPerMinute int, logger zerolog.Logger) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}

	t := &Tracker{
		store:  store,
		logger: logger,
	}
	if requestsPerMinute > 0 {
		burst := requestsPerMinute / 10
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), burst)
	}
	return t
}

// NewDefaultTracker creates an in-memory tracker paced at the default quota.
func NewDefaultTracker() *Tracker {
	return NewTracker(nil, DefaultRequestsPerMinute, logging.NewLogger("ratelimit"))
}

// Wait blocks until local pacing admits one request or ctx is done.
func (t *Tracker) Wait(ctx context.Context) error {
	if t.limiter == nil {
		return nil
	}

	r := t.limiter.Reserve()
	delay := r.Delay()
	if delay == 0 {
		return nil
	}

	pixabayRateLimitWaitsTotal.Inc()
	t.logger.Debug().Dur("delay", delay).Msg("Pacing request")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// GetState returns the last observed state, or a default healthy state when
// nothing has been observed yet.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	state, err := t.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if state == nil {
		t.logger.Debug().Msg("No rate limit state stored, returning default healthy state")
		return defaultState(), nil
	}
	return state, nil
}

// UpdateFromHeaders parses Pixabay rate limit headers and stores the state.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		// Error responses and mock servers may omit the headers.
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	resetStr := headers.Get(HeaderReset)
	if resetStr == "" {
		return fmt.Errorf("%s header missing", HeaderReset)
	}
	resetSeconds, err := strconv.Atoi(resetStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}

	limit := DefaultRequestsPerMinute
	if limitStr := headers.Get(HeaderLimit); limitStr != "" {
		if limit, err = strconv.Atoi(limitStr); err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderLimit, err)
		}
	}

	now := time.Now()
	state := &State{
		Limit:      limit,
		Remaining:  remain,
		ResetAt:    now.Add(time.Duration(resetSeconds) * time.Second),
		LastUpdate: now,
	}
	if err := t.store.Save(ctx, state); err != nil {
		return err
	}

	pixabayRateLimitRemaining.Set(float64(remain))

	switch {
	case state.IsExhausted():
		t.logger.Error().
			Int(logging.FieldRemaining, remain).
			Time("reset_at", state.ResetAt).
			Msg("Pixabay rate limit exhausted - requests will be blocked until reset")
	case state.IsLow():
		t.logger.Warn().
			Int(logging.FieldRemaining, remain).
			Int("limit", limit).
			Msg("Pixabay rate limit running low")
	default:
		t.logger.Debug().
			Int(logging.FieldRemaining, remain).
			Int("limit", limit).
			Time("reset_at", state.ResetAt).
			Msg("Pixabay rate limit state updated")
	}

	return nil
}

// ShouldAllowRequest reports whether a request may be sent now. It returns
// false while the observed window is exhausted. State older than MaxStateAge
// is ignored.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.IsStale(MaxStateAge) {
		t.logger.Debug().
			Time("last_update", state.LastUpdate).
			Msg("Ignoring stale rate limit state")
		return true, nil
	}

	if state.IsExhausted() {
		t.logger.Error().
			Int(logging.FieldRemaining, state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Pixabay rate limit exhausted - blocking request")

		pixabayRateLimitBlocksTotal.Inc()
		return false, nil
	}

	return true, nil
}
