// Package ratelimit implements Pixabay request quota tracking and request gating.
// It monitors the X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset
// headers so requests stop before the API starts answering 429, and paces
// requests locally with a token bucket.
package ratelimit

import (
	"time"
)

// Response headers carrying the quota state.
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyLimit          = "pixabay:rate_limit:limit"
	RedisKeyRemaining      = "pixabay:rate_limit:remaining"
	RedisKeyResetTimestamp = "pixabay:rate_limit:reset_timestamp"
	RedisKeyLastUpdate     = "pixabay:rate_limit:last_update"
)

const (
	// DefaultRequestsPerMinute is Pixabay's documented default quota.
	DefaultRequestsPerMinute = 100

	// RemainingThresholdLow logs a warning when fewer requests remain.
	RemainingThresholdLow = 10

	// MaxStateAge is how long an observed window is trusted. Pixabay windows
	// last a minute, so older state no longer describes the current one.
	MaxStateAge = 2 * time.Minute
)

// State represents the last observed Pixabay quota window.
// It is shared across processes when a RedisStore is used.
type State struct {
	// Limit is the number of requests allowed per window (X-RateLimit-Limit).
	Limit int `json:"limit"`

	// Remaining is the number of requests left in the window (X-RateLimit-Remaining).
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets, from X-RateLimit-Reset (seconds until reset).
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the state was recorded.
	LastUpdate time.Time `json:"last_update"`
}

// defaultState is assumed until the first response is seen.
func defaultState() *State {
	now := time.Now()
	return &State{
		Limit:      DefaultRequestsPerMinute,
		Remaining:  DefaultRequestsPerMinute,
		ResetAt:    now.Add(time.Minute),
		LastUpdate: now,
	}
}

// IsStale returns true if the state data is older than the given duration.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// IsExhausted returns true if no requests remain and the window has not reset yet.
func (s *State) IsExhausted() bool {
	return s.Remaining <= 0 && s.TimeUntilReset() > 0
}

// IsLow returns true if the window is close to exhaustion.
func (s *State) IsLow() bool {
	return s.Remaining < RemainingThresholdLow && !s.IsExhausted()
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *State) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}
