package ratelimit

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func pixabayHeaders(limit, remaining, reset string) http.Header {
	h := http.Header{}
	if limit != "" {
		h.Set(HeaderLimit, limit)
	}
	if remaining != "" {
		h.Set(HeaderRemaining, remaining)
	}
	if reset != "" {
		h.Set(HeaderReset, reset)
	}
	return h
}

func TestUpdateFromHeaders_ValidHeaders(t *testing.T) {
	tests := []struct {
		name          string
		limit         string
		remaining     string
		reset         string
		wantLimit     int
		wantRemaining int
		wantExhausted bool
	}{
		{"healthy state", "100", "99", "60", 100, 99, false},
		{"low state", "100", "5", "30", 100, 5, false},
		{"exhausted state", "100", "0", "45", 100, 0, true},
		{"missing limit uses default", "", "42", "60", DefaultRequestsPerMinute, 42, false},
		{"raised quota", "5000", "4999", "3600", 5000, 4999, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewTracker(NewMemoryStore(), 0, testLogger())
			ctx := context.Background()

			if err := tracker.UpdateFromHeaders(ctx, pixabayHeaders(tt.limit, tt.remaining, tt.reset)); err != nil {
				t.Fatalf("UpdateFromHeaders() error = %v", err)
			}

			state, err := tracker.GetState(ctx)
			if err != nil {
				t.Fatalf("GetState() error = %v", err)
			}
			if state.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", state.Limit, tt.wantLimit)
			}
			if state.Remaining != tt.wantRemaining {
				t.Errorf("Remaining = %d, want %d", state.Remaining, tt.wantRemaining)
			}
			if state.IsExhausted() != tt.wantExhausted {
				t.Errorf("IsExhausted() = %v, want %v", state.IsExhausted(), tt.wantExhausted)
			}
		})
	}
}

func TestUpdateFromHeaders_InvalidHeaders(t *testing.T) {
	tracker := NewTracker(nil, 0, testLogger())

	tests := []struct {
		name        string
		headers     http.Header
		shouldError bool
	}{
		{"missing remaining header", pixabayHeaders("100", "", "60"), false},
		{"all headers missing", http.Header{}, false},
		{"invalid remaining header", pixabayHeaders("100", "invalid", "60"), true},
		{"missing reset header", pixabayHeaders("100", "50", ""), true},
		{"invalid reset header", pixabayHeaders("100", "50", "soon"), true},
		{"invalid limit header", pixabayHeaders("lots", "50", "60"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tracker.UpdateFromHeaders(context.Background(), tt.headers)

			if tt.shouldError && err == nil {
				t.Error("Expected error but got nil")
			}
			if !tt.shouldError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestShouldAllowRequest(t *testing.T) {
	tests := []struct {
		name      string
		headers   http.Header
		wantAllow bool
	}{
		{"no state observed", nil, true},
		{"healthy", pixabayHeaders("100", "80", "60"), true},
		{"low but not exhausted", pixabayHeaders("100", "1", "60"), true},
		{"exhausted until reset", pixabayHeaders("100", "0", "60"), false},
		{"exhausted window already reset", pixabayHeaders("100", "0", "0"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewTracker(NewMemoryStore(), 0, testLogger())
			ctx := context.Background()

			if tt.headers != nil {
				if err := tracker.UpdateFromHeaders(ctx, tt.headers); err != nil {
					t.Fatalf("UpdateFromHeaders() error = %v", err)
				}
			}

			allowed, err := tracker.ShouldAllowRequest(ctx)
			if err != nil {
				t.Fatalf("ShouldAllowRequest() error = %v", err)
			}
			if allowed != tt.wantAllow {
				t.Errorf("ShouldAllowRequest() = %v, want %v", allowed, tt.wantAllow)
			}
		})
	}
}

func TestShouldAllowRequest_StaleState(t *testing.T) {
	tests := []struct {
		name       string
		lastUpdate time.Duration
		want       bool
	}{
		{"fresh exhausted window blocks", 0, false},
		{"stale exhausted window is ignored", -(MaxStateAge + time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			ctx := context.Background()
			err := store.Save(ctx, &State{
				Limit:      100,
				Remaining:  0,
				ResetAt:    time.Now().Add(time.Hour),
				LastUpdate: time.Now().Add(tt.lastUpdate),
			})
			if err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			allowed, err := NewTracker(store, 0, testLogger()).ShouldAllowRequest(ctx)
			if err != nil {
				t.Fatalf("ShouldAllowRequest() error = %v", err)
			}
			if allowed != tt.want {
				t.Errorf("ShouldAllowRequest() = %v, want %v", allowed, tt.want)
			}
		})
	}
}

func TestNewDefaultTracker(t *testing.T) {
	tracker := NewDefaultTracker()
	if tracker.limiter == nil {
		t.Fatal("Default tracker should pace requests")
	}
	if got := tracker.limiter.Burst(); got != DefaultRequestsPerMinute/10 {
		t.Errorf("Burst() = %d, want %d", got, DefaultRequestsPerMinute/10)
	}

	state, err := tracker.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Remaining != DefaultRequestsPerMinute {
		t.Errorf("Remaining = %d, want %d", state.Remaining, DefaultRequestsPerMinute)
	}
}

func TestTracker_Wait(t *testing.T) {
	t.Run("pacing disabled", func(t *testing.T) {
		tracker := NewTracker(nil, 0, testLogger())
		for i := 0; i < 100; i++ {
			if err := tracker.Wait(context.Background()); err != nil {
				t.Fatalf("Wait() error = %v", err)
			}
		}
	})

	t.Run("burst admitted immediately", func(t *testing.T) {
		// 600/min gives a burst of 60 and one token every 100ms.
		tracker := NewTracker(nil, 600, testLogger())
		start := time.Now()
		for i := 0; i < 60; i++ {
			if err := tracker.Wait(context.Background()); err != nil {
				t.Fatalf("Wait() error = %v", err)
			}
		}
		if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
			t.Errorf("burst took %v, want near zero", elapsed)
		}
	})

	t.Run("paced after burst", func(t *testing.T) {
		tracker := NewTracker(nil, 600, testLogger())
		for i := 0; i < 60; i++ {
			_ = tracker.Wait(context.Background())
		}
		start := time.Now()
		if err := tracker.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
			t.Errorf("paced request took %v, want about 100ms", elapsed)
		}
	})

	t.Run("context cancelled while waiting", func(t *testing.T) {
		// One request per minute with a burst of one.
		tracker := NewTracker(nil, 1, testLogger())
		if err := tracker.Wait(context.Background()); err != nil {
			t.Fatalf("first Wait() error = %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := tracker.Wait(ctx); err == nil {
			t.Error("Expected context error while waiting for a token")
		}
	})
}

func TestRedisStore(t *testing.T) {
	mr, client := setupMiniRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	state, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() on empty redis error = %v", err)
	}
	if state != nil {
		t.Errorf("Load() on empty redis = %+v, want nil", state)
	}

	want := &State{
		Limit:      100,
		Remaining:  37,
		ResetAt:    time.Now().Add(40 * time.Second).Truncate(time.Second),
		LastUpdate: time.Now().Truncate(time.Millisecond),
	}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Limit != want.Limit || got.Remaining != want.Remaining {
		t.Errorf("Load() = %d/%d, want %d/%d", got.Remaining, got.Limit, want.Remaining, want.Limit)
	}
	if !got.ResetAt.Equal(want.ResetAt) {
		t.Errorf("ResetAt = %v, want %v", got.ResetAt, want.ResetAt)
	}
	if !got.LastUpdate.Equal(want.LastUpdate) {
		t.Errorf("LastUpdate = %v, want %v", got.LastUpdate, want.LastUpdate)
	}

	if ttl := mr.TTL(RedisKeyRemaining); ttl <= 0 {
		t.Errorf("TTL(%s) = %v, want > 0", RedisKeyRemaining, ttl)
	}

	// Keys expire after the window plus retention.
	mr.FastForward(40*time.Second + stateRetention + time.Second)
	got, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() after expiry error = %v", err)
	}
	if got != nil {
		t.Errorf("Load() after expiry = %+v, want nil", got)
	}
}

func TestTracker_SharedRedisState(t *testing.T) {
	_, client := setupMiniRedis(t)
	ctx := context.Background()

	writer := NewTracker(NewRedisStore(client), 0, testLogger())
	reader := NewTracker(NewRedisStore(client), 0, testLogger())

	if err := writer.UpdateFromHeaders(ctx, pixabayHeaders("100", "0", "30")); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	allowed, err := reader.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if allowed {
		t.Error("Second tracker should observe the exhausted window written by the first")
	}
}

func TestRedisStore_ConnectionError(t *testing.T) {
	mr, client := setupMiniRedis(t)
	tracker := NewTracker(NewRedisStore(client), 0, testLogger())
	mr.Close()

	if _, err := tracker.ShouldAllowRequest(context.Background()); err == nil {
		t.Error("Expected error when redis is unavailable")
	}
}

func TestMemoryStore_CopiesState(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s := &State{Remaining: 10}
	if err := store.Save(ctx, s); err != nil {
		t.Fatal(err)
	}
	s.Remaining = 0

	got, _ := store.Load(ctx)
	if got.Remaining != 10 {
		t.Errorf("Remaining = %d, want 10 (store must not alias the caller's state)", got.Remaining)
	}

	got.Remaining = 3
	again, _ := store.Load(ctx)
	if again.Remaining != 10 {
		t.Errorf("Remaining = %d, want 10 after mutating a loaded copy", again.Remaining)
	}
}
