// Package client provides the Pixabay HTTP client with rate limiting,
// error classification and optional retries.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/pixabay-gallery/pkg/logging"
	"github.com/Sternrassler/pixabay-gallery/pkg/ratelimit"
	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for Pixabay client operations.
var (
	pixabayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pixabay_requests_total",
		Help: "Total Pixabay requests by status",
	}, []string{"status"})

	pixabayRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pixabay_request_duration_seconds",
		Help:    "Pixabay request duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	pixabayErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pixabay_errors_total",
		Help: "Total Pixabay errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a 2xx response whose body could not be decoded.
	ErrorClassDecode ErrorClass = "decode"
)

// maxMessageLen caps the response body quoted in an APIError.
const maxMessageLen = 200

// Client is the Pixabay HTTP client.
type Client struct {
	http        *resty.Client
	rateLimiter *ratelimit.Tracker
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API endpoint, e.g. https://pixabay.com/api/.
	BaseURL string

	// APIKey is sent as the key query parameter.
	APIKey string

	// UserAgent header.
	UserAgent string

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// Retry. MaxAttempts 1 sends each request exactly once.
	MaxAttempts    int
	InitialBackoff time.Duration

	// RateLimiter gates and paces requests. Nil uses an in-memory tracker at
	// the default quota.
	RateLimiter *ratelimit.Tracker
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, apiKey string) Config {
	return Config{
		BaseURL:        baseURL,
		APIKey:         apiKey,
		UserAgent:      "pixabay-gallery/0.1.0",
		Timeout:        15 * time.Second,
		MaxAttempts:    1,
		InitialBackoff: 1 * time.Second,
	}
}

// New creates a new Pixabay client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("max_attempts must be >= 1 (got %d)", cfg.MaxAttempts)
	}

	logger := logging.NewLogger("pixabay-client")

	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimiter = ratelimit.NewDefaultTracker()
	}

	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{logger: logger})

	return &Client{
		http:        httpClient,
		rateLimiter: rateLimiter,
		config:      cfg,
		logger:      logger,
	}, nil
}

// GetJSON performs a GET request against the base URL with params and decodes
// the JSON response into out. The API key is added to params.
func (c *Client) GetJSON(ctx context.Context, params url.Values, out any) error {
	startTime := time.Now()
	defer func() {
		pixabayRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Pace and check the quota
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return cancelledError(ctx, err)
	}

	allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Rate limit check failed")
		return fmt.Errorf("rate limit check: %w", err)
	}
	if !allowed {
		c.logger.Warn().Msg("Request blocked by rate limiter")
		pixabayRequestsTotal.WithLabelValues("rate_limited").Inc()
		return ErrRequestBlocked
	}

	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("key", c.config.APIKey)

	// Step 2: Execute with retry
	retryCfg := RetryConfig{
		MaxAttempts:       c.config.MaxAttempts,
		InitialBackoff:    c.config.InitialBackoff,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}

	var body []byte
	err = retryWithBackoff(ctx, retryCfg, func() (ErrorClass, error) {
		var attemptErr *APIError
		body, attemptErr = c.do(ctx, query)
		if attemptErr != nil {
			return attemptErr.ErrorClass, attemptErr
		}
		return "", nil
	})
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, ErrContextCancelled) {
			return cancelledError(ctx, err)
		}
		return err
	}

	// Step 3: Decode
	if err := json.Unmarshal(body, out); err != nil {
		pixabayErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		c.logger.Warn().Err(err).Msg("Failed to decode Pixabay response")
		return &APIError{
			StatusCode: 200,
			ErrorClass: ErrorClassDecode,
			Message:    "invalid JSON response",
			Err:        err,
		}
	}

	return nil
}

// do executes a single attempt.
// cancelledError wraps err so that both ErrContextCancelled and the context's
// own error match with errors.Is.
func cancelledError(ctx context.Context, err error) error {
	if cause := ctx.Err(); cause != nil && !errors.Is(err, cause) {
		return fmt.Errorf("%w: %w: %w", ErrContextCancelled, cause, err)
	}
	return fmt.Errorf("%w: %w", ErrContextCancelled, err)
}

func (c *Client) do(ctx context.Context, query url.Values) ([]byte, *APIError) {
	c.logger.Debug().
		Str(logging.FieldQuery, query.Get("q")).
		Str(logging.FieldPage, query.Get("page")).
		Msg("Executing Pixabay request")

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		Get(c.config.BaseURL)

	// Handle network errors
	if err != nil {
		errClass := c.classifyError(0, err)
		pixabayErrorsTotal.WithLabelValues(string(errClass)).Inc()
		pixabayRequestsTotal.WithLabelValues("network_error").Inc()
		c.logger.Warn().Err(err).Msg("HTTP request failed")
		return nil, &APIError{
			ErrorClass: errClass,
			Message:    "request failed",
			Err:        err,
		}
	}

	// Update rate limit state from headers
	if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header()); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
	}

	status := resp.StatusCode()
	pixabayRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()

	// Handle HTTP errors
	if status >= 400 {
		errClass := c.classifyError(status, nil)
		pixabayErrorsTotal.WithLabelValues(string(errClass)).Inc()

		apiErr := &APIError{
			StatusCode: status,
			ErrorClass: errClass,
			Message:    errorMessage(resp),
		}
		c.logger.Warn().
			Int(logging.FieldStatusCode, status).
			Str(logging.FieldErrorClass, string(errClass)).
			Str("message", apiErr.Message).
			Msg("Pixabay request error")
		return nil, apiErr
	}

	return resp.Body(), nil
}

// classifyError categorizes a failure for observability and handling.
func (c *Client) classifyError(status int, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case status == 429:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// errorMessage extracts a short message from an error response. Pixabay
// answers errors with a plain text body such as "[ERROR 400] ...".
func errorMessage(resp *resty.Response) string {
	msg := strings.TrimSpace(string(resp.Body()))
	if msg == "" {
		return resp.Status()
	}
	if len(msg) > maxMessageLen {
		msg = msg[:maxMessageLen] + "..."
	}
	return msg
}

// RateLimiter returns the tracker gating this client.
func (c *Client) RateLimiter() *ratelimit.Tracker {
	return c.rateLimiter
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.GetClient().CloseIdleConnections()
	return nil
}

// restyLogger routes resty's internal messages into zerolog so they never
// reach the terminal directly.
type restyLogger struct {
	logger zerolog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error().Msgf(strings.TrimSpace(format), v...)
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn().Msgf(strings.TrimSpace(format), v...)
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug().Msgf(strings.TrimSpace(format), v...)
}
