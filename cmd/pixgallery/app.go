package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Sternrassler/pixabay-gallery/internal/config"
	"github.com/Sternrassler/pixabay-gallery/pkg/client"
	"github.com/Sternrassler/pixabay-gallery/pkg/logging"
	"github.com/Sternrassler/pixabay-gallery/pkg/metrics"
	"github.com/Sternrassler/pixabay-gallery/pkg/pagination"
	"github.com/Sternrassler/pixabay-gallery/pkg/pixabay"
	"github.com/Sternrassler/pixabay-gallery/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// app holds the wired components shared by all commands.
type app struct {
	cfg        *config.Config
	logger     zerolog.Logger
	client     *client.Client
	controller *pagination.Controller[pixabay.Hit]

	redis   *redis.Client
	metrics *metrics.Server
	logFile *os.File
}

// newApp loads configuration and wires tracker, client, fetcher and
// controller. Interactive sessions never log to the terminal: logs go to
// log.file, or nowhere when it is unset.
func newApp(ctx context.Context, configPath string, interactive bool, stderr io.Writer, hooks pagination.Hooks[pixabay.Hit]) (_ *app, err error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	logOut := stderr
	switch {
	case cfg.Log.File != "":
		f, err := logging.OpenFile(cfg.Log.File)
		if err != nil {
			return nil, err
		}
		a.logFile = f
		logOut = f
	case interactive:
		logOut = io.Discard
	}
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: logOut,
	})
	a.logger = logging.NewLogger("pixgallery")

	var store ratelimit.Store
	if cfg.RateLimit.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.redis.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RateLimit.RedisAddr, err)
		}
		a.logger.Info().Str("addr", cfg.RateLimit.RedisAddr).Msg("Connected to Redis")
		store = ratelimit.NewRedisStore(a.redis)
	}
	tracker := ratelimit.NewTracker(store, cfg.RateLimit.RequestsPerMinute, logging.NewLogger("ratelimit"))

	clientCfg := client.DefaultConfig(cfg.Pixabay.BaseURL, cfg.Pixabay.APIKey)
	clientCfg.UserAgent = cfg.Client.UserAgent
	clientCfg.Timeout = cfg.Pixabay.Timeout
	clientCfg.MaxAttempts = cfg.Client.MaxAttempts
	clientCfg.RateLimiter = tracker
	a.client, err = client.New(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pixabay client: %w", err)
	}

	fetcher, err := pixabay.NewFetcher(a.client, pixabay.Options{
		ImageType:   cfg.Pixabay.ImageType,
		Orientation: cfg.Pixabay.Orientation,
		SafeSearch:  cfg.Pixabay.SafeSearch,
	})
	if err != nil {
		return nil, err
	}

	a.controller, err = pagination.NewController[pixabay.Hit](fetcher, pagination.Config{PageSize: cfg.Pagination.PageSize}, hooks)
	if err != nil {
		return nil, err
	}

	if cfg.Metrics.Addr != "" {
		a.metrics, err = metrics.NewServer(cfg.Metrics.Addr)
		if err != nil {
			return nil, err
		}
		a.metrics.Start()
	}

	a.logger.Debug().
		Str("base_url", cfg.Pixabay.BaseURL).
		Int(logging.FieldPageSize, cfg.Pagination.PageSize).
		Bool("interactive", interactive).
		Msg("Gallery initialized")
	return a, nil
}

// Close releases everything newApp opened.
func (a *app) Close() {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.metrics.Shutdown(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
		cancel()
	}
	if a.client != nil {
		a.client.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}
