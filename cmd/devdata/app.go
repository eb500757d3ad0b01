package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Sternrassler/devdata-fetch/internal/config"
	"github.com/Sternrassler/devdata-fetch/pkg/cache"
	"github.com/Sternrassler/devdata-fetch/pkg/client"
	"github.com/Sternrassler/devdata-fetch/pkg/logging"
	"github.com/Sternrassler/devdata-fetch/pkg/metrics"
	"github.com/Sternrassler/devdata-fetch/pkg/ratelimit"
	"github.com/Sternrassler/devdata-fetch/pkg/storage"
	"github.com/Sternrassler/devdata-fetch/pkg/storage/core"
	"github.com/Sternrassler/devdata-fetch/pkg/storage/s3"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app holds what one command invocation shares: the resolved
// configuration, the run logger and resources to release at the end.
type app struct {
	cfg     config.Config
	runID   string
	logger  zerolog.Logger
	closers []io.Closer
}

// newApp resolves the configuration (file, environment, global flags, then
// the command's own overrides), validates it and sets up logging.
func newApp(cmd *cobra.Command, g *globalOptions, override func(*config.Config)) (*app, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	g.apply(cmd, &cfg)
	if override != nil {
		override(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &app{cfg: cfg, runID: uuid.NewString()}

	logCfg := logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: cmd.ErrOrStderr(),
		RunID:  a.runID,
	}
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logCfg.Tee = f
		a.closers = append(a.closers, f)
	}
	logging.Setup(logCfg)
	a.logger = logging.NewLogger("devdata")
	return a, nil
}

// openStore opens the configured storage driver rooted at dir.
func (a *app) openStore(ctx context.Context, dir string) (storage.Store, error) {
	prefix := dir
	if prefix == "." {
		prefix = ""
	}
	store, err := storage.Open(ctx, storage.Options{
		Driver: core.Driver(a.cfg.Output.Driver),
		Root:   dir,
		S3: s3.Config{
			Region:    a.cfg.Output.S3.Region,
			Bucket:    a.cfg.Output.S3.Bucket,
			Prefix:    prefix,
			Endpoint:  a.cfg.Output.S3.Endpoint,
			PathStyle: a.cfg.Output.S3.PathStyle,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.logger.Info().Str("driver", string(store.Driver())).Str("dir", dir).Msg("Output storage ready")
	return store, nil
}

// newClient builds the resilient fetch client with the optional pacer and
// Redis response cache. An unreachable Redis disables the cache.
func (a *app) newClient(ctx context.Context) (*client.Client, error) {
	f := a.cfg.Fetch
	cfg := client.DefaultConfig(f.UserAgent)
	cfg.Timeout = f.Timeout
	cfg.Verbose = f.Verbose
	cfg.Retry = client.RetryConfig{
		MaxAttempts:       f.MaxAttempts,
		InitialBackoff:    f.RetryDelay,
		MaxBackoff:        f.MaxBackoff,
		BackoffMultiplier: f.BackoffMultiplier,
		Jitter:            f.Jitter,
	}

	pacer := ratelimit.NewPacer(a.cfg.Pace.MinDelay, a.cfg.Pace.MaxDelay, logging.NewLogger("pacer"))
	if pacer.Enabled() {
		cfg.Pacer = pacer
	}

	if a.cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: a.cfg.Redis.Addr, DB: a.cfg.Redis.DB})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			a.logger.Warn().Err(err).Str("addr", a.cfg.Redis.Addr).Msg("Redis unavailable, response cache disabled")
			_ = rdb.Close()
		} else {
			a.logger.Info().Str("addr", a.cfg.Redis.Addr).Msg("Connected to Redis")
			cfg.Cache = cache.NewManager(rdb, a.cfg.Redis.TTL)
			cfg.MaxCacheEntryBytes = a.cfg.Redis.MaxEntryBytes
			a.closers = append(a.closers, rdb)
		}
	}

	return client.New(cfg)
}

// run executes job with metrics exposed while it runs and written to the
// textfile afterwards, then releases the app's resources.
func (a *app) run(ctx context.Context, job func(ctx context.Context) error) error {
	start := time.Now()

	if addr := a.cfg.Metrics.Listen; addr != "" {
		serveCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := metrics.Serve(serveCtx, addr); err != nil {
				a.logger.Warn().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	err := job(ctx)
	if errors.Is(err, context.Canceled) {
		a.logger.Warn().Msg("Run interrupted")
	}

	if mErr := metrics.WriteTextfile(a.cfg.Metrics.Textfile); mErr != nil {
		a.logger.Warn().Err(mErr).Msg("Could not write metrics")
	}
	a.logger.Info().Dur("elapsed", time.Since(start)).Msg("Run finished")

	a.close()
	return err
}

func (a *app) close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
	a.closers = nil
}

// closeOnError releases a partly prepared app and returns err.
func closeOnError(a *app, err error) error {
	if a != nil {
		a.close()
	}
	return err
}
