package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/vvka-141/sqlexplorer/internal/cache"
	"github.com/vvka-141/sqlexplorer/internal/config"
	"github.com/vvka-141/sqlexplorer/internal/credentials"
	"github.com/vvka-141/sqlexplorer/internal/db"
	"github.com/vvka-141/sqlexplorer/internal/logging"
	"github.com/vvka-141/sqlexplorer/internal/metrics"
	"github.com/vvka-141/sqlexplorer/internal/pool"
	"github.com/vvka-141/sqlexplorer/internal/query"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// newDialer is replaced in tests to run commands against an in-memory database.
var newDialer = db.NewDialer

// app is the query service with everything it was built from.
type app struct {
	cfg     *config.Config
	creds   *sqlexplorer.Credentials
	svc     *query.Service
	metrics *metrics.Metrics
	redis   *redis.Client
	logger  sqlexplorer.Logger
	slog    *slog.Logger
}

type appOptions struct {
	// structured selects slog JSON/text logging from the log section instead of console lines.
	structured bool
	metrics    bool
	warm       bool
	stderr     io.Writer
}

// newApp resolves credentials and wires dialer, pool, cache and query service.
func newApp(ctx context.Context, configDir string, verbose bool, flags *connectionFlags, opts appOptions) (*app, error) {
	if opts.stderr == nil {
		opts.stderr = os.Stderr
	}
	console := logging.NewConsoleLoggerTo(opts.stderr, verbose)

	cfg, _, err := loadConfig(configDir, console)
	if err != nil {
		return nil, err
	}

	var logger sqlexplorer.Logger = console
	var sl *slog.Logger
	if opts.structured {
		sl = newSlog(opts.stderr, cfg.Log, verbose)
		logger = logging.NewSlogLogger(sl)
	}

	chain, err := credentials.Resolve(ctx, flags.credentialFlags(), cfg, logger)
	if err != nil {
		return nil, err
	}
	creds, err := chain.Credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving credentials from %s: %w", chain, err)
	}
	logger.Verbose("Connecting to %s", creds)

	policy, err := cfg.RetryPolicy()
	if err != nil {
		return nil, err
	}

	dialer, err := newDialer(ctx, creds, logger)
	if err != nil {
		return nil, err
	}
	p, err := pool.New(cfg.PoolConfig(), dialer, pool.WithLogger(logger))
	if err != nil {
		_ = dialer.Close()
		return nil, err
	}

	a := &app{cfg: cfg, creds: creds, logger: logger, slog: sl}
	c, err := a.buildCache(ctx)
	if err != nil {
		a.abort(ctx, p)
		return nil, err
	}

	svcOpts := []query.Option{
		query.WithLogger(logger),
		query.WithDriver(creds.Driver),
		query.WithRetryPolicy(policy),
	}
	if opts.metrics {
		a.metrics = metrics.New()
		svcOpts = append(svcOpts, query.WithObserver(a.metrics))
	}
	a.svc, err = query.New(p, c, svcOpts...)
	if err != nil {
		a.abort(ctx, p)
		return nil, err
	}
	if a.metrics != nil {
		a.metrics.WatchService(a.svc)
	}

	if opts.warm {
		// a cold pool still serves; the first query dials instead
		if err := p.Warm(ctx); err != nil {
			logger.Error("Warming connection pool: %v", err)
		}
	}
	return a, nil
}

// buildCache returns nil when caching is disabled. A configured Redis
// address adds a shared second tier behind the in-process LRU.
func (a *app) buildCache(ctx context.Context) (cache.Cache, error) {
	cc := a.cfg.Cache
	if cc.Disabled {
		a.logger.Verbose("Result cache disabled")
		return nil, nil
	}
	l1 := cache.NewLRU(cc.MaxEntries, cc.TTL)
	if cc.Redis.Addr == "" {
		return l1, nil
	}

	ropts := &redis.Options{
		Addr:     cc.Redis.Addr,
		Password: cc.Redis.Password,
		DB:       cc.Redis.DB,
	}
	if strings.HasPrefix(cc.Redis.Addr, "redis://") || strings.HasPrefix(cc.Redis.Addr, "rediss://") {
		parsed, err := redis.ParseURL(cc.Redis.Addr)
		if err != nil {
			return nil, fmt.Errorf("cache.redis.addr: %v: %w", err, sqlexplorer.ErrConfiguration)
		}
		ropts = parsed
	}
	a.redis = redis.NewClient(ropts)
	l2 := cache.NewRedis(a.redis, cc.Redis.Prefix, cc.TTL, a.logger)
	if err := l2.Ping(ctx); err != nil {
		// misses are tolerated at query time, so a down Redis only degrades caching
		a.logger.Error("Redis cache at %s unreachable: %v", ropts.Addr, err)
	} else {
		a.logger.Verbose("Using Redis cache at %s", ropts.Addr)
	}
	return cache.NewTiered(l1, l2), nil
}

func (a *app) closeRedis() error {
	if a.redis == nil {
		return nil
	}
	err := a.redis.Close()
	a.redis = nil
	return err
}

// abort releases what newApp built before the service took ownership.
func (a *app) abort(ctx context.Context, p *pool.Pool) {
	_ = p.Shutdown(ctx)
	_ = a.closeRedis()
}

// Close drains the pool and releases the Redis client. Safe to call twice.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.svc != nil {
		errs = append(errs, a.svc.Close(ctx))
	}
	errs = append(errs, a.closeRedis())
	return errors.Join(errs...)
}

func newSlog(w io.Writer, lc config.LogConfig, verbose bool) *slog.Logger {
	level := lc.Level
	if verbose {
		level = "debug"
	}
	return logging.NewStructured(w, lc.Format, level)
}
