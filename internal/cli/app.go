package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/aqasim81/crm-updater/internal/cache"
	"github.com/aqasim81/crm-updater/internal/config"
	"github.com/aqasim81/crm-updater/internal/database"
	"github.com/aqasim81/crm-updater/internal/executor"
	"github.com/aqasim81/crm-updater/internal/hooks"
	"github.com/aqasim81/crm-updater/internal/settings"
	"github.com/aqasim81/crm-updater/internal/tracker"
	"github.com/aqasim81/crm-updater/internal/updater"
	"github.com/aqasim81/crm-updater/internal/updating"
	"github.com/aqasim81/crm-updater/internal/webform"
)

// errDatabaseURLRequired is returned when no database URL is configured.
var errDatabaseURLRequired = errors.New( //nolint:gochecknoglobals // sentinel error
	"database URL is required (set --database-url, CRM_DATABASE_URL, or database_url in config)",
)

// registerHooks is where a release adds the code that must run after one of
// its update files, e.g. reg.MustRegister("4.2.sql", backfillLeadRatings).
var registerHooks = func(*hooks.Registry, *app) {} //nolint:gochecknoglobals // release wiring point

// app bundles the collaborators shared by boot, status and serve.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	pool     *pgxpool.Pool
	redis    *redis.Client
	tracker  *tracker.Tracker
	tasks    *updating.Repository
	settings *settings.Store
	renderer *webform.Renderer
	clearer  *cache.Clearer
	runner   *updater.Runner
}

func connectDB(ctx context.Context, cfg *config.Config, out io.Writer) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, errDatabaseURLRequired
	}

	fmt.Fprintf(out, "Connecting to %s\n", config.RedactDSN(cfg.DatabaseURL))

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return pool, nil
}

// newApp connects to the database (and Redis when configured) and wires
// the update routine.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, out io.Writer) (*app, error) {
	pool, err := connectDB(ctx, cfg, out)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		tracker:  tracker.New(pool),
		settings: settings.NewStore(),
	}

	gdb, err := database.OpenGorm(pool)
	if err != nil {
		a.close()
		return nil, err
	}

	a.tasks = updating.NewRepository(gdb)
	if err := a.tasks.EnsureTable(ctx); err != nil {
		a.close()
		return nil, err
	}

	a.renderer, err = webform.NewRenderer()
	if err != nil {
		a.close()
		return nil, err
	}

	flushers := make([]cache.Flusher, 0, 4)

	if cfg.Redis.Address != "" {
		a.redis, err = cache.DialRedis(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.close()
			return nil, err
		}

		flushers = append(flushers, cache.NewRedisStore(a.redis, cfg.Redis.Prefix))
	} else {
		logger.Debug().Msg("no redis address configured, the general cache is disabled")
	}

	flushers = append(flushers,
		cache.NewFileFlusher(cache.NameRoute, cfg.CompiledDir, cache.RoutesSnapshot),
		cache.NewFileFlusher(cache.NameConfig, cfg.CompiledDir, cache.ConfigSnapshot),
		a.renderer,
	)
	a.clearer = cache.NewClearer(flushers...)

	reg := hooks.NewRegistry()
	registerHooks(reg, a)

	a.runner = updater.New(
		cfg.UpdatesDir,
		executor.New(pool,
			executor.WithLockTimeout(cfg.LockTimeout),
			executor.WithStatementTimeout(cfg.StatementTimeout),
		),
		a.tracker,
		a.tasks,
		a.settings,
		updater.WithSetupCompleted(cfg.SetupCompleted()),
		updater.WithHooks(reg),
		updater.WithCacheClearer(a.clearer),
		updater.WithLock(poolLock(pool)),
		updater.WithLogger(logger),
	)

	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}

	a.pool.Close()
}

// poolLock adapts the update lock to the runner.
func poolLock(pool *pgxpool.Pool) updater.LockFunc {
	lock := database.NewUpdateLock(pool)

	return func(ctx context.Context) (updater.Releaser, error) {
		h, err := lock.Acquire(ctx)
		if err != nil {
			return nil, err
		}

		return h, nil
	}
}
