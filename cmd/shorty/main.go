package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/httplog/v2"
	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/shortyhq/shorty/internal/analytics"
	"github.com/shortyhq/shorty/internal/cache"
	"github.com/shortyhq/shorty/internal/config"
	"github.com/shortyhq/shorty/internal/database/postgres"
	"github.com/shortyhq/shorty/internal/ratelimit"
	"github.com/shortyhq/shorty/internal/service"
	pkgpostgres "github.com/shortyhq/shorty/pkg/postgres"
	pkgredis "github.com/shortyhq/shorty/pkg/redis"

	api "github.com/shortyhq/shorty/internal/api/http"
)

const migrationsPath = "file://migrations"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		panic(err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Env)

	g, ctx := errgroup.WithContext(ctx)

	db, err := pkgpostgres.New(ctx, cfg.Postgres.DSN(), pkgpostgres.Pool{
		ConnMaxIdleTime: cfg.Postgres.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
	})
	if err != nil {
		return err
	}
	// Closed only after the errgroup drains: the analytics sink's shutdown
	// flush still writes through this pool.
	defer db.Close()

	if err := pkgpostgres.Migrate(migrationsPath, cfg.Postgres.DSN()); err != nil {
		return err
	}

	rdb, err := pkgredis.New(ctx, cfg.Redis.Addr(),
		pkgredis.WithPassword(cfg.Redis.Password),
		pkgredis.WithDB(cfg.Redis.DB),
		pkgredis.WithPoolSize(cfg.Redis.PoolSize),
		pkgredis.WithMinIdleConns(cfg.Redis.MinIdleConns),
		pkgredis.WithTimeouts(cfg.Redis.DialTimeout, cfg.Redis.ReadTimeout, cfg.Redis.WriteTimeout),
	)
	if err != nil {
		return err
	}
	defer rdb.Close()

	linkRepo := postgres.NewLinkRepository(db)
	clickRepo := postgres.NewClickRepository(db)

	redirectCache := cache.New(rdb, cfg.Cache.TTL, cfg.Cache.OpTimeout, cache.NewKeyBuilder(cfg.Cache.Namespace))

	limiter := ratelimit.NewRedisLimiter(rdb, map[ratelimit.Class]ratelimit.Budget{
		ratelimit.ClassRedirect: {
			Limit:   cfg.RateLimit.Redirect.Limit,
			Window:  cfg.RateLimit.Redirect.Window,
			Buckets: cfg.RateLimit.Redirect.Buckets,
		},
		ratelimit.ClassCreate: {
			Limit:   cfg.RateLimit.Create.Limit,
			Window:  cfg.RateLimit.Create.Window,
			Buckets: cfg.RateLimit.Create.Buckets,
		},
	}, cfg.RateLimit.FailOpen, cfg.RateLimit.OpTimeout, cfg.Cache.Namespace)

	sink := analytics.NewSink(clickRepo, logger.Logger, cfg.Analytics.Buffer, cfg.Analytics.RecordTimeout)
	g.Go(func() error {
		return sink.Run(ctx)
	})

	linkSvc := service.NewLinkService(linkRepo, redirectCache, limiter, sink,
		cfg.Shortener.CodeLength, cfg.Shortener.MaxRetries, logger.Logger)

	r := api.NewRouter(logger, linkSvc, map[string]api.Pinger{
		"postgres": dbPinger{db: db},
		"redis":    redisPinger{client: rdb},
	})

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        r,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g.Go(func() error {
		logger.Info("starting server", slog.String("addr", server.Addr), slog.String("env", cfg.Env))

		var err error
		if cfg.HTTPServer.CertFile != "" && cfg.HTTPServer.KeyFile != "" {
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		} else {
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})

	return g.Wait()
}

func newLogger(env string) *httplog.Logger {
	opts := httplog.Options{
		LogLevel:       slog.LevelDebug,
		Concise:        true,
		RequestHeaders: true,
	}

	switch env {
	case config.EnvStage:
		opts.JSON = true
		opts.LogLevel = slog.LevelDebug
	case config.EnvProd:
		opts.JSON = true
		opts.LogLevel = slog.LevelInfo
		opts.Concise = false
	}

	return httplog.NewLogger("shorty", opts)
}

type dbPinger struct {
	db *sqlx.DB
}

func (p dbPinger) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

type redisPinger struct {
	client *goredis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
