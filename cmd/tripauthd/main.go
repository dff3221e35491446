// Command tripauthd serves the tripfriend member and federated-login API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tripAuth "github.com/MrEthical07/tripAuth"
	"github.com/MrEthical07/tripAuth/internal"
	"github.com/MrEthical07/tripAuth/internal/config"
	"github.com/MrEthical07/tripAuth/internal/logging"
	"github.com/MrEthical07/tripAuth/internal/memberstore"
	"github.com/MrEthical07/tripAuth/internal/purge"
	"github.com/MrEthical07/tripAuth/internal/server"
	otelexport "github.com/MrEthical07/tripAuth/metrics/export/otel"
	promexport "github.com/MrEthical07/tripAuth/metrics/export/prometheus"
	"github.com/MrEthical07/tripAuth/middleware"
	"github.com/MrEthical07/tripAuth/oauth"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const appName = "tripauthd"

func main() {
	dev := flag.Bool("dev", false, "run against miniredis and an in-memory member store with seeded accounts")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(2)
	}
	logger := logging.New(appName, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *dev, logger); err != nil {
		logger.WithError(err).Fatal("tripauthd stopped")
	}
}

func run(ctx context.Context, cfg config.Server, dev bool, logger *logrus.Logger) error {
	var cleanups []func()
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

	client, closeRedis, err := openRedis(cfg, dev, logger)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, closeRedis)

	store, closeStore, err := openStore(cfg, dev, logger)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, closeStore)

	if dev && cfg.JWTSecret == "" {
		secret, err := internal.NewOpaque(48)
		if err != nil {
			return fmt.Errorf("generate dev signing secret: %w", err)
		}
		cfg.JWTSecret = secret
		logger.Warn("using an ephemeral signing secret; tokens will not survive a restart")
	}

	authCfg := cfg.AuthConfig()
	engine, err := tripAuth.New().
		WithConfig(authCfg).
		WithRedis(client).
		WithMemberProvider(store).
		WithAuditSink(tripAuth.NewLogrusSink(logger.WithField("component", "audit"))).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("build auth engine: %w", err)
	}
	cleanups = append(cleanups, engine.Close)

	if dev {
		if err := seedDevMembers(ctx, engine, store, logger); err != nil {
			return err
		}
	}

	deps := server.Deps{
		Engine:      engine,
		Members:     store,
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,
		APIPrefix:   cfg.APIPrefix,
	}
	if cfg.MetricsEnabled {
		deps.Metrics = promexport.NewCollector(engine).Handler()

		exporter, err := otelexport.NewExporter(otel.GetMeterProvider().Meter(appName), engine)
		if err != nil {
			return fmt.Errorf("register otel metrics: %w", err)
		}
		cleanups = append(cleanups, func() { _ = exporter.Close() })
	}
	if providers := cfg.OAuthProviders(); len(providers) > 0 {
		bridge, err := oauth.NewBridge(engine, middleware.NewCookies(authCfg.Cookie), cfg.OAuthBridgeConfig(),
			logger.WithField("component", "oauth"), providers...)
		if err != nil {
			return fmt.Errorf("build oauth bridge: %w", err)
		}
		deps.Bridge = bridge
		for _, p := range providers {
			logger.WithField("provider", p.Name()).Info("federated login enabled")
		}
	}

	srv, err := server.New(deps)
	if err != nil {
		return err
	}

	scheduler, err := purge.NewScheduler(store, purge.Config{
		Schedule:      cfg.PurgeSchedule,
		RestoreWindow: authCfg.Account.RestoreWindow,
	}, logger)
	if err != nil {
		return err
	}
	scheduler.Start()
	cleanups = append(cleanups, func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		scheduler.Stop(stopCtx)
	})
	logger.WithField("schedule", cfg.PurgeSchedule).Info("scheduled deleted-member purge")

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("starting tripauthd")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func openRedis(cfg config.Server, dev bool, logger logrus.FieldLogger) (redis.UniversalClient, func(), error) {
	if dev {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		logger.WithField("addr", mr.Addr()).Info("using miniredis")
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.RedisAddr},
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	logger.WithField("addr", cfg.RedisAddr).Info("using redis")
	return client, func() { _ = client.Close() }, nil
}

func openStore(cfg config.Server, dev bool, logger logrus.FieldLogger) (memberstore.Store, func(), error) {
	if dev || cfg.DatabaseURL == "" {
		if !dev {
			logger.Warn("TRIPAUTH_DATABASE_URL is empty; members are kept in memory")
		}
		return memberstore.NewMemory(nil), func() {}, nil
	}

	if err := memberstore.RunMigrations(cfg.DatabaseURL); err != nil {
		return nil, nil, err
	}
	db, err := memberstore.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("using postgres member store")
	return memberstore.NewPostgres(db), func() { _ = db.Close() }, nil
}

type devMember struct {
	username string
	password string
	role     tripAuth.Role
}

var devMembers = []devMember{
	{username: "user1", password: "user1-password", role: tripAuth.RoleUser},
	{username: "admin", password: "admin-password", role: tripAuth.RoleAdmin},
}

func seedDevMembers(ctx context.Context, engine *tripAuth.Engine, store memberstore.Store, logger logrus.FieldLogger) error {
	for _, dm := range devMembers {
		hash, err := engine.HashPassword(dm.password)
		if err != nil {
			return fmt.Errorf("hash dev password: %w", err)
		}
		err = store.Create(ctx, tripAuth.Member{
			Username:     dm.username,
			PasswordHash: hash,
			Role:         dm.role,
			Verified:     true,
			Nickname:     dm.username,
		})
		if err != nil && !errors.Is(err, memberstore.ErrDuplicateMember) {
			return fmt.Errorf("seed dev member %s: %w", dm.username, err)
		}
		logger.WithFields(logrus.Fields{"username": dm.username, "role": dm.role}).Info("seeded dev member")
	}
	return nil
}
