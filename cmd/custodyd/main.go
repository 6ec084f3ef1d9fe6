package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/onda-protocol/onda-program-library-sub000/core/events"
	"github.com/onda-protocol/onda-program-library-sub000/core/genesis"
	"github.com/onda-protocol/onda-program-library-sub000/core/ledger"
	"github.com/onda-protocol/onda-program-library-sub000/gateway/config"
	"github.com/onda-protocol/onda-program-library-sub000/gateway/middleware"
	"github.com/onda-protocol/onda-program-library-sub000/gateway/routes"
	nativecommon "github.com/onda-protocol/onda-program-library-sub000/native/common"
	"github.com/onda-protocol/onda-program-library-sub000/observability"
	"github.com/onda-protocol/onda-program-library-sub000/observability/logging"
	"github.com/onda-protocol/onda-program-library-sub000/observability/metrics"
	telemetry "github.com/onda-protocol/onda-program-library-sub000/observability/otel"
	"github.com/onda-protocol/onda-program-library-sub000/services/history"
	"github.com/onda-protocol/onda-program-library-sub000/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to custodyd configuration")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv(os.LookupEnv)

	env := strings.TrimSpace(os.Getenv("ONDA_ENV"))
	logger := logging.Setup(cfg.Observability.ServiceName, env, cfg.Log)
	if err := cfg.RequireSecret(); err != nil {
		logger.Error("invalid auth configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, env, logger); err != nil {
		logger.Error("custodyd stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, env string, logger *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.FromEnv(cfg.Observability.ServiceName, env))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	db, err := openStorage(cfg.Storage)
	if err != nil {
		return err
	}
	defer db.Close()

	hub := routes.NewHub(logger)
	sinks := events.Fanout{hub, observability.Events(), metrics.Settlement()}
	var store *history.Store
	if strings.TrimSpace(cfg.History.DSN) != "" {
		store, err = history.Open(cfg.History.Driver, cfg.History.DSN)
		if err != nil {
			return err
		}
		defer store.Close()
		store.SetLogger(logger)
		sinks = append(sinks, store)
	}

	l, err := ledger.New(db,
		ledger.WithEmitter(sinks),
		ledger.WithPauses(nativecommon.NewStaticPauses(cfg.PausedModules...)),
		ledger.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	if err := seedGenesis(ctx, l, cfg.GenesisPath, logger); err != nil {
		return err
	}

	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName:   cfg.Observability.ServiceName,
		MetricsPrefix: cfg.Observability.MetricsPrefix,
		LogRequests:   cfg.Observability.LogRequests,
		Enabled:       cfg.Observability.Metrics || cfg.Observability.Tracing,
	}, logger)
	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:        cfg.Auth.Enabled,
		HMACSecret:     cfg.Auth.HMACSecret,
		Issuer:         cfg.Auth.Issuer,
		Audience:       cfg.Auth.Audience,
		ScopeClaim:     cfg.Auth.ScopeClaim,
		OptionalPaths:  cfg.Auth.OptionalPaths,
		AllowAnonymous: cfg.Auth.AllowAnonymous,
		ClockSkew:      cfg.Auth.ClockSkew,
	}, logger)

	router, err := routes.New(routes.Config{
		Ledger:         l,
		History:        store,
		Hub:            hub,
		Authenticator:  auth,
		RateLimiter:    middleware.NewRateLimiter(rateLimits(cfg.RateLimits), logger),
		Observability:  obs,
		Logger:         logger,
		RequestTimeout: cfg.WriteTimeout,
	})
	if err != nil {
		return fmt.Errorf("configure routes: %w", err)
	}
	handler := http.Handler(router)
	if cfg.Observability.Tracing {
		handler = otelhttp.NewHandler(router, cfg.Observability.ServiceName)
	}

	tlsConfig, err := buildTLSConfig(cfg.Security)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		TLSConfig:    tlsConfig,
	}
	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		scheme := "http"
		if tlsConfig != nil {
			scheme = "https"
			listener = tls.NewListener(listener, tlsConfig)
		}
		logger.Info("custodyd listening", slog.String("address", scheme+"://"+listener.Addr().String()))
		serveErr <- server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", slog.Any("error", err))
	}
	return nil
}

func openStorage(cfg config.StorageConfig) (storage.Database, error) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		return storage.NewMemDB(), nil
	}
	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return db, nil
}

// seedGenesis applies the genesis file once. A ledger that already holds the
// first genesis asset is left untouched.
func seedGenesis(ctx context.Context, l *ledger.Ledger, path string, logger *slog.Logger) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	spec, err := genesis.LoadGenesisSpec(path)
	if err != nil {
		return err
	}
	seeded, err := genesis.Seeded(ctx, l, spec)
	if err != nil {
		return err
	}
	if seeded {
		logger.Info("genesis already applied", slog.String("path", path))
		return nil
	}
	if err := genesis.Apply(ctx, l, spec); err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	logger.Info("genesis applied",
		slog.String("path", path),
		slog.Int("accounts", len(spec.Alloc)),
		slog.Int("assets", len(spec.Assets)))
	return nil
}

func rateLimits(entries []config.RateLimitConfig) map[string]middleware.RateLimit {
	limits := make(map[string]middleware.RateLimit)
	for _, entry := range entries {
		if entry.ID == "" {
			continue
		}
		limits[entry.ID] = middleware.RateLimit{
			RequestsPerMinute: entry.RequestsPerMinute,
			RatePerSecond:     entry.RatePerSecond,
			Burst:             entry.Burst,
		}
	}
	if len(limits) == 0 {
		limits[routes.BucketAccounts] = middleware.RateLimit{RatePerSecond: 2, Burst: 20}
		limits[routes.BucketLoans] = middleware.RateLimit{RatePerSecond: 4, Burst: 40}
		limits[routes.BucketOptions] = middleware.RateLimit{RatePerSecond: 4, Burst: 40}
		limits[routes.BucketRentals] = middleware.RateLimit{RatePerSecond: 4, Burst: 40}
		limits[routes.BucketStream] = middleware.RateLimit{RatePerSecond: 1, Burst: 5}
	}
	return limits
}

func buildTLSConfig(sec config.SecurityConfig) (*tls.Config, error) {
	certPath := strings.TrimSpace(sec.TLSCertFile)
	keyPath := strings.TrimSpace(sec.TLSKeyFile)
	if certPath == "" && keyPath == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load TLS key pair: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}, nil
}
