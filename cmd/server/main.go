package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"sentra/internal/audit"
	audithandler "sentra/internal/audit/handler"
	auditmetrics "sentra/internal/audit/metrics"
	auditmemory "sentra/internal/audit/store/memory"
	auditpostgres "sentra/internal/audit/store/postgres"
	"sentra/internal/platform/config"
	"sentra/internal/platform/httpserver"
	"sentra/internal/platform/logger"
	"sentra/internal/platform/middleware"
	"sentra/internal/policy"
	policyhandler "sentra/internal/policy/handler"
	policymetrics "sentra/internal/policy/metrics"
	"sentra/internal/token"
	"sentra/migrations"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	registry, err := policy.NewRegistry(policy.BuiltinMatrix())
	if err != nil {
		log.Error("invalid access matrix", "error", err)
		os.Exit(1)
	}
	evaluator := policy.NewEvaluator(registry)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openAuditStore(ctx, cfg, log)
	if err != nil {
		log.Error("audit store unavailable", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	am := auditmetrics.New()
	recorder := audit.NewRecorder(store, audit.WithLogger(log), audit.WithMetrics(am))
	query := audit.NewQuery(store, log)

	tokens := token.NewService(cfg.JWTSigningKey, "sentra")

	policyHandler := policyhandler.New(registry, evaluator, log, policymetrics.New())
	auditHandler := audithandler.New(recorder, query, log)

	router := chi.NewRouter()
	router.Use(middleware.RequestMetadata)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequirePersona(tokens, log))
		policyHandler.Register(r)
		auditHandler.Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting sentra",
		"addr", cfg.Addr,
		"matrix_version", registry.Matrix().Version,
		"durable_audit", cfg.DatabaseURL != "",
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openAuditStore picks the durable postgres store when a database URL is
// configured, falling back to the in-memory store for local runs.
func openAuditStore(ctx context.Context, cfg config.Server, log *slog.Logger) (audit.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("no database configured; audit events will not survive restarts")
		return auditmemory.New(), func() {}, nil
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	if err := migrations.Apply(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return auditpostgres.New(db), func() { _ = db.Close() }, nil
}
