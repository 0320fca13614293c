package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/tome/pkg/access"
	"github.com/platinummonkey/tome/pkg/config"
	"github.com/platinummonkey/tome/pkg/observability"
	"github.com/platinummonkey/tome/pkg/provision"
	"github.com/platinummonkey/tome/pkg/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.NewLogger(observability.ParseLevel("info"), os.Stderr).
			WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.ParseLevel(cfg.Obs.LogLevel), os.Stdout)
	ctx := observability.WithLogger(context.Background(), logger)

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Obs.OTelEnabled,
		Endpoint:       cfg.Obs.OTelEndpoint,
		ServiceName:    cfg.Obs.OTelServiceName,
		ServiceVersion: cfg.Obs.OTelServiceVersion,
		Insecure:       cfg.Obs.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize opentelemetry")
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.Store.PostgresURL)
	if err != nil {
		logger.WithError(err).Error("failed to open database")
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Store.MaxConns)
	db.SetMaxIdleConns(cfg.Store.MinConns)
	db.SetConnMaxLifetime(cfg.Store.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancel()
		logger.WithError(err).Error("database not reachable")
		os.Exit(1)
	}
	cancel()

	if err := store.ApplyMigrations(ctx, db); err != nil {
		logger.WithError(err).Error("failed to apply migrations")
		os.Exit(1)
	}
	logger.Info("migrations applied")

	metrics := observability.NewMetrics()
	st := store.NewStore(db).WithMetrics(metrics)
	var grantCache *store.GrantCache
	if cfg.Store.RedisURL != "" {
		grantCache, err = store.NewGrantCacheFromURL(cfg.Store.RedisURL, cfg.Store.GrantCacheTTL)
		if err != nil {
			logger.WithError(err).Error("failed to connect grant cache")
			os.Exit(1)
		}
		defer grantCache.Close()
		st = st.WithGrantCache(grantCache)
		logger.Info("grant cache connected")
	}

	policy := cfg.Policy()
	resolver := access.NewResolver(policy, st, metrics)
	evaluator := access.NewEvaluator(st, metrics, cfg.Access.RoleCacheSize, cfg.Access.RoleCacheTTL)
	provisioner := provision.NewProvisioner(st, policy, cfg.Org.PersonalOrgMode, metrics)

	logger.Info("scoping core ready",
		"single_org", policy.FixedOrgDomain,
		"id_prefix", policy.IDPrefix,
		"personal_org_mode", string(cfg.Org.PersonalOrgMode))

	go pollDBStats(ctx, db, metrics)

	health := observability.NewHealthChecker(db, nil)
	if grantCache != nil {
		health = observability.NewHealthChecker(db, grantCache.Client())
	}

	router := mux.NewRouter()
	router.Use(requestIDMiddleware(logger))
	router.HandleFunc("/healthz", health.Liveness).Methods(http.MethodGet)
	router.HandleFunc("/readyz", health.Readiness).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	// Operator introspection: what filter does an identifier resolve to,
	// and what role does a user hold. Not a client-facing API.
	router.HandleFunc("/internal/scope", func(w http.ResponseWriter, r *http.Request) {
		userID, _ := strconv.ParseInt(r.URL.Query().Get("user"), 10, 64)
		filter := resolver.ResolveOrgScope(r.Context(), r.URL.Query().Get("org"), userID, false)
		writeJSON(w, map[string]string{"filter": filter.String()})
	}).Methods(http.MethodGet)
	router.HandleFunc("/internal/role", func(w http.ResponseWriter, r *http.Request) {
		userID, _ := strconv.ParseInt(r.URL.Query().Get("user"), 10, 64)
		resourceID, _ := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
		rt := store.ResourceType(r.URL.Query().Get("type"))
		exists, role, err := evaluator.ResolveRole(r.Context(), userID, rt, resourceID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]interface{}{"exists": exists, "role": string(role)})
	}).Methods(http.MethodGet)
	router.HandleFunc("/internal/provision", func(w http.ResponseWriter, r *http.Request) {
		userID, _ := strconv.ParseInt(r.URL.Query().Get("user"), 10, 64)
		name := r.URL.Query().Get("name")
		org, err := provisioner.EnsurePersonalOrg(r.Context(), userID, name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if org == nil {
			writeJSON(w, map[string]interface{}{"created": false})
			return
		}
		writeJSON(w, map[string]interface{}{"org_id": org.ID, "name": org.Name})
	}).Methods(http.MethodPost)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler:      otelhttp.NewHandler(router, "tomed"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("health server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("health server shutdown failed")
	}
	if err := observability.ShutdownOTel(shutdownCtx, providers, logger); err != nil {
		logger.WithError(err).Error("opentelemetry shutdown failed")
	}
}

func pollDBStats(ctx context.Context, db *sql.DB, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			metrics.DBConnectionsActive.Set(float64(stats.InUse))
			metrics.DBConnectionsIdle.Set(float64(stats.Idle))
		}
	}
}

func requestIDMiddleware(logger *observability.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			ctx := observability.WithRequestID(r.Context(), id)
			ctx = observability.WithLogger(ctx, logger)
			w.Header().Set("X-Request-ID", id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
