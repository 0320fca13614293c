// Package observability provides structured logging, Prometheus metrics,
// health checks, and OpenTelemetry wiring.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.ParseLevel("info"), os.Stdout)
//	logger.Info("migrations applied", "count", n)
//	logger.WithError(err).Error("purge failed")
//
// Context helpers carry the logger and a request id through call chains;
// FromContext annotates log lines with the request id automatically.
//
// # Metrics
//
//	metrics := observability.NewMetrics()
//	metrics.ResolutionsTotal.WithLabelValues("by-domain", "resolved").Inc()
//	http.Handle("/metrics", metrics.Handler())
//
// Metrics register on a private registry so tests can create as many
// instances as they like.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	router.HandleFunc("/readyz", checker.Readiness)
//
// A down database is unhealthy; a down redis only degrades, since the grant
// cache is advisory.
package observability
