package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/tome/pkg/config"
	"github.com/platinummonkey/tome/pkg/store"
)

// tome-janitor permanently deletes workspaces and documents whose soft
// removal predates the retention window. It runs alongside tomed on the
// same database.
func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.Obs.LogLevel); err == nil {
		log.SetLevel(level)
	}

	db, err := sql.Open("postgres", cfg.Store.PostgresURL)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(ctx); err != nil {
		cancel()
		log.WithError(err).Fatal("database not reachable")
	}
	cancel()

	st := store.NewStore(db)
	purge := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		purged, err := st.PurgeRemoved(ctx, cfg.Janitor.Retention)
		if err != nil {
			log.WithError(err).Error("purge failed")
			return
		}
		if purged > 0 {
			log.WithField("rows", purged).Info("purged soft-removed rows")
		}
	}

	// Run once at startup so a long-stopped janitor catches up immediately.
	purge()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Janitor.Schedule, purge); err != nil {
		log.WithError(err).WithField("schedule", cfg.Janitor.Schedule).
			Fatal("invalid janitor schedule")
	}
	scheduler.Start()
	log.WithFields(logrus.Fields{
		"schedule":  cfg.Janitor.Schedule,
		"retention": cfg.Janitor.Retention.String(),
	}).Info("janitor started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	log.Info("janitor stopped")
}
