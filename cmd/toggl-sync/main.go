package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ttsukagoshi/toggl-scripts/internal/calendar"
	"github.com/ttsukagoshi/toggl-scripts/internal/client"
	"github.com/ttsukagoshi/toggl-scripts/internal/config"
	"github.com/ttsukagoshi/toggl-scripts/internal/logger"
	"github.com/ttsukagoshi/toggl-scripts/internal/notify"
	"github.com/ttsukagoshi/toggl-scripts/internal/reconcile"
	"github.com/ttsukagoshi/toggl-scripts/internal/rollover"
	"github.com/ttsukagoshi/toggl-scripts/internal/service"
	"github.com/ttsukagoshi/toggl-scripts/internal/store"
	syncengine "github.com/ttsukagoshi/toggl-scripts/internal/sync"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/local.yaml", "Path to configuration file")
	mode := flag.String("mode", "run", "Run mode: run (periodic sync), sync, autotag or update")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting toggl-sync",
		zap.String("env", cfg.Env),
		zap.String("config_path", *configPath),
		zap.String("mode", *mode),
	)

	db, err := store.New(cfg.Storage.Path, log.Logger)
	if err != nil {
		log.Fatal("Failed to open record store", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close record store", zap.Error(err))
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	togglClient := client.NewTogglClient(
		cfg.Toggl.BaseURL,
		cfg.Toggl.APIToken,
		time.Duration(cfg.Toggl.Timeout)*time.Second,
		log.Logger,
	)

	events, err := newCalendar(ctx, cfg, log.Logger)
	if err != nil {
		log.Fatal("Failed to initialize calendar client", zap.Error(err))
	}

	notifier, err := notify.New(cfg.Notify.URLs, log.Logger)
	if err != nil {
		log.Fatal("Failed to initialize notifier", zap.Error(err))
	}

	calendarIDs := cfg.CalendarIDs()
	location := cfg.Location()
	actor := cfg.Notify.Actor

	syncEngine := syncengine.NewEngine(togglClient, db, events, calendarIDs, location, actor, log.Logger)
	reconciler := reconcile.NewEngine(togglClient, db, events, calendarIDs, location, actor, log.Logger)
	checker := rollover.NewChecker(db, location, actor, log.Logger)

	svc := service.New(cfg, db, togglClient, syncEngine, reconciler, checker, notifier, log.Logger)

	switch *mode {
	case "sync":
		err = svc.Sync(ctx)
	case "autotag":
		err = svc.AutoTag(ctx)
	case "update":
		err = svc.Update(ctx)
	case "run":
		err = svc.RunPeriodic(ctx, time.Duration(cfg.Sync.Interval)*time.Second)
		if err == context.Canceled {
			err = nil
		}
	default:
		log.Fatal("Unknown mode", zap.String("mode", *mode))
	}

	if err != nil {
		log.Error("Run failed", zap.Error(err))
		os.Exit(1)
	}

	log.Info("toggl-sync stopped")
}

// newCalendar picks the Google Calendar credential source from config.
func newCalendar(ctx context.Context, cfg *config.Config, log *zap.Logger) (calendar.EventStore, error) {
	if cfg.Google.CredentialsFile != "" {
		return calendar.NewGoogleCalendar(ctx, cfg.Google.CredentialsFile, log)
	}
	if cfg.Google.AccessToken != "" {
		return calendar.NewGoogleCalendarWithToken(ctx, cfg.Google.AccessToken, log)
	}
	return nil, fmt.Errorf("no Google Calendar credentials configured")
}
