package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gmsas95/medremind/internal/adherence"
	"github.com/gmsas95/medremind/internal/api"
	"github.com/gmsas95/medremind/internal/config"
	"github.com/gmsas95/medremind/internal/notify"
	"github.com/gmsas95/medremind/internal/scheduler"
	"github.com/gmsas95/medremind/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	dataDir    = flag.String("data", "", "Path to data directory")
	noSched    = flag.Bool("no-scheduler", false, "Disable the reminder scheduler (API only)")
	version    = "dev"
)

func main() {
	flag.Parse()

	logger, err := newLogger()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath, *dataDir)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	logger.Info("starting medremind",
		zap.String("version", version),
		zap.String("data_dir", cfg.Storage.DataDir))

	db, err := store.New(cfg)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}

	// Channels: missing credentials disable a channel, never fail startup
	var sms notify.SMSSender
	if cfg.SMS().Configured() {
		sms = notify.NewTwilioClient(cfg.SMS(), logger)
		logger.Info("sms channel enabled")
	} else {
		logger.Warn("sms channel disabled: no credentials")
	}

	var email notify.EmailSender
	if cfg.Email().Configured() {
		email = notify.NewSMTPClient(cfg.Email(), logger)
		logger.Info("email channel enabled")
	} else {
		logger.Warn("email channel disabled: no credentials")
	}

	var calendar *notify.CalendarClient
	if cfg.Calendar().Configured() {
		calendar = notify.NewCalendarClient(cfg.Calendar(), cfg.Storage.DataDir, logger)
		logger.Info("calendar channel enabled")
	} else {
		logger.Warn("calendar channel disabled: no credentials")
	}

	timeout := time.Duration(cfg.Scheduler.ChannelTimeoutSec) * time.Second
	dispatcher := notify.NewDispatcher(sms, email, timeout, logger)
	tracker := adherence.NewTracker(db, logger)
	engine := scheduler.New(db, dispatcher, cfg, logger)

	if cfg.Scheduler.Enabled && !*noSched {
		if err := engine.Start(cfg); err != nil {
			logger.Fatal("failed to start scheduler", zap.Error(err))
		}
	} else {
		logger.Info("scheduler disabled")
	}

	metricsSrv := startMetricsServer(cfg, logger)

	server := api.New(cfg, db, tracker, engine, calendar, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("api server failed", zap.Error(err))
		}
	}()
	logger.Info("api server listening",
		zap.String("address", cfg.Server.Address),
		zap.Int("port", cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := engine.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler shutdown failed", zap.Error(err))
	}
	if err := server.Shutdown(); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", zap.Error(err))
	}
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("MEDREMIND_DEBUG") != "" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// startMetricsServer serves Prometheus metrics on a separate port so the
// public API surface stays free of operational endpoints
func startMetricsServer(cfg *config.Config, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.MetricsPort),
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	logger.Info("metrics server listening", zap.Int("port", cfg.Server.MetricsPort))
	return srv
}
