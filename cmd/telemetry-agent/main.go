package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/example/telemetry-sdk/client"
	"github.com/example/telemetry-sdk/config"
	"github.com/example/telemetry-sdk/internal/device"
	"github.com/example/telemetry-sdk/internal/logging"
	"github.com/example/telemetry-sdk/internal/metrics"
	"github.com/example/telemetry-sdk/internal/request"
	"github.com/example/telemetry-sdk/internal/scheduler"
	"github.com/example/telemetry-sdk/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "optional YAML file overlaid on the environment configuration")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	logger := logging.New(os.Stdout, serviceName, cfg.Debug)
	if err != nil {
		level.Error(logger).Log("msg", "failed to load configuration", "err", err)
		os.Exit(1)
	}

	metrics.InitMetrics(serviceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		level.Error(logger).Log("msg", "agent stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger log.Logger) error {
	store, closeStore, err := storage.Open(ctx, storage.Options{
		Backend:       cfg.StorageBackend,
		Path:          cfg.StoragePath,
		Namespace:     cfg.StorageNamespace,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		return err
	}
	defer closeStore()
	level.Info(logger).Log("msg", "storage opened", "backend", cfg.StorageBackend)

	c, err := client.New(ctx, store,
		client.WithLogger(log.With(logger, "module", "client")),
		client.WithHTTPTimeout(cfg.HTTPTimeout),
		client.WithDefaultMethod(request.ParseMethod(cfg.HTTPMethod)),
		client.WithProperties(device.Host(cfg.AppVersion)),
		client.WithHeartbeat(cfg.SessionHeartbeat),
		client.WithScheduler(scheduler.Config{
			InitialDelay: cfg.DrainInitialDelay,
			Interval:     cfg.DrainInterval,
			MinGap:       cfg.DrainMinGap,
		}),
	)
	if err != nil {
		return err
	}
	defer c.Close()

	if cfg.Salt != "" {
		c.EnableParameterTamperingProtection(cfg.Salt)
	}
	c.SetManualSessionHandling(cfg.ManualSessions)
	if err := c.Begin(ctx, cfg.CollectorURL, cfg.AppKey, cfg.DeviceID); err != nil {
		return err
	}
	level.Info(logger).Log("msg", "client started", "collector", cfg.CollectorURL, "device_id", c.DeviceID(), "pending", c.Pending())

	agent := NewAgent(c, logger)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           agent.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		level.Info(logger).Log("msg", "starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			level.Error(logger).Log("msg", "HTTP server error", "err", err)
		}
	}()
	metrics.SetServiceHealth(serviceName, true)

	// If CSV_PATH is set, replay it but keep the server running
	if cfg.CSVPath != "" {
		delay := time.Duration(cfg.CSVDelayMs) * time.Millisecond
		if _, err := agent.ReplayCSV(ctx, cfg.CSVPath, delay); err != nil && !errors.Is(err, context.Canceled) {
			level.Error(logger).Log("msg", "CSV replay failed", "err", err)
		}
	}

	<-ctx.Done()
	level.Info(logger).Log("msg", "shutting down agent")
	metrics.SetServiceHealth(serviceName, false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Stop(shutdownCtx); err != nil {
		level.Warn(logger).Log("msg", "session end not recorded", "err", err)
	}
	return server.Shutdown(shutdownCtx)
}
