package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-kit/log/level"

	"github.com/example/telemetry-sdk/config"
	"github.com/example/telemetry-sdk/internal/influx"
	"github.com/example/telemetry-sdk/internal/logging"
	"github.com/example/telemetry-sdk/internal/metrics"
	"github.com/example/telemetry-sdk/internal/security"
	_ "github.com/example/telemetry-sdk/services/collector/docs"
)

// @title Telemetry Collector API
// @version 1.0
// @description Development collector for the telemetry SDK: ingests SDK requests and lists what was received.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API Key authentication using X-API-Key header

// @BasePath /
func main() {
	cfg := config.Load()
	logger := logging.New(os.Stdout, serviceName, cfg.Debug)

	// Initialize Prometheus metrics
	metrics.InitMetrics(serviceName)
	level.Info(logger).Log("msg", "Prometheus metrics initialized")

	influxWriter := influx.NewInfluxWriter(cfg.InfluxDBURL, cfg.InfluxDBToken, cfg.InfluxDBOrg, cfg.InfluxDBBucket)
	defer influxWriter.Close()

	var appKeys []string
	if cfg.AcceptedAppKeys != "" {
		appKeys = strings.Split(cfg.AcceptedAppKeys, ",")
	}
	verifier := security.NewVerifier(appKeys, cfg.Salt)
	service := NewCollectorService(influxWriter, verifier, logger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           service.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		level.Info(logger).Log("msg", "starting HTTP server", "port", cfg.Port, "signed", cfg.Salt != "", "app_keys", len(appKeys))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			level.Error(logger).Log("msg", "HTTP server error", "err", err)
			os.Exit(1)
		}
	}()
	metrics.SetServiceHealth(serviceName, true)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	level.Info(logger).Log("msg", "shutting down collector")
	metrics.SetServiceHealth(serviceName, false)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		level.Error(logger).Log("msg", "shutdown failed", "err", err)
	}
}
