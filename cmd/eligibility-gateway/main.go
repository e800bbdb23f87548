package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/LinuxForHealth/connect-contracts/internal/eligibility"
	"github.com/LinuxForHealth/connect-contracts/internal/gateway"
	"github.com/LinuxForHealth/connect-contracts/internal/messaging"
	"github.com/LinuxForHealth/connect-contracts/pkg/config"
	"github.com/LinuxForHealth/connect-contracts/pkg/logger"
	"github.com/LinuxForHealth/connect-contracts/pkg/monitoring"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.WithComponent("main").Info("Starting eligibility gateway")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetricsCollector(registry)
	tracing := monitoring.NewTracingManager(nil)

	publisher := messaging.NewPublisher(messaging.NewJetStreamConnection(messaging.JetStreamOptions{
		Server:       cfg.NATS.Server,
		NkeySeedFile: cfg.NATS.NkeySeedFile,
		CAFile:       cfg.NATS.CAFile,
		Name:         cfg.NATS.ClientName,
	}), log, metrics, tracing)

	service, err := eligibility.NewService(cfg, log, metrics, tracing, eligibility.WithPublisher(publisher))
	if err != nil {
		log.WithError(err).Error("Failed to create eligibility service")
		os.Exit(1)
	}

	health := monitoring.NewHealthManager("eligibility-gateway")
	health.RegisterChecker("configuration", monitoring.HealthCheckerFunc(func(ctx context.Context) monitoring.HealthCheck {
		if !service.Configured() {
			return monitoring.HealthCheck{Status: monitoring.HealthStatusDegraded, Message: "awaiting configuration"}
		}
		return monitoring.HealthCheck{Status: monitoring.HealthStatusHealthy}
	}))
	health.RegisterChecker("nats", monitoring.HealthCheckerFunc(func(ctx context.Context) monitoring.HealthCheck {
		state := publisher.State()
		if state != messaging.StateConnected {
			return monitoring.HealthCheck{Status: monitoring.HealthStatusDegraded, Message: state.String()}
		}
		return monitoring.HealthCheck{Status: monitoring.HealthStatusHealthy, Message: state.String()}
	}))

	gatewayConfig := &gateway.Config{
		Port:         cfg.Gateway.Port,
		RateLimit:    cfg.Gateway.RateLimit,
		RatePeriod:   cfg.Gateway.RatePeriod,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	stopCleanup := make(chan struct{})
	rateLimiter := gateway.NewRateLimiter(gatewayConfig.RateLimit, gatewayConfig.RatePeriod)
	rateLimiter.StartCleanup(time.Hour, stopCleanup)

	gatewayService := gateway.NewService(gatewayConfig, service, rateLimiter, health, registry, log)

	go func() {
		if err := gatewayService.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Failed to start server")
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.WithComponent("main").Info("Shutting down eligibility gateway...")
	close(stopCleanup)

	if err := gatewayService.Stop(); err != nil {
		log.WithError(err).Error("Failed to shutdown server gracefully")
		os.Exit(1)
	}

	log.WithComponent("main").Info("Eligibility gateway stopped")
}
