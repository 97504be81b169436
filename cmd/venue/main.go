package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/efreitasn/venue/internal/config"
	"github.com/efreitasn/venue/internal/engine"
	"github.com/efreitasn/venue/internal/handler"
	"github.com/efreitasn/venue/internal/metrics"
	"github.com/efreitasn/venue/internal/publish"
	"github.com/efreitasn/venue/internal/service"
	"github.com/efreitasn/venue/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	// Metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		logger.Error("failed to register metrics", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Stores and the matching core.
	brokerStore := store.NewBrokerStore()
	shareholderStore := store.NewShareholderStore()
	webhookStore := store.NewWebhookStore()
	tape := store.NewTradeTape(cfg.TradeTapeLimit)
	securities := engine.NewSecurityRegistry()
	matcher := engine.NewMatcher()

	// Event sinks.
	webhookSvc := service.NewWebhookService(webhookStore, cfg.WebhookTimeout, logger)
	sinks := []publish.Publisher{publish.NewLogPublisher(logger), webhookSvc}
	var kafka *publish.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafka = publish.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		sinks = append(sinks, kafka)
		logger.Info("kafka publishing enabled",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.String("topic", cfg.KafkaTopic),
		)
	}

	orderSvc := service.NewOrderService(securities, brokerStore, shareholderStore, tape, publish.NewFanout(sinks...), m, logger)
	adminSvc := service.NewAdminService(securities, matcher, brokerStore, shareholderStore, tape, cfg.BookDepth)

	router := handler.NewRouter(orderSvc, adminSvc, webhookSvc, reg, logger)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Stop accepting commands first, then drain the event sinks.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	webhookSvc.Wait()
	if kafka != nil {
		if err := kafka.Close(); err != nil {
			logger.Error("kafka writer close error", slog.String("error", err.Error()))
		}
	}

	logger.Info("server stopped")
}
