package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gobwas/ws"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/broadcast"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/gateway"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/hub"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/instrument"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/pricing"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/publisher"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/session"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/subscription"
	"github.com/shubham-shewale/stock-ticker/pkg/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	catalog, err := instrument.FromConfig(cfg.Market)
	if err != nil {
		logger.Fatal("Invalid instrument catalog", zap.Error(err))
	}

	generator := pricing.NewGenerator(
		logger.Named("pricing"),
		catalog,
		pricing.NewRealRand(time.Now().UnixNano()),
		pricing.RealClock{},
		pricing.Options{WalkMagnitude: cfg.Market.WalkMagnitude, PriceFloor: cfg.Market.PriceFloor},
	)
	registry := subscription.NewRegistry(catalog)
	sessions := session.NewManager(catalog, registry, generator, logger.Named("session"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sinks []broadcast.Sink
	if cfg.Kafka.Enabled {
		tc := publisher.NewTopicCreator(logger, &publisher.RealKafkaDialer{Dialer: kafka.DefaultDialer}, pricing.RealClock{})
		if err := tc.Ensure(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic); err != nil {
			logger.Warn("Topic bootstrap failed, publishing anyway", zap.Error(err))
		}

		pub := publisher.NewKafkaPublisher(logger.Named("publisher"), publisher.NewWriter(cfg.Kafka))
		defer func() {
			// Flush buffered messages before exit
			if err := pub.Close(); err != nil {
				logger.Error("Error closing Kafka writer", zap.Error(err))
			}
		}()
		sinks = append(sinks, pub)
	}

	scheduler := broadcast.NewScheduler(
		logger.Named("broadcast"),
		generator,
		sessions,
		registry,
		cfg.Market.TickInterval,
		cfg.Market.FanoutWorkers,
		sinks...,
	)

	// Dependency Injection: Hub drives sessions, sessions own subscriptions
	wsHub := hub.NewHub(sessions, logger.Named("hub"))
	clientOpts := gateway.OptionsFromConfig(cfg.Gateway)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			logger.Debug("Upgrade failed", zap.Error(err))
			return
		}

		client := gateway.NewClient(conn, wsHub, logger, clientOpts)
		client.Start()
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"sessions":    sessions.Count(),
			"instruments": catalog.Symbols(),
			"broadcast":   scheduler.Stats(),
			"time":        time.Now().UTC(),
		})
	})

	srv := &http.Server{Addr: cfg.App.Port, Handler: mux}

	go scheduler.Run(ctx)

	go func() {
		logger.Info("Server Started", zap.String("port", cfg.App.Port), zap.Strings("instruments", catalog.Symbols()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	logger.Info("Shutdown Complete")
}
