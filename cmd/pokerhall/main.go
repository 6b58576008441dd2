package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"pokerhall/internal/api"
	"pokerhall/internal/coordinator"
	"pokerhall/internal/events"
	metricsstore "pokerhall/internal/store/metrics"

	"pokerhall/internal/store/kv"
)

// getEnv returns the environment variable at key, or fallback if unset.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := sql.Open("postgres", getEnv("DATABASE_URL", "postgres://localhost/pokerhall?sslmode=disable"))
	if err != nil {
		logger.Error("open postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := kv.New(db)
	if err := store.EnsureSchema(context.Background()); err != nil {
		logger.Error("ensure kv schema", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: getEnv("REDIS_ADDR", "localhost:6379")})
	defer rdb.Close()
	metricsStore := metricsstore.New(rdb)

	var publisher *events.Publisher
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		publisher, err = events.NewPublisher(events.Config{
			Brokers: []string{brokers},
			Topic:   getEnv("KAFKA_TOPIC", "pokerhall.events"),
		})
		if err != nil {
			logger.Error("connect kafka publisher, continuing without event publishing", "error", err)
			publisher = nil
		} else {
			defer publisher.Close()
		}
	}

	coord := coordinator.New(store, publisher, metricsStore, logger)

	timerDriver := coordinator.NewTimerDriver(coord, logger)
	sweeper := coordinator.NewSweeper(coord, logger)
	heartbeat := coordinator.NewHeartbeatDriver(nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go timerDriver.Run(ctx)
	go sweeper.Run(ctx)
	go heartbeat.Run(ctx)

	router := api.NewRouter(coord, logger)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: ":" + getEnv("METRICS_PORT", "9090"), Handler: metricsMux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server", "error", err)
		}
	}()

	port := getEnv("PORT", "8080")
	srv := &http.Server{Addr: ":" + port, Handler: router}
	go func() {
		logger.Info("pokerhall server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("game server", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutting down")

	cancel() // stop timer driver and sweeper

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("game server shutdown", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}
