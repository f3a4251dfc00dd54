package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"queueless/config"
	"queueless/monitoring"
	"queueless/realtime"
	"queueless/services"
	"queueless/store"
	"queueless/utils"
)

func main() {
	// Load .env if present; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize collaborators
	queueStore := store.NewRedisStore(redisClient)
	exportCache := store.NewRedisExportCache(redisClient, cfg.TokenTTL)
	publisher := realtime.NewPubNubPublisher(cfg)
	monitor := monitoring.NewMonitor()
	guard := services.NewParticipationGuard(cfg.JoinCooldown)

	queueService := services.NewQueueService(queueStore, publisher, exportCache, guard, monitor, cfg)

	// Diagnostic pass over persisted state before accepting traffic.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if violations, err := queueService.CheckConsistency(ctx); err != nil {
		log.Printf("Consistency check failed: %v", err)
	} else if violations > 0 {
		log.Printf("Consistency check found %d queues with multiple in-service tokens", violations)
	}
	cancel()

	// Start background tasks
	queueService.StartBackground()

	// Metrics endpoint
	var metricsServer *http.Server
	if cfg.EnableMetrics {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte("ok"))
		})

		metricsServer = &http.Server{Addr: ":" + cfg.MetricsPort, Handler: mux}
		go func() {
			log.Printf("Metrics server listening on :%s", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutdown signal received, cleaning up...")
	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		metricsServer.Shutdown(shutdownCtx)
		shutdownCancel()
	}
	queueService.Stop()
	log.Println("Shutdown complete")
}
