// Command relay serves dashboard views from Redis to websocket clients, so
// browsers can be fanned out from processes other than the one streaming Binance.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"cryptodash/config"
	"cryptodash/internal/gateway"
	"cryptodash/internal/logger"
	"cryptodash/internal/metrics"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[relay] config: %v", err)
	}
	logger.Init("relay", cfg.LogLevel)
	if cfg.RedisAddr == "" {
		log.Fatal("[relay] REDIS_ADDR is required")
	}
	listenAddr := os.Getenv("RELAY_ADDR")
	if listenAddr == "" {
		listenAddr = ":8090"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("[relay] redis connection failed: %v", err)
	}
	log.Printf("[relay] redis connected at %s", cfg.RedisAddr)

	health := metrics.NewHealthStatus()
	health.EnableRedis()
	health.SetRedisConnected(true)
	// No Binance stream here, so /healthz reflects Redis alone.
	health.SetWSConnected(true)
	health.StartLivenessChecker(ctx, rdb, nil, 10*time.Second)

	hub := gateway.NewHub(100)
	go gateway.NewRelay(rdb, hub).Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.Handle("/healthz", health)

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("[relay] listening on %s", listenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[relay] server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("[relay] shutting down...")
	cancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	srv.Shutdown(shutCtx)
	hub.Close()
	log.Println("[relay] stopped")
}
