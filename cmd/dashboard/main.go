package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"cryptodash/config"
	"cryptodash/internal/app"
	"cryptodash/internal/logger"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[dashboard] config: %v", err)
	}
	logger.Init("dashboard", cfg.LogLevel)
	log.Printf("[dashboard] symbols: %v, interval: %s, poll: %v", cfg.Symbols, cfg.KlineInterval, cfg.PollInterval)

	svc, err := app.New(cfg)
	if err != nil {
		log.Fatalf("[dashboard] init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("[dashboard] fatal: %v", err)
	}
}
