// Command klinesim runs an offline stand-in for the exchange. Point the
// dashboard at it with:
//
//	BINANCE_REST_URL=http://localhost:9001/api/v3/klines
//	BINANCE_WS_URL=ws://localhost:9001/stream
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

	"github.com/gin-gonic/gin"

	"cryptodash/config"
	"cryptodash/internal/marketdata/klinesim"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	gin.SetMode(gin.ReleaseMode)

	addr := envOrDefault("KLINESIM_ADDR", ":9001")
	symbols := config.ParseSymbols(envOrDefault("SYMBOLS", "btcusdt,ethusdt"))
	period, err := time.ParseDuration(envOrDefault("KLINESIM_BAR_PERIOD", "5s"))
	if err != nil {
		log.Fatalf("[klinesim] invalid KLINESIM_BAR_PERIOD: %v", err)
	}

	sim := klinesim.New(klinesim.Config{
		Symbols:   symbols,
		Interval:  envOrDefault("KLINE_INTERVAL", "1m"),
		BarPeriod: period,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sim.Run(ctx)

	srv := &http.Server{Addr: addr, Handler: sim.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Printf("[klinesim] listening on %s, %v, one bar every %v", addr, symbols, period)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[klinesim] server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	srv.Shutdown(shutCtx)
	log.Println("[klinesim] stopped")
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
