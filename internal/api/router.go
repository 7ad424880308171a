// Package api serves the dashboard over HTTP with gin: health, tracked symbols,
// buffered candles, evaluated views, signals, archived history and the
// websocket upgrade.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"cryptodash/internal/dashboard"
	"cryptodash/internal/model"
)

// CandleSource is the read side of the candle store.
type CandleSource interface {
	Get(symbol string) []model.Candle
	Len(symbol string) int
}

// Deps are the handler dependencies. History and WS may be nil; their routes
// then answer 503 and 404 respectively.
type Deps struct {
	Symbols   []string
	Interval  string
	Store     CandleSource
	Evaluator *dashboard.Evaluator
	History   model.CandleReader
	WS        http.Handler
	Stats     func() any
}

// Handler holds the HTTP handlers.
type Handler struct {
	deps    Deps
	tracked map[string]bool
}

// NewHandler indexes the tracked symbols.
func NewHandler(d Deps) *Handler {
	if d.Interval == "" {
		d.Interval = "1m"
	}
	tracked := make(map[string]bool, len(d.Symbols))
	for _, s := range d.Symbols {
		tracked[model.NormalizeSymbol(s)] = true
	}
	return &Handler{deps: d, tracked: tracked}
}

// NewRouter builds the gin engine with CORS open to any origin for GETs.
func NewRouter(d Deps) *gin.Engine {
	h := NewHandler(d)

	r := gin.New()
	r.Use(gin.Recovery())
	r.SetTrustedProxies(nil)
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Upgrade", "Connection"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))

	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts every route on r.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", h.Health)
		v1.GET("/symbols", h.Symbols)
		v1.GET("/stats", h.Stats)
		v1.GET("/candles/:symbol", h.Candles)
		v1.GET("/dashboard/:symbol", h.Dashboard)
		v1.GET("/signal/:symbol", h.Signal)
		v1.GET("/history/:symbol", h.History)
	}
	if h.deps.WS != nil {
		r.GET("/ws", gin.WrapH(h.deps.WS))
	}
}
