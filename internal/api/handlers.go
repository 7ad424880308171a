package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"cryptodash/internal/model"
)

const maxLimit = 1000

// Health is a liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type symbolInfo struct {
	Symbol string `json:"symbol"`
	Bars   int    `json:"bars"`
}

// Symbols lists the tracked symbols with their buffered bar counts.
func (h *Handler) Symbols(c *gin.Context) {
	out := make([]symbolInfo, 0, len(h.deps.Symbols))
	for _, s := range h.deps.Symbols {
		out = append(out, symbolInfo{Symbol: s, Bars: h.deps.Store.Len(s)})
	}
	c.JSON(http.StatusOK, gin.H{"interval": h.deps.Interval, "symbols": out})
}

// Stats returns runtime statistics when a provider is configured.
func (h *Handler) Stats(c *gin.Context) {
	if h.deps.Stats == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, h.deps.Stats())
}

// Candles returns the buffered snapshot, optionally only the last ?limit bars.
func (h *Handler) Candles(c *gin.Context) {
	symbol, ok := h.symbol(c)
	if !ok {
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	candles := h.deps.Store.Get(symbol)
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	if candles == nil {
		candles = []model.Candle{}
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "interval": h.deps.Interval, "candles": candles})
}

// Dashboard evaluates the symbol. ?series=true adds candles and every series.
func (h *Handler) Dashboard(c *gin.Context) {
	symbol, ok := h.symbol(c)
	if !ok {
		return
	}
	withSeries, _ := strconv.ParseBool(c.Query("series"))
	c.JSON(http.StatusOK, h.deps.Evaluator.Evaluate(symbol, withSeries))
}

// Signal returns only the classified signal, or the waiting status.
func (h *Handler) Signal(c *gin.Context) {
	symbol, ok := h.symbol(c)
	if !ok {
		return
	}
	v := h.deps.Evaluator.Evaluate(symbol, false)
	if !v.Ready() {
		c.JSON(http.StatusOK, gin.H{"symbol": symbol, "status": v.Status, "message": v.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol": symbol,
		"status": v.Status,
		"price":  v.Price,
		"ema":    v.EMA,
		"rsi":    v.RSI,
		"signal": v.Signal,
	})
}

// History reads archived candles. ?since is RFC3339, ?limit caps the rows.
func (h *Handler) History(c *gin.Context) {
	symbol, ok := h.symbol(c)
	if !ok {
		return
	}
	if h.deps.History == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive disabled"})
		return
	}
	var since time.Time
	if s := c.Query("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since format, use RFC3339"})
			return
		}
		since = t
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	if limit == 0 {
		limit = maxLimit
	}

	candles, err := h.deps.History.ReadCandles(c.Request.Context(), symbol, h.deps.Interval, since, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read history"})
		return
	}
	if candles == nil {
		candles = []model.Candle{}
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "interval": h.deps.Interval, "candles": candles})
}

// symbol normalises the :symbol param and rejects untracked symbols with 404.
func (h *Handler) symbol(c *gin.Context) (string, bool) {
	symbol := model.NormalizeSymbol(c.Param("symbol"))
	if !h.tracked[symbol] {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown symbol"})
		return "", false
	}
	return symbol, true
}

// parseLimit reads ?limit. Missing means 0 (no limit); it must be in [1, maxLimit].
func parseLimit(c *gin.Context) (int, bool) {
	s := c.Query("limit")
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > maxLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
		return 0, false
	}
	return n, true
}
