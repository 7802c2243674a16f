// Package api exposes the HTTP surface consumed by dashboards and tooling.
package api

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pairwatch/internal/alert"
	"pairwatch/internal/analytics"
	"pairwatch/internal/backtest"
	"pairwatch/internal/config"
	"pairwatch/internal/export"
	"pairwatch/internal/store"
)

// Handler bundles the components behind the HTTP routes.
type Handler struct {
	store     *store.TickStore
	analytics *analytics.Engine
	matrix    *analytics.MatrixEngine
	alerts    *alert.Engine
	backtest  *backtest.Runner
	exporter  *export.Exporter
	cfg       *config.Config
	log       zerolog.Logger
}

// NewHandler wires the HTTP handler over the live components.
func NewHandler(
	st *store.TickStore,
	an *analytics.Engine,
	mx *analytics.MatrixEngine,
	al *alert.Engine,
	bt *backtest.Runner,
	ex *export.Exporter,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		store:     st,
		analytics: an,
		matrix:    mx,
		alerts:    al,
		backtest:  bt,
		exporter:  ex,
		cfg:       cfg,
		log:       log,
	}
}

// Router builds the gin engine with all routes registered.
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", h.health)
		v1.GET("/symbols", h.symbols)
		v1.GET("/bars/:symbol", h.bars)
		v1.GET("/stats/:symbol", h.priceStats)
		v1.GET("/analytics", h.pairAnalytics)
		v1.GET("/correlation", h.correlationMatrix)
		v1.POST("/backtest", h.runBacktest)

		v1.GET("/alerts", h.listAlerts)
		v1.POST("/alerts", h.addAlert)
		v1.DELETE("/alerts/:id", h.removeAlert)
		v1.GET("/alerts/history", h.alertHistory)

		v1.GET("/export/ticks/:symbol", h.exportTicks)
		v1.GET("/export/bars/:symbol", h.exportBars)
		v1.GET("/export/analytics", h.exportAnalytics)
		v1.POST("/upload/ohlcv", h.uploadOHLCV)
	}
	return router
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": h.cfg.App.Name})
}

func (h *Handler) symbols(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symbols": h.store.GetSymbols()})
}

func (h *Handler) bars(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	interval := c.DefaultQuery("interval", "1m")
	bars := h.store.GetBars(symbol, interval)
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "interval": interval, "bars": bars})
}

func (h *Handler) priceStats(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	interval := c.DefaultQuery("interval", "1m")
	stats, ok := h.analytics.PriceStatistics(symbol, interval)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no data for symbol"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

type pairAnalyticsResponse struct {
	HedgeRatio  float64              `json:"hedge_ratio"`
	Method      string               `json:"method"`
	Spread      analytics.Series     `json:"spread"`
	ZScore      []*float64           `json:"zscore"`
	Correlation []*float64           `json:"correlation"`
	ADF         *analytics.ADFResult `json:"adf,omitempty"`
}

// sanitizeFloats maps NaN/Inf to null so the JSON encoder never chokes on
// undefined warmup points.
func sanitizeFloats(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i := range values {
		v := values[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i] = &v
	}
	return out
}

func (h *Handler) pairAnalytics(c *gin.Context) {
	symbol1 := strings.ToUpper(c.Query("symbol1"))
	symbol2 := strings.ToUpper(c.Query("symbol2"))
	interval := c.DefaultQuery("interval", "1m")
	if err := h.analytics.ValidatePair(symbol1, symbol2); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	method, ok := analytics.ParseMethod(c.DefaultQuery("method", "ols"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown method"})
		return
	}

	beta, ok := h.analytics.HedgeRatio(symbol1, symbol2, interval, method)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"available": false})
		return
	}
	spread, ok := h.analytics.Spread(symbol1, symbol2, interval, beta)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"available": false})
		return
	}
	resp := pairAnalyticsResponse{
		HedgeRatio: beta,
		Method:     method.String(),
		Spread:     spread,
		ZScore:     sanitizeFloats(analytics.RollingZScore(spread.Values, h.analytics.ZScoreWindow())),
	}
	if corr, ok := h.analytics.PairCorrelation(symbol1, symbol2, interval, 0); ok {
		resp.Correlation = sanitizeFloats(corr.Values)
	}
	if adf, ok := h.analytics.ADF(spread.Values); ok {
		resp.ADF = &adf
	}
	c.JSON(http.StatusOK, gin.H{"available": true, "analytics": resp})
}

func (h *Handler) correlationMatrix(c *gin.Context) {
	symbols := splitSymbols(c.Query("symbols"))
	interval := c.DefaultQuery("interval", "1m")
	if len(symbols) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least two symbols required"})
		return
	}

	if windowRaw := c.Query("window"); windowRaw != "" {
		window, err := strconv.Atoi(windowRaw)
		if err != nil || window < 2 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window"})
			return
		}
		rolling, ok := h.matrix.Rolling(symbols, interval, window)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"available": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"available": true, "rolling": rolling})
		return
	}

	matrix, ok := h.matrix.Matrix(symbols, interval)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"available": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": true, "matrix": matrix})
}

type backtestRequest struct {
	Symbol1        string   `json:"symbol1" binding:"required"`
	Symbol2        string   `json:"symbol2" binding:"required"`
	Interval       string   `json:"interval"`
	Window         int      `json:"window"`
	EntryThreshold *float64 `json:"entry_threshold"`
	ExitThreshold  *float64 `json:"exit_threshold"`
}

func (h *Handler) runBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Interval == "" {
		req.Interval = "1m"
	}
	if req.Window <= 0 {
		req.Window = h.analytics.ZScoreWindow()
	}
	entry := h.cfg.Backtest.EntryThreshold
	if req.EntryThreshold != nil {
		entry = *req.EntryThreshold
	}
	exit := h.cfg.Backtest.ExitThreshold
	if req.ExitThreshold != nil {
		exit = *req.ExitThreshold
	}

	result, ok := h.backtest.Run(
		strings.ToUpper(req.Symbol1), strings.ToUpper(req.Symbol2),
		req.Interval, req.Window, entry, exit,
	)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"available": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"available": true,
		"result":    result,
		"zscore":    sanitizeFloats(result.ZScore),
	})
}

type alertRequest struct {
	Condition string  `json:"condition" binding:"required"`
	Threshold float64 `json:"threshold"`
	Symbol1   string  `json:"symbol1" binding:"required"`
	Symbol2   string  `json:"symbol2" binding:"required"`
	Interval  string  `json:"interval"`
}

func (h *Handler) addAlert(c *gin.Context) {
	var req alertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	condition, err := alert.ParseCondition(req.Condition)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Interval == "" {
		req.Interval = "1m"
	}
	id, err := h.alerts.Add(condition, req.Threshold, strings.ToUpper(req.Symbol1), strings.ToUpper(req.Symbol2), req.Interval)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) listAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alerts": h.alerts.List()})
}

func (h *Handler) removeAlert(c *gin.Context) {
	h.alerts.Remove(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (h *Handler) alertHistory(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	c.JSON(http.StatusOK, gin.H{"history": h.alerts.RecentHistory(limit)})
}

func (h *Handler) exportTicks(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	body := h.exporter.TicksCSV(symbol)
	if body == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no data for symbol"})
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+symbol+"_ticks.csv")
	c.Data(http.StatusOK, "text/csv", []byte(body))
}

func (h *Handler) exportBars(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	interval := c.DefaultQuery("interval", "1m")
	body := h.exporter.BarsCSV(symbol, interval)
	if body == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no data for symbol"})
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+symbol+"_"+interval+"_bars.csv")
	c.Data(http.StatusOK, "text/csv", []byte(body))
}

func (h *Handler) exportAnalytics(c *gin.Context) {
	symbol1 := strings.ToUpper(c.Query("symbol1"))
	symbol2 := strings.ToUpper(c.Query("symbol2"))
	interval := c.DefaultQuery("interval", "1m")
	body := h.exporter.AnalyticsCSV(symbol1, symbol2, interval, h.analytics.ZScoreWindow())
	if body == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "pair unavailable"})
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+symbol1+"_"+symbol2+"_analytics.csv")
	c.Data(http.StatusOK, "text/csv", []byte(body))
}

type uploadRequest struct {
	Symbol   string `json:"symbol" binding:"required"`
	Interval string `json:"interval" binding:"required"`
	CSV      string `json:"csv" binding:"required"`
}

func (h *Handler) uploadOHLCV(c *gin.Context) {
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := h.exporter.UploadOHLCV(req.CSV, strings.ToUpper(req.Symbol), req.Interval)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"merged": n})
}

func splitSymbols(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
