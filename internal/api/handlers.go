package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"trading-signal-engine/internal/market"
)

// defaultTimeframe is used when a snapshot endpoint gets no timeframe query
const defaultTimeframe = market.TF1d

func symbolParam(c *gin.Context) string {
	return strings.ToUpper(c.Param("symbol"))
}

func timeframeQuery(c *gin.Context) (market.Timeframe, bool) {
	raw := c.Query("timeframe")
	if raw == "" {
		return defaultTimeframe, true
	}
	tf, err := market.ParseTimeframe(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return tf, true
}

// handleAnalyze runs the full multi-timeframe pipeline. A null signal in a
// 200 response is the expected no-edge outcome; a 5xx means the analysis
// itself failed.
func (s *Server) handleAnalyze(c *gin.Context) {
	symbol := symbolParam(c)

	signal, err := s.engine.Analyze(c.Request.Context(), symbol)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("analysis failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed"})
		return
	}
	if signal == nil {
		c.JSON(http.StatusOK, gin.H{
			"symbol":  symbol,
			"signal":  nil,
			"message": "no signal: no side cleared its regime threshold",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol": symbol,
		"signal": signal,
	})
}

func (s *Server) handleRegime(c *gin.Context) {
	symbol := symbolParam(c)
	tf, ok := timeframeQuery(c)
	if !ok {
		return
	}

	snap, err := s.engine.Inspect(c.Request.Context(), symbol, tf)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("regime inspection failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "regime classification failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":    symbol,
		"timeframe": tf,
		"regime":    snap.Classification,
		"params":    snap.Params,
	})
}

func (s *Server) handlePatterns(c *gin.Context) {
	symbol := symbolParam(c)
	tf, ok := timeframeQuery(c)
	if !ok {
		return
	}

	snap, err := s.engine.Inspect(c.Request.Context(), symbol, tf)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("pattern detection failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pattern detection failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":    symbol,
		"timeframe": tf,
		"count":     len(snap.Patterns),
		"patterns":  snap.Patterns,
	})
}

func (s *Server) handleLatestScan(c *gin.Context) {
	if s.scanner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scanner is disabled"})
		return
	}
	result := s.scanner.LastResult()
	if result == nil {
		c.JSON(http.StatusOK, gin.H{
			"scan":    nil,
			"message": "no scan completed yet",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"scan": result})
}

func (s *Server) handleIndicators(c *gin.Context) {
	symbol := symbolParam(c)
	tf, ok := timeframeQuery(c)
	if !ok {
		return
	}

	snap, err := s.engine.Inspect(c.Request.Context(), symbol, tf)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("indicator computation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "indicator computation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":    symbol,
		"timeframe": tf,
		"values":    snap.Values,
		"readings":  snap.Readings,
	})
}
