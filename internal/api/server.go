// Package api serves a read-only view of the trader in daemon mode.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"TradeSentinel/internal/model"
	"TradeSentinel/internal/recorder"
)

// Status exposes the latest run.
type Status interface {
	LastReport() *model.RunReport
}

// Accounts reads current balances.
type Accounts interface {
	Account(ctx context.Context) (model.Account, error)
}

// History reads the decision and pattern logs.
type History interface {
	RecentTrades(ctx context.Context, limit int) ([]recorder.TradeRecord, error)
	LoadPatternHistory(ctx context.Context) ([]model.PatternHistoryEntry, error)
}

const maxTradesLimit = 500

// Server HTTP API server
type Server struct {
	router   *gin.Engine
	status   Status
	accounts Accounts
	history  History
	market   string
	srv      *http.Server
}

// NewServer creates the API server.
func NewServer(addr string, status Status, accounts Accounts, history History, market string) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{router: router, status: status, accounts: accounts, history: history, market: market}
	s.srv = &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("api request")
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/trades", s.handleTrades)
		api.GET("/patterns", s.handlePatterns)
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": fmt.Sprintf("route not found: %s %s", c.Request.Method, c.Request.URL.Path),
		})
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) handleStatus(c *gin.Context) {
	resp := gin.H{"market": s.market, "last_run": s.status.LastReport()}
	acct, err := s.accounts.Account(c.Request.Context())
	if err != nil {
		log.Warn().Err(err).Msg("status: account unavailable")
		resp["account_error"] = err.Error()
	} else {
		resp["account"] = acct
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTrades(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxTradesLimit)
	}
	trades, err := s.history.RecentTrades(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if trades == nil {
		trades = []recorder.TradeRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) handlePatterns(c *gin.Context) {
	hist, err := s.history.LoadPatternHistory(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	labels := map[string]bool{}
	for _, h := range hist {
		labels[h.Label] = true
	}
	stats := make([]model.PatternStats, 0, len(labels))
	for label := range labels {
		stats = append(stats, model.SummarizePatterns(label, hist))
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Label < stats[j].Label
	})
	c.JSON(http.StatusOK, gin.H{"patterns": stats, "entries": len(hist)})
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.srv.Addr).Msg("status API listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
