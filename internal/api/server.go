package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"crypto-portfolio-tracker/internal/alerts"
	"crypto-portfolio-tracker/internal/audit"
	"crypto-portfolio-tracker/internal/auth"
	"crypto-portfolio-tracker/internal/config"
	"crypto-portfolio-tracker/internal/market"
	"crypto-portfolio-tracker/internal/portfolio"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services bundles everything the handlers call into.
type Services struct {
	Auth      *auth.Service
	Audit     *audit.Recorder
	Assets    *portfolio.Store
	Portfolio *portfolio.Service
	Market    *market.Service
	Alerts    *alerts.Store
}

// Server provides the HTTP interface of the tracker.
type Server struct {
	server *http.Server
	router *gin.Engine
	svc    Services
	logger *zap.Logger
}

// NewServer creates a new Server and registers its routes.
func NewServer(cfg *config.Server, svc Services, logger *zap.Logger) *Server {
	router := gin.New()
	s := &Server{
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Port),
			Handler: router,
		},
		router: router,
		svc:    svc,
		logger: logger.Named("api-server"),
	}

	router.Use(requestID(), accessLog(s.logger), gin.Recovery())
	s.registerRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", s.register)
			authGroup.POST("/login", s.login)
		}

		private := api.Group("", auth.Middleware(s.svc.Auth, s.logger))
		{
			private.GET("/portfolio", s.getPortfolio)
			private.GET("/portfolio/summary", s.getSummary)
			private.GET("/portfolio/unowned", s.getUnowned)
			private.GET("/portfolio/movers", s.getMovers)
			private.GET("/portfolio/outliers", s.getOutliers)
			private.GET("/portfolio/assets", s.listAssets)
			private.POST("/portfolio/assets", s.addAsset)
			private.PATCH("/portfolio/assets/:id", s.updateAsset)
			private.DELETE("/portfolio/assets/:id", s.deleteAsset)

			private.GET("/transactions", s.listTransactions)
			private.POST("/transactions", s.addTransaction)

			private.GET("/market", s.getMarket)

			private.GET("/alerts", s.listAlerts)
			private.POST("/alerts", s.createAlert)
			private.GET("/alerts/:id", s.getAlert)
			private.DELETE("/alerts/:id", s.deleteAlert)

			private.GET("/notifications", s.listNotifications)
			private.GET("/notifications/unread-count", s.unreadCount)
			private.POST("/notifications/:id/read", s.markRead)

			private.DELETE("/account", s.closeAccount)
		}

		admin := api.Group("/admin", auth.Middleware(s.svc.Auth, s.logger), auth.RequireAdmin())
		{
			admin.GET("/users", s.listUsers)
			admin.GET("/audit", s.listAudit)
		}
	}
}

// Start runs the HTTP server in a new goroutine.
func (s *Server) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}
