package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"matatu-feedback/config"
	"matatu-feedback/metrics"
	"matatu-feedback/middleware"
	"matatu-feedback/service"

	"github.com/apex/log"
	jsonhandler "github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	EndPointHealth  = "/health"
	EndPointMetrics = "/metrics"

	shutdownTimeout = 30 * time.Second
	startupTimeout  = 2 * time.Minute
)

func main() {
	// A missing .env file is fine outside local development
	_ = godotenv.Load()

	cfg := config.Load()
	setupLogging(cfg)

	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics.Register()

	startCtx, cancelStart := context.WithTimeout(context.Background(), startupTimeout)
	svc, err := service.NewService(startCtx, cfg)
	if err != nil {
		cancelStart()
		log.WithError(err).Fatal("Failed to create service")
	}
	if err := svc.Start(startCtx); err != nil {
		cancelStart()
		log.WithError(err).Fatal("Failed to start service")
	}
	cancelStart()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: setupRouter(svc, cfg),
	}

	go func() {
		log.Infof("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	if err := svc.Stop(ctx); err != nil {
		log.WithError(err).Error("Error stopping service")
	}

	log.Info("Server exited")
}

func setupLogging(cfg *config.Config) {
	if cfg.LogFormat == "json" {
		log.SetHandler(jsonhandler.New(os.Stderr))
	} else {
		log.SetHandler(text.New(os.Stderr))
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
		log.Warnf("Unknown LOG_LEVEL %q, using info", cfg.LogLevel)
	}
	log.SetLevel(level)
}

func setupRouter(svc *service.Service, cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS())

	h := svc.GetHandlers()

	api := router.Group("/api/v1")
	{
		api.POST("/reports",
			middleware.RateLimitMiddleware(middleware.NewRateLimiter(cfg.SubmitRatePerSec, cfg.SubmitRateBurst)),
			h.CreateReport)
		api.GET("/reports/:id", h.GetReport)
		api.DELETE("/reports/:id", h.DeleteReport)

		api.GET("/matatus/:id/stats", h.GetMatatuStats)
		api.GET("/matatus/:id/incidents", h.GetHighPriorityIncidents)
	}

	admin := api.Group("/admin")
	{
		admin.POST("/reports/:id/forward", h.ForwardReport)
		admin.GET("/reports/classification-summary", h.ClassificationSummary)
		admin.GET("/dispatch/attempts", h.DispatchAttempts)
		admin.GET("/triage/listen", h.ListenTriage)
	}

	router.GET(EndPointHealth, h.HealthCheck)
	router.GET(EndPointMetrics, gin.WrapH(promhttp.Handler()))

	return router
}
