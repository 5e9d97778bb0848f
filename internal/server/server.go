package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/intervu-app/intervu/config"
	"github.com/intervu-app/intervu/internal/interview"
	"github.com/intervu-app/intervu/internal/store"
	"github.com/intervu-app/intervu/internal/telemetry"
	"github.com/intervu-app/intervu/provider"
	"github.com/intervu-app/intervu/provider/openrouter"
)

// Run wires dependencies from config and serves the HTTP API until the
// listener fails.
func Run(cfg *config.Config, logger *zap.Logger) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Warn("http error",
			zap.Int("status", code),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.String("remote", c.RealIP()),
			zap.Error(err))
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	var metrics *telemetry.Metrics
	if cfg.Telemetry.Enabled {
		reg := prometheus.NewRegistry()
		metrics = telemetry.New(reg)
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	} else {
		metrics = telemetry.NewNop()
	}

	ctx := context.Background()
	if err := cfg.Storage.Postgres.Validate(); err != nil {
		return err
	}
	st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	llm, err := openrouter.New(openrouter.Options{
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		DefaultModel: cfg.LLM.DefaultModel,
		Temperature:  cfg.LLM.Temperature,
		MaxTokens:    cfg.LLM.MaxTokens,
		Timeout:      cfg.LLM.Timeout,
		Retry:        retryPolicy(cfg.LLM),
	}, logger.Named("openrouter"))
	if err != nil {
		return err
	}

	var snapshots interview.SnapshotStore
	if cfg.Storage.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr(),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
		}
		snapshots = interview.NewRedisSnapshots(rdb, cfg.General.SessionTTL)
	}

	registry := interview.NewRegistry(cfg.General.SessionTTL, snapshots, logger.Named("registry"))
	go sweepLoop(registry, logger)

	if cfg.General.JWTSecret == "" {
		return fmt.Errorf("jwt secret not configured (general.jwt_secret)")
	}
	secret := []byte(cfg.General.JWTSecret)

	api := e.Group("/api")

	ah := &AuthHandler{Store: st, Secret: secret}
	ah.Register(api.Group("/auth"))

	ih := &InterviewsHandler{
		Store:     st,
		Registry:  registry,
		Snapshots: snapshots,
		LLM:       llm,
		Config:    cfg,
		Metrics:   metrics,
		Logger:    logger.Named("interviews"),
	}
	ih.Register(api.Group("/interviews"), secret)

	logger.Info("listening", zap.String("addr", cfg.General.Listen))
	return e.Start(cfg.General.Listen)
}

func retryPolicy(l config.LLMConfig) provider.RetryPolicy {
	p := provider.DefaultRetryPolicy()
	if l.MaxRetries >= 0 {
		p.MaxRetries = l.MaxRetries
	}
	if l.RetryBackoff > 0 {
		p.Backoff = l.RetryBackoff
	}
	return p
}

func sweepLoop(r *interview.Registry, logger *zap.Logger) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for range t.C {
		if n := r.Sweep(); n > 0 {
			logger.Info("expired interview sessions evicted", zap.Int("count", n))
		}
	}
}
