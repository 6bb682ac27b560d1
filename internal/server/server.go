package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/pagewright/pagewright/config"
	"github.com/pagewright/pagewright/internal/compose"
	"github.com/pagewright/pagewright/internal/page"
	"github.com/pagewright/pagewright/internal/rank"
	"github.com/pagewright/pagewright/internal/source"
	cohere_provider "github.com/pagewright/pagewright/provider/cohere"
)

// Run wires the pipeline together and serves HTTP until the listener fails.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
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
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "X-Backend-Api-Key"},
	}))

	client := source.NewClient(cfg.Source)
	cache := source.NewCache(client, cfg.Source)
	cohere := cohere_provider.New(cfg.Cohere)
	engine := rank.New(cache, cohere)

	var store page.Store
	var answers page.AnswerCache
	switch cfg.Storage.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr, err)
		}
		store = page.NewRedisStore(rdb, cfg.Pages.PageTTL)
		answers = page.NewRedisAnswerCache(rdb, cfg.Pages.AnswerTTL)
	default:
		store = page.NewMemStore(cfg.Pages.PageTTL)
		answers = page.NewMemAnswerCache(cfg.Pages.AnswerTTL)
	}

	composer := compose.New(engine, cache, cohere, store, answers, *cfg)

	ch := &ComposeHandler{Composer: composer, Store: store, Cfg: *cfg}
	ch.Register(e)
	hh := &HealthHandler{Cache: cache, Store: store, Answers: answers, Cfg: *cfg}
	hh.Register(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	addr := cfg.Server.Listen
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
