package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"mashetes/api"
	"mashetes/layout"
	"mashetes/mashete"
	"mashetes/repository"
	"mashetes/socket"
	"mashetes/structure"
)

func main() {
	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		log.Fatal(err)
	}
	logger := log.New()
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		logger.SetLevel(log.DebugLevel)
	}

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	var repo repository.Repository
	switch cfg.Backend {
	case backendMemory:
		repo = repository.NewMemory()
	default:
		tables, err := repository.NewTables(cfg.StorageConn, cfg.Table)
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		repo = tables
	}

	var (
		rc    *redis.Client
		strct *structure.Client
	)
	if cfg.Redis != nil {
		rc = redis.NewClient(cfg.Redis)
		if cfg.CacheTTL > 0 {
			repo = repository.NewCache(repo, rc, cfg.CacheTTL, logger)
		}
		opts := cfg.SocketOpts
		opts.Logger = logger
		strct = structure.NewClient(socket.NewClient(rc, opts))
	} else {
		logger.Warn("REDIS_CONNECTION_STRING not set; structure commands and repository cache disabled")
	}

	var page *layout.Layout
	if cfg.LayoutFile != "" {
		if page, err = layout.Load(cfg.LayoutFile); err != nil {
			log.Fatalf("layout: %v", err)
		}
	}

	registry := mashete.NewRegistry(repo, "/mashetes/todo", logger)
	if page != nil {
		for _, m := range page.OfType(layout.TypeTodo) {
			if _, err := registry.Todo(context.Background(), m.ID, m.Settings()); err != nil {
				logger.WithField("mashete", m.ID).WithError(err).Warn("initial load failed")
			}
		}
	} else {
		// Without a layout any id can be mounted.
		registry.SetLimit(cfg.MaxMashetes)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderContentEncoding, api.LocationHeader},
	}))
	api.Register(e, api.Deps{
		Registry:  registry,
		Layout:    page,
		Structure: strct,
		Logger:    logger,
		Heartbeat: cfg.StreamPeriod,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()
	logger.WithFields(log.Fields{"addr": cfg.ListenAddr, "backend": cfg.Backend}).Info("portal started")

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("server shutdown")
	}
	registry.Close()
	if rc != nil {
		_ = rc.Close()
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("tracer shutdown")
	}
}
