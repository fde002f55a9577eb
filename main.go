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
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/time/rate"

	"github.com/padraicbc/racetime/config"
	"github.com/padraicbc/racetime/db"
	"github.com/padraicbc/racetime/handlers"
	"github.com/padraicbc/racetime/live"
	applog "github.com/padraicbc/racetime/logger"
	"github.com/padraicbc/racetime/metrics"
	"github.com/padraicbc/racetime/scheduler"
	"github.com/padraicbc/racetime/store"
	"github.com/padraicbc/racetime/store/memstore"
	"github.com/padraicbc/racetime/timing"
)

func main() {
	cfg := config.Load()
	logger, err := applog.New("racetime", cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory store; data is lost on exit")
		st = memstore.New()
	default:
		bdb, err := db.Setup(ctx, cfg)
		if err != nil {
			logger.Fatal("database setup failed", zap.Error(err))
		}
		defer bdb.Close()
		if err := db.CreateTables(ctx, bdb); err != nil {
			logger.Fatal("create tables failed", zap.Error(err))
		}
		st = db.NewStore(bdb)
	}

	metrics.InitRegistry()

	hub := live.NewHub(logger.Named("live"))
	defer hub.Close()

	engine := timing.NewEngine(st, hub, logger.Named("engine"))
	counters := timing.NewCounters(st, logger.Named("counters"))

	liveness := scheduler.NewLiveness(st, cfg.CheckpointTimeout, logger.Named("liveness"))
	if err := liveness.Start(cfg.LivenessSchedule); err != nil {
		logger.Fatal("liveness sweep", zap.Error(err))
	}
	defer liveness.Stop()

	h := handlers.New(st, engine, counters, handlers.Options{
		JWTKey:     cfg.JWTKey(),
		AdminUsers: cfg.AdminUsers,
		Logger:     logger,
	})

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.Int("status", v.Status),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			switch {
			case v.Status >= 500:
				logger.Error("http request", fields...)
			case v.Status >= 400:
				logger.Warn("http request", fields...)
			default:
				logger.Debug("http request", fields...)
			}
			return nil
		},
	}))
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"*", "Authorization"},
		AllowCredentials: true,
	}))

	ingestLimiter := echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(cfg.IngestRate),
			Burst:     int(cfg.IngestRate) * 2,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if u, ok := c.Get("username").(string); ok && u != "" {
				return u, nil
			}
			return c.RealIP(), nil
		},
	})

	h.Register(e, handlers.Extras{
		Live:    hub.Handle,
		Metrics: metrics.Handler(),
		Ingest:  []echo.MiddlewareFunc{ingestLimiter},
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)
	}()

	if cfg.Debug || len(cfg.TLSDomains) == 0 {
		logger.Info("starting server", zap.String("mode", "plain"), zap.String("addr", cfg.Port), zap.String("store", cfg.Store))
		if err := e.Start(cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server exited", zap.Error(err))
		}
		return
	}

	autoTLS := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		Cache:      autocert.DirCache(".cache"),
		HostPolicy: autocert.HostWhitelist(cfg.TLSDomains...),
	}

	s := &http.Server{
		Addr:         ":443",
		Handler:      e,
		TLSConfig:    autoTLS.TLSConfig(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	logger.Info("starting server", zap.String("mode", "tls"), zap.Strings("domains", cfg.TLSDomains))
	if err := s.ListenAndServeTLS("", ""); !errors.Is(err, http.ErrServerClosed) {
		logger.Error("tls server exited", zap.Error(err))
		os.Exit(1)
	}
}
