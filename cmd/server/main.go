package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/Skotchmaster/game_store/internal/config"
	"github.com/Skotchmaster/game_store/internal/db"
	"github.com/Skotchmaster/game_store/internal/es"
	"github.com/Skotchmaster/game_store/internal/httpserver"
	"github.com/Skotchmaster/game_store/internal/logging"
	"github.com/Skotchmaster/game_store/internal/metrics"
	"github.com/Skotchmaster/game_store/internal/middleware/auth"
	loggingmw "github.com/Skotchmaster/game_store/internal/middleware/logging"
	"github.com/Skotchmaster/game_store/internal/mykafka"
	"github.com/Skotchmaster/game_store/internal/repo"
	"github.com/Skotchmaster/game_store/internal/service"
	"github.com/Skotchmaster/game_store/internal/tokens"
)

const tokenPurgeInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Env, cfg.LogLevel).With("service", "game_store")
	slog.SetDefault(logger)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(ctx, cfg.DB.Driver, cfg.DB.DSN)
	cancel()
	if err != nil {
		logger.Error("db open failed", logging.Err(err))
		os.Exit(1)
	}
	if err := db.Migrate(gdb); err != nil {
		logger.Error("db migrate failed", logging.Err(err))
		os.Exit(1)
	}

	events := mykafka.New(cfg.Kafka.Brokers)
	m := metrics.New()
	r := repo.New(gdb)
	iss := tokens.NewIssuer([]byte(cfg.JWT.Secret), cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)

	catalog := service.NewCatalogService(r, nil, events)
	search := &service.SearchService{Repo: r}
	if len(cfg.Elastic.Addresses) > 0 {
		esClient, err := es.NewClient(es.Config{
			Addresses: cfg.Elastic.Addresses,
			Username:  cfg.Elastic.Username,
			Password:  cfg.Elastic.Password,
			Index:     cfg.Elastic.Index,
		})
		if err != nil {
			logger.Error("elasticsearch client failed", logging.Err(err))
			os.Exit(1)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = esClient.EnsureIndex(ctx)
		cancel()
		if err != nil {
			logger.Warn("elasticsearch index not ready, search falls back to the database", logging.Err(err))
		} else {
			catalog.Index = esClient
			search.Index = esClient
		}
	}

	authSvc := service.NewAuthService(r, iss, events)
	if cfg.Admin.Email != "" && cfg.Admin.Password != "" {
		if err := authSvc.EnsureAdmin(context.Background(), cfg.Admin.Email, cfg.Admin.Password); err != nil {
			logger.Error("seed admin failed", logging.Err(err))
			os.Exit(1)
		}
	}

	gateway := service.SimulatedGateway{DeclinePrefix: cfg.Payment.DeclinePrefix}

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpserver.NewValidator()
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(m.Middleware())
	e.Use(loggingmw.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{Svc: authSvc, Users: &service.UserService{Repo: r}},
		CatalogHandler: &httpserver.CatalogHTTP{
			Svc:      catalog,
			Search:   search,
			Licenses: service.NewLicenseService(r, m),
		},
		OrderHandler: &httpserver.OrderHTTP{Svc: service.NewOrderService(r, gateway, events, m)},
		SocialHandler: &httpserver.SocialHTTP{
			Wishlist: &service.WishlistService{Repo: r},
			Reviews:  &service.ReviewService{Repo: r},
		},
		AuthMW:  auth.New(iss),
		DB:      gdb,
		Metrics: m,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go purgeTokens(runCtx, logger, authSvc)

	go func() {
		logger.Info("http server listening", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", logging.Err(err))
			stop()
		}
	}()

	<-runCtx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", logging.Err(err))
	}
	if err := events.Close(); err != nil {
		logger.Error("kafka close failed", logging.Err(err))
	}
	if err := db.Close(gdb); err != nil {
		logger.Error("db close failed", logging.Err(err))
	}

	logger.Info("shutdown complete")
}

func purgeTokens(ctx context.Context, l *slog.Logger, svc *service.AuthService) {
	t := time.NewTicker(tokenPurgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := svc.PurgeExpired(ctx, now.UTC())
			if err != nil {
				l.Warn("purge refresh tokens failed", logging.Err(err))
				continue
			}
			if n > 0 {
				l.Info("purged refresh tokens", "count", n)
			}
		}
	}
}
