package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/loteria-backend/internal/artwork"
	"github.com/DoyleJ11/loteria-backend/internal/config"
	"github.com/DoyleJ11/loteria-backend/internal/httpapi"
	"github.com/DoyleJ11/loteria-backend/internal/hub"
	"github.com/DoyleJ11/loteria-backend/internal/identity"
	"github.com/DoyleJ11/loteria-backend/internal/lobby"
	"github.com/DoyleJ11/loteria-backend/internal/logging"
	"github.com/DoyleJ11/loteria-backend/internal/stats"
	"github.com/DoyleJ11/loteria-backend/internal/ws"
)

func main() {
	cfg, dotenv, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	if !dotenv {
		logger.Info("no .env file found, reading environment variables")
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStats(ctx, cfg)
	if err != nil {
		return err
	}
	notifier := stats.NewNotifier(store, stats.DefaultRecordTimeout, logger.Named("stats"))

	art, err := artwork.NewResolver(cfg.ArtworkBaseURL)
	if err != nil {
		return err
	}

	var ids identity.Resolver = identity.GuestResolver{}
	if cfg.JWTSecret != "" {
		ids = identity.NewJWTResolver(cfg.JWTSecret)
	}

	h := hub.NewHub(context.Background(), hub.Options{
		Logger: logger.Named("hub"),
		Lobby: lobby.Options{
			MinPlayers:     cfg.MinPlayers,
			ReconnectGrace: cfg.ReconnectGrace,
			OnOutcome:      notifier.Notify,
			Logger:         logger.Named("lobby"),
		},
	})

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(httpapi.Deps{
		Hub:      h,
		Identity: ids,
		Artwork:  art,
		Stats:    store,
		Logger:   logger,
		WS:       ws.Options{OriginPatterns: cfg.AllowedOrigins},
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening",
			zap.String("addr", cfg.Addr),
			zap.String("stats", string(cfg.StatsBackend)),
			zap.Bool("jwt", cfg.JWTSecret != ""),
			zap.Int("min_players", cfg.MinPlayers),
			zap.Duration("reconnect_grace", cfg.ReconnectGrace))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		var errs error
		errs = multierr.Append(errs, srv.Shutdown(sctx))
		h.Shutdown()
		errs = multierr.Append(errs, notifier.Close())
		return errs
	})
	return g.Wait()
}

func openStats(ctx context.Context, cfg config.Config) (stats.Store, error) {
	switch cfg.StatsBackend {
	case config.StatsPostgres:
		return stats.OpenPostgres(cfg.DatabaseURL)
	case config.StatsRedis:
		return stats.OpenRedis(ctx, cfg.RedisURL)
	default:
		return stats.NopStore{}, nil
	}
}
