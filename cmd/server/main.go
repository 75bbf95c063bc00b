package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ambulanceDispatch/internal/config"
	"ambulanceDispatch/internal/db"
	"ambulanceDispatch/internal/dispatch"
	grpcserver "ambulanceDispatch/internal/grpc"
	"ambulanceDispatch/internal/logger"
	"ambulanceDispatch/internal/notify"
	"ambulanceDispatch/internal/routing"
	"ambulanceDispatch/repository"
)

func main() {
	// Load configuration
	cfg, err := config.LoadWithDefaults()
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("load config")
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	log.Info().Str("config", cfg.String()).Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open DB
	d, err := db.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("open db")
	}
	defer func() {
		if err := d.Close(); err != nil {
			log.Error().Err(err).Msg("close db")
		}
	}()

	repos := repository.NewSet(d)

	var notifier dispatch.Notifier = dispatch.NewInboxNotifier(repos.Messages, time.Now)
	if cfg.Redis.Addr != "" {
		rdb, err := notify.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			// Drivers fall back to polling the inbox.
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, wake-ups disabled")
		} else {
			defer rdb.Close()
			notifier = notify.NewPublisher(notifier, rdb, log)
		}
	}

	var provider routing.Provider
	if cfg.Routing.APIKey != "" {
		provider = routing.NewTomTomClient(cfg.Routing.APIKey, cfg.Routing.BaseURL, cfg.Routing.Timeout)
	}

	coord := dispatch.New(dispatch.StoresFrom(repos), dispatch.Options{
		MissionExpiry:     cfg.Dispatch.MissionExpiry,
		OnlineThreshold:   cfg.Dispatch.OnlineThreshold,
		OfflineAlertAfter: cfg.Dispatch.OfflineAlertAfter,
		TrailInterval:     cfg.Dispatch.TrailInterval,
		TrailRetention:    cfg.Dispatch.TrailRetention,
		Notifier:          notifier,
		Routes:            routing.NewService(provider, log),
		Log:               log,
	})
	accounts := dispatch.NewAccountService(repos.Accounts, dispatch.AccountOptions{
		Secret:   cfg.Auth.JWTSecret,
		TokenTTL: cfg.Auth.TokenTTL,
		Log:      log,
	})
	if cfg.Auth.SeedDefaults {
		if err := accounts.SeedDefaults(ctx); err != nil {
			log.Fatal().Err(err).Msg("seed default accounts")
		}
	}

	// Start gRPC
	shutdown, err := grpcserver.StartGRPC(cfg, grpcserver.Deps{Coord: coord, Accounts: accounts, Operators: repos.Accounts}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("start grpc")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sweep(gctx, coord, cfg.Dispatch.SweepInterval, log)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(sctx)
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("server stopped")
}

// sweep expires stale offers and prunes old trail points until ctx is done.
// Reads also expire on demand; the sweep keeps the board tidy when nobody looks.
func sweep(ctx context.Context, coord *dispatch.Coordinator, every time.Duration, log zerolog.Logger) {
	if every <= 0 {
		every = 30 * time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if n, err := coord.ExpireStale(ctx); err != nil {
			log.Warn().Err(err).Msg("expiry sweep failed")
		} else if n > 0 {
			log.Info().Int64("expired", n).Msg("stale missions expired")
		}
		if _, err := coord.PruneTrail(ctx); err != nil {
			log.Warn().Err(err).Msg("trail prune failed")
		}
	}
}
