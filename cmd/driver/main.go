// Command driver runs one simulated ambulance unit against the shared store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"ambulanceDispatch/internal/agent"
	"ambulanceDispatch/internal/config"
	"ambulanceDispatch/internal/db"
	"ambulanceDispatch/internal/dispatch"
	"ambulanceDispatch/internal/geo"
	"ambulanceDispatch/internal/logger"
	"ambulanceDispatch/internal/notify"
	"ambulanceDispatch/internal/routing"
	"ambulanceDispatch/repository"
)

func main() {
	cfg, err := config.LoadWithDefaults()
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("load config")
	}
	log := logger.New(cfg.Env, cfg.LogLevel).With().Str("driver_id", cfg.Agent.DriverID).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := db.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("open db")
	}
	defer d.Close()

	repos := repository.NewSet(d)
	acct, err := repos.Accounts.GetDriverByID(ctx, cfg.Agent.DriverID)
	if err != nil {
		log.Fatal().Err(err).Msg("load driver account")
	}
	if acct == nil {
		log.Fatal().Msg("no account for this unit; sign up first or enable SEED_DEFAULTS on the server")
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
		Routes:            routing.NewService(provider, log),
		Log:               log,
	})

	var base *geo.Point
	if p, ok := coord.Locations().Lookup(acct.BaseLocation); ok {
		base = &p
	}

	opts := agent.Options{
		PollInterval:      cfg.Agent.PollInterval,
		HeartbeatInterval: cfg.Agent.HeartbeatInterval,
		SpeedKmh:          cfg.Agent.SpeedKmh,
		AutoAccept:        cfg.Agent.AutoAccept,
		RequestClearance:  true,
		Log:               log,
	}
	if cfg.Redis.Addr != "" {
		rdb, err := notify.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, polling only")
		} else {
			defer rdb.Close()
			w, err := notify.Subscribe(ctx, rdb, acct.DriverID)
			if err != nil {
				log.Warn().Err(err).Msg("wake-up subscription failed, polling only")
			} else {
				defer w.Close()
				opts.Waiter = w
			}
		}
	}

	a := agent.New(coord, agent.NewSession(acct.DriverID, base), opts)
	log.Info().Str("vehicle", acct.VehicleID).Str("base", acct.BaseLocation).Msg("unit on duty")
	if err := a.Run(ctx); err != nil {
		log.Error().Err(err).Msg("agent stopped")
	}
	log.Info().Msg("unit off duty")
}
