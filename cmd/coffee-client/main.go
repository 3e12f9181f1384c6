package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/coffee-order/internal/api"
	"github.com/vasiliy-maslov/coffee-order/internal/app"
	"github.com/vasiliy-maslov/coffee-order/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	envPath := flag.String("env", ".env", "path to a .env file")
	start := flag.String("start", "/", "location to open first, e.g. /order/2?quantity=3")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "coffee-client").Logger()

	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatal().Err(err).Str("level", cfg.Log.Level).Msg("Invalid log level")
	}
	zerolog.SetGlobalLevel(level)

	client, err := api.NewClient(api.Config{BaseURL: cfg.API.BaseURL, Timeout: cfg.API.Timeout})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create API client")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(client, app.Options{RedirectDelay: cfg.UI.RedirectDelay, Start: *start})
	a.Start(ctx)
	defer a.Close()

	log.Info().Str("api", cfg.API.BaseURL).Msg("Coffee client started, type 'help' for commands")
	if err := newShell(a, os.Stdin, os.Stdout).run(ctx); err != nil {
		log.Error().Err(err).Msg("Shell stopped")
	}
	log.Info().Msg("Bye")
}
