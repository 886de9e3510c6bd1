package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tonpay/burn-relayer/relayer/api"
	"github.com/tonpay/burn-relayer/relayer/config"
	"github.com/tonpay/burn-relayer/relayer/constant"
	"github.com/tonpay/burn-relayer/relayer/core"
	"github.com/tonpay/burn-relayer/relayer/db"
	"github.com/tonpay/burn-relayer/relayer/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tonrelayerd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (defaults to ./relayer.yaml)")
	flag.Parse()

	// Secrets come from the environment; a local .env is a convenience for
	// development only.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat, false)
	log.Info().Str("wallet", cfg.WalletAddress).Msg("starting burn relayer")

	database, err := db.OpenFileDB(cfg.DBDir, constant.DatabaseFileName, true)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	relayer := core.NewRelayer(cfg, database, log)
	if err := relayer.Start(ctx); err != nil {
		return fmt.Errorf("start relayer: %w", err)
	}

	server := api.NewServer(relayer, cfg.APIPort, log)
	if err := server.Start(); err != nil {
		relayer.Stop()
		return fmt.Errorf("start api server: %w", err)
	}

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	if err := server.Stop(); err != nil {
		log.Error().Err(err).Msg("api server shutdown error")
	}
	relayer.Stop()

	log.Info().Msg("shutdown complete")
	return nil
}
