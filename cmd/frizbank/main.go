package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/frizbank/frizbank/internal/cli"
	"github.com/frizbank/frizbank/internal/logging"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	cfg := cli.DefaultConfig()
	flags := flag.NewFlagSet("frizbank", flag.ContinueOnError)
	flags.StringVar(&cfg.BaseURL, "api", cfg.BaseURL, "API base URL")
	flags.StringVar(&cfg.StatePath, "state", cfg.StatePath, "local state file")
	flags.StringVar(&cfg.CameraDir, "camera", cfg.CameraDir, "directory of camera frames")
	flags.StringVar(&cfg.DetectorURL, "detector", cfg.DetectorURL, "face embedding service URL")
	flags.StringVar(&cfg.Currency, "currency", cfg.Currency, "display currency")
	logLevel := flags.String("log-level", envOr("FRIZBANK_LOG_LEVEL", "warn"), "log level")
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	logger := logging.NewTo(os.Stderr, *logLevel)

	app, err := cli.New(cfg, os.Stdin, os.Stdout, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "frizbank: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, flags.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "frizbank: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
