package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/compliance-assistant/client/internal/api"
	"github.com/compliance-assistant/client/internal/cli"
	"github.com/compliance-assistant/client/internal/config"
	"github.com/compliance-assistant/client/internal/db"
	"github.com/compliance-assistant/client/internal/store"
	"github.com/compliance-assistant/client/pkg/logger"
)

func main() {
	cfg := config.Load()

	// Ensure the data directory exists before anything touches it.
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create data directory: %v\n", err)
		os.Exit(1)
	}

	logPath := cfg.LogFilePath
	if logPath == "" {
		logPath = filepath.Join(cfg.DataDir, "assistant.log")
	}
	log, err := logger.New(logger.Options{Level: cfg.LogLevel, FilePath: logPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	database, err := db.InitDB(filepath.Join(cfg.DataDir, "state.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open local state: %v\n", err)
		os.Exit(1)
	}
	defer db.CloseDB()

	st, err := store.New(database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize credential store: %v\n", err)
		os.Exit(1)
	}

	apiClient := api.NewClient(api.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.HTTPTimeout,
		Tokens:  st,
		Logger:  log,
	})

	app := cli.NewApp(cfg, apiClient, st, log, os.Stdin, os.Stdout)
	if err := app.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
