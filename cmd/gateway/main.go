package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/K3Y-Ltd/across-block-object-and-file-storage/internal/adapter"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/internal/config"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/pkg/utils"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	writeDefaults := flag.String("write-config", "", "write the default configuration to this path and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("gateway %s\n", version)
		return
	}

	cfg := config.NewDefault()

	if *writeDefaults != "" {
		if err := cfg.SaveToFile(*writeDefaults); err != nil {
			slog.Error("failed to write config", "error", err)
			os.Exit(1)
		}
		return
	}

	if *configPath != "" {
		if err := cfg.LoadFromFile(*configPath); err != nil {
			slog.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("failed to load config from environment", "error", err)
		os.Exit(1)
	}

	logger, err := utils.SetupLogging(cfg.Global.LogLevel, cfg.Global.LogFormat, os.Stderr)
	if err != nil {
		slog.Error("invalid logging configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := adapter.New(ctx, cfg, adapter.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create gateway", "error", err)
		os.Exit(1)
	}

	logger.Info("starting gateway", "version", version, "address", cfg.Server.Address)

	// Run blocks until a shutdown signal
	if err := gw.Run(ctx); err != nil {
		logger.Error("gateway error", "error", err)
		os.Exit(1)
	}
}
