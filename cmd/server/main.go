package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/CometPilot/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/CometPilot/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/CometPilot/backend/internal/server"
)

func main() {
	configPath := flag.String("config", "", "Config file (YAML or TOML)")
	port := flag.String("port", "", "Server port")
	host := flag.String("host", "", "Bind address")
	dev := flag.Bool("dev", false, "Development logging")
	confirm := flag.String("confirm", "", "Robot confirmation mode: queue or terminal")
	noRobot := flag.Bool("no-robot", false, "Disable desktop input")
	pair := flag.Bool("pair", false, "Print a bridge pairing code at startup")
	flag.Parse()

	if *configPath != "" {
		os.Setenv(config.FileEnv, *configPath)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Flags override env
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}
	if *confirm != "" {
		cfg.Robot.ConfirmMode = *confirm
	}
	if *noRobot {
		cfg.Robot.Enabled = false
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		Service:     "comet-pilot",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create server", zap.Error(err))
	}

	if *pair {
		if code := srv.BridgePairingCode(); code != "" {
			fmt.Printf("Bridge pairing code (valid 5 minutes):\n%s\n", code)
		} else {
			logger.Warn("bridge is disabled, no pairing code")
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case sig := <-sigChan:
		logger.Info("shutting down gracefully", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
		os.Exit(1)
	}
}
