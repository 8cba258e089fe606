// cmd/batmon/main.go
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tamzrod/batmon/internal/ble"
	"github.com/tamzrod/batmon/internal/config"
	"github.com/tamzrod/batmon/internal/logging"
	"github.com/tamzrod/batmon/internal/poller"
	"github.com/tamzrod/batmon/internal/writer"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: batmon <config.yaml>")
	}

	cfgPath := os.Args[1]

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}
	config.Normalize(cfg)

	logger, closeLog, err := logging.New(cfg.Batmon.Log)
	if err != nil {
		log.Fatalf("logger setup failed: %v", err)
	}
	defer closeLog()

	if err := run(cfg, logger); err != nil {
		logger.Error("batmon stopped", "err", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------
	// BLE adapter + poller
	// --------------------

	adapter, err := ble.Open()
	if err != nil {
		return err
	}

	p, err := poller.Build(cfg, adapter, logger)
	if err != nil {
		return err
	}

	// --------------------
	// Publish sinks (optional)
	// --------------------

	client, closeClient, err := writer.BuildEndpointClient(cfg.Batmon.Publish)
	if err != nil {
		return err
	}
	defer closeClient()

	sinks := buildSinks(cfg, client, logger)

	// --------------------
	// poller producer -> orchestrator
	// --------------------

	out := make(chan poller.PollResult)
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx, out)
	}()

	logger.Info("batmon started", "devices", len(cfg.Batmon.Devices), "publish", cfg.Batmon.Publish != nil)

	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()
	orchestrate(ctx, out, secTicker.C, sinks, logger)

	// An in-flight session still disconnects before Run returns.
	<-done
	logger.Info("batmon stopped")
	return nil
}
