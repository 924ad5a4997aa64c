// Command sweeper deletes expired refresh tokens and exits. Schedule it with
// cron or a systemd timer.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/wayne/internal/logging"
	"github.com/dmitrijs2005/wayne/internal/server"
	"github.com/dmitrijs2005/wayne/internal/server/config"
)

func main() {
	cfg, err := config.LoadSweepConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.NewJSONLogger(os.Stdout, cfg.LogLevel).With("module", "sweeper")

	if _, err := server.Sweep(ctx, cfg, logger); err != nil {
		logger.Error(ctx, "sweep failed", "error", err)
		stop()
		os.Exit(1)
	}
}
