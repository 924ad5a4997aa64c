package server

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/wayne/internal/logging"
	"github.com/dmitrijs2005/wayne/internal/server/config"
	"github.com/dmitrijs2005/wayne/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/wayne/internal/server/services"
)

// Sweep deletes expired refresh tokens once and returns how many were
// removed. It is the body of the sweeper binary, run from cron or a timer.
func Sweep(ctx context.Context, c *config.Config, logger logging.Logger) (int64, error) {
	db, err := openDB(ctx, c.DatabaseDSN, repomanager.PoolOptions{MaxOpenConns: 1})
	if err != nil {
		return 0, fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	tokens := services.NewTokenService(db, repomanager.NewPostgresRepositoryManager(), c, logger)
	return tokens.CleanupExpired(ctx)
}
