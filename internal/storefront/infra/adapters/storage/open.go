// Package storage selects the Store backend named by the configuration.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jcmexdev/regaloshop/internal/pkg/config"
	"github.com/jcmexdev/regaloshop/internal/storefront/core/ports"
	"github.com/jcmexdev/regaloshop/internal/storefront/infra/adapters/memory"
	"github.com/jcmexdev/regaloshop/internal/storefront/infra/adapters/postgres"
	"github.com/jcmexdev/regaloshop/internal/storefront/infra/adapters/sqlite"
)

func Open(ctx context.Context, cfg config.StoreConfig) (ports.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		slog.InfoContext(ctx, "opening store", "driver", cfg.Driver, "host", cfg.Host, "database", cfg.Name)
		return postgres.Open(ctx, cfg.PostgresDSN(), postgres.Options{
			MaxConns:         cfg.PoolMax,
			StatementTimeout: cfg.StatementTimeout,
		})
	case config.DriverSQLite:
		slog.InfoContext(ctx, "opening store", "driver", cfg.Driver, "path", cfg.SQLitePath)
		return sqlite.Open(cfg.SQLitePath)
	case config.DriverMemory:
		slog.WarnContext(ctx, "using in-memory store, orders are lost on restart")
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}
