// Package bootstrap opens the stores and optional backends selected by configuration.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/Melih7342/bookmanager/config"
	repo "github.com/Melih7342/bookmanager/internal/domain/repository"
	"github.com/Melih7342/bookmanager/internal/infrastructure/memory"
	pginfra "github.com/Melih7342/bookmanager/internal/infrastructure/postgres"
)

// Stores is the pair of repositories the services run on. Pool is nil for the memory backend.
type Stores struct {
	Users repo.UserRepository
	Books repo.BookRepository
	Pool  *pgxpool.Pool
}

// Close releases the database pool, if any.
func (s *Stores) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// OpenStores builds the configured backend. Postgres is migrated before use.
func OpenStores(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Stores, error) {
	if cfg.StoreBackend != config.StorePostgres {
		logger.Info("using in-memory store")
		return &Stores{Users: memory.NewUserRepository(), Books: memory.NewBookRepository()}, nil
	}

	if err := pginfra.Migrate(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), pginfra.PoolOptions{
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: cfg.DBMaxConnLife,
		AppName:         cfg.AppName,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	logger.WithField("host", cfg.DBHost).Info("using postgres store")
	return &Stores{
		Users: pginfra.NewUserRepository(pool, cfg.DBQueryTimeout),
		Books: pginfra.NewBookRepository(pool, cfg.DBQueryTimeout),
		Pool:  pool,
	}, nil
}
