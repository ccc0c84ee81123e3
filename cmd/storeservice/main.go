// Command storeservice exposes the Store RPC surface (SPEC_FULL.md
// DOMAIN STACK) backed by Postgres, for the matching engine processes
// to dial. Separated from cmd/matchengine so a database incident
// cannot take down the in-memory book state of a running market,
// mirroring the original rustex-micro db_service binary.
package main

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	storedriver "github.com/rustexchange/matchd/internal/store/postgres"

	"github.com/rustexchange/matchd/internal/config"
	"github.com/rustexchange/matchd/internal/storeops"
	"github.com/rustexchange/matchd/internal/wire"
)

func main() {
	app := fx.New(
		fx.Provide(
			zap.NewProduction,
			config.Load,
			newGormDB,
			newRepository,
			newStoreServer,
		),
		fx.Invoke(registerHooks),
	)
	app.Run()
}

func newGormDB(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=matchd sslmode=disable",
		cfg.PostgresAddress, cfg.PGUsername, cfg.PGPassword)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("storeservice: open postgres: %w", err)
	}
	return db, nil
}

func newRepository(db *gorm.DB, logger *zap.Logger) (*storedriver.Repository, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("storeservice: underlying sql.DB: %w", err)
	}
	return storedriver.New(db, sqlDB, logger)
}

func newStoreServer(cfg *config.Config, repo *storedriver.Repository, logger *zap.Logger) *wire.Server {
	addr := fmt.Sprintf("%s:%d", cfg.DatabaseRPCAddress, cfg.DatabaseRPCPort)
	srv := wire.NewServer(addr, int64(cfg.MatchRPCMaxConcurrentConnections), logger)
	storeops.RegisterHandlers(srv, repo)
	return srv
}

func registerHooks(lc fx.Lifecycle, srv *wire.Server, cfg *config.Config, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				logger.Info("store service listening",
					zap.String("address", fmt.Sprintf("%s:%d", cfg.DatabaseRPCAddress, cfg.DatabaseRPCPort)))
				if err := srv.ListenAndServe(ctx); err != nil {
					logger.Error("store service stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
