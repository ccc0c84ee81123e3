// Command matchengine runs one market's matching engine process: it
// dials the persistence service, recovers book state, and serves the
// Engine RPC surface (spec §6) over internal/wire, plus an admin
// metrics/health mux. One process is started per configured market,
// mirroring the original rustex-micro match_service binary.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/rustexchange/matchd/internal/config"
	"github.com/rustexchange/matchd/internal/engineops"
	"github.com/rustexchange/matchd/internal/matchengine"
	"github.com/rustexchange/matchd/internal/obsv"
	"github.com/rustexchange/matchd/internal/recovery"
	"github.com/rustexchange/matchd/internal/storeops"
	"github.com/rustexchange/matchd/internal/wire"
)

func main() {
	app := fx.New(
		fx.Provide(
			zap.NewProduction,
			config.Load,
			newStoreClient,
			newCollector,
			newEngine,
			newEngineServer,
			newAdminServer,
		),
		fx.Invoke(registerHooks),
	)
	app.Run()
}

// newStoreClient builds the client for the persistence service named
// by DATABASE_RPC_ADDRESS/DATABASE_RPC_PORT. storeops.Dial does not
// connect; an unreachable store first shows up as a recovery error in
// newEngine, which is a fatal boot error, not a retryable condition.
func newStoreClient(cfg *config.Config) (*storeops.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.DatabaseRPCAddress, cfg.DatabaseRPCPort)
	client, err := storeops.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("matchengine: dial store service %s: %w", addr, err)
	}
	return client, nil
}

func newCollector() *obsv.Collector {
	return obsv.NewCollector(prometheus.DefaultRegisterer)
}

// newEngine runs the Recovery Loader against the store before
// constructing the Engine, per §4.5 step 5: "the book must be fully
// rebuilt before the engine accepts any request." A recovery failure
// mirrors the original's initialize_order_book panic and is treated as
// a fatal boot error here instead.
func newEngine(cfg *config.Config, store *storeops.Client, collector *obsv.Collector, logger *zap.Logger) (*matchengine.Engine, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	book, err := recovery.Load(ctx, cfg.ExchangeMarket, store, logger)
	if err != nil {
		return nil, fmt.Errorf("matchengine: recovery failed for market %q: %w", cfg.ExchangeMarket, err)
	}

	engine := matchengine.New(cfg.ExchangeMarket, book, store, logger, matchengine.WithMetrics(collector))
	logger.Info("recovered book and constructed engine",
		zap.String("market", cfg.ExchangeMarket),
		zap.Int("pending_orders", book.PendingCount()))
	return engine, nil
}

func newEngineServer(cfg *config.Config, engine *matchengine.Engine, logger *zap.Logger) *wire.Server {
	addr := fmt.Sprintf("%s:%d", cfg.MatchRPCAddress, cfg.MatchRPCPort)
	srv := wire.NewServer(addr, int64(cfg.MatchRPCMaxConcurrentConnections), logger)
	engineops.RegisterHandlers(srv, engine)
	return srv
}

func newAdminServer(cfg *config.Config) *obsv.AdminServer {
	return obsv.NewAdminServer(fmt.Sprintf(":%d", cfg.MatchRPCPort+1000))
}

func registerHooks(lc fx.Lifecycle, engine *matchengine.Engine, srv *wire.Server, admin *obsv.AdminServer, cfg *config.Config, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				logger.Info("match engine listening",
					zap.String("market", cfg.ExchangeMarket),
					zap.String("address", fmt.Sprintf("%s:%d", cfg.MatchRPCAddress, cfg.MatchRPCPort)))
				if err := srv.ListenAndServe(ctx); err != nil {
					logger.Error("match engine server stopped", zap.Error(err))
				}
			}()
			go func() {
				if err := admin.ListenAndServe(ctx); err != nil {
					logger.Error("admin server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			engine.Close()
			return nil
		},
	})
}
