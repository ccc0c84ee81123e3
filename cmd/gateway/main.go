// Command gateway runs the public HTTP surface (spec §6): login,
// order submission, order listing, order progress, and cancellation,
// fanning each request out to the right market's matchengine process.
// It serves plain HTTP; TLS is not terminated in this process.
package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/rustexchange/matchd/internal/auth"
	"github.com/rustexchange/matchd/internal/config"
	"github.com/rustexchange/matchd/internal/gatewayapi"
)

func main() {
	app := fx.New(
		fx.Provide(
			zap.NewProduction,
			config.Load,
			newAuthService,
			newClientRegistry,
			newHTTPServer,
		),
		fx.Invoke(registerHooks),
	)
	app.Run()
}

func newAuthService(cfg *config.Config, logger *zap.Logger) *auth.Service {
	jwtCfg := auth.JWTConfig{
		SecretKey:     cfg.JWTSecret,
		TokenDuration: time.Hour,
		Issuer:        "matchd-gateway",
	}
	return auth.NewService(jwtCfg, logger)
}

func newClientRegistry(cfg *config.Config) *gatewayapi.ClientRegistry {
	return gatewayapi.NewClientRegistry(cfg.MarketRoutes)
}

func newHTTPServer(cfg *config.Config, authSvc *auth.Service, registry *gatewayapi.ClientRegistry, logger *zap.Logger) *http.Server {
	router := gatewayapi.NewRouter(registry, authSvc, logger, true)
	addr := fmt.Sprintf("%s:%d", cfg.GatewayAddress, cfg.GatewayPort)
	return &http.Server{Addr: addr, Handler: router}
}

func registerHooks(lc fx.Lifecycle, srv *http.Server, registry *gatewayapi.ClientRegistry, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				logger.Info("gateway listening",
					zap.String("address", srv.Addr),
					zap.Strings("markets", registry.Markets()))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("gateway server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
