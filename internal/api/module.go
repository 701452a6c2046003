package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"sealoop/essctl/internal/alarm"
	"sealoop/essctl/internal/config"
	"sealoop/essctl/internal/health"
	"sealoop/essctl/internal/supervisor"
)

// Module provides API server functionality to the Fx application
var Module = fx.Module("api",
	fx.Provide(
		ProvideHandlers,
		ProvideRouter,
		ProvideHTTPServer,
	),
	fx.Invoke(RegisterLifecycle),
)

// ProvideHandlers creates the API handlers
func ProvideHandlers(
	sup *supervisor.Supervisor,
	alarmManager *alarm.Manager,
	healthService *health.HealthService,
	logger *zap.Logger,
) *Handlers {
	return NewHandlers(sup, alarmManager, healthService, logger)
}

// ProvideRouter creates and configures the Gin router
func ProvideRouter(handlers *Handlers, logger *zap.Logger) *gin.Engine {
	return SetupRoutes(handlers, logger)
}

// ProvideHTTPServer creates the HTTP server
func ProvideHTTPServer(cfg *config.Config, router *gin.Engine) *http.Server {
	return &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.API.Port),
		Handler: router,
	}
}

// RegisterLifecycle registers lifecycle hooks for the HTTP server
func RegisterLifecycle(lc fx.Lifecycle, server *http.Server, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting HTTP server", zap.String("addr", server.Addr))
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping HTTP server")
			return server.Shutdown(ctx)
		},
	})
}
