package modbus

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"sealoop/essctl/internal/config"
	"sealoop/essctl/internal/supervisor"
)

// Module provides Modbus server functionality to the Fx application
var Module = fx.Module("modbus",
	fx.Provide(ProvideServer),
	fx.Invoke(RegisterLifecycle),
)

// ProvideServer creates and provides a Modbus server instance
func ProvideServer(
	cfg *config.Config,
	sup *supervisor.Supervisor,
	logger *zap.Logger,
) (*Server, error) {
	return NewServer(cfg.ModbusServer, sup, logger)
}

// RegisterLifecycle registers the Modbus server lifecycle hooks with Fx
func RegisterLifecycle(lc fx.Lifecycle, server *Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return server.Start()
		},
		OnStop: func(ctx context.Context) error {
			server.Stop()
			return nil
		},
	})
}
