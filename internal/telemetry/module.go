package telemetry

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"sealoop/essctl/internal/config"
	"sealoop/essctl/internal/database"
)

// Module provides the telemetry writer to the Fx application.
var Module = fx.Module("telemetry",
	fx.Provide(ProvideWriter),
	fx.Invoke(RegisterLifecycle),
)

// ProvideWriter creates and provides a telemetry Writer.
func ProvideWriter(cfg *config.Config, influxDB *database.InfluxDB, logger *zap.Logger) *Writer {
	return NewWriter(cfg.Telemetry, influxDB, logger)
}

// RegisterLifecycle registers lifecycle hooks for the telemetry writer.
func RegisterLifecycle(lc fx.Lifecycle, writer *Writer) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return writer.Start()
		},
		OnStop: func(ctx context.Context) error {
			writer.Stop()
			return nil
		},
	})
}
