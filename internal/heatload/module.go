package heatload

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"sealoop/essctl/internal/array"
	"sealoop/essctl/internal/config"
)

// Module provides the heatload poller to the Fx application.
var Module = fx.Module("heatload",
	fx.Provide(ProvidePoller),
	fx.Invoke(RegisterLifecycle),
)

// ProvidePoller creates a heatload poller covering every pack in the
// array controller.
func ProvidePoller(cfg *config.Config, arrayController *array.Controller, logger *zap.Logger) *Poller {
	return NewPollerForArray(cfg.Heatload, arrayController.Packs(), logger)
}

// RegisterLifecycle registers lifecycle hooks for the heatload poller.
func RegisterLifecycle(lc fx.Lifecycle, poller *Poller) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return poller.Start()
		},
		OnStop: func(ctx context.Context) error {
			poller.Stop()
			return nil
		},
	})
}
