package supervisor

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"sealoop/essctl/internal/alarm"
	"sealoop/essctl/internal/array"
	"sealoop/essctl/internal/config"
	"sealoop/essctl/internal/heatload"
	"sealoop/essctl/internal/telemetry"
)

// Module provides the supervisor to the Fx application.
var Module = fx.Module("supervisor",
	fx.Provide(ProvideSupervisor),
	fx.Invoke(RegisterLifecycle),
)

// ProvideSupervisor assembles a Supervisor from its collaborators.
func ProvideSupervisor(
	cfg *config.Config,
	arrayCtrl *array.Controller,
	heatloadPoller *heatload.Poller,
	alarmMgr *alarm.Manager,
	telemetryWriter *telemetry.Writer,
	logger *zap.Logger,
) *Supervisor {
	return New(cfg.Supervisor, arrayCtrl, heatloadPoller, alarmMgr, telemetryWriter, logger)
}

// RegisterLifecycle registers lifecycle hooks for the supervisor.
func RegisterLifecycle(lc fx.Lifecycle, s *Supervisor) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			s.Stop()
			return nil
		},
	})
}
