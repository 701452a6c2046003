package health

import (
	"go.uber.org/fx"

	"sealoop/essctl/internal/config"
	"sealoop/essctl/internal/database"
	"sealoop/essctl/internal/modbus"
	"sealoop/essctl/internal/supervisor"
)

// Module provides health check functionality to the Fx application
var Module = fx.Module("health",
	fx.Provide(ProvideHealthService),
)

// ProvideHealthService creates a health service and registers
// checkers for both durable stores, the SCADA Modbus server, and the
// supervisor's tick loop.
func ProvideHealthService(
	cfg *config.Config,
	influxDB *database.InfluxDB,
	postgreSQL *database.PostgreSQL,
	modbusServer *modbus.Server,
	sup *supervisor.Supervisor,
) *HealthService {
	healthService := NewHealthService()

	healthService.RegisterChecker(NewDatabaseChecker("influxdb", influxDB))
	healthService.RegisterChecker(NewDatabaseChecker("postgresql", postgreSQL))
	healthService.RegisterChecker(NewRunningChecker("modbus_server", modbusServer))
	healthService.RegisterChecker(NewTickStalenessChecker(
		"supervisor_tick",
		sup.LastTick,
		cfg.Supervisor.TickInterval*3,
	))

	return healthService
}
