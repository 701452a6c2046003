package main

import (
	"go.uber.org/fx"

	"sealoop/essctl/internal/alarm"
	"sealoop/essctl/internal/api"
	"sealoop/essctl/internal/array"
	"sealoop/essctl/internal/config"
	"sealoop/essctl/internal/database"
	"sealoop/essctl/internal/health"
	"sealoop/essctl/internal/heatload"
	"sealoop/essctl/internal/logger"
	"sealoop/essctl/internal/metrics"
	"sealoop/essctl/internal/modbus"
	"sealoop/essctl/internal/supervisor"
	"sealoop/essctl/internal/telemetry"
)

func main() {
	app := fx.New(
		// Configuration
		config.Module,

		// Logging
		logger.Module,
		logger.FxLogger,

		// Durable storage
		database.Module,

		// Alarm edge persistence, telemetry write-back
		alarm.Module,
		telemetry.Module,

		// Pack array, tick-loop supervision
		array.Module,
		supervisor.Module,

		// External heat source
		heatload.Module,

		// SCADA Modbus server
		modbus.Module,

		// Health monitoring, system/runtime metrics
		health.Module,
		metrics.Module,

		// HTTP API
		api.Module,
	)

	app.Run()
}
