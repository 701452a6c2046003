package array

import (
	"fmt"

	"go.uber.org/zap"

	"sealoop/essctl/internal/config"
	"sealoop/essctl/internal/pack"
	"sealoop/essctl/internal/plant"

	"go.uber.org/fx"
)

// Module provides the array controller to the Fx application.
var Module = fx.Module("array",
	fx.Provide(ProvideController),
)

// ProvideController builds the array's pack controllers from
// config.ArrayConfig and assembles them into a Controller.
func ProvideController(cfg *config.Config, logger *zap.Logger) *Controller {
	thresholds := toThresholds(cfg.Thresholds)
	plantCfg := plant.Config{
		NumModules:       cfg.Array.ModulesPerPack,
		CellsPerModule:   cfg.Array.CellsPerModule,
		CapacityAh:       cfg.Array.NominalCapacityAh,
		ThermalMassJPerC: cfg.Array.ThermalMassJPerC,
		CoolingWPerC:     cfg.Array.CoolingWPerC,
		AmbientC:         cfg.Array.AmbientC,
	}

	packs := make([]*pack.Controller, 0, cfg.Array.PackCount)
	for i := 1; i <= cfg.Array.PackCount; i++ {
		id := fmt.Sprintf("pack-%d", i)
		packs = append(packs, pack.New(id, plantCfg, thresholds, cfg.Array.InitialSOC, cfg.Array.AmbientC))
	}

	logger.Info("assembled array controller",
		zap.Int("pack_count", len(packs)),
		zap.Float64("nominal_capacity_ah", cfg.Array.NominalCapacityAh))

	return New(packs)
}

func toThresholds(c config.PackThresholds) pack.Thresholds {
	return pack.Thresholds{
		SWOVWarnV:      c.SWOVWarnV,
		SWOVClearV:     c.SWOVClearV,
		SWUVWarnV:      c.SWUVWarnV,
		SWUVClearV:     c.SWUVClearV,
		SWOTWarnC:      c.SWOTWarnC,
		SWOTClearC:     c.SWOTClearC,
		SWAssertDelayS: c.SWAssertDelayS,

		SWOVFaultV:    c.SWOVFaultV,
		SWUVFaultV:    c.SWUVFaultV,
		SWOTFaultC:    c.SWOTFaultC,
		SWFaultDelayS: c.SWFaultDelayS,

		HWOVSafetyV:  c.HWOVSafetyV,
		HWUVSafetyV:  c.HWUVSafetyV,
		HWOVUVDelayS: c.HWOVUVDelayS,
		HWOTSafetyC:  c.HWOTSafetyC,
		HWOTDelayS:   c.HWOTDelayS,

		PrechargeDurationS:     c.PrechargeDurationS,
		WarningHoldTimeS:       c.WarningHoldTimeS,
		FaultResetSafeHoldS:    c.FaultResetSafeHoldS,
		VoltageMatchPerModuleV: c.VoltageMatchPerModuleV,

		OvercurrentWarnDelayS:    c.OvercurrentWarnDelayS,
		OvercurrentFaultDelayS:   c.OvercurrentFaultDelayS,
		OvercurrentFaultSubzeroC: c.OvercurrentFaultSubzeroC,
	}
}
