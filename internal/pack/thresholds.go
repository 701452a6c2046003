// Package pack implements the per-pack safety monitor and seven-state
// operational state machine: layered software/hardware alarm debouncing,
// latched faults gated behind a manual reset, pre-charge sequencing, and
// the three-curve derated current-limit computation. A Controller owns
// exactly one plant.Plant; it never advances that plant's physics itself
// (the array controller is the sole driver of Plant.Step), only its own
// alarm, timer and limit state.
//
// Documented limitations (carried over from the reference control
// manual, not modeled here): cell balancing, per-cell telemetry beyond
// what the plant exposes, SOH/aging, insulation monitoring, contactor
// weld detection, communications timeouts, ground-fault detection, and
// inrush modeling beyond the fixed pre-charge timer.
package pack

// Thresholds is the compile-time-constant-turned-configuration table of
// alarm setpoints and timing constants a Controller is built with. Kept
// as an explicit struct (rather than package constants) so it can be
// threaded per-chemistry and swapped out in tests.
type Thresholds struct {
	// Software warn/clear pairs, 5 s assert delay each.
	SWOVWarnV   float64
	SWOVClearV  float64
	SWUVWarnV   float64
	SWUVClearV  float64
	SWOTWarnC   float64
	SWOTClearC  float64
	SWAssertDelayS float64

	// Software fault thresholds, 5 s assert delay each.
	SWOVFaultV    float64
	SWUVFaultV    float64
	SWOTFaultC    float64
	SWFaultDelayS float64

	// Hardware safety thresholds, independent of the SW fault latch.
	HWOVSafetyV    float64
	HWUVSafetyV    float64
	HWOVUVDelayS   float64
	HWOTSafetyC    float64
	HWOTDelayS     float64

	PrechargeDurationS     float64
	WarningHoldTimeS       float64
	FaultResetSafeHoldS    float64
	VoltageMatchPerModuleV float64

	OvercurrentWarnDelayS    float64
	OvercurrentFaultDelayS   float64
	OvercurrentFaultSubzeroC float64
}

// DefaultThresholds returns the spec.md §4.3 threshold table.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SWOVWarnV:      4.210,
		SWOVClearV:     4.190,
		SWUVWarnV:      3.200,
		SWUVClearV:     3.220,
		SWOTWarnC:      60.0,
		SWOTClearC:     57.0,
		SWAssertDelayS: 5,

		SWOVFaultV:    4.225,
		SWUVFaultV:    3.000,
		SWOTFaultC:    65.0,
		SWFaultDelayS: 5,

		HWOVSafetyV:  4.300,
		HWUVSafetyV:  2.700,
		HWOVUVDelayS: 1,
		HWOTSafetyC:  70.0,
		HWOTDelayS:   5,

		PrechargeDurationS:     5,
		WarningHoldTimeS:       10,
		FaultResetSafeHoldS:    60,
		VoltageMatchPerModuleV: 1.2,

		OvercurrentWarnDelayS:    10,
		OvercurrentFaultDelayS:   5,
		OvercurrentFaultSubzeroC: 0,
	}
}
