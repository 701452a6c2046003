package pack

import (
	"sealoop/essctl/internal/derate"
	"sealoop/essctl/internal/plant"
)

// hwSafetyCheck runs every tick independently of the software fault
// latch: a latched SW fault never disables it. It is defensive against
// panics in telemetry access — any internal error is itself converted
// into a HW fault rather than silently skipped.
func (c *Controller) hwSafetyCheck(dt float64, tel plant.Telemetry) {
	defer func() {
		if r := recover(); r != nil {
			c.forceHWFault("internal error in hardware safety check")
		}
	}()

	ov := tel.CellVoltageV >= c.thresholds.HWOVSafetyV
	uv := tel.CellVoltageV <= c.thresholds.HWUVSafetyV
	ot := tel.TemperatureC >= c.thresholds.HWOTSafetyC

	c.hwOVTimer = accumulate(c.hwOVTimer, ov, dt)
	c.hwUVTimer = accumulate(c.hwUVTimer, uv, dt)
	c.hwOTTimer = accumulate(c.hwOTTimer, ot, dt)

	switch {
	case c.hwOVTimer >= c.thresholds.HWOVUVDelayS:
		c.forceHWFault("hardware over-voltage safety trip")
	case c.hwUVTimer >= c.thresholds.HWOVUVDelayS:
		c.forceHWFault("hardware under-voltage safety trip")
	case c.hwOTTimer >= c.thresholds.HWOTDelayS:
		c.forceHWFault("hardware over-temperature safety trip")
	}
}

// forceHWFault is fail-safe: it always latches both fault flags, opens
// contactors, zeroes limits and forces Fault, regardless of the
// software alarm state.
func (c *Controller) forceHWFault(message string) {
	c.faultLatched = true
	c.hwFaultLatched = true
	c.hasFault = true
	c.contactorsClosed = false
	c.mode = Fault
	c.chargeLimitA = 0
	c.dischargeLimitA = 0
	c.faultMessage = message
}

// swAlarmCheck debounces the three software OV/UV/OT fault and warn
// thresholds plus the overcurrent rule, maintains the hysteretic
// has_warning aggregate, and publishes the active alarm flags (including
// any hardware condition the watchdog has debounced this tick).
func (c *Controller) swAlarmCheck(dt float64, tel plant.Telemetry) {
	ovFaultCond := tel.CellVoltageV >= c.thresholds.SWOVFaultV
	uvFaultCond := tel.CellVoltageV <= c.thresholds.SWUVFaultV
	otFaultCond := tel.TemperatureC >= c.thresholds.SWOTFaultC

	c.swOVFaultTimer = accumulate(c.swOVFaultTimer, ovFaultCond, dt)
	c.swUVFaultTimer = accumulate(c.swUVFaultTimer, uvFaultCond, dt)
	c.swOTFaultTimer = accumulate(c.swOTFaultTimer, otFaultCond, dt)

	ovWarnAssert := tel.CellVoltageV >= c.thresholds.SWOVWarnV
	ovWarnClear := tel.CellVoltageV <= c.thresholds.SWOVClearV
	uvWarnAssert := tel.CellVoltageV <= c.thresholds.SWUVWarnV
	uvWarnClear := tel.CellVoltageV >= c.thresholds.SWUVClearV
	otWarnAssert := tel.TemperatureC >= c.thresholds.SWOTWarnC
	otWarnClear := tel.TemperatureC <= c.thresholds.SWOTClearC

	c.swOVWarnTimer = accumulateHysteretic(c.swOVWarnTimer, ovWarnAssert, ovWarnClear, dt)
	c.swUVWarnTimer = accumulateHysteretic(c.swUVWarnTimer, uvWarnAssert, uvWarnClear, dt)
	c.swOTWarnTimer = accumulateHysteretic(c.swOTWarnTimer, otWarnAssert, otWarnClear, dt)

	// The temperature curve yields C-rates; scale by capacity to amps.
	tc := derate.Temperature(tel.TemperatureC)
	tcA := tc.Charge * tel.CapacityAh
	tdA := tc.Discharge * tel.CapacityAh
	ocChargeCond := tel.CurrentA > 1.05*tcA+5
	// Intentionally 5 A more sensitive than 1.05*td: the offset is
	// applied inside the negation, not subtracted from the threshold.
	ocDischargeCond := tel.CurrentA < -(1.05*tdA - 5)
	ocCond := ocChargeCond || ocDischargeCond
	c.ocWarnTimer = accumulate(c.ocWarnTimer, ocCond, dt)

	// Narrow rule: an overcurrent fault fires only on charge-direction
	// overcurrent while sub-zero, never from overcurrent-discharge or
	// at other temperatures.
	ocFaultCond := tel.TemperatureC < c.thresholds.OvercurrentFaultSubzeroC && ocChargeCond
	c.ocFaultTimer = accumulate(c.ocFaultTimer, ocFaultCond, dt)

	var flags []Flag
	faulted := false
	var faultKind AlarmKind

	if c.swOVFaultTimer >= c.thresholds.SWFaultDelayS {
		flags = append(flags, Flag{SourceSW, KindOV, true})
		faulted, faultKind = true, KindOV
	}
	if c.swUVFaultTimer >= c.thresholds.SWFaultDelayS {
		flags = append(flags, Flag{SourceSW, KindUV, true})
		faulted, faultKind = true, KindUV
	}
	if c.swOTFaultTimer >= c.thresholds.SWFaultDelayS {
		flags = append(flags, Flag{SourceSW, KindOT, true})
		faulted, faultKind = true, KindOT
	}
	if c.ocFaultTimer >= c.thresholds.OvercurrentFaultDelayS {
		flags = append(flags, Flag{SourceSW, KindOC, true})
		faulted, faultKind = true, KindOC
	}

	ovWarnBit := c.swOVWarnTimer >= c.thresholds.SWAssertDelayS
	uvWarnBit := c.swUVWarnTimer >= c.thresholds.SWAssertDelayS
	otWarnBit := c.swOTWarnTimer >= c.thresholds.SWAssertDelayS
	ocWarnBit := c.ocWarnTimer >= c.thresholds.OvercurrentWarnDelayS
	anyWarnBit := ovWarnBit || uvWarnBit || otWarnBit || ocWarnBit

	if ovWarnBit {
		flags = append(flags, Flag{SourceSW, KindOV, false})
	}
	if uvWarnBit {
		flags = append(flags, Flag{SourceSW, KindUV, false})
	}
	if otWarnBit {
		flags = append(flags, Flag{SourceSW, KindOT, false})
	}
	if ocWarnBit {
		flags = append(flags, Flag{SourceSW, KindOC, false})
	}

	// Hardware watchdog conditions debounced by hwSafetyCheck this tick.
	if c.hwOVTimer >= c.thresholds.HWOVUVDelayS {
		flags = append(flags, Flag{SourceHW, KindOV, true})
	}
	if c.hwUVTimer >= c.thresholds.HWOVUVDelayS {
		flags = append(flags, Flag{SourceHW, KindUV, true})
	}
	if c.hwOTTimer >= c.thresholds.HWOTDelayS {
		flags = append(flags, Flag{SourceHW, KindOT, true})
	}

	if faulted {
		c.faultLatched = true
		c.hasFault = true
		c.contactorsClosed = false
		c.mode = Fault
		c.faultMessage = "software fault latched: " + faultKind.String()
	}

	if anyWarnBit {
		c.hasWarning = true
		c.warningActiveTime = 0
	} else {
		c.warningActiveTime += dt
		if c.warningActiveTime >= c.thresholds.WarningHoldTimeS {
			c.hasWarning = false
		}
	}

	c.activeAlarms = flags
}
