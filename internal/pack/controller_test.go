package pack

import (
	"testing"

	"sealoop/essctl/internal/plant"
)

func testPlantConfig() plant.Config {
	return plant.Config{
		NumModules:       22,
		CellsPerModule:   14,
		CapacityAh:       280,
		ThermalMassJPerC: 1_386_000,
		CoolingWPerC:     800,
		AmbientC:         40,
	}
}

func newTestController(soc, tempC float64) *Controller {
	return New("pack-1", testPlantConfig(), DefaultThresholds(), soc, tempC)
}

func TestRequestConnectVoltageMatch(t *testing.T) {
	c := newTestController(0.5, 25)
	busV := c.Plant().Telemetry().PackVoltageV

	if !c.RequestConnect(busV, true) {
		t.Fatalf("expected connect to succeed with matched bus voltage")
	}
	if c.Mode() != Connecting {
		t.Fatalf("expected Connecting, got %s", c.Mode())
	}
}

func TestRequestConnectVoltageMismatchRejected(t *testing.T) {
	c := newTestController(0.5, 25)
	busV := c.Plant().Telemetry().PackVoltageV
	farBusV := busV + 100*float64(c.Plant().Telemetry().NumModules)

	if c.RequestConnect(farBusV, true) {
		t.Fatalf("expected connect to fail on voltage mismatch")
	}
	if c.Mode() != Ready {
		t.Fatalf("expected to remain Ready, got %s", c.Mode())
	}
}

func TestPrechargeCompletesAfterFiveSeconds(t *testing.T) {
	c := newTestController(0.5, 25)
	busV := c.Plant().Telemetry().PackVoltageV
	if !c.RequestConnect(busV, true) {
		t.Fatalf("request connect failed")
	}

	for i := 0; i < 4; i++ {
		c.Step(1, busV)
		if c.Mode() != Connecting {
			t.Fatalf("tick %d: expected still Connecting, got %s", i, c.Mode())
		}
	}
	c.Step(1, busV)
	if c.Mode() != Connected {
		t.Fatalf("expected Connected after precharge dwell, got %s", c.Mode())
	}
	if !c.ContactorsClosed() {
		t.Fatalf("expected contactors closed once Connected")
	}
}

func TestLimitsNeverNegative(t *testing.T) {
	c := newTestController(0.99, 64)
	c.Step(1, 500)
	if c.ChargeLimitA() < 0 || c.DischargeLimitA() < 0 {
		t.Fatalf("limits must never be negative: charge=%v discharge=%v", c.ChargeLimitA(), c.DischargeLimitA())
	}
}

func TestHWFaultIndependentOfLatchedSWFault(t *testing.T) {
	c := newTestController(0.5, 25)

	// Simulate a software fault already latched, independent of any HW
	// condition.
	c.faultLatched = true
	c.hasFault = true
	c.mode = Fault

	for i := 0; i < 2; i++ {
		c.hwSafetyCheck(1, plantTelemetryWithHWOV(c))
	}
	if !c.hwFaultLatched {
		t.Fatalf("expected HW fault to latch even while SW fault already latched")
	}
}

func plantTelemetryWithHWOV(c *Controller) plant.Telemetry {
	tel := c.p.Telemetry()
	tel.CellVoltageV = c.thresholds.HWOVSafetyV + 0.01
	return tel
}

func TestManualFaultResetRequiresDwell(t *testing.T) {
	c := newTestController(0.5, 25)
	c.forceHWFault("test")

	if c.ManualFaultReset() {
		t.Fatalf("expected reset to fail immediately after fault")
	}

	// Pack is safe (moderate temp/voltage) but dwell time not yet met.
	for i := 0; i < 30; i++ {
		c.safeStateTimerUpdate(1, c.p.Telemetry())
	}
	if c.ManualFaultReset() {
		t.Fatalf("expected reset to fail at 30s dwell")
	}

	for i := 0; i < 31; i++ {
		c.safeStateTimerUpdate(1, c.p.Telemetry())
	}
	if !c.ManualFaultReset() {
		t.Fatalf("expected reset to succeed once dwell >= 60s")
	}
	if c.Mode() != Ready {
		t.Fatalf("expected Ready after successful reset, got %s", c.Mode())
	}
}

func TestWarningHysteresisHoldTime(t *testing.T) {
	c := newTestController(0.5, 61) // above SW OT warn (60) and clear (57)
	for i := 0; i < 6; i++ {
		c.Step(1, 0)
	}
	if !c.HasWarning() {
		t.Fatalf("expected OT warning to assert after 5s")
	}

	// Feed swAlarmCheck telemetry below the clear band (57): the warning
	// must hold for the 10 s hold time before clearing.
	cool := c.p.Telemetry()
	cool.TemperatureC = 50
	for i := 0; i < 9; i++ {
		c.swAlarmCheck(1, cool)
	}
	if !c.HasWarning() {
		t.Fatalf("expected warning to hold before 10s below the clear band")
	}
	c.swAlarmCheck(1, cool)
	if c.HasWarning() {
		t.Fatalf("expected warning to clear after 10s below the clear band")
	}

	// The accumulator helper holds inside the dead band and resets once
	// the clear condition is reached.
	timer := accumulateHysteretic(6, false, false, 1) // in the dead band
	if timer != 6 {
		t.Fatalf("expected timer to hold at 6 in the dead band, got %v", timer)
	}
	timer = accumulateHysteretic(timer, false, true, 1)
	if timer != 0 {
		t.Fatalf("expected timer to reset once clear condition reached, got %v", timer)
	}
}
