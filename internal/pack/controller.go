package pack

import (
	"math"

	"sealoop/essctl/internal/derate"
	"sealoop/essctl/internal/plant"
)

// Controller is one pack's safety monitor and state machine. It owns
// exactly one plant.Plant (no back-reference); the array controller
// calls Plant().Step directly once per tick, after every controller's
// own Step has refreshed limits and alarms.
type Controller struct {
	ID string

	thresholds Thresholds
	p          *plant.Plant

	mode             Mode
	contactorsClosed bool

	chargeLimitA    float64
	dischargeLimitA float64

	hasWarning    bool
	hasFault      bool
	faultLatched  bool
	hwFaultLatched bool
	activeAlarms  []Flag
	faultMessage  string

	// Nine base debounce accumulators, seconds.
	swOVFaultTimer float64
	swUVFaultTimer float64
	swOTFaultTimer float64
	swOVWarnTimer  float64
	swUVWarnTimer  float64
	swOTWarnTimer  float64
	hwOVTimer      float64
	hwUVTimer      float64
	hwOTTimer      float64

	// Two overcurrent timers.
	ocFaultTimer float64
	ocWarnTimer  float64

	warningActiveTime float64
	prechargeTimer    float64
	timeInSafeState   float64
}

// New constructs a Controller owning a freshly built plant seeded at the
// given initial SoC and temperature. Initial mode is Ready.
func New(id string, cfg plant.Config, thresholds Thresholds, initialSOC, initialTemperatureC float64) *Controller {
	return &Controller{
		ID:         id,
		thresholds: thresholds,
		p:          plant.New(cfg, initialSOC, initialTemperatureC),
		mode:       Ready,
	}
}

// Plant returns the owned plant model. The array controller is the only
// caller expected to invoke Step on it.
func (c *Controller) Plant() *plant.Plant { return c.p }

func (c *Controller) Mode() Mode                  { return c.mode }
func (c *Controller) ContactorsClosed() bool       { return c.contactorsClosed }
func (c *Controller) ChargeLimitA() float64        { return c.chargeLimitA }
func (c *Controller) DischargeLimitA() float64     { return c.dischargeLimitA }
func (c *Controller) HasWarning() bool             { return c.hasWarning }
func (c *Controller) HasFault() bool               { return c.hasFault }
func (c *Controller) FaultLatched() bool           { return c.faultLatched }
func (c *Controller) HWFaultLatched() bool         { return c.hwFaultLatched }
func (c *Controller) TimeInSafeState() float64     { return c.timeInSafeState }
func (c *Controller) FaultMessage() string         { return c.faultMessage }

// ActiveAlarms returns a copy of the currently active alarm flags.
func (c *Controller) ActiveAlarms() []Flag {
	out := make([]Flag, len(c.activeAlarms))
	copy(out, c.activeAlarms)
	return out
}

// voltageMatches reports whether packVoltage is within the per-module
// tolerance of busVoltage.
func (c *Controller) voltageMatches(busVoltageV float64) bool {
	tel := c.p.Telemetry()
	tolerance := c.thresholds.VoltageMatchPerModuleV * float64(tel.NumModules)
	return math.Abs(tel.PackVoltageV-busVoltageV) <= tolerance
}

// RequestConnect is permitted only from Ready. forCharge is recorded by
// the caller (the array controller's selection policy); the voltage
// match check itself is charge/discharge-symmetric.
func (c *Controller) RequestConnect(busVoltageV float64, forCharge bool) bool {
	if c.mode != Ready {
		return false
	}
	if !c.voltageMatches(busVoltageV) {
		return false
	}
	c.mode = Connecting
	c.prechargeTimer = 0
	return true
}

// CompleteConnection is permitted only from Connecting. On a voltage
// mismatch it falls back to Ready rather than closing contactors.
func (c *Controller) CompleteConnection(busVoltageV float64) bool {
	if c.mode != Connecting {
		return false
	}
	if !c.voltageMatches(busVoltageV) {
		c.mode = Ready
		return false
	}
	c.mode = Connected
	c.contactorsClosed = true
	return true
}

// RequestDisconnect opens contactors and returns to Ready from Connected
// or Connecting. It is a no-op from any other mode.
func (c *Controller) RequestDisconnect() {
	if c.mode != Connected && c.mode != Connecting {
		return
	}
	c.contactorsClosed = false
	c.mode = Ready
}

// ManualFaultReset clears a latched fault only if the cell voltage and
// temperature are currently within the safe band and the pack has held
// that band for at least FaultResetSafeHoldS seconds.
func (c *Controller) ManualFaultReset() bool {
	if !c.faultLatched {
		return true
	}
	tel := c.p.Telemetry()
	safe := c.isSafeState(tel)
	if safe && c.timeInSafeState >= c.thresholds.FaultResetSafeHoldS {
		c.clearFaultState()
		c.mode = Ready
		return true
	}
	if !safe {
		c.timeInSafeState = 0
	}
	return false
}

func (c *Controller) isSafeState(tel plant.Telemetry) bool {
	return tel.CellVoltageV < c.thresholds.SWOVFaultV &&
		tel.CellVoltageV > c.thresholds.SWUVFaultV &&
		tel.TemperatureC < c.thresholds.SWOTFaultC
}

func (c *Controller) clearFaultState() {
	c.hasWarning = false
	c.hasFault = false
	c.faultLatched = false
	c.hwFaultLatched = false
	c.activeAlarms = nil
	c.faultMessage = ""
	c.swOVFaultTimer = 0
	c.swUVFaultTimer = 0
	c.swOTFaultTimer = 0
	c.swOVWarnTimer = 0
	c.swUVWarnTimer = 0
	c.swOTWarnTimer = 0
	c.hwOVTimer = 0
	c.hwUVTimer = 0
	c.hwOTTimer = 0
	c.ocFaultTimer = 0
	c.ocWarnTimer = 0
	c.warningActiveTime = 0
	c.timeInSafeState = 0
}

// Step executes, in order: hardware safety check, software alarm check,
// safe-state timer update, an early return if fault-latched, pre-charge
// advance, and limit computation. It never advances c.p; the array
// controller drives plant physics separately once per tick.
func (c *Controller) Step(dt, busVoltageV float64) {
	tel := c.p.Telemetry()

	c.hwSafetyCheck(dt, tel)
	c.swAlarmCheck(dt, tel)
	c.safeStateTimerUpdate(dt, tel)

	if c.faultLatched {
		c.chargeLimitA = 0
		c.dischargeLimitA = 0
		return
	}

	c.prechargeAdvance(dt, busVoltageV)
	c.computeLimits(tel)
}

func (c *Controller) safeStateTimerUpdate(dt float64, tel plant.Telemetry) {
	if c.isSafeState(tel) {
		c.timeInSafeState += dt
	} else {
		c.timeInSafeState = 0
	}
}

func (c *Controller) prechargeAdvance(dt, busVoltageV float64) {
	if c.mode != Connecting {
		return
	}
	c.prechargeTimer += dt
	if c.prechargeTimer >= c.thresholds.PrechargeDurationS {
		c.CompleteConnection(busVoltageV)
	}
}

func (c *Controller) computeLimits(tel plant.Telemetry) {
	rate := derate.Temperature(tel.TemperatureC).
		Min(derate.SOC(tel.SOC)).
		Min(derate.CellVoltage(tel.CellVoltageV))
	c.chargeLimitA = nonNegative(rate.Charge * tel.CapacityAh)
	c.dischargeLimitA = nonNegative(rate.Discharge * tel.CapacityAh)
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// accumulate implements the plain (non-hysteretic) debounce rule: the
// timer grows while cond holds and resets to zero the instant it
// doesn't. Used for fault timers and the HW safety watchdog, where no
// clear-side hysteresis band is specified.
func accumulate(timer float64, cond bool, dt float64) float64 {
	if cond {
		return timer + dt
	}
	return 0
}

// accumulateHysteretic implements the asymmetric warning debounce: the
// timer grows while assertCond holds, resets to zero only once clearCond
// is reached, and otherwise holds its value inside the dead band between
// the two.
func accumulateHysteretic(timer float64, assertCond, clearCond bool, dt float64) float64 {
	if assertCond {
		return timer + dt
	}
	if clearCond {
		return 0
	}
	return timer
}
