// Package array implements the array controller: an ordered collection
// of pack controllers sharing a single bus-voltage estimate. It owns
// two-phase connection sequencing, aggregate charge/discharge limit
// computation, the bus-voltage fallback estimator, and (in solver.go)
// the iterative Kirchhoff current-distribution solve. The array
// controller exclusively owns its pack controllers; it reads each pack's
// plant telemetry and drives Plant().Step once per tick, which is the
// sole place pack physics advances.
package array

import (
	"sealoop/essctl/internal/pack"
)

// Controller owns an ordered set of pack controllers and the bus state
// derived from them.
type Controller struct {
	packs []*pack.Controller

	busVoltageV       float64
	arrayChargeLimitA float64
	arrayDischargeLimitA float64
}

// New builds an array controller over the given packs, in the order
// they should be considered for connection-sequencing tie-breaks.
func New(packs []*pack.Controller) *Controller {
	return &Controller{packs: packs}
}

func (a *Controller) Packs() []*pack.Controller { return a.packs }
func (a *Controller) BusVoltage() float64       { return a.busVoltageV }
func (a *Controller) ArrayChargeLimit() float64    { return a.arrayChargeLimitA }
func (a *Controller) ArrayDischargeLimit() float64 { return a.arrayDischargeLimitA }

func (a *Controller) connectedPacks() []*pack.Controller {
	var out []*pack.Controller
	for _, p := range a.packs {
		if p.Mode() == pack.Connected {
			out = append(out, p)
		}
	}
	return out
}

func (a *Controller) readyPacks() []*pack.Controller {
	var out []*pack.Controller
	for _, p := range a.packs {
		if p.Mode() == pack.Ready {
			out = append(out, p)
		}
	}
	return out
}

func (a *Controller) anyConnectedOrConnecting() bool {
	for _, p := range a.packs {
		if p.Mode() == pack.Connected || p.Mode() == pack.Connecting {
			return true
		}
	}
	return false
}

// ConnectFirst picks a single pack from the Ready set to begin
// connecting: lowest SoC for a charge intent, highest SoC for a
// discharge intent, tie-broken by insertion order. It is a no-op if any
// pack is already Connected or Connecting.
func (a *Controller) ConnectFirst(forCharge bool) {
	if a.anyConnectedOrConnecting() {
		return
	}
	ready := a.readyPacks()
	if len(ready) == 0 {
		return
	}
	best := ready[0]
	bestSOC := best.Plant().Telemetry().SOC
	for _, p := range ready[1:] {
		soc := p.Plant().Telemetry().SOC
		if forCharge && soc < bestSOC {
			best, bestSOC = p, soc
		}
		if !forCharge && soc > bestSOC {
			best, bestSOC = p, soc
		}
	}
	best.RequestConnect(a.busVoltageV, forCharge)
}

// ConnectRemaining attempts RequestConnect on every Ready pack
// simultaneously, once at least one pack is Connected. Each pack's
// independent voltage-match check gates it.
func (a *Controller) ConnectRemaining(forCharge bool) {
	hasConnected := false
	for _, p := range a.packs {
		if p.Mode() == pack.Connected {
			hasConnected = true
			break
		}
	}
	if !hasConnected {
		return
	}
	for _, p := range a.readyPacks() {
		p.RequestConnect(a.busVoltageV, forCharge)
	}
}

// DisconnectAll opens contactors on every pack currently Connected or
// Connecting.
func (a *Controller) DisconnectAll() {
	for _, p := range a.packs {
		p.RequestDisconnect()
	}
}

// ResetAllFaults attempts a manual fault reset on every pack, returning
// the per-pack outcome.
func (a *Controller) ResetAllFaults() map[string]bool {
	out := make(map[string]bool, len(a.packs))
	for _, p := range a.packs {
		out[p.ID] = p.ManualFaultReset()
	}
	return out
}

// UpdateBusVoltage applies the fallback estimator: when no pack is
// connected, bus voltage becomes the mean pack voltage across Ready
// packs, or is left unchanged if none are Ready.
func (a *Controller) UpdateBusVoltage() {
	ready := a.readyPacks()
	if len(ready) == 0 {
		return
	}
	var sum float64
	for _, p := range ready {
		sum += p.Plant().Telemetry().PackVoltageV
	}
	a.busVoltageV = sum / float64(len(ready))
}

// ComputeArrayLimits sets the aggregate limits to
// min(per-pack limit) * count(connected), or zero when none are
// connected.
func (a *Controller) ComputeArrayLimits() {
	connected := a.connectedPacks()
	if len(connected) == 0 {
		a.arrayChargeLimitA = 0
		a.arrayDischargeLimitA = 0
		return
	}
	minCharge := connected[0].ChargeLimitA()
	minDischarge := connected[0].DischargeLimitA()
	for _, p := range connected[1:] {
		if p.ChargeLimitA() < minCharge {
			minCharge = p.ChargeLimitA()
		}
		if p.DischargeLimitA() < minDischarge {
			minDischarge = p.DischargeLimitA()
		}
	}
	n := float64(len(connected))
	a.arrayChargeLimitA = minCharge * n
	a.arrayDischargeLimitA = minDischarge * n
}

// Step executes the strict seven-step tick order: refresh every pack's
// alarms/limits, collect the connected set, solve current distribution,
// advance every plant (connected packs with their solved current,
// others with zero), update the bus-voltage fallback if nothing is
// connected, and recompute aggregate limits.
func (a *Controller) Step(dt, requestedCurrentA float64, externalHeatWPerPack map[string]float64) []string {
	for _, p := range a.packs {
		p.Step(dt, a.busVoltageV)
	}

	connected := a.connectedPacks()
	a.ComputeArrayLimits()

	currents := a.solve(requestedCurrentA, connected)

	for _, p := range a.packs {
		heat := externalHeatWPerPack[p.ID]
		if cur, ok := currents[p.ID]; ok {
			p.Plant().Step(dt, cur, true, heat)
		} else {
			p.Plant().Step(dt, 0, false, heat)
		}
	}

	if len(connected) == 0 {
		a.UpdateBusVoltage()
	}
	a.ComputeArrayLimits()

	ids := make([]string, len(connected))
	for i, p := range connected {
		ids[i] = p.ID
	}
	return ids
}
