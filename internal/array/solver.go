package array

import (
	"math"

	"sealoop/essctl/internal/pack"
)

// degenerateConductance is the G floor below which the solver treats
// the active set as having no meaningful conductance left and stops
// iterating without changing bus_voltage.
const degenerateConductance = 1e-12

// residualClampFactor is the defensive post-solve re-clamp tolerance: a
// solved current may exceed its own limit by at most 1%.
const residualClampFactor = 1.01

type packState struct {
	id              string
	ocv             float64
	r               float64
	chargeLimit     float64
	dischargeLimit  float64
	clamped         bool
	current         float64
}

// solve runs the iterative clamp-and-resolve Kirchhoff current
// distribution over the connected set for a requested total current
// (or the natural equalization currents when requestedCurrentA is
// zero), and returns the per-pack solved currents. It also updates
// a.busVoltageV as a side effect when a solution is found.
func (a *Controller) solve(requestedCurrentA float64, connected []*pack.Controller) map[string]float64 {
	if len(connected) == 0 {
		return map[string]float64{}
	}

	equalization := requestedCurrentA == 0
	var target float64
	switch {
	case equalization:
		target = 0
	case requestedCurrentA > 0:
		target = math.Min(requestedCurrentA, a.arrayChargeLimitA)
	default:
		target = math.Max(requestedCurrentA, -a.arrayDischargeLimitA)
	}

	states := make([]*packState, len(connected))
	for i, p := range connected {
		tel := p.Plant().Telemetry()
		states[i] = &packState{
			id:             p.ID,
			ocv:            tel.OCVPackV,
			r:              tel.RPackOhm,
			chargeLimit:    p.ChargeLimitA(),
			dischargeLimit: p.DischargeLimitA(),
		}
	}

	iterCap := len(states)
	var v float64
	haveSolution := false

	for iter := 0; iter < iterCap; iter++ {
		g, s, clampedSum, activeCount := activeSums(states)
		if activeCount == 0 || g < degenerateConductance {
			break
		}
		if equalization {
			v = (s - clampedSum) / g
		} else {
			residual := target - clampedSum
			v = (s + residual) / g
		}
		haveSolution = true

		clampedAny := classify(states, v)
		if !clampedAny {
			break
		}
		if iter == iterCap-1 {
			// Iteration cap exhausted: accept one final solve with
			// whatever remains active, tolerating a small KCL residual.
			g, s, clampedSum, activeCount = activeSums(states)
			if activeCount > 0 && g >= degenerateConductance {
				if equalization {
					v = (s - clampedSum) / g
				} else {
					residual := target - clampedSum
					v = (s + residual) / g
				}
			}
		}
	}

	currents := make(map[string]float64, len(states))
	for _, st := range states {
		if !st.clamped && haveSolution {
			st.current = (v - st.ocv) / st.r
		}
		currents[st.id] = st.current
	}

	// Defensive post-solve re-clamp: no pack may exceed its own limit by
	// more than 1%.
	for _, st := range states {
		cur := currents[st.id]
		if cur > 0 && cur > st.chargeLimit*residualClampFactor {
			currents[st.id] = st.chargeLimit
		} else if cur < 0 && -cur > st.dischargeLimit*residualClampFactor {
			currents[st.id] = -st.dischargeLimit
		}
	}

	allClamped := true
	for _, st := range states {
		if !st.clamped {
			allClamped = false
			break
		}
	}
	if allClamped {
		var sum float64
		for _, st := range states {
			sum += st.ocv + currents[st.id]*st.r
		}
		a.busVoltageV = sum / float64(len(states))
	} else if haveSolution {
		a.busVoltageV = v
	}

	return currents
}

// activeSums computes G = sum(1/R), S = sum(OCV/R) over active
// (unclamped) packs, the sum of already-clamped currents, and the count
// of active packs.
func activeSums(states []*packState) (g, s, clampedSum float64, activeCount int) {
	for _, st := range states {
		if st.clamped {
			clampedSum += st.current
			continue
		}
		if st.r <= 0 {
			continue
		}
		g += 1 / st.r
		s += st.ocv / st.r
		activeCount++
	}
	return
}

// classify computes each active pack's candidate current at bus voltage
// v and clamps any that exceed their own limit, returning whether any
// new pack was clamped this pass.
func classify(states []*packState, v float64) bool {
	clampedAny := false
	for _, st := range states {
		if st.clamped {
			continue
		}
		if st.r <= 0 {
			continue
		}
		i := (v - st.ocv) / st.r
		switch {
		case i > 0 && i > st.chargeLimit:
			st.current = st.chargeLimit
			st.clamped = true
			clampedAny = true
		case i < 0 && -i > st.dischargeLimit:
			st.current = -st.dischargeLimit
			st.clamped = true
			clampedAny = true
		default:
			st.current = i
		}
	}
	return clampedAny
}
