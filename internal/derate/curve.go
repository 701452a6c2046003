// Package derate implements the pure, stateless derating tables used to
// compute per-pack charge/discharge current limits: three 1-D
// piecewise-linear curves (temperature, state of charge, cell voltage)
// and the 2-D resistance lookup and OCV table the plant model needs.
// Nothing in this package holds state or depends on anything else in
// the module.
package derate

import "sort"

// Point is a single breakpoint of a piecewise-linear curve.
type Point struct {
	X float64
	Y float64
}

// Rate is a non-negative (charge, discharge) C-rate pair.
type Rate struct {
	Charge    float64
	Discharge float64
}

// Curve is an immutable 1-D piecewise-linear function, clamped to its
// first/last breakpoint outside its domain.
type Curve struct {
	points []Point
}

// NewCurve builds a Curve from Point breakpoints given in strictly
// increasing x order. Panics on malformed input since
// curves are only ever constructed from the compile-time tables below.
func NewCurve(points ...Point) Curve {
	if len(points) < 2 {
		panic("derate: curve needs at least two breakpoints")
	}
	for i := 1; i < len(points); i++ {
		if points[i].X <= points[i-1].X {
			panic("derate: curve breakpoints must be strictly increasing in x")
		}
	}
	cp := make([]Point, len(points))
	copy(cp, points)
	return Curve{points: cp}
}

// At evaluates the curve at x, clamping to the first/last breakpoint
// outside the domain and linearly interpolating between the two
// breakpoints bracketing x otherwise.
func (c Curve) At(x float64) float64 {
	pts := c.points
	if x <= pts[0].X {
		return pts[0].Y
	}
	last := len(pts) - 1
	if x >= pts[last].X {
		return pts[last].Y
	}

	// First index whose X is >= x.
	i := sort.Search(len(pts), func(i int) bool { return pts[i].X >= x })
	if pts[i].X == x {
		return pts[i].Y
	}
	lo, hi := pts[i-1], pts[i]
	frac := (x - lo.X) / (hi.X - lo.X)
	return lo.Y + frac*(hi.Y-lo.Y)
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// temperatureCharge and temperatureDischarge are the temperature-derating
// curves (°C in, C-rate out).
var temperatureCharge = NewCurve(
	Point{-25, 0}, Point{0, 0}, Point{5, 0}, Point{15, 3}, Point{35, 3},
	Point{45, 2}, Point{55, 0}, Point{65, 0},
)

var temperatureDischarge = NewCurve(
	Point{-25, 0.2}, Point{-15, 0.2}, Point{-10, 1}, Point{-5, 1.5},
	Point{0, 2}, Point{5, 4.5}, Point{10, 5}, Point{25, 5}, Point{30, 4.5},
	Point{35, 4}, Point{45, 3.8}, Point{55, 3.8}, Point{60, 0.2}, Point{65, 0.2},
	Point{70, 0},
)

// Temperature returns the (charge, discharge) C-rate pair for a pack
// temperature in °C. The 70 °C -> 0 discharge breakpoint is essential:
// it gives a continuous ramp down from 65 °C rather than a step.
func Temperature(tempC float64) Rate {
	return Rate{
		Charge:    clampNonNegative(temperatureCharge.At(tempC)),
		Discharge: clampNonNegative(temperatureDischarge.At(tempC)),
	}
}

var socCharge = NewCurve(
	Point{0, 3}, Point{0.85, 3}, Point{0.90, 2}, Point{0.95, 1}, Point{1.0, 0.5},
)

var socDischarge = NewCurve(
	Point{0, 1}, Point{0.02, 1}, Point{0.05, 2.2}, Point{0.08, 2.2},
	Point{0.10, 4}, Point{0.15, 4}, Point{0.20, 5}, Point{0.50, 5}, Point{1.0, 5},
)

// SOC returns the (charge, discharge) C-rate pair for a state of charge
// in [0, 1].
func SOC(soc float64) Rate {
	return Rate{
		Charge:    clampNonNegative(socCharge.At(soc)),
		Discharge: clampNonNegative(socDischarge.At(soc)),
	}
}

var cellVoltageCharge = NewCurve(
	Point{3.000, 3}, Point{4.100, 3}, Point{4.200, 0},
)

var cellVoltageDischarge = NewCurve(
	Point{3.000, 0}, Point{3.200, 0}, Point{3.300, 2}, Point{3.400, 2.5},
	Point{3.450, 3.8}, Point{3.550, 5}, Point{4.200, 5},
)

// CellVoltage returns the (charge, discharge) C-rate pair for a cell
// voltage in volts.
func CellVoltage(cellV float64) Rate {
	return Rate{
		Charge:    clampNonNegative(cellVoltageCharge.At(cellV)),
		Discharge: clampNonNegative(cellVoltageDischarge.At(cellV)),
	}
}

// Min returns the element-wise minimum of two rates, each clamped at 0.
func (r Rate) Min(o Rate) Rate {
	return Rate{
		Charge:    clampNonNegative(min(r.Charge, o.Charge)),
		Discharge: clampNonNegative(min(r.Discharge, o.Discharge)),
	}
}
