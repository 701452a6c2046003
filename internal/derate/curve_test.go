package derate

import (
	"math"
	"testing"
)

func TestCurveClampsOutsideDomain(t *testing.T) {
	c := NewCurve(Point{0, 1}, Point{10, 5})

	if got := c.At(-100); got != 1 {
		t.Errorf("At(-100) = %v, want 1", got)
	}
	if got := c.At(1000); got != 5 {
		t.Errorf("At(1000) = %v, want 5", got)
	}
}

func TestCurveInterpolatesLinearly(t *testing.T) {
	c := NewCurve(Point{0, 0}, Point{10, 10})

	if got := c.At(5); got != 5 {
		t.Errorf("At(5) = %v, want 5", got)
	}
	if got := c.At(2.5); got != 2.5 {
		t.Errorf("At(2.5) = %v, want 2.5", got)
	}
}

func TestTemperatureContinuityAt70(t *testing.T) {
	// The 65 -> 70 discharge ramp must reach exactly zero at 70, and
	// be strictly decreasing in between, not a step.
	r65 := Temperature(65)
	r68 := Temperature(68)
	r70 := Temperature(70)

	if r70.Discharge != 0 {
		t.Errorf("discharge at 70C = %v, want 0", r70.Discharge)
	}
	if !(r65.Discharge > r68.Discharge && r68.Discharge > r70.Discharge) {
		t.Errorf("expected strictly decreasing ramp 65->70C, got %v, %v, %v",
			r65.Discharge, r68.Discharge, r70.Discharge)
	}
}

func TestCurvesNeverNegative(t *testing.T) {
	for tempC := -40.0; tempC <= 80; tempC += 2.5 {
		r := Temperature(tempC)
		if r.Charge < 0 || r.Discharge < 0 {
			t.Fatalf("Temperature(%v) produced negative rate: %+v", tempC, r)
		}
	}
	for soc := 0.0; soc <= 1.0; soc += 0.05 {
		r := SOC(soc)
		if r.Charge < 0 || r.Discharge < 0 {
			t.Fatalf("SOC(%v) produced negative rate: %+v", soc, r)
		}
	}
	for v := 2.5; v <= 4.5; v += 0.05 {
		r := CellVoltage(v)
		if r.Charge < 0 || r.Discharge < 0 {
			t.Fatalf("CellVoltage(%v) produced negative rate: %+v", v, r)
		}
	}
}

func TestResistanceTableClampsAndInterpolates(t *testing.T) {
	edge := PackResistance(-100, -1, 1)
	corner := moduleResistanceTable.At(-20, 0.0)
	if edge != corner {
		t.Errorf("PackResistance should clamp to grid corner, got %v want %v", edge, corner)
	}

	mid := PackResistance(25, 0.5, 22)
	if mid <= 0 {
		t.Errorf("PackResistance(25, 0.5, 22) = %v, want > 0", mid)
	}

	// Halfway between the 25 °C and 40 °C rows at SoC 0.5.
	between := PackResistance(32.5, 0.5, 22)
	want := (moduleResistanceTable.At(25, 0.5) + moduleResistanceTable.At(40, 0.5)) / 2 * 22
	if math.Abs(between-want) > 1e-12 {
		t.Errorf("PackResistance(32.5, 0.5, 22) = %v, want %v", between, want)
	}
}

func TestOCVMonotonic(t *testing.T) {
	prev := OCV(0)
	for soc := 0.01; soc <= 1.0; soc += 0.01 {
		v := OCV(soc)
		if v < prev {
			t.Fatalf("OCV not monotonic at soc=%v: %v < %v", soc, v, prev)
		}
		prev = v
	}
}
