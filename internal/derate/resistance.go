package derate

import "sort"

// ResistanceTable is a 2-D lookup of per-module internal resistance
// (Ω) over temperature (°C) and state of charge, interpolated
// bilinearly and clamped to the grid edges. Populated once from the
// compile-time breakpoints below; straight-line clamped lookup plus a
// bilinear blend is all this needs, so no linear-algebra package is
// pulled in.
type ResistanceTable struct {
	temps  []float64   // strictly increasing
	socs   []float64   // strictly increasing
	values [][]float64 // values[tempIdx][socIdx], Ω per module
}

func newResistanceTable(temps, socs []float64, values [][]float64) ResistanceTable {
	if len(values) != len(temps) {
		panic("derate: resistance table row count must match temperature axis")
	}
	for _, row := range values {
		if len(row) != len(socs) {
			panic("derate: resistance table column count must match soc axis")
		}
	}
	return ResistanceTable{temps: temps, socs: socs, values: values}
}

func axisBracket(axis []float64, v float64) (lo, hi int, frac float64) {
	last := len(axis) - 1
	if v <= axis[0] {
		return 0, 0, 0
	}
	if v >= axis[last] {
		return last, last, 0
	}
	i := sort.SearchFloat64s(axis, v)
	if axis[i] == v {
		return i, i, 0
	}
	lo, hi = i-1, i
	frac = (v - axis[lo]) / (axis[hi] - axis[lo])
	return lo, hi, frac
}

// At returns the bilinearly-interpolated resistance in Ω per module at
// the given temperature and state of charge, clamped to the grid.
func (t ResistanceTable) At(tempC, soc float64) float64 {
	tLo, tHi, tFrac := axisBracket(t.temps, tempC)
	sLo, sHi, sFrac := axisBracket(t.socs, soc)

	v00 := t.values[tLo][sLo]
	v01 := t.values[tLo][sHi]
	v10 := t.values[tHi][sLo]
	v11 := t.values[tHi][sHi]

	v0 := v00 + sFrac*(v01-v00)
	v1 := v10 + sFrac*(v11-v10)
	return v0 + tFrac*(v1-v0)
}

// ModulePerModuleResistance is the 3.3 mΩ/module baseline referenced by
// the simulation LIMITATIONS notes. The table below does not read it; its
// 25 °C row spans 3.0–4.1 mΩ, with 3.0 mΩ at SoC 0.5.
const ModulePerModuleResistance = 0.0033

// moduleResistanceTable is an NMC-like internal resistance surface:
// resistance rises steeply below 0 °C and above ~45 °C, and rises
// modestly at SoC extremes relative to the 20-80% plateau.
var moduleResistanceTable = newResistanceTable(
	[]float64{-20, -10, 0, 10, 25, 40, 55},
	[]float64{0.0, 0.1, 0.2, 0.5, 0.8, 0.9, 1.0},
	[][]float64{
		{0.0180, 0.0140, 0.0120, 0.0105, 0.0110, 0.0130, 0.0160},
		{0.0095, 0.0075, 0.0065, 0.0058, 0.0060, 0.0070, 0.0085},
		{0.0058, 0.0046, 0.0040, 0.0036, 0.0037, 0.0042, 0.0050},
		{0.0042, 0.0034, 0.0030, 0.0027, 0.0028, 0.0031, 0.0037},
		{0.0036, 0.0030, 0.0033, 0.0030, 0.0031, 0.0034, 0.0041},
		{0.0040, 0.0033, 0.0036, 0.0033, 0.0034, 0.0038, 0.0046},
		{0.0050, 0.0041, 0.0045, 0.0042, 0.0044, 0.0049, 0.0060},
	},
)

// PackResistance returns the series pack internal resistance in Ω for
// numModules modules in series, bilinearly interpolated from the
// per-module table at (tempC, soc).
func PackResistance(tempC, soc float64, numModules int) float64 {
	return moduleResistanceTable.At(tempC, soc) * float64(numModules)
}
