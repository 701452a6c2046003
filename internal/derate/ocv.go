package derate

// cellOCV is the 24-point NMC open-circuit-voltage curve (SoC in
// [0,1] -> volts per cell), referenced by the simulation documentation
// as "24-point NMC 622 OCV curve from literature". Monotonic and
// smooth by construction; used only through OCV below.
var cellOCV = NewCurve(
	Point{0.00, 3.000}, Point{0.02, 3.200}, Point{0.04, 3.280},
	Point{0.06, 3.320}, Point{0.08, 3.350}, Point{0.10, 3.370},
	Point{0.15, 3.400}, Point{0.20, 3.420}, Point{0.25, 3.440},
	Point{0.30, 3.460}, Point{0.35, 3.480}, Point{0.40, 3.500},
	Point{0.45, 3.520}, Point{0.50, 3.550}, Point{0.55, 3.580},
	Point{0.60, 3.620}, Point{0.65, 3.660}, Point{0.70, 3.700},
	Point{0.75, 3.750}, Point{0.80, 3.810}, Point{0.85, 3.890},
	Point{0.90, 3.990}, Point{0.95, 4.090}, Point{1.00, 4.200},
)

// OCV returns the per-cell open-circuit voltage for a state of charge
// in [0, 1].
func OCV(soc float64) float64 {
	return cellOCV.At(soc)
}
