// Package plant implements the per-pack equivalent-circuit battery
// model that the control core treats as an external collaborator: it
// is specified here only because its semantics (coulomb counting,
// OCV/resistance lookups, thermal update) appear directly in test
// scenarios. The pack controller depends on nothing from this package
// beyond the read-only Telemetry view and Step.
package plant

import (
	"sealoop/essctl/internal/derate"
)

// MinTemperatureC is the floor every temperature update clamps to.
const MinTemperatureC = -40.0

// Config describes the fixed physical parameters of one pack's plant
// model. It is distinct from the control core's Thresholds: the plant
// never sees alarm thresholds, and the controller never sees these.
type Config struct {
	NumModules      int     // modules in series
	CellsPerModule  int     // cells in series per module
	CapacityAh      float64 // nominal pack capacity, ampere-hours
	ThermalMassJPerC float64 // C_thermal, J/°C
	CoolingWPerC    float64 // cooling coefficient, W/°C
	AmbientC        float64 // T_ambient, °C
}

// NumCellsSeries returns modules * cells/module.
func (c Config) NumCellsSeries() int {
	return c.NumModules * c.CellsPerModule
}

// Telemetry is the read-only view of plant state the control core is
// permitted to observe.
type Telemetry struct {
	SOC               float64 // [0, 1]
	TemperatureC      float64 // floored at MinTemperatureC
	CurrentA          float64 // signed; positive = into pack (charging)
	CellVoltageV      float64
	PackVoltageV      float64
	OCVPackV          float64
	RPackOhm          float64
	NumModules        int
	NumCellsSeries    int
	CapacityAh        float64
}

// Plant is one pack's equivalent-circuit battery model.
type Plant struct {
	cfg Config

	soc          float64
	temperatureC float64
	currentA     float64
}

// New creates a plant seeded at the given initial SoC and temperature.
func New(cfg Config, initialSOC, initialTemperatureC float64) *Plant {
	return &Plant{
		cfg:          cfg,
		soc:          clamp01(initialSOC),
		temperatureC: clampTemperature(initialTemperatureC),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampTemperature(v float64) float64 {
	if v < MinTemperatureC {
		return MinTemperatureC
	}
	return v
}

// rPack returns the current series pack resistance in Ω.
func (p *Plant) rPack() float64 {
	return derate.PackResistance(p.temperatureC, p.soc, p.cfg.NumModules)
}

// cellVoltage returns OCV(SoC) + I*R_pack/N_cells.
func (p *Plant) cellVoltage() float64 {
	n := float64(p.cfg.NumCellsSeries())
	if n <= 0 {
		return derate.OCV(p.soc)
	}
	return derate.OCV(p.soc) + p.currentA*p.rPack()/n
}

// Telemetry returns the current read-only telemetry snapshot.
func (p *Plant) Telemetry() Telemetry {
	cellV := p.cellVoltage()
	n := float64(p.cfg.NumCellsSeries())
	return Telemetry{
		SOC:            p.soc,
		TemperatureC:   p.temperatureC,
		CurrentA:       p.currentA,
		CellVoltageV:   cellV,
		PackVoltageV:   cellV * n,
		OCVPackV:       derate.OCV(p.soc) * n,
		RPackOhm:       p.rPack(),
		NumModules:     p.cfg.NumModules,
		NumCellsSeries: p.cfg.NumCellsSeries(),
		CapacityAh:     p.cfg.CapacityAh,
	}
}

// Step advances the plant by dt seconds with appliedCurrentA forced to
// zero whenever contactorsClosed is false. Updates SoC by coulomb
// counting, then temperature by a lumped first-order thermal balance,
// clamped below at MinTemperatureC.
func (p *Plant) Step(dt, appliedCurrentA float64, contactorsClosed bool, externalHeatW float64) {
	current := appliedCurrentA
	if !contactorsClosed {
		current = 0
	}
	p.currentA = current

	if p.cfg.CapacityAh > 0 {
		deltaSOC := current * dt / (p.cfg.CapacityAh * 3600)
		p.soc = clamp01(p.soc + deltaSOC)
	}

	r := p.rPack()
	resistiveHeatW := current * current * r
	coolingW := p.cfg.CoolingWPerC * (p.temperatureC - p.cfg.AmbientC)

	if p.cfg.ThermalMassJPerC > 0 {
		deltaT := (resistiveHeatW + externalHeatW - coolingW) * dt / p.cfg.ThermalMassJPerC
		p.temperatureC = clampTemperature(p.temperatureC + deltaT)
	}
}
