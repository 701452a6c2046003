package array

import (
	"math"
	"testing"

	"sealoop/essctl/internal/pack"
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

func buildThreePacks(t *testing.T) []*pack.Controller {
	t.Helper()
	socs := []float64{0.45, 0.55, 0.65}
	packs := make([]*pack.Controller, 3)
	for i, soc := range socs {
		packs[i] = pack.New(
			string(rune('1'+i)),
			testPlantConfig(),
			pack.DefaultThresholds(),
			soc,
			40,
		)
	}
	return packs
}

func connectAll(a *Controller, forCharge bool, t *testing.T) {
	t.Helper()
	a.UpdateBusVoltage()
	a.ConnectFirst(forCharge)
	for i := 0; i < 6; i++ {
		a.Step(1, 0, nil)
	}
	a.ConnectRemaining(forCharge)
	for i := 0; i < 6; i++ {
		a.Step(1, 0, nil)
	}
	for _, p := range a.Packs() {
		if p.Mode() != pack.Connected {
			t.Fatalf("pack %s expected Connected, got %s", p.ID, p.Mode())
		}
	}
}

func TestSequentialThenParallelConnect(t *testing.T) {
	a := New(buildThreePacks(t))
	connectAll(a, true, t)
}

func TestAggregateLimitsZeroWhenNoneConnected(t *testing.T) {
	a := New(buildThreePacks(t))
	a.ComputeArrayLimits()
	if a.ArrayChargeLimit() != 0 || a.ArrayDischargeLimit() != 0 {
		t.Fatalf("expected zero aggregate limits with nothing connected")
	}
}

func TestAggregateLimitEqualsMinTimesCount(t *testing.T) {
	a := New(buildThreePacks(t))
	connectAll(a, true, t)

	minCharge := math.Inf(1)
	for _, p := range a.Packs() {
		if p.ChargeLimitA() < minCharge {
			minCharge = p.ChargeLimitA()
		}
	}
	want := minCharge * float64(len(a.Packs()))
	if math.Abs(a.ArrayChargeLimit()-want) > 1e-6 {
		t.Fatalf("array charge limit = %v, want %v", a.ArrayChargeLimit(), want)
	}
}

func TestKirchhoffDistributionUnderCharge(t *testing.T) {
	a := New(buildThreePacks(t))
	connectAll(a, true, t)

	ids := a.Step(1, 200, nil)
	if len(ids) != 3 {
		t.Fatalf("expected all 3 packs connected, got %d", len(ids))
	}

	var sum float64
	currents := map[string]float64{}
	for _, p := range a.Packs() {
		cur := p.Plant().Telemetry().CurrentA
		currents[p.ID] = cur
		sum += cur
		if math.Abs(cur) > p.ChargeLimitA()*1.011 && cur > 0 {
			t.Fatalf("pack %s current %v exceeds charge limit %v", p.ID, cur, p.ChargeLimitA())
		}
	}
	if math.Abs(sum-200) > 2 {
		t.Fatalf("expected solved currents to sum to ~200A, got %v", sum)
	}

	// Pack 1 (lowest SoC => lowest OCV) should take the largest share.
	if currents["1"] <= currents["2"] || currents["1"] <= currents["3"] {
		t.Fatalf("expected pack 1 (lowest OCV) to take the largest charge share: %v", currents)
	}
}

func TestEqualizationAtZeroLoad(t *testing.T) {
	a := New(buildThreePacks(t))
	connectAll(a, true, t)
	a.Step(1, 200, nil)

	ids := a.Step(1, 0, nil)
	if len(ids) != 3 {
		t.Fatalf("expected 3 connected packs, got %d", len(ids))
	}

	var sum float64
	currents := map[string]float64{}
	for _, p := range a.Packs() {
		cur := p.Plant().Telemetry().CurrentA
		currents[p.ID] = cur
		sum += cur
	}
	if math.Abs(sum) > 0.5 {
		t.Fatalf("expected equalization currents to sum near zero, got %v", sum)
	}
	if currents["1"] <= 0 {
		t.Fatalf("expected lowest-OCV pack 1 to charge under equalization, got %v", currents["1"])
	}
	if currents["3"] >= 0 {
		t.Fatalf("expected highest-OCV pack 3 to discharge under equalization, got %v", currents["3"])
	}
}

func TestBusVoltageFallbackWhenNoneConnected(t *testing.T) {
	packs := buildThreePacks(t)
	a := New(packs)
	a.UpdateBusVoltage()

	var sum float64
	for _, p := range packs {
		sum += p.Plant().Telemetry().PackVoltageV
	}
	want := sum / float64(len(packs))
	if math.Abs(a.BusVoltage()-want) > 1e-6 {
		t.Fatalf("bus voltage fallback = %v, want %v", a.BusVoltage(), want)
	}
}
