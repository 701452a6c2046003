// Package supervisor drives the array controller at a fixed period,
// the real-time scheduler the control core assumes sits above it. It
// is the direct generalization of the teacher's control.Logic
// (SetMode, ManualPowerCommand, SOC-ramped charge/discharge power)
// from a single BMS/PCS pair to the whole pack array, and of
// fcr.FCRNController's controlLoop/executeControlCycle ticker shape.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"sealoop/essctl/internal/alarm"
	"sealoop/essctl/internal/array"
	"sealoop/essctl/internal/config"
	"sealoop/essctl/internal/heatload"
	"sealoop/essctl/internal/pack"
	"sealoop/essctl/internal/telemetry"
)

// Mode selects whether RequestCurrent calls are accepted (Manual) or
// rejected (Auto). In either mode the tick loop applies the last
// accepted request, zero if none. Mirrors control.Logic's
// ModeAutomatic/ModeManual pair.
type Mode string

const (
	ModeAuto   Mode = "AUTO"
	ModeManual Mode = "MANUAL"
)

// socRampBand is the SOC distance from MinSOC/MaxSOC over which
// charge/discharge current is linearly ramped to zero, mirroring the
// teacher's 5-percentage-point ramp band expressed as a 0..1 fraction.
const socRampBand = 0.05

// Supervisor wraps an array.Controller in a fixed-period tick loop,
// applying mode gating and SOC-based request clamping before each
// Step, and reporting alarm transitions and telemetry once per tick.
type Supervisor struct {
	cfg             config.SupervisorConfig
	arrayCtrl       *array.Controller
	heatloadPoller  *heatload.Poller
	alarmMgr        *alarm.Manager
	telemetryWriter *telemetry.Writer
	log             *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mutex            sync.RWMutex
	mode             Mode
	requestedCurrent float64
	lastTick         time.Time
}

// New creates a supervisor. The array controller, heatload poller,
// alarm manager, and telemetry writer are all long-lived collaborators
// assembled once at startup by Fx.
func New(
	cfg config.SupervisorConfig,
	arrayCtrl *array.Controller,
	heatloadPoller *heatload.Poller,
	alarmMgr *alarm.Manager,
	telemetryWriter *telemetry.Writer,
	logger *zap.Logger,
) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())

	mode := Mode(cfg.DefaultMode)
	if mode != ModeAuto && mode != ModeManual {
		mode = ModeManual
	}

	supervisorLogger := logger.With(zap.String("component", "supervisor"))
	supervisorLogger.Info("creating supervisor",
		zap.Duration("tick_interval", cfg.TickInterval),
		zap.String("default_mode", string(mode)))

	return &Supervisor{
		cfg:             cfg,
		arrayCtrl:       arrayCtrl,
		heatloadPoller:  heatloadPoller,
		alarmMgr:        alarmMgr,
		telemetryWriter: telemetryWriter,
		mode:            mode,
		log:             supervisorLogger,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Start begins the tick loop.
func (s *Supervisor) Start() error {
	s.wg.Go(s.tickLoop)
	s.log.Info("supervisor started")
	return nil
}

// Stop halts the tick loop.
func (s *Supervisor) Stop() {
	s.cancel()
	s.wg.Wait()
	s.log.Info("supervisor stopped")
}

// Mode returns the current operating mode.
func (s *Supervisor) Mode() Mode {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.mode
}

// SetMode switches between AUTO and MANUAL.
func (s *Supervisor) SetMode(mode Mode) error {
	if mode != ModeAuto && mode != ModeManual {
		return fmt.Errorf("unknown mode %q", mode)
	}
	s.mutex.Lock()
	old := s.mode
	s.mode = mode
	s.mutex.Unlock()
	s.log.Info("supervisor mode changed", zap.String("old_mode", string(old)), zap.String("new_mode", string(mode)))
	return nil
}

// RequestCurrent sets the requested bus current (signed, positive
// into the array = charging). Only honored in MANUAL mode, mirroring
// the teacher's ManualPowerCommand gate.
func (s *Supervisor) RequestCurrent(amps float64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.mode != ModeManual {
		return fmt.Errorf("request-current only allowed in MANUAL mode, current mode is %s", s.mode)
	}
	s.requestedCurrent = amps
	return nil
}

// Connect triggers two-phase connection sequencing toward the current
// requested-current intent (charge if positive, discharge if
// negative).
func (s *Supervisor) Connect() {
	s.mutex.RLock()
	forCharge := s.requestedCurrent >= 0
	s.mutex.RUnlock()
	s.manageConnections(forCharge)
}

// Disconnect opens every pack's contactors immediately.
func (s *Supervisor) Disconnect() {
	s.arrayCtrl.DisconnectAll()
	s.log.Info("array disconnected on operator command")
}

// ResetFaults attempts a manual fault reset on every pack, returning
// the per-pack outcome.
func (s *Supervisor) ResetFaults() map[string]bool {
	return s.arrayCtrl.ResetAllFaults()
}

// ArrayController exposes the wrapped controller for read-only status
// reporting (API handlers, health checks).
func (s *Supervisor) ArrayController() *array.Controller {
	return s.arrayCtrl
}

// LastTick returns when the tick loop last completed a cycle, for
// staleness health checks.
func (s *Supervisor) LastTick() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastTick
}

func (s *Supervisor) tickLoop() {
	interval := s.cfg.TickInterval
	nextTick := time.Now().Truncate(interval).Add(interval)
	timer := time.NewTimer(time.Until(nextTick))
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
			s.executeTick(interval)
			nextTick = time.Now().Truncate(interval).Add(interval)
			timer.Reset(time.Until(nextTick))
		}
	}
}

func (s *Supervisor) executeTick(dt time.Duration) {
	now := time.Now()

	s.mutex.RLock()
	requested := s.requestedCurrent
	s.mutex.RUnlock()

	requested = s.clampRequest(requested)
	heatWPerPack := s.heatloadPoller.ExternalHeatWPerPack()

	connected := s.arrayCtrl.Step(dt.Seconds(), requested, heatWPerPack)

	for _, p := range s.arrayCtrl.Packs() {
		s.alarmMgr.Observe(p.ID, p.ActiveAlarms(), now)
	}

	s.telemetryWriter.Update(telemetry.BuildSnapshot(s.arrayCtrl, requested, now))

	s.mutex.Lock()
	s.lastTick = now
	s.mutex.Unlock()

	s.log.Debug("tick complete",
		zap.Float64("requested_current_a", requested),
		zap.Int("connected_count", len(connected)))
}

// clampRequest applies SOC-based ramping near MinSOC/MaxSOC and then
// clamps to the array's last-computed charge/discharge limits,
// generalizing the teacher's calculateChargePower/
// calculateDischargePower ramps from one pack to the connected set.
func (s *Supervisor) clampRequest(requested float64) float64 {
	if requested == 0 {
		return 0
	}

	packs := s.arrayCtrl.Packs()

	if requested > 0 {
		worstSOC, any := worstConnectedSOC(packs, true)
		if any {
			rampStart := s.cfg.MaxSOC - socRampBand
			if worstSOC > rampStart {
				factor := (s.cfg.MaxSOC - worstSOC) / socRampBand
				if factor < 0 {
					factor = 0
				}
				requested *= factor
			}
		}
		if requested > s.arrayCtrl.ArrayChargeLimit() {
			requested = s.arrayCtrl.ArrayChargeLimit()
		}
		return requested
	}

	worstSOC, any := worstConnectedSOC(packs, false)
	if any {
		rampStart := s.cfg.MinSOC + socRampBand
		if worstSOC < rampStart {
			factor := (worstSOC - s.cfg.MinSOC) / socRampBand
			if factor < 0 {
				factor = 0
			}
			requested *= factor
		}
	}
	if -requested > s.arrayCtrl.ArrayDischargeLimit() {
		requested = -s.arrayCtrl.ArrayDischargeLimit()
	}
	return requested
}

// worstConnectedSOC returns the highest SOC among connected packs for
// a charge intent (closest to overcharge) or the lowest for a
// discharge intent (closest to overdischarge).
func worstConnectedSOC(packs []*pack.Controller, forCharge bool) (float64, bool) {
	worst := 0.0
	any := false
	for _, p := range packs {
		if !p.ContactorsClosed() {
			continue
		}
		soc := p.Plant().Telemetry().SOC
		if !any {
			worst = soc
			any = true
			continue
		}
		if forCharge && soc > worst {
			worst = soc
		}
		if !forCharge && soc < worst {
			worst = soc
		}
	}
	return worst, any
}

func (s *Supervisor) manageConnections(forCharge bool) {
	connectedOrConnecting := false
	for _, p := range s.arrayCtrl.Packs() {
		if p.Mode() == pack.Connected || p.Mode() == pack.Connecting {
			connectedOrConnecting = true
			break
		}
	}
	if !connectedOrConnecting {
		s.arrayCtrl.ConnectFirst(forCharge)
	} else {
		s.arrayCtrl.ConnectRemaining(forCharge)
	}
}
