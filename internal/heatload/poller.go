// Package heatload polls an external Modbus TCP source for the heat
// each pack is picking up from its surroundings (engine room ambient,
// adjacent equipment, solar load on deck) and hands the supervisor a
// per-pack watts map to feed into the plant thermal model. When the
// source is unreachable it falls back to a static configured wattage
// per pack rather than stalling the tick loop, and reconnects in the
// background the way the teacher's BMS clients do.
package heatload

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"sealoop/essctl/internal/config"
	"sealoop/essctl/internal/pack"
	"sealoop/essctl/pkg/modbus"
	"sealoop/essctl/pkg/utils"
)

// Poller periodically reads per-pack external heat from a Modbus TCP
// source and caches the latest reading for the supervisor to consume.
type Poller struct {
	config   config.HeatloadConfig
	client   *modbus.Client
	packIDs  []string
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	log      *zap.Logger

	mutex   sync.RWMutex
	current map[string]float64
}

// NewPoller creates a heatload poller for the given pack IDs.
func NewPoller(cfg config.HeatloadConfig, packIDs []string, logger *zap.Logger) *Poller {
	ctx, cancel := context.WithCancel(context.Background())

	pollerLogger := logger.With(zap.String("component", "heatload_poller"))
	pollerLogger.Info("creating heatload poller",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Int("pack_count", len(packIDs)))

	fallback := make(map[string]float64, len(packIDs))
	for _, id := range packIDs {
		fallback[id] = cfg.FallbackWattsPerPack
	}

	return &Poller{
		config:  cfg,
		client:  modbus.NewClient(cfg.Host, cfg.Port, cfg.SlaveID, cfg.Timeout),
		packIDs: append([]string(nil), packIDs...),
		ctx:     ctx,
		cancel:  cancel,
		log:     pollerLogger,
		current: fallback,
	}
}

// NewPollerForArray creates a heatload poller covering every pack in
// an array controller, keyed the same way array.Controller.Step
// expects externalHeatWPerPack to be keyed.
func NewPollerForArray(cfg config.HeatloadConfig, packs []*pack.Controller, logger *zap.Logger) *Poller {
	ids := make([]string, 0, len(packs))
	for _, p := range packs {
		ids = append(ids, p.ID)
	}
	return NewPoller(cfg, ids, logger)
}

// Start begins the polling loop.
func (p *Poller) Start() error {
	p.wg.Go(p.pollLoop)
	p.log.Info("heatload poller started", zap.Duration("poll_interval", p.config.PollInterval))
	return nil
}

// Stop halts the polling loop and disconnects the Modbus client.
func (p *Poller) Stop() {
	p.cancel()
	p.wg.Wait()
	if err := p.client.Disconnect(); err != nil {
		p.log.Warn("error disconnecting heatload client", zap.Error(err))
	}
	p.log.Info("heatload poller stopped")
}

// ExternalHeatWPerPack returns the latest watts-per-pack reading. A pack
// reports the configured static wattage until its register is first
// read successfully, and again after any failed read or lost connection.
func (p *Poller) ExternalHeatWPerPack() map[string]float64 {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	out := make(map[string]float64, len(p.current))
	for id, w := range p.current {
		out[id] = w
	}
	return out
}

func (p *Poller) pollLoop() {
	if err := p.client.Connect(p.ctx); err != nil {
		p.log.Warn("initial heatload Modbus connection failed", zap.Error(err))
	}

	interval := p.config.PollInterval
	nextTick := time.Now().Truncate(interval).Add(interval)
	timer := time.NewTimer(time.Until(nextTick))
	defer timer.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-timer.C:
			if !p.client.IsConnected() {
				p.handleConnectionError()
			} else {
				startTime := time.Now()
				if err := p.readHeatRegisters(); err != nil {
					p.log.Error("error reading heatload registers", zap.Error(err))
					p.applyFallback()
				}
				if duration := time.Since(startTime); duration > interval {
					p.log.Warn("heatload read exceeded poll interval",
						zap.Duration("read_duration", duration),
						zap.Duration("interval", interval))
				}
			}

			nextTick = time.Now().Truncate(interval).Add(interval)
			timer.Reset(time.Until(nextTick))
		}
	}
}

// handleConnectionError attempts to reconnect to the heatload source,
// backing off by ReconnectDelay between attempts. It first resets every
// pack to the static fallback wattage, which keeps serving the
// supervisor while this runs.
func (p *Poller) handleConnectionError() {
	p.log.Warn("heatload client connection lost, initiating reconnection procedure")
	p.client.Disconnect()
	p.applyFallback()

	reconnectAttempts := 0
	timer := time.NewTimer(p.config.ReconnectDelay)
	defer timer.Stop()

	for !p.client.IsConnected() {
		select {
		case <-p.ctx.Done():
			return
		case <-timer.C:
			reconnectAttempts++
			if err := p.client.Connect(p.ctx); err != nil {
				p.log.Error("failed to reconnect to heatload client",
					zap.Error(err),
					zap.Int("attempt", reconnectAttempts))
				timer.Reset(p.config.ReconnectDelay)
			} else {
				p.log.Info("successfully reconnected to heatload client",
					zap.Int("total_attempts", reconnectAttempts),
					zap.Duration("total_downtime", time.Duration(reconnectAttempts)*p.config.ReconnectDelay))
				return
			}
		}
	}
}

// readHeatRegisters reads one input register per pack, starting at
// RegisterBase, and decodes it exactly as bms reads base data: raw
// uint16 register scaled by ScaleFactor to watts.
func (p *Poller) readHeatRegisters() error {
	count := len(p.packIDs)
	if count == 0 {
		return nil
	}

	data, err := p.client.ReadInputRegisters(p.ctx, p.config.RegisterBase, uint16(count))
	if err != nil {
		return err
	}

	readings := make(map[string]float64, count)
	for i, id := range p.packIDs {
		offset := i * 2
		if offset+2 > len(data) {
			break
		}
		raw := utils.FromBytes[uint16](data[offset : offset+2])
		readings[id] = utils.Scale(raw, p.config.ScaleFactor)
	}

	p.mutex.Lock()
	for id, w := range readings {
		p.current[id] = w
	}
	p.mutex.Unlock()
	return nil
}

func (p *Poller) applyFallback() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	for _, id := range p.packIDs {
		p.current[id] = p.config.FallbackWattsPerPack
	}
}
