// Package telemetry periodically persists the array's latest tick
// snapshot to InfluxDB. It caches whatever the supervisor last handed
// it and flushes on its own ticker, decoupling the tick-loop period
// from the persistence period exactly the way the teacher's
// bms.Service.persistenceLoop decouples polling from write-back.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"sealoop/essctl/internal/array"
	"sealoop/essctl/internal/config"
	"sealoop/essctl/internal/database"
)

// Snapshot is one tick's worth of array/pack telemetry, captured by the
// supervisor and handed to Writer.Update.
type Snapshot struct {
	Timestamp         time.Time
	BusVoltageV       float64
	ArrayChargeLimitA float64
	ArrayDischargeLimitA float64
	ConnectedCount    int
	RequestedCurrentA float64
	Packs             []database.PackTelemetryRecord
}

// BuildSnapshot assembles a Snapshot from the live array controller.
func BuildSnapshot(a *array.Controller, requestedCurrentA float64, now time.Time) Snapshot {
	packs := a.Packs()
	recs := make([]database.PackTelemetryRecord, 0, len(packs))
	connected := 0
	for _, p := range packs {
		tel := p.Plant().Telemetry()
		if p.ContactorsClosed() {
			connected++
		}
		recs = append(recs, database.PackTelemetryRecord{
			Timestamp:        now,
			PackID:           p.ID,
			SOC:              tel.SOC,
			PackVoltageV:     tel.PackVoltageV,
			CellVoltageV:     tel.CellVoltageV,
			TemperatureC:     tel.TemperatureC,
			CurrentA:         tel.CurrentA,
			ChargeLimitA:     p.ChargeLimitA(),
			DischargeLimitA:  p.DischargeLimitA(),
			Mode:             p.Mode().String(),
			ContactorsClosed: p.ContactorsClosed(),
			HasWarning:       p.HasWarning(),
			HasFault:         p.HasFault(),
		})
	}

	return Snapshot{
		Timestamp:            now,
		BusVoltageV:          a.BusVoltage(),
		ArrayChargeLimitA:    a.ArrayChargeLimit(),
		ArrayDischargeLimitA: a.ArrayDischargeLimit(),
		ConnectedCount:       connected,
		RequestedCurrentA:    requestedCurrentA,
		Packs:                recs,
	}
}

// Writer caches the latest Snapshot and flushes it to InfluxDB on a
// fixed period.
type Writer struct {
	cfg      config.TelemetryConfig
	influxDB *database.InfluxDB
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mutex   sync.RWMutex
	latest  Snapshot
	hasData bool
}

// NewWriter creates a telemetry writer.
func NewWriter(cfg config.TelemetryConfig, influxDB *database.InfluxDB, logger *zap.Logger) *Writer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Writer{
		cfg:      cfg,
		influxDB: influxDB,
		log:      logger.With(zap.String("component", "telemetry_writer")),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Update caches the latest snapshot; called once per tick by the
// supervisor.
func (w *Writer) Update(snap Snapshot) {
	w.mutex.Lock()
	w.latest = snap
	w.hasData = true
	w.mutex.Unlock()
}

// Start begins the periodic persistence loop.
func (w *Writer) Start() error {
	w.wg.Go(w.persistenceLoop)
	w.log.Info("telemetry writer started", zap.Duration("persist_interval", w.cfg.PersistInterval))
	return nil
}

// Stop halts the persistence loop and flushes any buffered writes.
func (w *Writer) Stop() {
	w.cancel()
	w.wg.Wait()
	w.influxDB.Flush()
	w.log.Info("telemetry writer stopped")
}

func (w *Writer) persistenceLoop() {
	ticker := time.NewTicker(w.cfg.PersistInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.persistLatest()
		}
	}
}

func (w *Writer) persistLatest() {
	w.mutex.RLock()
	snap := w.latest
	hasData := w.hasData
	w.mutex.RUnlock()

	if !hasData {
		return
	}

	for _, rec := range snap.Packs {
		w.influxDB.WritePackTelemetry(rec)
	}
	w.influxDB.WriteArrayTelemetry(database.ArrayTelemetryRecord{
		Timestamp:            snap.Timestamp,
		BusVoltageV:          snap.BusVoltageV,
		ArrayChargeLimitA:    snap.ArrayChargeLimitA,
		ArrayDischargeLimitA: snap.ArrayDischargeLimitA,
		ConnectedCount:       snap.ConnectedCount,
		RequestedCurrentA:    snap.RequestedCurrentA,
	})
}
