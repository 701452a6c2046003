// Package alarm bridges the pack controllers' in-memory tagged alarm
// flags (pack.Flag) to durable PostgreSQL rows: rising and falling
// edges are pushed onto a buffered channel and drained by a dedicated
// worker goroutine, mirroring the teacher's queue-worker-with-
// panic-recovery shape.
package alarm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"sealoop/essctl/internal/config"
	"sealoop/essctl/internal/database"
	"sealoop/essctl/internal/pack"
)

// event is one alarm rising or falling edge queued for persistence.
type event struct {
	packID    string
	source    pack.AlarmSource
	kind      pack.AlarmKind
	fault     bool
	active    bool
	message   string
	timestamp time.Time
}

func alarmKey(packID string, source pack.AlarmSource, kind pack.AlarmKind, fault bool) string {
	return fmt.Sprintf("%s_%s_%s_%v", packID, source, kind, fault)
}

// Manager tracks each pack's active alarm set and persists rising/
// falling transitions to PostgreSQL asynchronously.
type Manager struct {
	config     config.AlarmConfig
	postgreSQL *database.PostgreSQL
	eventQueue chan event
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	log        *zap.Logger

	mutex  sync.RWMutex
	active map[string]event // keyed by alarmKey
}

// NewManager creates an alarm manager.
func NewManager(cfg config.AlarmConfig, postgreSQL *database.PostgreSQL, logger *zap.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	managerLogger := logger.With(zap.String("component", "alarm_manager"))
	managerLogger.Info("creating alarm manager", zap.Int("queue_buffer_size", cfg.QueueBufferSize))

	return &Manager{
		config:     cfg,
		postgreSQL: postgreSQL,
		active:     make(map[string]event),
		eventQueue: make(chan event, cfg.QueueBufferSize),
		ctx:        ctx,
		cancel:     cancel,
		log:        managerLogger,
	}
}

// Start clears stale active rows and begins the processing worker.
func (m *Manager) Start() error {
	if _, err := m.postgreSQL.DeactivateAllAlarms(); err != nil {
		m.log.Warn("failed to deactivate stale alarms on start", zap.Error(err))
	}
	m.wg.Go(m.processingWorker)
	m.log.Info("alarm manager started")
	return nil
}

// Stop drains the queue and shuts the worker down.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
	m.log.Info("alarm manager stopped")
}

// Observe compares a pack's current set of active alarm flags against
// what was active on the previous call and queues rising/falling edge
// events for any change. It is called once per tick, per pack, by the
// supervisor immediately after array.Controller.Step.
func (m *Manager) Observe(packID string, flags []pack.Flag, now time.Time) {
	m.mutex.Lock()
	seen := make(map[string]bool, len(flags))
	for _, f := range flags {
		key := alarmKey(packID, f.Source, f.Kind, f.Fault)
		seen[key] = true
		if _, exists := m.active[key]; !exists {
			ev := event{
				packID:    packID,
				source:    f.Source,
				kind:      f.Kind,
				fault:     f.Fault,
				active:    true,
				message:   alarmMessage(f),
				timestamp: now,
			}
			m.active[key] = ev
			m.enqueue(ev)
		}
	}
	prefix := packID + "_"
	for key, ev := range m.active {
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		if !seen[key] {
			delete(m.active, key)
			cleared := ev
			cleared.active = false
			cleared.timestamp = now
			m.enqueue(cleared)
		}
	}
	m.mutex.Unlock()
}

func alarmMessage(f pack.Flag) string {
	kind := "warning"
	if f.Fault {
		kind = "fault"
	}
	return fmt.Sprintf("%s %s %s", f.Source, f.Kind, kind)
}

func (m *Manager) enqueue(ev event) {
	select {
	case <-m.ctx.Done():
		return
	case m.eventQueue <- ev:
	default:
		m.log.Warn("alarm event queue full, dropping event",
			zap.String("pack_id", ev.packID),
			zap.String("kind", ev.kind.String()))
	}
}

func (m *Manager) processingWorker() {
	m.log.Info("alarm processing worker started")
	for {
		select {
		case <-m.ctx.Done():
			for {
				select {
				case ev := <-m.eventQueue:
					m.processWithRecovery(ev)
				default:
					m.log.Info("alarm processing worker stopped")
					return
				}
			}
		case ev := <-m.eventQueue:
			m.processWithRecovery(ev)
		}
	}
}

func (m *Manager) processWithRecovery(ev event) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic recovered in alarm processing worker",
				zap.Any("panic", r),
				zap.String("pack_id", ev.packID),
				zap.Stack("stack"))
		}
	}()
	m.process(ev)
}

func (m *Manager) process(ev event) {
	logFields := []zap.Field{
		zap.String("pack_id", ev.packID),
		zap.String("source", ev.source.String()),
		zap.String("kind", ev.kind.String()),
		zap.Bool("fault", ev.fault),
	}

	if ev.active {
		rec := database.AlarmRecord{
			Timestamp: ev.timestamp,
			PackID:    ev.packID,
			Source:    ev.source.String(),
			Kind:      ev.kind.String(),
			Fault:     ev.fault,
			Active:    true,
			Message:   ev.message,
		}
		if err := m.postgreSQL.SaveAlarm(rec); err != nil {
			m.log.Error("failed to save alarm", append(logFields, zap.Error(err))...)
		}
		if ev.fault {
			m.log.Error("NEW FAULT", logFields...)
		} else {
			m.log.Warn("NEW WARNING", logFields...)
		}
		return
	}

	if err := m.postgreSQL.DeactivateAlarm(ev.packID, ev.source.String(), ev.kind.String(), ev.fault); err != nil {
		m.log.Error("failed to deactivate alarm", append(logFields, zap.Error(err))...)
	}
	m.log.Info("ALARM CLEARED", logFields...)
}

// ActiveAlarms returns a snapshot of every currently-active alarm
// across all packs.
func (m *Manager) ActiveAlarms() []database.AlarmRecord {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make([]database.AlarmRecord, 0, len(m.active))
	for _, ev := range m.active {
		out = append(out, database.AlarmRecord{
			Timestamp: ev.timestamp,
			PackID:    ev.packID,
			Source:    ev.source.String(),
			Kind:      ev.kind.String(),
			Fault:     ev.fault,
			Active:    true,
			Message:   ev.message,
		})
	}
	return out
}

// History returns persisted alarm records with pagination.
func (m *Manager) History(limit, offset int) ([]database.AlarmRecord, error) {
	return m.postgreSQL.GetAlarmHistory(limit, offset)
}

// CleanupOldAlarms removes inactive alarm rows older than olderThan.
func (m *Manager) CleanupOldAlarms(olderThan time.Duration) error {
	return m.postgreSQL.DeleteOldAlarms(olderThan)
}
