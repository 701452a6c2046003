package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sealoop/essctl/internal/config"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxDB wraps the line-protocol write/query surface used to persist
// pack and array telemetry, plus host/runtime metrics.
type InfluxDB struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	queryAPI api.QueryAPI
	config   config.InfluxDBConfig
	log      *zap.Logger
}

// NewInfluxDB opens and health-checks an InfluxDB connection.
func NewInfluxDB(cfg config.InfluxDBConfig, log *zap.Logger) (*InfluxDB, error) {
	dbLogger := log.With(
		zap.String("database", "influxdb"),
		zap.String("url", cfg.URL),
		zap.String("organization", cfg.Organization),
		zap.String("bucket", cfg.Bucket),
	)

	dbLogger.Info("initializing influxdb connection")

	options := influxdb2.DefaultOptions()
	options.SetBatchSize(cfg.BatchSize)
	options.SetFlushInterval(uint(cfg.FlushInterval.Milliseconds()))

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, options)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		dbLogger.Error("failed to connect to influxdb", zap.Error(err))
		return nil, fmt.Errorf("failed to connect to influxdb: %w", err)
	}
	if health.Status != "pass" {
		dbLogger.Error("influxdb health check failed", zap.String("status", string(health.Status)))
		return nil, fmt.Errorf("influxdb health check failed: %s", health.Status)
	}

	writeAPI := client.WriteAPI(cfg.Organization, cfg.Bucket)
	queryAPI := client.QueryAPI(cfg.Organization)

	db := &InfluxDB{
		client:   client,
		writeAPI: writeAPI,
		queryAPI: queryAPI,
		config:   cfg,
		log:      dbLogger,
	}

	dbLogger.Info("influxdb connection established",
		zap.Uint("batch_size", cfg.BatchSize),
		zap.Duration("flush_interval", cfg.FlushInterval))
	return db, nil
}

// Close flushes any buffered points and closes the connection.
func (db *InfluxDB) Close() error {
	db.log.Info("closing influxdb connection")
	if db.writeAPI != nil {
		db.writeAPI.Flush()
	}
	if db.client != nil {
		db.client.Close()
	}
	return nil
}

// HealthCheck reports whether InfluxDB is reachable.
func (db *InfluxDB) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := db.client.Health(ctx)
	if err != nil {
		db.log.Error("influxdb health check failed", zap.Error(err))
		return err
	}
	if health.Status != "pass" {
		return fmt.Errorf("influxdb health check failed: %s", health.Status)
	}
	return nil
}

// WritePackTelemetry writes one pack's telemetry point.
func (db *InfluxDB) WritePackTelemetry(rec PackTelemetryRecord) {
	point := influxdb2.NewPointWithMeasurement("pack_telemetry").
		AddTag("pack_id", rec.PackID).
		AddTag("mode", rec.Mode).
		AddField("soc", rec.SOC).
		AddField("pack_voltage_v", rec.PackVoltageV).
		AddField("cell_voltage_v", rec.CellVoltageV).
		AddField("temperature_c", rec.TemperatureC).
		AddField("current_a", rec.CurrentA).
		AddField("charge_limit_a", rec.ChargeLimitA).
		AddField("discharge_limit_a", rec.DischargeLimitA).
		AddField("contactors_closed", rec.ContactorsClosed).
		AddField("has_warning", rec.HasWarning).
		AddField("has_fault", rec.HasFault).
		SetTime(rec.Timestamp)

	db.writeAPI.WritePoint(point)
}

// WriteArrayTelemetry writes the array-level aggregate point.
func (db *InfluxDB) WriteArrayTelemetry(rec ArrayTelemetryRecord) {
	point := influxdb2.NewPointWithMeasurement("array_telemetry").
		AddField("bus_voltage_v", rec.BusVoltageV).
		AddField("array_charge_limit_a", rec.ArrayChargeLimitA).
		AddField("array_discharge_limit_a", rec.ArrayDischargeLimitA).
		AddField("connected_count", rec.ConnectedCount).
		AddField("requested_current_a", rec.RequestedCurrentA).
		SetTime(rec.Timestamp)

	db.writeAPI.WritePoint(point)
}

// WriteSystemMetrics writes host system metrics.
func (db *InfluxDB) WriteSystemMetrics(data SystemMetrics) {
	point := influxdb2.NewPointWithMeasurement("system_metrics").
		AddField("cpu_usage", data.CPUUsage).
		AddField("memory_usage", data.MemoryUsage).
		AddField("disk_usage", data.DiskUsage).
		AddField("network_rx", data.NetworkRx).
		AddField("network_tx", data.NetworkTx).
		SetTime(data.Timestamp)

	db.writeAPI.WritePoint(point)
}

// WriteRuntimeMetrics writes Go runtime metrics.
func (db *InfluxDB) WriteRuntimeMetrics(data RuntimeMetrics) {
	point := influxdb2.NewPointWithMeasurement("runtime_metrics").
		AddField("uptime_seconds", data.UptimeSeconds).
		AddField("goroutines", data.Goroutines).
		AddField("heap_alloc_mb", data.HeapAllocMB).
		AddField("heap_sys_mb", data.HeapSysMB).
		AddField("heap_idle_mb", data.HeapIdleMB).
		AddField("heap_in_use_mb", data.HeapInUseMB).
		AddField("heap_released_mb", data.HeapReleasedMB).
		AddField("stack_in_use_mb", data.StackInUseMB).
		AddField("stack_sys_mb", data.StackSysMB).
		AddField("gc_runs", data.GCRuns).
		AddField("gc_pause_total_ns", data.GCPauseTotalNs).
		AddField("gc_cpu_fraction", data.GCCPUFraction).
		AddField("next_gc_mb", data.NextGCMB).
		AddField("last_gc_time", data.LastGCTime).
		AddField("mallocs_total", data.MallocsTotal).
		AddField("frees_total", data.FreesTotal).
		AddField("total_alloc_mb", data.TotalAllocMB).
		AddField("lookups_total", data.LookupsTotal).
		SetTime(data.Timestamp)

	db.writeAPI.WritePoint(point)
}

// Flush forces writing of any buffered points.
func (db *InfluxDB) Flush() {
	db.writeAPI.Flush()
}
