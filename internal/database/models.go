package database

import "time"

// PackTelemetryRecord is one pack's observable state at a single tick,
// matching the spec's "Telemetry record" §6 per-pack fields. It is the
// unit written to InfluxDB by internal/telemetry and returned by the
// HTTP API's telemetry endpoint.
type PackTelemetryRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	PackID         string    `json:"pack_id"`
	SOC            float64   `json:"soc"`
	PackVoltageV   float64   `json:"pack_voltage_v"`
	CellVoltageV   float64   `json:"cell_voltage_v"`
	TemperatureC   float64   `json:"temperature_c"`
	CurrentA       float64   `json:"current_a"`
	ChargeLimitA   float64   `json:"charge_limit_a"`
	DischargeLimitA float64  `json:"discharge_limit_a"`
	Mode           string    `json:"mode"`
	ContactorsClosed bool    `json:"contactors_closed"`
	HasWarning     bool      `json:"has_warning"`
	HasFault       bool      `json:"has_fault"`
}

// ArrayTelemetryRecord is the array-level point emitted alongside the
// per-pack records each tick.
type ArrayTelemetryRecord struct {
	Timestamp            time.Time `json:"timestamp"`
	BusVoltageV          float64   `json:"bus_voltage_v"`
	ArrayChargeLimitA    float64   `json:"array_charge_limit_a"`
	ArrayDischargeLimitA float64   `json:"array_discharge_limit_a"`
	ConnectedCount       int       `json:"connected_count"`
	RequestedCurrentA    float64   `json:"requested_current_a"`
}

// AlarmRecord is a durable row for one pack alarm rising or falling
// edge, persisted to PostgreSQL by internal/alarm. Source/Kind/Fault
// mirror pack.Flag's tagged alarm variant rather than a free-form
// string.
type AlarmRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
	PackID    string    `gorm:"index" json:"pack_id"`
	Source    string    `json:"source"` // "SW" or "HW"
	Kind      string    `json:"kind"`   // "OV", "UV", "OT", "OC"
	Fault     bool      `json:"fault"`  // false => warning
	Active    bool      `gorm:"index" json:"active"`
	Message   string    `json:"message"`
}

// TableName pins the GORM table name rather than relying on pluralization.
func (AlarmRecord) TableName() string { return "alarm_records" }

// SystemMetrics represents host system performance metrics.
type SystemMetrics struct {
	Timestamp   time.Time `json:"timestamp"`
	CPUUsage    float32   `json:"cpu_usage"`
	MemoryUsage float32   `json:"memory_usage"`
	DiskUsage   float32   `json:"disk_usage"`
	NetworkRx   uint64    `json:"network_rx"`
	NetworkTx   uint64    `json:"network_tx"`
}

// RuntimeMetrics represents application runtime performance metrics.
type RuntimeMetrics struct {
	Timestamp time.Time `json:"timestamp"`

	UptimeSeconds float64 `json:"uptime_seconds"`
	Goroutines    int     `json:"goroutines"`

	HeapAllocMB    float64 `json:"heap_alloc_mb"`
	HeapSysMB      float64 `json:"heap_sys_mb"`
	HeapIdleMB     float64 `json:"heap_idle_mb"`
	HeapInUseMB    float64 `json:"heap_in_use_mb"`
	HeapReleasedMB float64 `json:"heap_released_mb"`
	StackInUseMB   float64 `json:"stack_in_use_mb"`
	StackSysMB     float64 `json:"stack_sys_mb"`

	GCRuns         uint32  `json:"gc_runs"`
	GCPauseTotalNs uint64  `json:"gc_pause_total_ns"`
	GCCPUFraction  float64 `json:"gc_cpu_fraction"`
	NextGCMB       float64 `json:"next_gc_mb"`
	LastGCTime     int64   `json:"last_gc_time"`

	MallocsTotal uint64  `json:"mallocs_total"`
	FreesTotal   uint64  `json:"frees_total"`
	TotalAllocMB float64 `json:"total_alloc_mb"`
	LookupsTotal uint64  `json:"lookups_total"`
}
