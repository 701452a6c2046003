package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Array        ArrayConfig        `mapstructure:"array" validate:"required"`
	Thresholds   PackThresholds     `mapstructure:"thresholds" validate:"required"`
	Supervisor   SupervisorConfig   `mapstructure:"supervisor" validate:"required"`
	Alarm        AlarmConfig        `mapstructure:"alarm" validate:"required"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry" validate:"required"`
	Heatload     HeatloadConfig     `mapstructure:"heatload" validate:"required"`
	InfluxDB     InfluxDBConfig     `mapstructure:"influxdb" validate:"required"`
	PostgreSQL   PostgreSQLConfig   `mapstructure:"postgresql" validate:"required"`
	ModbusServer ModbusServerConfig `mapstructure:"modbus_server" validate:"required"`
	API          APIConfig          `mapstructure:"api" validate:"required"`
	Logging      LoggingConfig      `mapstructure:"logging" validate:"required"`
}

// APIConfig configures the HTTP API server.
type APIConfig struct {
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`
}

// AlarmConfig configures the buffered alarm-edge persistence queue.
type AlarmConfig struct {
	QueueBufferSize int `mapstructure:"queue_buffer_size" validate:"required,min=1"`
}

// TelemetryConfig configures the periodic InfluxDB write-back of the
// latest pack/array telemetry snapshot.
type TelemetryConfig struct {
	PersistInterval time.Duration `mapstructure:"persist_interval" validate:"required,aligned_interval"`
}

// ArrayConfig describes the fixed physical layout of the pack array: how
// many packs, and the plant.Config shared by every pack in it.
type ArrayConfig struct {
	PackCount        int     `mapstructure:"pack_count" validate:"required,min=1,max=64"`
	ModulesPerPack   int     `mapstructure:"modules_per_pack" validate:"required,min=1"`
	CellsPerModule   int     `mapstructure:"cells_per_module" validate:"required,min=1"`
	NominalCapacityAh float64 `mapstructure:"nominal_capacity_ah" validate:"required,gt=0"`
	ThermalMassJPerC float64 `mapstructure:"thermal_mass_j_per_c" validate:"required,gt=0"`
	CoolingWPerC     float64 `mapstructure:"cooling_w_per_c" validate:"required,gt=0"`
	AmbientC         float64 `mapstructure:"ambient_c" validate:"required"`
	InitialSOC       float64 `mapstructure:"initial_soc" validate:"min=0,max=1"`
}

// PackThresholds mirrors pack.Thresholds: the spec's alarm setpoint and
// timing-constant table, held as explicit configuration rather than
// package constants so it can be tuned per chemistry/installation.
type PackThresholds struct {
	SWOVWarnV      float64 `mapstructure:"sw_ov_warn_v" validate:"required,gt=0"`
	SWOVClearV     float64 `mapstructure:"sw_ov_clear_v" validate:"required,gt=0"`
	SWUVWarnV      float64 `mapstructure:"sw_uv_warn_v" validate:"required,gt=0"`
	SWUVClearV     float64 `mapstructure:"sw_uv_clear_v" validate:"required,gt=0"`
	SWOTWarnC      float64 `mapstructure:"sw_ot_warn_c" validate:"required"`
	SWOTClearC     float64 `mapstructure:"sw_ot_clear_c" validate:"required"`
	SWAssertDelayS float64 `mapstructure:"sw_assert_delay_s" validate:"required,gt=0"`

	SWOVFaultV    float64 `mapstructure:"sw_ov_fault_v" validate:"required,gt=0"`
	SWUVFaultV    float64 `mapstructure:"sw_uv_fault_v" validate:"required,gt=0"`
	SWOTFaultC    float64 `mapstructure:"sw_ot_fault_c" validate:"required"`
	SWFaultDelayS float64 `mapstructure:"sw_fault_delay_s" validate:"required,gt=0"`

	HWOVSafetyV  float64 `mapstructure:"hw_ov_safety_v" validate:"required,gt=0"`
	HWUVSafetyV  float64 `mapstructure:"hw_uv_safety_v" validate:"required,gt=0"`
	HWOVUVDelayS float64 `mapstructure:"hw_ov_uv_delay_s" validate:"required,gt=0"`
	HWOTSafetyC  float64 `mapstructure:"hw_ot_safety_c" validate:"required"`
	HWOTDelayS   float64 `mapstructure:"hw_ot_delay_s" validate:"required,gt=0"`

	PrechargeDurationS     float64 `mapstructure:"precharge_duration_s" validate:"required,gt=0"`
	WarningHoldTimeS       float64 `mapstructure:"warning_hold_time_s" validate:"required,gt=0"`
	FaultResetSafeHoldS    float64 `mapstructure:"fault_reset_safe_hold_s" validate:"required,gt=0"`
	VoltageMatchPerModuleV float64 `mapstructure:"voltage_match_per_module_v" validate:"required,gt=0"`

	OvercurrentWarnDelayS    float64 `mapstructure:"overcurrent_warn_delay_s" validate:"required,gt=0"`
	OvercurrentFaultDelayS   float64 `mapstructure:"overcurrent_fault_delay_s" validate:"required,gt=0"`
	OvercurrentFaultSubzeroC float64 `mapstructure:"overcurrent_fault_subzero_c" validate:"required"`
}

// SupervisorConfig configures the fixed-period tick scheduler wrapping
// the array controller: its period, starting mode, and the SOC band
// used to clamp manual current requests.
type SupervisorConfig struct {
	TickInterval  time.Duration `mapstructure:"tick_interval" validate:"required,aligned_interval"`
	DefaultMode   string        `mapstructure:"default_mode" validate:"required,oneof=AUTO MANUAL"`
	MinSOC        float64       `mapstructure:"min_soc" validate:"min=0,max=1"`
	MaxSOC        float64       `mapstructure:"max_soc" validate:"min=0,max=1,gtfield=MinSOC"`
}

// HeatloadConfig points at the external Modbus TCP source of per-pack
// external heat input, with a static fallback wattage used whenever
// that source is unreachable.
type HeatloadConfig struct {
	Host             string        `mapstructure:"host" validate:"required,hostname_rfc1123|ip"`
	Port             int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	SlaveID          byte          `mapstructure:"slave_id" validate:"required,min=1,max=255"`
	Timeout          time.Duration `mapstructure:"timeout" validate:"required"`
	ReconnectDelay   time.Duration `mapstructure:"reconnect_delay" validate:"required"`
	PollInterval     time.Duration `mapstructure:"poll_interval" validate:"required,aligned_interval"`
	RegisterBase     uint16        `mapstructure:"register_base"`
	ScaleFactor      float64       `mapstructure:"scale_factor" validate:"required"`
	FallbackWattsPerPack float64   `mapstructure:"fallback_watts_per_pack"`
}

// InfluxDBConfig contains InfluxDB-specific configuration.
type InfluxDBConfig struct {
	URL           string        `mapstructure:"url" validate:"required,url"`
	Token         string        `mapstructure:"token" validate:"required"`
	Organization  string        `mapstructure:"organization" validate:"required"`
	Bucket        string        `mapstructure:"bucket" validate:"required"`
	BatchSize     uint          `mapstructure:"batch_size" validate:"required,min=1"`
	FlushInterval time.Duration `mapstructure:"flush_interval" validate:"required"`
}

// PostgreSQLConfig contains PostgreSQL-specific configuration.
type PostgreSQLConfig struct {
	Host     string `mapstructure:"host" validate:"required,hostname_rfc1123|ip"`
	Port     int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Username string `mapstructure:"username" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	Database string `mapstructure:"database" validate:"required"`
	SSLMode  string `mapstructure:"ssl_mode" validate:"required,oneof=disable allow prefer require verify-ca verify-full"`
	MaxIdle  int    `mapstructure:"max_idle_connections" validate:"required,min=1"`
	MaxOpen  int    `mapstructure:"max_open_connections" validate:"required,min=1"`
}

// ModbusServerConfig contains the SCADA-facing Modbus TCP server
// configuration.
type ModbusServerConfig struct {
	Host       string        `mapstructure:"host" validate:"required,hostname_rfc1123|ip"`
	Port       int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"required"`
	MaxClients uint          `mapstructure:"max_clients" validate:"required,min=1,max=100"`
}

// LoggingConfig contains zap logger configuration.
type LoggingConfig struct {
	Level            string   `mapstructure:"level" validate:"required,oneof=debug info warn error fatal"`
	Encoding         string   `mapstructure:"encoding" validate:"required,oneof=json console"`
	TimeEncoder      string   `mapstructure:"time_encoder" validate:"required,oneof=epoch iso8601"`
	OutputPaths      []string `mapstructure:"output_paths" validate:"required,min=1,dive,logpath"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths" validate:"required,min=1,dive,logpath"`
}

var validate = NewValidator()

// Load loads configuration from the specified file path.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("ESSCTL")

	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// bindEnvVariables explicitly binds all configuration keys to environment
// variables.
func bindEnvVariables(v *viper.Viper) {
	v.BindEnv("array.pack_count")
	v.BindEnv("array.modules_per_pack")
	v.BindEnv("array.cells_per_module")
	v.BindEnv("array.nominal_capacity_ah")
	v.BindEnv("array.thermal_mass_j_per_c")
	v.BindEnv("array.cooling_w_per_c")
	v.BindEnv("array.ambient_c")
	v.BindEnv("array.initial_soc")

	v.BindEnv("supervisor.tick_interval")
	v.BindEnv("supervisor.default_mode")
	v.BindEnv("supervisor.min_soc")
	v.BindEnv("supervisor.max_soc")

	v.BindEnv("alarm.queue_buffer_size")

	v.BindEnv("telemetry.persist_interval")

	v.BindEnv("heatload.host")
	v.BindEnv("heatload.port")
	v.BindEnv("heatload.slave_id")
	v.BindEnv("heatload.timeout")
	v.BindEnv("heatload.reconnect_delay")
	v.BindEnv("heatload.poll_interval")
	v.BindEnv("heatload.register_base")
	v.BindEnv("heatload.scale_factor")
	v.BindEnv("heatload.fallback_watts_per_pack")

	v.BindEnv("influxdb.url")
	v.BindEnv("influxdb.token")
	v.BindEnv("influxdb.organization")
	v.BindEnv("influxdb.bucket")
	v.BindEnv("influxdb.batch_size")
	v.BindEnv("influxdb.flush_interval")

	v.BindEnv("postgresql.host")
	v.BindEnv("postgresql.port")
	v.BindEnv("postgresql.username")
	v.BindEnv("postgresql.password")
	v.BindEnv("postgresql.database")
	v.BindEnv("postgresql.ssl_mode")
	v.BindEnv("postgresql.max_idle_connections")
	v.BindEnv("postgresql.max_open_connections")

	v.BindEnv("modbus_server.host")
	v.BindEnv("modbus_server.port")
	v.BindEnv("modbus_server.timeout")
	v.BindEnv("modbus_server.max_clients")

	v.BindEnv("api.port")

	v.BindEnv("logging.level")
	v.BindEnv("logging.encoding")
	v.BindEnv("logging.time_encoder")
	v.BindEnv("logging.output_paths")
	v.BindEnv("logging.error_output_paths")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("array.initial_soc", 0.5)

	v.SetDefault("supervisor.tick_interval", time.Second)
	v.SetDefault("supervisor.default_mode", "AUTO")
	v.SetDefault("supervisor.min_soc", 0.05)
	v.SetDefault("supervisor.max_soc", 0.95)

	v.SetDefault("alarm.queue_buffer_size", 256)

	v.SetDefault("telemetry.persist_interval", 5*time.Second)

	v.SetDefault("heatload.slave_id", 1)
	v.SetDefault("heatload.timeout", 5*time.Second)
	v.SetDefault("heatload.reconnect_delay", 10*time.Second)
	v.SetDefault("heatload.poll_interval", 5*time.Second)
	v.SetDefault("heatload.register_base", 0)
	v.SetDefault("heatload.scale_factor", 0.1)
	v.SetDefault("heatload.fallback_watts_per_pack", 0.0)

	v.SetDefault("influxdb.batch_size", 100)
	v.SetDefault("influxdb.flush_interval", 5*time.Second)

	v.SetDefault("postgresql.port", 5432)
	v.SetDefault("postgresql.ssl_mode", "disable")
	v.SetDefault("postgresql.max_idle_connections", 5)
	v.SetDefault("postgresql.max_open_connections", 10)

	v.SetDefault("modbus_server.host", "0.0.0.0")
	v.SetDefault("modbus_server.port", 502)
	v.SetDefault("modbus_server.timeout", 30*time.Second)
	v.SetDefault("modbus_server.max_clients", 10)

	v.SetDefault("api.port", 8080)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "json")
	v.SetDefault("logging.time_encoder", "iso8601")
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	return validate.Struct(c)
}
