package config

import (
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Source kinds.
const (
	SourceRTDB   = "rtdb"
	SourceMQTT   = "mqtt"
	SourceMemory = "memory"
)

// Source delivery modes.
const (
	ModeStream = "stream"
	ModePoll   = "poll"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Source     SourceConfig     `yaml:"source"`
	History    HistoryConfig    `yaml:"history"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Log        LogConfig        `yaml:"log"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
// Alerts are disabled when either key is empty.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// SourceConfig describes the remote real-time data store.
type SourceConfig struct {
	Kind                string        `yaml:"kind"`
	Endpoint            string        `yaml:"endpoint"`
	Credentials         string        `yaml:"credentials"`
	Mode                string        `yaml:"mode"`
	PollIntervalSeconds int           `yaml:"poll_interval_seconds"`
	PollInterval        time.Duration `yaml:"-"` // Ignored by YAML parser
	TimeoutSeconds      int           `yaml:"timeout_seconds"`
	Timeout             time.Duration `yaml:"-"`
	ClientID            string        `yaml:"client_id"`
	TopicPrefix         string        `yaml:"topic_prefix"`
	StatusPath          string        `yaml:"status_path"`
	HistoryPath         string        `yaml:"history_path"`
	ControlPath         string        `yaml:"control_path"`
	Fields              FieldsConfig  `yaml:"fields"`
}

// FieldsConfig maps snapshot field names to the values the dashboard understands.
type FieldsConfig struct {
	Status  StatusFields  `yaml:"status"`
	History HistoryFields `yaml:"history"`
}

// StatusFields names the fields of the status snapshot.
type StatusFields struct {
	FillPercent    string `yaml:"fill_percent"`
	DistanceMm     string `yaml:"distance_mm"`
	LidOpen        string `yaml:"lid_open"`
	PersonDetected string `yaml:"person_detected"`
	VehicleMoving  string `yaml:"vehicle_moving"`
}

// HistoryFields names the fields of a single history entry.
type HistoryFields struct {
	Level      string `yaml:"level"`
	Timestamp  string `yaml:"timestamp"`
	DistanceMm string `yaml:"distance_mm"`
}

// HistoryConfig controls history aggregation.
type HistoryConfig struct {
	BucketCount        int    `yaml:"bucket_count"`
	BucketWidthSeconds int    `yaml:"bucket_width_seconds"`
	TableLimit         int    `yaml:"table_limit"`
	Timezone           string `yaml:"timezone"`
	RefreshSeconds     int    `yaml:"refresh_seconds"` // negative disables
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	Archive                bool   `yaml:"archive"`
}

// LogConfig holds the logger configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultStatusFields are the field names written by the bin firmware.
func DefaultStatusFields() StatusFields {
	return StatusFields{
		FillPercent:    "porcentajeLlenado",
		DistanceMm:     "distanciaResiduos_mm",
		LidOpen:        "tapaAbierta",
		PersonDetected: "personaDetectada",
		VehicleMoving:  "enMovimiento",
	}
}

// DefaultHistoryFields are the field names of a history entry.
func DefaultHistoryFields() HistoryFields {
	return HistoryFields{
		Level:      "level",
		Timestamp:  "timestamp",
		DistanceMm: "distance_mm",
	}
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyEnv()
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyEnv overrides secrets and endpoints from the environment.
func (cfg *Config) ApplyEnv() {
	if v := os.Getenv("SMARTBIN_SOURCE_ENDPOINT"); v != "" {
		cfg.Source.Endpoint = v
	}
	if v := os.Getenv("SMARTBIN_SOURCE_CREDENTIALS"); v != "" {
		cfg.Source.Credentials = v
	}
	if v := os.Getenv("SMARTBIN_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
}

// ApplyDefaults fills zero values with their defaults.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}

	src := &cfg.Source
	if src.Kind == "" {
		src.Kind = SourceRTDB
	}
	if src.Mode == "" {
		src.Mode = ModeStream
	}
	if src.PollIntervalSeconds <= 0 {
		src.PollIntervalSeconds = 10
	}
	src.PollInterval = time.Duration(src.PollIntervalSeconds) * time.Second
	if src.TimeoutSeconds <= 0 {
		src.TimeoutSeconds = 10
	}
	src.Timeout = time.Duration(src.TimeoutSeconds) * time.Second
	if src.ClientID == "" {
		src.ClientID = "binwatchd"
	}
	if src.StatusPath == "" {
		src.StatusPath = "/sensor/currentStatus"
	}
	if src.HistoryPath == "" {
		src.HistoryPath = "/sensor/history"
	}
	if src.ControlPath == "" {
		src.ControlPath = "/sensor/control/tapaAbierta"
	}
	src.Fields.Status = mergeStatusFields(src.Fields.Status, DefaultStatusFields())
	src.Fields.History = mergeHistoryFields(src.Fields.History, DefaultHistoryFields())

	if cfg.History.BucketCount <= 0 {
		cfg.History.BucketCount = 10
	}
	if cfg.History.BucketWidthSeconds <= 0 {
		cfg.History.BucketWidthSeconds = 60
	}
	if cfg.History.RefreshSeconds == 0 {
		cfg.History.RefreshSeconds = cfg.History.BucketWidthSeconds
	}
	if cfg.History.TableLimit <= 0 {
		cfg.History.TableLimit = 10
	}
	if cfg.History.Timezone == "" {
		cfg.History.Timezone = "America/Lima"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func mergeStatusFields(f, d StatusFields) StatusFields {
	if f.FillPercent == "" {
		f.FillPercent = d.FillPercent
	}
	if f.DistanceMm == "" {
		f.DistanceMm = d.DistanceMm
	}
	if f.LidOpen == "" {
		f.LidOpen = d.LidOpen
	}
	if f.PersonDetected == "" {
		f.PersonDetected = d.PersonDetected
	}
	if f.VehicleMoving == "" {
		f.VehicleMoving = d.VehicleMoving
	}
	return f
}

func mergeHistoryFields(f, d HistoryFields) HistoryFields {
	if f.Level == "" {
		f.Level = d.Level
	}
	if f.Timestamp == "" {
		f.Timestamp = d.Timestamp
	}
	if f.DistanceMm == "" {
		f.DistanceMm = d.DistanceMm
	}
	return f
}
