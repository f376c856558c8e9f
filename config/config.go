package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Capture    CaptureConfig    `yaml:"capture"`
	Alert      AlertConfig      `yaml:"alert"`
	Backend    BackendConfig    `yaml:"backend"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Profile    ProfileConfig    `yaml:"profile"`
	Archive    ArchiveConfig    `yaml:"archive"`
}

// ServerConfig holds the local HTTP API configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`

	CacheTTL time.Duration `yaml:"-"`
}

// TelemetryConfig describes the MQTT subscription the helmet publishes to.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      byte   `yaml:"qos"`
}

// CaptureConfig holds the rolling buffer and incident recording settings.
type CaptureConfig struct {
	PreBufferSeconds  int    `yaml:"pre_buffer_seconds"`
	PostRecordSeconds int    `yaml:"post_record_seconds"`
	ChunkIntervalMS   int    `yaml:"chunk_interval_ms"`
	GallerySize       int    `yaml:"gallery_size"`
	MimeType          string `yaml:"mime_type"`
	Simulate          bool   `yaml:"simulate"`

	PreBuffer     time.Duration `yaml:"-"`
	PostRecord    time.Duration `yaml:"-"`
	ChunkInterval time.Duration `yaml:"-"`
}

// AlertConfig holds the emergency alert timings.
type AlertConfig struct {
	CooldownMS        int `yaml:"cooldown_ms"`
	LocationTimeoutMS int `yaml:"location_timeout_ms"`
	FallbackStaggerMS int `yaml:"fallback_stagger_ms"`
	HistorySize       int `yaml:"history_size"`

	Cooldown        time.Duration `yaml:"-"`
	LocationTimeout time.Duration `yaml:"-"`
	FallbackStagger time.Duration `yaml:"-"`
}

// BackendConfig points at the SMS fan-out backend.
type BackendConfig struct {
	URL                  string `yaml:"url"`
	TimeoutSeconds       int    `yaml:"timeout_seconds"`
	HealthTimeoutSeconds int    `yaml:"health_timeout_seconds"`

	Timeout       time.Duration `yaml:"-"`
	HealthTimeout time.Duration `yaml:"-"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// ProfileConfig locates the rider profile file.
type ProfileConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// ArchiveConfig enables uploading sealed clips to S3-compatible storage.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
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

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero values and derives the duration fields.
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
		cfg.Server.CacheTTLSeconds = 30
	}
	cfg.Server.CacheTTL = time.Duration(cfg.Server.CacheTTLSeconds) * time.Second

	if cfg.Telemetry.Topic == "" {
		cfg.Telemetry.Topic = "helmet"
	}
	if cfg.Telemetry.ClientID == "" {
		cfg.Telemetry.ClientID = "helmetguard-rider"
	}

	if cfg.Capture.PreBufferSeconds <= 0 {
		cfg.Capture.PreBufferSeconds = 2
	}
	if cfg.Capture.PostRecordSeconds <= 0 {
		cfg.Capture.PostRecordSeconds = 20
	}
	if cfg.Capture.ChunkIntervalMS <= 0 {
		cfg.Capture.ChunkIntervalMS = 1000
	}
	if cfg.Capture.GallerySize <= 0 {
		cfg.Capture.GallerySize = 10
	}
	if cfg.Capture.MimeType == "" {
		cfg.Capture.MimeType = "video/webm"
	}
	cfg.Capture.PreBuffer = time.Duration(cfg.Capture.PreBufferSeconds) * time.Second
	cfg.Capture.PostRecord = time.Duration(cfg.Capture.PostRecordSeconds) * time.Second
	cfg.Capture.ChunkInterval = time.Duration(cfg.Capture.ChunkIntervalMS) * time.Millisecond

	if cfg.Alert.CooldownMS <= 0 {
		cfg.Alert.CooldownMS = 60000
	}
	if cfg.Alert.LocationTimeoutMS <= 0 {
		cfg.Alert.LocationTimeoutMS = 5000
	}
	if cfg.Alert.FallbackStaggerMS <= 0 {
		cfg.Alert.FallbackStaggerMS = 800
	}
	if cfg.Alert.HistorySize <= 0 {
		cfg.Alert.HistorySize = 50
	}
	cfg.Alert.Cooldown = time.Duration(cfg.Alert.CooldownMS) * time.Millisecond
	cfg.Alert.LocationTimeout = time.Duration(cfg.Alert.LocationTimeoutMS) * time.Millisecond
	cfg.Alert.FallbackStagger = time.Duration(cfg.Alert.FallbackStaggerMS) * time.Millisecond

	if cfg.Backend.TimeoutSeconds <= 0 {
		cfg.Backend.TimeoutSeconds = 15
	}
	if cfg.Backend.HealthTimeoutSeconds <= 0 {
		cfg.Backend.HealthTimeoutSeconds = 5
	}
	cfg.Backend.Timeout = time.Duration(cfg.Backend.TimeoutSeconds) * time.Second
	cfg.Backend.HealthTimeout = time.Duration(cfg.Backend.HealthTimeoutSeconds) * time.Second

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:helmetguard.db"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Profile.Path == "" {
		cfg.Profile.Path = "./config/profile.yaml"
	}
}
