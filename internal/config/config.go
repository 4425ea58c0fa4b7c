package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so yaml values like "2s" or "15m" parse
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	API        APIConfig        `yaml:"api"`
	Web        WebConfig        `yaml:"web"`
	Log        LogConfig        `yaml:"log"`
	Simulation SimulationConfig `yaml:"simulation"`
	Events     EventsConfig     `yaml:"events"`
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Auth       AuthConfig       `yaml:"auth"`
	JWT        JWTConfig        `yaml:"jwt"`
}

// ServerConfig represents server identity
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// APIConfig represents the REST/WebSocket listener configuration
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WebConfig represents dashboard static file serving
type WebConfig struct {
	StaticDir string `yaml:"static_dir"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SimulationConfig represents engine construction parameters
type SimulationConfig struct {
	DeviceCount             int      `yaml:"device_count"`
	TickInterval            Duration `yaml:"tick_interval"`
	WeakPasswordProbability float64  `yaml:"weak_password_probability"`
}

// EventsConfig represents the server-side event archive
type EventsConfig struct {
	// ArchiveSize bounds the in-memory archive; oldest entries drop first
	ArchiveSize int `yaml:"archive_size"`
	// WriterBuffer is the async archive writer queue depth
	WriterBuffer int `yaml:"writer_buffer"`
}

// DatabaseConfig represents the optional Postgres event archive
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig represents the optional NATS event fan-out
type NATSConfig struct {
	URL               string   `yaml:"url"`
	Username          string   `yaml:"username"`
	Password          string   `yaml:"password"`
	MaxReconnects     int      `yaml:"max_reconnects"`
	ReconnectInterval Duration `yaml:"reconnect_interval"`
}

// MQTTConfig represents the optional MQTT event fan-out
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// AuthConfig represents the optional dashboard authentication
type AuthConfig struct {
	Enabled       bool   `yaml:"enabled"`
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`
}

// JWTConfig represents JWT configuration
type JWTConfig struct {
	Secret          string   `yaml:"secret"`
	AccessTokenTTL  Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL Duration `yaml:"refresh_token_ttl"`
}

// Load loads configuration from file
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	return &cfg, nil
}

// Default returns a configuration with all defaults applied, used when no
// config file is given
func Default() *Config {
	var cfg Config
	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return &cfg
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		c.NATS.URL = url
	}
	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		c.MQTT.Broker = broker
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}
	if port := os.Getenv("API_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.API.Port = p
		}
	}
}

// applyDefaults fills unset fields
func (c *Config) applyDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = "SimShield Simulation Server"
	}
	if c.Server.Version == "" {
		c.Server.Version = "1.0.0"
	}
	if c.API.Host == "" {
		c.API.Host = "0.0.0.0"
	}
	if c.API.Port == 0 {
		c.API.Port = 8090
	}
	if c.Web.StaticDir == "" {
		c.Web.StaticDir = "./web/dist"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Simulation.DeviceCount == 0 {
		c.Simulation.DeviceCount = 5
	}
	if c.Simulation.TickInterval.Duration == 0 {
		c.Simulation.TickInterval.Duration = 2 * time.Second
	}
	if c.Simulation.WeakPasswordProbability == 0 {
		c.Simulation.WeakPasswordProbability = 0.3
	}
	if c.Events.ArchiveSize == 0 {
		c.Events.ArchiveSize = 500
	}
	if c.Events.WriterBuffer == 0 {
		c.Events.WriterBuffer = 256
	}
	if c.NATS.MaxReconnects == 0 {
		c.NATS.MaxReconnects = 10
	}
	if c.NATS.ReconnectInterval.Duration == 0 {
		c.NATS.ReconnectInterval.Duration = 5 * time.Second
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "simshield-server"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "simshield"
	}
	if c.JWT.AccessTokenTTL.Duration == 0 {
		c.JWT.AccessTokenTTL.Duration = 15 * time.Minute
	}
	if c.JWT.RefreshTokenTTL.Duration == 0 {
		c.JWT.RefreshTokenTTL.Duration = 7 * 24 * time.Hour
	}
}
