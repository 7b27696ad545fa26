package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	API      APIConfig      `yaml:"api"`
	Web      WebConfig      `yaml:"web"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	CORS     CORSConfig     `yaml:"cors"`
	Kiosk    KioskConfig    `yaml:"kiosk"`
	Log      LogConfig      `yaml:"log"`

	Integrations IntegrationsConfig `yaml:"integrations"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// APIConfig represents API configuration
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WebConfig represents web UI configuration
type WebConfig struct {
	StaticDir string `yaml:"static_dir"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// NATSConfig represents NATS configuration. An empty URL disables events.
type NATSConfig struct {
	URL               string        `yaml:"url"`
	SubjectPrefix     string        `yaml:"subject_prefix"`
	ClientName        string        `yaml:"client_name"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	MaxReconnects     int           `yaml:"max_reconnects"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	// RecordEvents subscribes to the published events and stores them in
	// the event log
	RecordEvents bool `yaml:"record_events"`
}

// CORSConfig represents cross-origin settings for the admin API
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// KioskConfig holds fleet behaviour settings
type KioskConfig struct {
	DefaultTransitionDuration time.Duration `yaml:"default_transition_duration"`
	SeedDefaultPage           *bool         `yaml:"seed_default_page"`
}

// ShouldSeedDefaultPage reports whether a default page is created on an empty store
func (c KioskConfig) ShouldSeedDefaultPage() bool {
	return c.SeedDefaultPage == nil || *c.SeedDefaultPage
}

// IntegrationsConfig lists external systems that receive a copy of every
// published kiosk event. Forwarding needs NATS to be configured.
type IntegrationsConfig struct {
	Webhooks []WebhookConfig `yaml:"webhooks"`
	MQTT     MQTTConfig      `yaml:"mqtt"`
}

// Enabled reports whether any integration is configured
func (c IntegrationsConfig) Enabled() bool {
	return len(c.Webhooks) > 0 || c.MQTT.BrokerURL != ""
}

// WebhookConfig is an HTTP endpoint events are POSTed to
type WebhookConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout"`
	// Types limits forwarding to these event types; empty forwards all
	Types []string `yaml:"types"`
}

// MQTTConfig is a broker events are republished to. An empty BrokerURL
// disables it.
type MQTTConfig struct {
	BrokerURL string `yaml:"broker_url"`
	ClientID  string `yaml:"client_id"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	// TopicPattern may contain {type}, {device_id} and {landing_page_id}
	TopicPattern string `yaml:"topic_pattern"`
	QoS          byte   `yaml:"qos"`
	TLS          bool   `yaml:"tls"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads filename, applies environment overrides and fills defaults.
// An empty filename starts from defaults only.
func Load(filename string) (*Config, error) {
	var cfg Config

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	// Apply environment overrides
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		c.NATS.URL = natsURL
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Log.Level = logLevel
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.API.Port = p
	}

	if dir := os.Getenv("WEB_DIR"); dir != "" {
		c.Web.StaticDir = dir
	}

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.CORS.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.CORS.AllowedOrigins = append(c.CORS.AllowedOrigins, o)
			}
		}
	}

	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = "kiosk-server"
	}
	if c.Server.Version == "" {
		c.Server.Version = "2.0.0"
	}

	if c.API.Host == "" {
		c.API.Host = "0.0.0.0"
	}
	if c.API.Port == 0 {
		c.API.Port = 3000
	}

	if c.Web.StaticDir == "" {
		c.Web.StaticDir = "public"
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 30 * time.Minute
	}

	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "kiosk"
	}
	if c.NATS.ClientName == "" {
		c.NATS.ClientName = c.Server.Name
	}
	if c.NATS.MaxReconnects == 0 {
		c.NATS.MaxReconnects = 60
	}
	if c.NATS.ReconnectInterval == 0 {
		c.NATS.ReconnectInterval = 2 * time.Second
	}

	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}

	if c.Kiosk.DefaultTransitionDuration == 0 {
		c.Kiosk.DefaultTransitionDuration = 8 * time.Second
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	for i := range c.Integrations.Webhooks {
		if c.Integrations.Webhooks[i].Timeout == 0 {
			c.Integrations.Webhooks[i].Timeout = 10 * time.Second
		}
	}
	if c.Integrations.MQTT.BrokerURL != "" {
		if c.Integrations.MQTT.ClientID == "" {
			c.Integrations.MQTT.ClientID = c.Server.Name
		}
		if c.Integrations.MQTT.TopicPattern == "" {
			c.Integrations.MQTT.TopicPattern = "kiosk/events/{type}"
		}
	}
}

// Validate checks settings that would otherwise fail at first use
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}

	d := c.Kiosk.DefaultTransitionDuration
	if d < time.Second || d > time.Minute {
		return fmt.Errorf("kiosk.default_transition_duration %s must be between 1s and 1m", d)
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	for i, hook := range c.Integrations.Webhooks {
		u, err := url.Parse(hook.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("integrations.webhooks[%d].url %q is not an http(s) URL", i, hook.URL)
		}
	}
	if c.Integrations.MQTT.QoS > 2 {
		return fmt.Errorf("integrations.mqtt.qos %d must be 0, 1 or 2", c.Integrations.MQTT.QoS)
	}

	return nil
}

// LogSummary writes the effective configuration at startup, without secrets
func (c *Config) LogSummary() {
	log.Info().
		Str("server", c.Server.Name).
		Str("version", c.Server.Version).
		Str("api", c.API.Addr()).
		Str("webDir", c.Web.StaticDir).
		Str("database", c.Database.Driver).
		Bool("events", c.NATS.URL != "").
		Str("subjectPrefix", c.NATS.SubjectPrefix).
		Strs("corsOrigins", c.CORS.AllowedOrigins).
		Dur("defaultTransition", c.Kiosk.DefaultTransitionDuration).
		Bool("seedDefaultPage", c.Kiosk.ShouldSeedDefaultPage()).
		Int("webhooks", len(c.Integrations.Webhooks)).
		Bool("mqtt", c.Integrations.MQTT.BrokerURL != "").
		Msg("Configuration loaded")
}
