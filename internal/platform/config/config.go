package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigFile     = "FLEETWATCH_CONFIG"
	EnvAPIURL         = "FLEETWATCH_API_URL"
	EnvHTTPTimeout    = "FLEETWATCH_HTTP_TIMEOUT"
	EnvPollInterval   = "FLEETWATCH_POLL_INTERVAL"
	EnvAuditLimit     = "FLEETWATCH_AUDIT_LIMIT"
	EnvListenAddr     = "FLEETWATCH_LISTEN_ADDR"
	EnvMapCenter      = "FLEETWATCH_MAP_CENTER"
	EnvMapZoom        = "FLEETWATCH_MAP_ZOOM"
	EnvLogLevel       = "FLEETWATCH_LOG_LEVEL"
	EnvLogFormat      = "FLEETWATCH_LOG_FORMAT"
	EnvRedisURL       = "FLEETWATCH_REDIS_URL"
	EnvRedisPoolSize  = "FLEETWATCH_REDIS_POOL_SIZE"
	EnvSessionPrefix  = "FLEETWATCH_SESSION_PREFIX"
	DefaultAPIURL     = "http://127.0.0.1:8000"
	DefaultListenAddr = "127.0.0.1:8090"
)

// Backend captures how the console reaches the tracking service.
type Backend struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Tracking holds engine cadence settings.
type Tracking struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	AuditLimit   int           `yaml:"audit_limit"`
}

// Map holds the fallback viewport used when no track is selected.
type Map struct {
	CenterLat float64 `yaml:"center_lat"`
	CenterLng float64 `yaml:"center_lng"`
	Zoom      int     `yaml:"zoom"`
}

// Logging selects the slog handler.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RedisConfig configures the session store backend. An empty URL selects
// the in-memory store.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Session configures token persistence.
type Session struct {
	KeyPrefix string      `yaml:"key_prefix"`
	Redis     RedisConfig `yaml:"redis"`
}

// Config is the full console configuration.
type Config struct {
	Backend    Backend  `yaml:"backend"`
	Tracking   Tracking `yaml:"tracking"`
	Map        Map      `yaml:"map"`
	Logging    Logging  `yaml:"logging"`
	Session    Session  `yaml:"session"`
	ListenAddr string   `yaml:"listen_addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Backend:  Backend{URL: DefaultAPIURL, Timeout: 30 * time.Second},
		Tracking: Tracking{PollInterval: 10 * time.Second, AuditLimit: 50},
		Map:      Map{CenterLat: -6.175, CenterLng: 106.827, Zoom: 13},
		Logging:  Logging{Level: "info", Format: "text"},
		Session: Session{
			KeyPrefix: "fleetwatch:session:",
			Redis: RedisConfig{
				PoolSize:     10,
				MinIdleConns: 1,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
			},
		},
		ListenAddr: DefaultListenAddr,
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by FLEETWATCH_CONFIG, and environment overrides, in that order.
func Load() (Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv(EnvConfigFile)); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Backend.URL = envOrDefault(EnvAPIURL, c.Backend.URL)
	c.Logging.Level = envOrDefault(EnvLogLevel, c.Logging.Level)
	c.Logging.Format = envOrDefault(EnvLogFormat, c.Logging.Format)
	c.Session.Redis.URL = envOrDefault(EnvRedisURL, c.Session.Redis.URL)
	c.Session.KeyPrefix = envOrDefault(EnvSessionPrefix, c.Session.KeyPrefix)
	if v, ok := os.LookupEnv(EnvListenAddr); ok {
		c.ListenAddr = strings.TrimSpace(v)
	}

	var err error
	if c.Backend.Timeout, err = durationEnvOrDefault(EnvHTTPTimeout, c.Backend.Timeout); err != nil {
		return err
	}
	if c.Tracking.PollInterval, err = durationEnvOrDefault(EnvPollInterval, c.Tracking.PollInterval); err != nil {
		return err
	}
	if c.Tracking.AuditLimit, err = intEnvOrDefault(EnvAuditLimit, c.Tracking.AuditLimit); err != nil {
		return err
	}
	if c.Map.Zoom, err = intEnvOrDefault(EnvMapZoom, c.Map.Zoom); err != nil {
		return err
	}
	if c.Session.Redis.PoolSize, err = intEnvOrDefault(EnvRedisPoolSize, c.Session.Redis.PoolSize); err != nil {
		return err
	}
	if v := strings.TrimSpace(os.Getenv(EnvMapCenter)); v != "" {
		lat, lng, err := parseCenter(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMapCenter, err)
		}
		c.Map.CenterLat, c.Map.CenterLng = lat, lng
	}
	return nil
}

// Validate checks that the configuration is coherent.
func (c Config) Validate() error {
	u, err := url.Parse(c.Backend.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %s: must be an absolute http(s) URL", EnvAPIURL)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("invalid %s: must be > 0", EnvHTTPTimeout)
	}
	if c.Tracking.PollInterval <= 0 {
		return fmt.Errorf("invalid %s: must be > 0", EnvPollInterval)
	}
	if c.Tracking.AuditLimit <= 0 {
		return fmt.Errorf("invalid %s: must be > 0", EnvAuditLimit)
	}
	if c.Map.CenterLat < -90 || c.Map.CenterLat > 90 || c.Map.CenterLng < -180 || c.Map.CenterLng > 180 {
		return fmt.Errorf("invalid %s: coordinates out of range", EnvMapCenter)
	}
	if c.Map.Zoom < 0 || c.Map.Zoom > 22 {
		return fmt.Errorf("invalid %s: must be in range 0..22", EnvMapZoom)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid %s: must be %q or %q", EnvLogFormat, "text", "json")
	}
	if c.Session.Redis.URL != "" && c.Session.Redis.PoolSize <= 0 {
		return fmt.Errorf("invalid %s: must be > 0", EnvRedisPoolSize)
	}
	return nil
}

func parseCenter(v string) (float64, float64, error) {
	parts := strings.Split(v, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected \"lat,lng\", got %q", v)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("longitude: %w", err)
	}
	return lat, lng, nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnvOrDefault(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func durationEnvOrDefault(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
