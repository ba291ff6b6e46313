package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	// Collector configuration
	CollectorURL string        `yaml:"collector_url"`
	AppKey       string        `yaml:"app_key"`
	DeviceID     string        `yaml:"device_id"`
	HTTPMethod   string        `yaml:"http_method"`
	Salt         string        `yaml:"salt"`
	HTTPTimeout  time.Duration `yaml:"http_timeout"`

	// Storage configuration
	StorageBackend   string `yaml:"storage_backend"`
	StoragePath      string `yaml:"storage_path"`
	StorageNamespace string `yaml:"storage_namespace"`
	RedisAddr        string `yaml:"redis_addr"`
	RedisPassword    string `yaml:"redis_password"`
	RedisDB          int    `yaml:"redis_db"`

	// Scheduling configuration
	DrainInitialDelay time.Duration `yaml:"drain_initial_delay"`
	DrainInterval     time.Duration `yaml:"drain_interval"`
	DrainMinGap       time.Duration `yaml:"drain_min_gap"`
	SessionHeartbeat  time.Duration `yaml:"session_heartbeat"`
	ManualSessions    bool          `yaml:"manual_sessions"`

	// Device description
	AppVersion string `yaml:"app_version"`

	// CSV replay configuration
	CSVPath    string `yaml:"csv_path"`
	CSVDelayMs int    `yaml:"csv_delay_ms"`

	// Collector service configuration
	AcceptedAppKeys string `yaml:"accepted_app_keys"`

	// InfluxDB configuration (collector)
	InfluxDBURL    string `yaml:"influxdb_url"`
	InfluxDBToken  string `yaml:"influxdb_token"`
	InfluxDBOrg    string `yaml:"influxdb_org"`
	InfluxDBBucket string `yaml:"influxdb_bucket"`

	// Server configuration
	Port  string `yaml:"port"`
	Debug bool   `yaml:"debug"`
}

// Load loads configuration from environment variables
func Load() Config {
	cfg := Config{
		// Collector defaults
		CollectorURL: getEnv("COLLECTOR_URL", "http://collector:8080"),
		AppKey:       getEnv("APP_KEY", ""),
		DeviceID:     getEnv("DEVICE_ID", ""),
		HTTPMethod:   strings.ToUpper(getEnv("HTTP_METHOD", "GET")),
		Salt:         getEnv("CHECKSUM_SALT", ""),
		HTTPTimeout:  getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		// Storage defaults
		StorageBackend:   getEnv("STORAGE_BACKEND", "file"),
		StoragePath:      getEnv("STORAGE_PATH", "/data/telemetry-sdk.json"),
		StorageNamespace: getEnv("STORAGE_NAMESPACE", ""),
		RedisAddr:        getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),

		// Scheduling defaults
		DrainInitialDelay: getEnvDuration("DRAIN_INITIAL_DELAY", time.Second),
		DrainInterval:     getEnvDuration("DRAIN_INTERVAL", 60*time.Second),
		DrainMinGap:       getEnvDuration("DRAIN_MIN_GAP", 2*time.Second),
		SessionHeartbeat:  getEnvDuration("SESSION_HEARTBEAT", 60*time.Second),
		ManualSessions:    getEnvBool("MANUAL_SESSIONS", false),

		AppVersion: getEnv("APP_VERSION", "0.0.0"),

		// CSV replay defaults
		CSVPath:    getEnv("CSV_PATH", ""),
		CSVDelayMs: getEnvInt("CSV_DELAY_MS", 1000),

		AcceptedAppKeys: getEnv("ACCEPTED_APP_KEYS", ""),

		// InfluxDB defaults
		InfluxDBURL:    getEnv("INFLUXDB_URL", "http://influxdb:8086"),
		InfluxDBToken:  getEnv("INFLUXDB_TOKEN", "supersecrettoken"),
		InfluxDBOrg:    getEnv("INFLUXDB_ORG", "telemetryorg"),
		InfluxDBBucket: getEnv("INFLUXDB_BUCKET", "telem_bucket"),

		// Server defaults
		Port:  getEnv("PORT", "8080"),
		Debug: getEnvBool("DEBUG", false),
	}

	return cfg
}

// LoadFile loads the environment configuration and overlays the YAML file at
// path on top of it. Keys absent from the file keep their environment value.
func LoadFile(path string) (Config, error) {
	cfg := Load()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	cfg.HTTPMethod = strings.ToUpper(cfg.HTTPMethod)
	return cfg, nil
}

// getEnv gets an environment variable with a fallback default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as integer with a fallback default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as boolean with a fallback default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as duration with a fallback default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
