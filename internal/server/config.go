package server

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config holds all dashboard configuration.
type Config struct {
	mu sync.RWMutex

	// Receiver connection
	GNSS GNSSConfig `yaml:"gnss" json:"gnss"`

	// Driver tuning
	Driver DriverConfig `yaml:"driver" json:"driver"`

	// Logging
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Server
	Server ServerConfig `yaml:"server" json:"server"`

	path string // file path for save/load
}

type GNSSConfig struct {
	Type     string `yaml:"type" json:"type"`          // "serial" or "demo"
	PortPath string `yaml:"port_path" json:"portPath"` // e.g. /dev/ttyGPS
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
	PollHz   int    `yaml:"poll_hz" json:"pollHz"` // dashboard polling rate
}

type DriverConfig struct {
	AcquireTimeoutMs   int     `yaml:"acquire_timeout_ms" json:"acquireTimeoutMs"`
	AckTimeoutMs       int     `yaml:"ack_timeout_ms" json:"ackTimeoutMs"`
	HorizontalNoiseM   float64 `yaml:"horizontal_noise_m" json:"horizontalNoiseM"`
	VerticalNoiseM     float64 `yaml:"vertical_noise_m" json:"verticalNoiseM"`
	RateHz             float64 `yaml:"rate_hz" json:"rateHz"` // receiver output rate applied at startup
	MeasurementsPerFix int     `yaml:"measurements_per_fix" json:"measurementsPerFix"`
}

type LoggingConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Path     string `yaml:"path" json:"path"`
	Interval int    `yaml:"interval_ms" json:"intervalMs"` // ms between log entries
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listenAddr"`
	Kiosk      bool   `yaml:"kiosk" json:"kiosk"` // Auto-launch Chromium
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		GNSS: GNSSConfig{
			Type:     "demo",
			PortPath: "/dev/ttyGPS",
			BaudRate: 9600,
			PollHz:   5,
		},
		Driver: DriverConfig{
			AcquireTimeoutMs:   1000,
			AckTimeoutMs:       1000,
			HorizontalNoiseM:   2.5,
			VerticalNoiseM:     5.0,
			RateHz:             0, // 0 leaves the receiver's configured rate alone
			MeasurementsPerFix: 1,
		},
		Logging: LoggingConfig{
			Enabled:  false,
			Path:     "/var/log/neom8-dash",
			Interval: 100,
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
			Kiosk:      false,
		},
	}
}

// LoadConfig reads config from a YAML file, then applies .env and environment
// variable overrides. Falls back to defaults if YAML not found.
func LoadConfig(path string) *Config {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[config] no config at %s, using defaults", path)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("[config] error parsing %s: %v, using defaults", path, err)
		cfg = DefaultConfig()
		cfg.path = path
	} else {
		log.Printf("[config] loaded from %s", path)
	}

	// Load .env file from the same directory as the config, or from CWD
	envPaths := []string{
		filepath.Join(filepath.Dir(path), ".env"),
		".env",
	}
	for _, ep := range envPaths {
		loadEnvFile(ep)
	}

	// Apply environment variable overrides
	cfg.applyEnvOverrides()
	return cfg
}

// loadEnvFile reads a simple KEY=VALUE .env file and sets os env vars.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	log.Printf("[config] loading .env from %s", path)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		// Strip surrounding quotes
		val = strings.Trim(val, `"'`)
		// Only set if not already set in real env (real env takes precedence)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: GNSS_TYPE, GNSS_PORT, GNSS_BAUD, GNSS_POLL_HZ, GNSS_RATE_HZ,
// LISTEN_ADDR, LOG_ENABLED, LOG_PATH, LOG_INTERVAL_MS
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GNSS_TYPE"); v != "" {
		c.GNSS.Type = v
	}
	if v := os.Getenv("GNSS_PORT"); v != "" {
		c.GNSS.PortPath = v
	}
	if v := os.Getenv("GNSS_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.GNSS.BaudRate = n
		}
	}
	if v := os.Getenv("GNSS_POLL_HZ"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.GNSS.PollHz = n
		}
	}
	if v := os.Getenv("GNSS_RATE_HZ"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			c.Driver.RateHz = n
		}
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	// Logging
	if v := os.Getenv("LOG_ENABLED"); v != "" {
		c.Logging.Enabled = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("LOG_PATH"); v != "" {
		c.Logging.Path = v
	}
	if v := os.Getenv("LOG_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Logging.Interval = n
		}
	}
}

// Save writes the config to its YAML file.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.path == "" {
		c.path = "/etc/neom8-dash/config.yaml"
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0644)
}

// ToJSON serializes config for the API.
func (c *Config) ToJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(c)
}

// UpdateFromJSON applies a partial JSON config update by deep-merging
// incoming fields into the existing config. Fields not present in the
// incoming JSON are preserved (e.g. port paths, baud rates, logging).
func (c *Config) UpdateFromJSON(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Marshal current config to a generic map
	currentBytes, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal current config: %w", err)
	}
	var base map[string]interface{}
	if err := json.Unmarshal(currentBytes, &base); err != nil {
		return fmt.Errorf("unmarshal current config: %w", err)
	}

	// Unmarshal incoming partial update to a map
	var patch map[string]interface{}
	if err := json.Unmarshal(data, &patch); err != nil {
		return fmt.Errorf("unmarshal patch: %w", err)
	}

	// Deep merge patch into base
	deepMerge(base, patch)

	// Marshal merged result and unmarshal back into the config struct
	merged, err := json.Marshal(base)
	if err != nil {
		return fmt.Errorf("marshal merged config: %w", err)
	}
	return json.Unmarshal(merged, c)
}

// deepMerge recursively merges src into dst. For nested maps, values are
// merged rather than replaced. For all other types, src overwrites dst.
func deepMerge(dst, src map[string]interface{}) {
	for key, srcVal := range src {
		if srcMap, ok := srcVal.(map[string]interface{}); ok {
			if dstMap, ok := dst[key].(map[string]interface{}); ok {
				deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[key] = srcVal
	}
}
