package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProfileHost    = "host"
	ProfileServer  = "server"
	ProfileNetwork = "network"

	StoreCSV    = "csv"
	StoreSQLite = "sqlite"
)

var (
	ErrUnknownProfile = errors.New("unknown profile")
	ErrUnknownStore   = errors.New("unknown store kind")
	ErrInvalid        = errors.New("invalid configuration")
)

var defaultLogPaths = map[string]string{
	ProfileHost:    "data/log.csv",
	ProfileServer:  "data/server_log.csv",
	ProfileNetwork: "data/network_log.csv",
}

type Config struct {
	Profile           string          `yaml:"profile"`
	Interval          time.Duration   `yaml:"interval"`
	CPUSampleWindow   time.Duration   `yaml:"cpu_sample_window"`
	Thresholds        Thresholds      `yaml:"thresholds"`
	PortScanThreshold int             `yaml:"port_scan_threshold"`
	Store             StoreConfig     `yaml:"store"`
	Models            ModelsConfig    `yaml:"models"`
	Narrative         NarrativeConfig `yaml:"narrative"`
	RedisAddr         string          `yaml:"redis_addr"`
	HTTPAddr          string          `yaml:"http_addr"`
	LogLevel          string          `yaml:"log_level"`
}

type Thresholds struct {
	CPU    float64 `yaml:"cpu"`
	Memory float64 `yaml:"memory"`
	Disk   float64 `yaml:"disk"`
}

type StoreConfig struct {
	Kind string `yaml:"kind"`
	// Path defaults per profile when empty.
	Path string `yaml:"path"`
}

type ModelsConfig struct {
	Binary     string `yaml:"binary"`
	Multiclass string `yaml:"multiclass"`
}

type NarrativeConfig struct {
	Enabled     bool          `yaml:"enabled"`
	URL         string        `yaml:"url"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	APIKey      string        `yaml:"-"`
}

func Default() Config {
	return Config{
		Profile:         ProfileHost,
		Interval:        5 * time.Second,
		CPUSampleWindow: time.Second,
		Thresholds: Thresholds{
			CPU:    85,
			Memory: 85,
			Disk:   90,
		},
		PortScanThreshold: 10,
		Store:             StoreConfig{Kind: StoreCSV},
		Models: ModelsConfig{
			Binary:     "models/binary_model.json",
			Multiclass: "models/multiclass_model.json",
		},
		Narrative: NarrativeConfig{
			Enabled:     true,
			URL:         "https://api.groq.com/openai/v1/chat/completions",
			Model:       "llama3-70b-8192",
			Temperature: 0.5,
			Timeout:     15 * time.Second,
		},
		HTTPAddr: ":8080",
		LogLevel: "info",
	}
}

// Load applies, in order: defaults, the YAML file at path (a missing file is
// not an error), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return cfg, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.Store.Path == "" {
		cfg.Store.Path = defaultLogPaths[cfg.Profile]
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	cfg.Profile = envOrDefault("MONITOR_PROFILE", cfg.Profile)
	cfg.Store.Path = envOrDefault("MONITOR_LOG_PATH", cfg.Store.Path)
	cfg.Store.Kind = envOrDefault("MONITOR_STORE", cfg.Store.Kind)
	cfg.RedisAddr = envOrDefault("REDIS_ADDR", cfg.RedisAddr)
	cfg.LogLevel = envOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.Narrative.APIKey = envOrDefault("GROQ_API_KEY", cfg.Narrative.APIKey)
	if port := os.Getenv("PORT"); port != "" {
		cfg.HTTPAddr = ":" + port
	}
	if v := os.Getenv("MONITOR_INTERVAL_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.Interval = time.Duration(secs) * time.Second
		}
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c Config) Validate() error {
	if _, ok := defaultLogPaths[c.Profile]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProfile, c.Profile)
	}
	if c.Store.Kind != StoreCSV && c.Store.Kind != StoreSQLite {
		return fmt.Errorf("%w: %q", ErrUnknownStore, c.Store.Kind)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %v", ErrInvalid, c.Interval)
	}
	if c.CPUSampleWindow < 0 {
		return fmt.Errorf("%w: cpu_sample_window must not be negative", ErrInvalid)
	}
	for name, v := range map[string]float64{"cpu": c.Thresholds.CPU, "memory": c.Thresholds.Memory, "disk": c.Thresholds.Disk} {
		if v <= 0 || v > 100 {
			return fmt.Errorf("%w: %s threshold %v outside (0,100]", ErrInvalid, name, v)
		}
	}
	if c.PortScanThreshold <= 0 {
		return fmt.Errorf("%w: port_scan_threshold must be positive", ErrInvalid)
	}
	return nil
}

// NarrativeActive reports whether explanations should be augmented.
func (c Config) NarrativeActive() bool {
	return c.Narrative.Enabled && c.Narrative.APIKey != ""
}
