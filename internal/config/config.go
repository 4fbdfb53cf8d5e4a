package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Default file candidates, checked in order when no explicit path is given.
var defaultCandidates = []string{
	"config.yaml",
	"configs/config.yaml",
}

type Config struct {
	Gateway GatewayConfig `yaml:"gateway"`
	Push    PushConfig    `yaml:"push"`
	Storage StorageConfig `yaml:"storage"`
	Typing  TypingConfig  `yaml:"typing"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type GatewayConfig struct {
	BaseURL     string        `yaml:"base_url" env:"LINKGRID_GATEWAY_BASE_URL"`
	Timeout     time.Duration `yaml:"timeout" env:"LINKGRID_GATEWAY_TIMEOUT"`
	ReadRetries uint64        `yaml:"read_retries" env:"LINKGRID_GATEWAY_READ_RETRIES"`
}

type PushConfig struct {
	URL                  string        `yaml:"url" env:"LINKGRID_PUSH_URL"`
	ReconnectBackoffBase time.Duration `yaml:"reconnect_backoff_base" env:"LINKGRID_PUSH_BACKOFF_BASE"`
	ReconnectBackoffMax  time.Duration `yaml:"reconnect_backoff_max" env:"LINKGRID_PUSH_BACKOFF_MAX"`
	ReconnectMaxAttempts uint64        `yaml:"reconnect_max_attempts" env:"LINKGRID_PUSH_MAX_ATTEMPTS"`
	PingPeriod           time.Duration `yaml:"ping_period" env:"LINKGRID_PUSH_PING_PERIOD"`
}

// StorageConfig controls the encrypted local snapshots. An empty secret
// disables persistence entirely; state then lives in memory only.
type StorageConfig struct {
	Dir    string `yaml:"dir" env:"LINKGRID_STORAGE_DIR"`
	Secret string `yaml:"secret" env:"LINKGRID_STORAGE_SECRET"`
}

type TypingConfig struct {
	Expiry       time.Duration `yaml:"expiry" env:"LINKGRID_TYPING_EXPIRY"`
	PublishRPS   float64       `yaml:"publish_rps" env:"LINKGRID_TYPING_PUBLISH_RPS"`
	PublishBurst int           `yaml:"publish_burst" env:"LINKGRID_TYPING_PUBLISH_BURST"`
}

type LoggingConfig struct {
	Level string `yaml:"level" env:"LINKGRID_LOG_LEVEL"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"LINKGRID_METRICS_ENABLED"`
	Addr    string `yaml:"addr" env:"LINKGRID_METRICS_ADDR"`
}

func Default() Config {
	return Config{
		Gateway: GatewayConfig{
			Timeout:     15 * time.Second,
			ReadRetries: 2,
		},
		Push: PushConfig{
			ReconnectBackoffBase: time.Second,
			ReconnectBackoffMax:  30 * time.Second,
			PingPeriod:           25 * time.Second,
		},
		Storage: StorageConfig{
			Dir: defaultStorageDir(),
		},
		Typing: TypingConfig{
			Expiry:       3 * time.Second,
			PublishRPS:   1,
			PublishBurst: 1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9464",
		},
	}
}

// Load builds the effective config: defaults, then the yaml file (explicit
// path or the first candidate found), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}
	if resolved != "" {
		raw, err := os.ReadFile(resolved)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", resolved, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("apply env overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Gateway.BaseURL) == "" {
		return fmt.Errorf("gateway.base_url is required")
	}
	if strings.TrimSpace(c.Push.URL) == "" {
		return fmt.Errorf("push.url is required")
	}
	if c.Push.ReconnectBackoffBase <= 0 {
		return fmt.Errorf("push.reconnect_backoff_base must be positive")
	}
	if c.Push.ReconnectBackoffMax < c.Push.ReconnectBackoffBase {
		return fmt.Errorf("push.reconnect_backoff_max must be >= the base delay")
	}
	if c.Typing.Expiry <= 0 {
		return fmt.Errorf("typing.expiry must be positive")
	}
	return nil
}

// SnapshotPath places one named snapshot file under the storage dir.
func (c StorageConfig) SnapshotPath(name string) string {
	if strings.TrimSpace(c.Dir) == "" || strings.TrimSpace(c.Secret) == "" {
		return ""
	}
	return filepath.Join(c.Dir, name)
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config file %s: %w", path, err)
		}
		return path, nil
	}
	for _, candidate := range defaultCandidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

func defaultStorageDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".linkgrid"
	}
	return filepath.Join(home, ".linkgrid")
}
