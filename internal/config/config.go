package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	LogFile       string `json:"log_file"`
	Listen        string `json:"listen"`
	MaxConcurrent int    `json:"max_concurrent"`
	Backend       struct {
		MaxAttempts  int `json:"max_attempts"`
		ReplyDelayMS int `json:"reply_delay_ms"`
	} `json:"backend"`
	Metrics struct {
		Enabled         bool   `json:"enabled"`
		IntervalSeconds int    `json:"interval_seconds"`
		File            string `json:"file"`
	} `json:"metrics"`
}

// DefaultPath returns ~/.agentdesk/config.json.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".agentdesk", "config.json")
}

func defaults() *Config {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".agentdesk"),
		MaxConcurrent: 4,
	}
	cfg.LogLevel = "info"
	cfg.Listen = "127.0.0.1:8420"
	cfg.Backend.MaxAttempts = 3
	cfg.Backend.ReplyDelayMS = 300
	cfg.Metrics.IntervalSeconds = 30
	return cfg
}

func Load(path string) (*Config, error) {
	cfg := defaults()

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if listen := os.Getenv("AGENTDESK_LISTEN"); listen != "" {
		cfg.Listen = listen
	}
	if level := os.Getenv("AGENTDESK_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if dir := os.Getenv("AGENTDESK_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}

	if cfg.Metrics.File == "" {
		cfg.Metrics.File = filepath.Join(cfg.DataDir, "metrics.jsonl")
	}
	return cfg, nil
}

// ReplyDelay is the simulated latency of the stub backend.
func (c *Config) ReplyDelay() time.Duration {
	return time.Duration(c.Backend.ReplyDelayMS) * time.Millisecond
}

// MetricsInterval is the export period of the metrics reader.
func (c *Config) MetricsInterval() time.Duration {
	return time.Duration(c.Metrics.IntervalSeconds) * time.Second
}

// PIDPath is where a running server records its pid.
func (c *Config) PIDPath() string {
	return filepath.Join(c.DataDir, "agentdesk.pid")
}

// Save writes cfg to path atomically, creating the parent directory.
func Save(path string, cfg *Config) error {
	m, err := ToMap(cfg)
	if err != nil {
		return err
	}
	return writeMap(path, m)
}

// ToMap converts cfg into its generic JSON form.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return m, nil
}

// ListValues returns every config value keyed by its dot-separated path.
func ListValues(cfg *Config) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	return Flatten(m), nil
}

// GetValue returns the value under key in the config file at path, writing
// defaults first if the file does not exist yet.
func GetValue(path, key string) (any, error) {
	if _, err := Load(path); err != nil {
		return nil, err
	}
	raw, err := readMap(path)
	if err != nil {
		return nil, err
	}
	v, ok := Flatten(raw)[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue sets key in the config file at path. value is parsed as JSON when
// it can be (numbers, booleans), otherwise stored as a string. The file must
// already exist.
func SetValue(path, key, value string) error {
	raw, err := readMap(path)
	if err != nil {
		return err
	}
	flat := Flatten(raw)
	flat[key] = parseValue(value)
	return writeMap(path, Unflatten(flat))
}

func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		switch v.(type) {
		case float64, bool:
			return v
		}
	}
	return s
}

func readMap(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return m, nil
}

func writeMap(path string, m map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
