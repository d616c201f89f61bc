package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/user/innorebase/pkg/rebase"
	"github.com/user/innorebase/pkg/uninstlog"
)

// Config represents the innorebase configuration file
type Config struct {
	Rules       []Rule   `yaml:"rules"`
	RecordTypes []string `yaml:"record_types"`
	Backup      bool     `yaml:"backup"`
	Logging     Logging  `yaml:"logging"`
}

// Rule is one prefix substitution
type Rule struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Logging contains logging configuration
type Logging struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		RecordTypes: []string{"DeleteDirOrFiles", "DeleteFile"},
		Backup:      true,
		Logging: Logging{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from the specified path. Keys missing
// from the file keep their default values.
func LoadConfig(configPath string) (*Config, error) {
	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// Validate checks that the configuration can drive a rebase
func (c *Config) Validate() error {
	if len(c.Rules) == 0 {
		return fmt.Errorf("no rebase rules configured")
	}
	for i, r := range c.Rules {
		if r.From == "" {
			return fmt.Errorf("rule %d: from prefix cannot be empty", i)
		}
	}
	if _, err := c.Types(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// RebaseRules converts the configured rules for the rebaser
func (c *Config) RebaseRules() []rebase.Rule {
	rules := make([]rebase.Rule, 0, len(c.Rules))
	for _, r := range c.Rules {
		rules = append(rules, rebase.Rule{From: r.From, To: r.To})
	}
	return rules
}

// Types resolves the configured record type names
func (c *Config) Types() ([]uninstlog.RecType, error) {
	types := make([]uninstlog.RecType, 0, len(c.RecordTypes))
	for _, name := range c.RecordTypes {
		t, err := uninstlog.RecTypeByName(name)
		if err != nil {
			return nil, fmt.Errorf("invalid record_types entry: %w", err)
		}
		types = append(types, t)
	}
	return types, nil
}

// Level maps logging.level to a slog level
func (c *Config) Level() (slog.Level, error) {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid logging level %q", c.Logging.Level)
}
