// Package config loads the migration run configuration: per-source column
// aliases for the logical identity fields, phone normalization settings,
// and the sentinel values upstream systems use for "no value".
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rmaia/idlink/internal/domain"
	"github.com/rmaia/idlink/internal/normalize"
)

// FieldMap lists, per logical field, the source columns to try in order.
// Different upstream systems name the same field differently ("CONSULTOR",
// "cliente_id", "ID"); adding a system is configuration, not code.
type FieldMap struct {
	LegacyID []string `yaml:"legacy_id"`
	Document []string `yaml:"document"`
	Phone    []string `yaml:"phone"`
	Email    []string `yaml:"email"`
	Name     []string `yaml:"name"`
	// UUID is only meaningful on the target set: a column that already
	// carries the canonical identity for the record.
	UUID []string `yaml:"uuid"`
}

// Fields converts the alias lists to the normalizer's field spec.
func (m FieldMap) Fields() normalize.Fields {
	return normalize.Fields{
		LegacyID: m.LegacyID,
		Document: m.Document,
		Phone:    m.Phone,
		Email:    m.Email,
		Name:     m.Name,
	}
}

// Config is the full run configuration.
type Config struct {
	StorePath       string              `yaml:"store_path"`
	DefaultAreaCode string              `yaml:"default_area_code"`
	EmptySentinels  []string            `yaml:"empty_sentinels"`
	FuzzyName       bool                `yaml:"fuzzy_name"`
	Workers         int                 `yaml:"workers"`
	Target          FieldMap            `yaml:"target"`
	Sources         map[string]FieldMap `yaml:"sources"`
}

// Defaults observed across the upstream systems; overridable per run.
var defaultSentinels = []string{"nan", "none", "null", "SEM EMAIL", "SEM TELEFONE", "-"}

// Load reads configuration from a YAML file, applying .env.local (if
// present) and environment variable overrides, then validates it.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env.local")

	cfg := &Config{
		DefaultAreaCode: "11",
		EmptySentinels:  defaultSentinels,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if storePath := os.Getenv("IDLINK_STORE_PATH"); storePath != "" {
		cfg.StorePath = storePath
	}
	if area := os.Getenv("IDLINK_AREA_CODE"); area != "" {
		cfg.DefaultAreaCode = area
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration before any record is processed, so a
// bad alias map fails the run up front instead of half-way through.
func (c *Config) Validate() error {
	if len(c.Target.LegacyID) == 0 {
		return &domain.ConfigError{Source: "target", Field: "legacy_id", Reason: "at least one column alias is required"}
	}
	if len(c.Sources) == 0 {
		return &domain.ConfigError{Field: "sources", Reason: "at least one source system is required"}
	}
	for name, m := range c.Sources {
		if len(m.LegacyID) == 0 {
			return &domain.ConfigError{Source: name, Field: "legacy_id", Reason: "at least one column alias is required"}
		}
		if len(m.UUID) > 0 {
			return &domain.ConfigError{Source: name, Field: "uuid", Reason: "uuid aliases are only valid on the target set"}
		}
	}
	if c.Workers < 0 {
		return &domain.ConfigError{Field: "workers", Reason: "must be zero (auto) or positive"}
	}
	if c.DefaultAreaCode != "" && len(c.DefaultAreaCode) != 2 {
		return &domain.ConfigError{Field: "default_area_code", Reason: "must be two digits or empty"}
	}
	return nil
}

// Source returns the alias map for a named source system.
func (c *Config) Source(name string) (FieldMap, error) {
	m, ok := c.Sources[name]
	if !ok {
		return FieldMap{}, &domain.ConfigError{Source: name, Field: "sources", Reason: "source system not configured"}
	}
	return m, nil
}

// Normalizer builds the normalizer configured for this run.
func (c *Config) Normalizer() *normalize.Normalizer {
	return normalize.New(c.DefaultAreaCode, c.EmptySentinels)
}
