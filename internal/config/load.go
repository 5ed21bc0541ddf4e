package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Load reads a config file, applies command line overrides on top,
// fills defaults, and validates. This is the one entry point the CLI
// uses.
func Load(path string, overrides map[string]string) (*ClusterConfig, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyOverrides(overrides); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadFile reads and parses the configuration from a YAML file. No
// defaults are applied and nothing is validated; callers layer
// overrides first.
func LoadFile(path string) (*ClusterConfig, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}
	for key := range raw {
		if _, ok := FieldByName(key); !ok {
			return nil, fmt.Errorf("unknown config field %q", key)
		}
	}

	var cfg ClusterConfig
	if err := mapstructure.Decode(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	// Defaults-to-true booleans cannot ride ApplyDefaults, which only
	// sees the zero value. Presence in the raw map is the signal.
	if _, set := raw["ebs_optimized"]; !set {
		cfg.EBSOptimized = true
	}
	return &cfg, nil
}

// ApplyOverrides layers string-valued command line overrides onto the
// config. Values are coerced to the field's declared type, so "3" is a
// valid node_count and "true" a valid bool.
func (c *ClusterConfig) ApplyOverrides(overrides map[string]string) error {
	if len(overrides) == 0 {
		return nil
	}

	raw := make(map[string]interface{}, len(overrides))
	for key, value := range overrides {
		field, ok := FieldByName(key)
		if !ok {
			return fmt.Errorf("unknown config field %q", key)
		}
		coerced, err := coerceOverride(field, value)
		if err != nil {
			return err
		}
		raw[key] = coerced
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("failed to apply overrides: %w", err)
	}
	return nil
}

// coerceOverride turns a flag string into the shape mapstructure
// expects for the field: lists split on commas, maps parse k=v pairs,
// scalars pass through for weak typing to handle.
func coerceOverride(field Field, value string) (interface{}, error) {
	switch field.Type {
	case TypeStringList:
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return items, nil
	case TypeStringMap:
		entries := map[string]string{}
		for _, pair := range strings.Split(value, ",") {
			if pair = strings.TrimSpace(pair); pair == "" {
				continue
			}
			key, val, found := strings.Cut(pair, "=")
			if !found {
				return nil, fmt.Errorf("%s entries must be key=value, got %q", field.Name, pair)
			}
			entries[strings.TrimSpace(key)] = strings.TrimSpace(val)
		}
		return entries, nil
	default:
		return value, nil
	}
}

// ApplyDefaults fills zero-valued optional fields from the schema
// defaults.
func (c *ClusterConfig) ApplyDefaults() {
	if c.InstanceType == "" {
		c.InstanceType = "m5.large"
	}
	if c.EBSType == "" {
		c.EBSType = "gp3"
	}
	if c.EBSSizeGB == 0 {
		c.EBSSizeGB = 100
	}
	if c.Username == "" {
		c.Username = "ubuntu"
	}
	if c.SlotsPerNode == 0 {
		c.SlotsPerNode = 8
	}
}

// WriteFile renders the config as YAML. Used by the init wizard.
func (c *ClusterConfig) WriteFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
