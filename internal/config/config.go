package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/patchwaste/internal/findings"
)

// DefaultFileName is looked up in the working directory when no --config
// is given.
const DefaultFileName = "patchwaste.yaml"

// DefaultMaxTotalBytesScanned caps how many log bytes a directory scan reads.
const DefaultMaxTotalBytesScanned int64 = 50 * 1024 * 1024

// Config represents the patchwaste configuration.
type Config struct {
	BudgetRatio          *float64           `yaml:"budget_ratio,omitempty"`
	Strict               bool               `yaml:"strict"`
	Format               string             `yaml:"format"`
	Out                  string             `yaml:"out"`
	MaxTotalBytesScanned int64              `yaml:"max_total_bytes_scanned"`
	DepotBudgets         map[string]float64 `yaml:"depot_budgets,omitempty"`
	DisabledRules        []string           `yaml:"disabled_rules,omitempty"`

	// Source is the file the config was read from, if any.
	Source string `yaml:"-"`
}

// fileConfig mirrors Config with every field optional so that an explicit
// false or zero in the file can be told apart from an absent key.
type fileConfig struct {
	BudgetRatio          *float64           `yaml:"budget_ratio"`
	Strict               *bool              `yaml:"strict"`
	Format               *string            `yaml:"format"`
	Out                  *string            `yaml:"out"`
	MaxTotalBytesScanned *int64             `yaml:"max_total_bytes_scanned"`
	DepotBudgets         map[string]float64 `yaml:"depot_budgets"`
	DisabledRules        []string           `yaml:"disabled_rules"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Format:               "json",
		Out:                  "patchwaste-out",
		MaxTotalBytesScanned: DefaultMaxTotalBytesScanned,
	}
}

// ResolvePath returns the config file to read: the explicit path, or
// DefaultFileName when it exists, or "" for none.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(DefaultFileName); err == nil {
		return DefaultFileName
	}
	return ""
}

func loadFile(path string) (fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("reading config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fileConfig{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return fc, nil
}

// Save writes the config to path as YAML.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Init writes a default config file at path. It refuses to overwrite.
func Init(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config file: %w", err)
	}
	return Save(path, Default())
}

// Load builds the effective config by merging: defaults <- file <- env <- overrides.
// The overrides map comes from CLI flags (only flags the user set should be present).
func Load(path string, overrides map[string]string) (Config, error) {
	cfg, err := LoadFile(ResolvePath(path))
	if err != nil {
		return Config{}, err
	}
	if err := mergeEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := mergeOverrides(&cfg, overrides); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile returns the defaults overlaid with the file at path, ignoring the
// environment. An empty path yields the defaults. The result is not validated.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	fc, err := loadFile(path)
	if err != nil {
		return Config{}, err
	}
	mergeFile(&cfg, fc)
	cfg.Source = path
	return cfg, nil
}

func mergeFile(dst *Config, src fileConfig) {
	if src.BudgetRatio != nil {
		v := *src.BudgetRatio
		dst.BudgetRatio = &v
	}
	if src.Strict != nil {
		dst.Strict = *src.Strict
	}
	if src.Format != nil && *src.Format != "" {
		dst.Format = *src.Format
	}
	if src.Out != nil && *src.Out != "" {
		dst.Out = *src.Out
	}
	if src.MaxTotalBytesScanned != nil {
		dst.MaxTotalBytesScanned = *src.MaxTotalBytesScanned
	}
	if len(src.DepotBudgets) > 0 {
		dst.DepotBudgets = make(map[string]float64, len(src.DepotBudgets))
		for k, v := range src.DepotBudgets {
			dst.DepotBudgets[k] = v
		}
	}
	if len(src.DisabledRules) > 0 {
		dst.DisabledRules = append([]string(nil), src.DisabledRules...)
	}
}

// envKeys maps environment variables to config keys.
var envKeys = []struct{ env, key string }{
	{"PATCHWASTE_BUDGET_RATIO", "budget_ratio"},
	{"PATCHWASTE_STRICT", "strict"},
	{"PATCHWASTE_FORMAT", "format"},
	{"PATCHWASTE_OUT", "out"},
	{"PATCHWASTE_MAX_TOTAL_BYTES_SCANNED", "max_total_bytes_scanned"},
}

func mergeEnv(cfg *Config) error {
	for _, e := range envKeys {
		v := strings.TrimSpace(os.Getenv(e.env))
		if v == "" {
			continue
		}
		if err := SetField(cfg, e.key, v); err != nil {
			return fmt.Errorf("%s: %w", e.env, err)
		}
	}
	return nil
}

func mergeOverrides(cfg *Config, overrides map[string]string) error {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := overrides[k]
		if v == "" {
			continue
		}
		if err := SetField(cfg, k, v); err != nil {
			return fmt.Errorf("--%s: %w", strings.ReplaceAll(k, "_", "-"), err)
		}
	}
	return nil
}

// Keys lists the keys SetField accepts.
func Keys() []string {
	return []string{
		"budget_ratio", "strict", "format", "out", "max_total_bytes_scanned",
		"depot_budgets.<depot>", "disabled_rules",
	}
}

// SetField sets a single config field by key name. Returns error if key is unknown.
func SetField(cfg *Config, key, value string) error {
	if depot, ok := strings.CutPrefix(key, "depot_budgets."); ok {
		if depot == "" {
			return fmt.Errorf("depot_budgets key needs a depot id")
		}
		r, err := parseRatio(value)
		if err != nil {
			return fmt.Errorf("depot_budgets.%s: %w", depot, err)
		}
		if cfg.DepotBudgets == nil {
			cfg.DepotBudgets = map[string]float64{}
		}
		cfg.DepotBudgets[depot] = r
		return nil
	}

	switch key {
	case "budget_ratio":
		r, err := parseRatio(value)
		if err != nil {
			return fmt.Errorf("budget_ratio: %w", err)
		}
		cfg.BudgetRatio = &r
	case "strict":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("strict must be true or false: %w", err)
		}
		cfg.Strict = b
	case "format":
		cfg.Format = value
	case "out":
		cfg.Out = value
	case "max_total_bytes_scanned":
		n, err := strconv.ParseInt(strings.ReplaceAll(value, "_", ""), 10, 64)
		if err != nil {
			return fmt.Errorf("max_total_bytes_scanned must be an integer: %w", err)
		}
		cfg.MaxTotalBytesScanned = n
	case "disabled_rules":
		cfg.DisabledRules = nil
		for _, c := range strings.Split(value, ",") {
			if c = strings.TrimSpace(c); c != "" {
				cfg.DisabledRules = append(cfg.DisabledRules, strings.ToUpper(c))
			}
		}
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func parseRatio(value string) (float64, error) {
	r, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("must be a number: %w", err)
	}
	if !validRatio(r) {
		return 0, fmt.Errorf("must be a finite number greater than 0, got %v", r)
	}
	return r, nil
}

func validRatio(r float64) bool {
	return r > 0 && !math.IsInf(r, 0)
}

// Validate checks values that merging cannot catch.
func (c Config) Validate() error {
	switch c.Format {
	case "json", "junit", "sarif", "all":
	default:
		return fmt.Errorf("invalid format %q (want json, junit, sarif or all)", c.Format)
	}
	if c.BudgetRatio != nil && !validRatio(*c.BudgetRatio) {
		return fmt.Errorf("budget_ratio must be a finite number greater than 0")
	}
	for id, r := range c.DepotBudgets {
		if !validRatio(r) {
			return fmt.Errorf("depot_budgets.%s must be a finite number greater than 0", id)
		}
	}
	if c.MaxTotalBytesScanned <= 0 {
		return fmt.Errorf("max_total_bytes_scanned must be greater than 0")
	}
	if err := findings.ValidateCodes(c.DisabledRules); err != nil {
		return fmt.Errorf("disabled_rules: %w", err)
	}
	return nil
}
