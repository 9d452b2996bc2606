package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Supported bus protocols.
const (
	BusAHBLite = "amba3ahblite"
	BusAPB4    = "apb4"
)

// Description bits select which node kinds carry their desc property into the RTL.
const (
	DescAddrMap  = 1 << iota // 1
	DescRegFile              // 2
	DescMemory               // 4
	DescRegister             // 8
	DescField                // 16

	DescAll = DescAddrMap | DescRegFile | DescMemory | DescRegister | DescField
)

// Config is the top-level configuration for rdl2sv
type Config struct {
	// Bus selects the bus widget: "amba3ahblite" or "apb4"
	Bus string `json:"bus,omitempty"`

	// AddressWidth is the width of the bus address in bits
	AddressWidth int `json:"addressWidth,omitempty"`

	// Enums turns encode properties into SystemVerilog enum packages
	Enums *bool `json:"enums,omitempty"`

	// NoByteEnable tells the widget to ignore bus byte strobes
	NoByteEnable bool `json:"noByteEnable,omitempty"`

	// Descriptions is a bitfield of node kinds whose desc is emitted
	Descriptions int `json:"descriptions,omitempty"`

	// External turns every register into an external register
	External bool `json:"external,omitempty"`

	// Output contains formatting and destination options
	Output OutputConfig `json:"output,omitempty"`

	// Checks contains sanity check options
	Checks ChecksConfig `json:"checks,omitempty"`

	// Log contains logging options
	Log LogConfig `json:"log,omitempty"`

	// Policy contains register-map policy options
	Policy PolicyConfig `json:"policy,omitempty"`

	// Export contains register-map database options
	Export ExportConfig `json:"export,omitempty"`

	// Timing contains pipeline timing options
	Timing TimingConfig `json:"timing,omitempty"`
}

// OutputConfig controls where and how RTL is written
type OutputConfig struct {
	// Dir is the output directory (relative to cwd if not absolute)
	Dir string `json:"dir,omitempty"`

	// TabWidth is the number of indent characters per level
	TabWidth int `json:"tabWidth,omitempty"`

	// RealTabs indents with tab characters instead of spaces
	RealTabs bool `json:"realTabs,omitempty"`
}

// ChecksConfig contains sanity check options
type ChecksConfig struct {
	// DisableSanity suppresses sanity warnings. Fatal checks always run.
	DisableSanity bool `json:"disableSanity,omitempty"`

	// IllegalAddressError makes the read mux answer unmapped addresses with an error
	IllegalAddressError bool `json:"illegalAddressError,omitempty"`
}

// LogConfig contains logging options
type LogConfig struct {
	// Level is the console level: "debug", "info", "warning", "error"
	Level string `json:"level,omitempty"`

	// File is an optional log file
	File string `json:"file,omitempty"`

	// FileLevel is the log file level
	FileLevel string `json:"fileLevel,omitempty"`
}

// PolicyConfig controls the register-map policy engine
type PolicyConfig struct {
	// Enabled turns the policy checks on
	Enabled *bool `json:"enabled,omitempty"`

	// Errors turns policy violations of severity "error" into fatal errors
	Errors bool `json:"errors,omitempty"`

	// Dir holds extra .rego files evaluated with the built-in rules
	Dir string `json:"dir,omitempty"`
}

// ExportConfig controls the SQLite register-map export
type ExportConfig struct {
	// SQLite is the database name. Empty disables the export, "auto" picks a unique name.
	SQLite string `json:"sqlite,omitempty"`
}

// TimingConfig controls the JSONL stage timing output
type TimingConfig struct {
	// Path of the JSONL file. Empty disables timing.
	Path string `json:"path,omitempty"`
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Bus:          BusAHBLite,
		AddressWidth: 32,
		Enums:        boolPtr(true),
		Descriptions: 0,
		Output: OutputConfig{
			Dir:      ".",
			TabWidth: 4,
		},
		Log: LogConfig{
			Level:     "info",
			FileLevel: "info",
		},
		Policy: PolicyConfig{
			Enabled: boolPtr(true),
		},
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// Load finds and loads the configuration file
// Search order:
//  1. ./rdl2sv.json (current working directory)
//  2. ./.rdl2sv.json (current working directory)
//  3. <inputDir>/rdl2sv.json (if different from cwd)
//  4. ~/.config/rdl2sv/config.json
//
// Returns DefaultConfig if no config file is found
func Load(inputPath string) (*Config, error) {
	cwd, _ := os.Getwd()

	searchPaths := []string{
		filepath.Join(cwd, "rdl2sv.json"),
		filepath.Join(cwd, ".rdl2sv.json"),
	}

	// Inputs are files; look next to them
	if inputPath != "" {
		dir := inputPath
		if info, err := os.Stat(inputPath); err == nil && !info.IsDir() {
			dir = filepath.Dir(inputPath)
		}
		absDir, _ := filepath.Abs(dir)
		if absDir != cwd {
			searchPaths = append(searchPaths,
				filepath.Join(dir, "rdl2sv.json"),
				filepath.Join(dir, ".rdl2sv.json"),
			)
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "rdl2sv", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific file
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	return &cfg, nil
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	def := DefaultConfig()

	if c.Bus == "" {
		c.Bus = def.Bus
	}
	if c.AddressWidth == 0 {
		c.AddressWidth = def.AddressWidth
	}
	if c.Enums == nil {
		c.Enums = def.Enums
	}
	if c.Output.Dir == "" {
		c.Output.Dir = def.Output.Dir
	}
	if c.Output.TabWidth == 0 && !c.Output.RealTabs {
		c.Output.TabWidth = def.Output.TabWidth
	}
	if c.Output.TabWidth == 0 && c.Output.RealTabs {
		c.Output.TabWidth = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.FileLevel == "" {
		c.Log.FileLevel = def.Log.FileLevel
	}
	if c.Policy.Enabled == nil {
		c.Policy.Enabled = def.Policy.Enabled
	}
}

// Validate rejects values the generator cannot honor
func (c *Config) Validate() error {
	switch c.Bus {
	case BusAHBLite, BusAPB4:
	default:
		return fmt.Errorf("unsupported bus %q (want %s or %s)", c.Bus, BusAHBLite, BusAPB4)
	}
	if c.AddressWidth < 1 || c.AddressWidth > 64 {
		return fmt.Errorf("address width %d out of range 1..64", c.AddressWidth)
	}
	if c.Descriptions < 0 || c.Descriptions > DescAll {
		return fmt.Errorf("descriptions bitfield %d out of range 0..%d", c.Descriptions, DescAll)
	}
	if c.Output.TabWidth < 0 {
		return fmt.Errorf("negative tab width %d", c.Output.TabWidth)
	}
	return nil
}

// Save writes the configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// EnumsEnabled reports whether encode properties become enum packages
func (c *Config) EnumsEnabled() bool {
	return c.Enums == nil || *c.Enums
}

// PolicyEnabled reports whether register-map policies run
func (c *Config) PolicyEnabled() bool {
	return c.Policy.Enabled == nil || *c.Policy.Enabled
}

// DescribeKind reports whether the desc property of a node kind is emitted
func (c *Config) DescribeKind(bit int) bool {
	return c.Descriptions&bit != 0
}
