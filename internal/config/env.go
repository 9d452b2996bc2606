package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override file configuration.
const (
	EnvBus           = "RDL2SV_BUS"
	EnvAddressWidth  = "RDL2SV_ADDRESS_WIDTH"
	EnvOutputDir     = "RDL2SV_OUTPUT_DIR"
	EnvLogLevel      = "RDL2SV_LOG_LEVEL"
	EnvLogFile       = "RDL2SV_LOG_FILE"
	EnvDisableSanity = "RDL2SV_DISABLE_SANITY"
	EnvExternal      = "RDL2SV_EXTERNAL"
	EnvExportSQLite  = "RDL2SV_EXPORT_SQLITE"
	EnvTiming        = "RDL2SV_TIMING"
)

// LoadDotEnv loads KEY=VALUE pairs from the given .env files into the
// process environment. Variables that are already set win. Missing files
// are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides configuration values from RDL2SV_* environment variables
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBus); ok && v != "" {
		c.Bus = strings.ToLower(v)
	}
	if v, ok := lookup(EnvAddressWidth); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAddressWidth, err)
		}
		c.AddressWidth = n
	}
	if v, ok := lookup(EnvOutputDir); ok && v != "" {
		c.Output.Dir = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvLogFile); ok && v != "" {
		c.Log.File = v
	}
	if v, ok := lookup(EnvDisableSanity); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDisableSanity, err)
		}
		c.Checks.DisableSanity = b
	}
	if v, ok := lookup(EnvExternal); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvExternal, err)
		}
		c.External = b
	}
	if v, ok := lookup(EnvExportSQLite); ok && v != "" {
		c.Export.SQLite = v
	}
	if v, ok := lookup(EnvTiming); ok && v != "" {
		c.Timing.Path = v
	}
	return c.Validate()
}
