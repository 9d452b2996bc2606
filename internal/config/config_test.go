package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rdl2sv.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"bus": "apb4", "checks": {"disableSanity": true}}`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, BusAPB4, cfg.Bus)
	assert.Equal(t, 32, cfg.AddressWidth)
	assert.True(t, cfg.EnumsEnabled())
	assert.True(t, cfg.Checks.DisableSanity)
	assert.Equal(t, 4, cfg.Output.TabWidth)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileRejectsUnknownBus(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rdl2sv.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"bus": "wishbone"}`), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wishbone")
}

func TestLoadFindsConfigNextToInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "top.json")
	require.NoError(t, os.WriteFile(input, []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rdl2sv.json"), []byte(`{"addressWidth": 16}`), 0o644))

	cfg, err := Load(input)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.AddressWidth)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rdl2sv.json")

	cfg := DefaultConfig()
	cfg.Descriptions = DescRegister | DescField
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, loaded.DescribeKind(DescField))
	assert.False(t, loaded.DescribeKind(DescAddrMap))
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		EnvBus:           "APB4",
		EnvAddressWidth:  "24",
		EnvDisableSanity: "true",
		EnvTiming:        "timing.jsonl",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	require.NoError(t, cfg.applyEnv(lookup))

	assert.Equal(t, BusAPB4, cfg.Bus)
	assert.Equal(t, 24, cfg.AddressWidth)
	assert.True(t, cfg.Checks.DisableSanity)
	assert.Equal(t, "timing.jsonl", cfg.Timing.Path)
}

func TestApplyEnvRejectsBadWidth(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == EnvAddressWidth {
			return "wide", true
		}
		return "", false
	}

	cfg := DefaultConfig()
	require.Error(t, cfg.applyEnv(lookup))
}

func TestLoadDotEnvSetsMissingVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("RDL2SV_OUTPUT_DIR=from_dotenv\n"), 0o644))
	t.Setenv(EnvOutputDir, "")
	os.Unsetenv(EnvOutputDir)

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from_dotenv", os.Getenv(EnvOutputDir))
}
