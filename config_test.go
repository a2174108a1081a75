package gx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celer/gx/native"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	lo, err := cfg.stagingMin()
	require.NoError(t, err)
	hi, err := cfg.stagingMax()
	require.NoError(t, err)
	assert.Equal(t, uint64(4<<20), lo)
	assert.Equal(t, uint64(128<<20), hi)
}

func TestLoadConfigTOML(t *testing.T) {
	path := writeConfig(t, "gx.toml", `
app_name = "viewer"
validation = true
width = 800
height = 600
present_mode = "mailbox"
staging_max_size = "64MB"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "viewer", cfg.AppName)
	assert.Equal(t, "4MB", cfg.StagingMinSize)
	assert.Equal(t, uint32(16), cfg.InitialTextures)

	b := cfg.Backend()
	assert.True(t, b.Validation)
	assert.Equal(t, uint32(800), b.Width)
	assert.Equal(t, native.PresentMailbox, b.PresentMode)
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfig(t, "gx.yaml", "present_mode: immediate\ninitial_textures: 64\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(64), cfg.InitialTextures)
	assert.Equal(t, native.PresentImmediate, cfg.Backend().PresentMode)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "gx.json", "{}"))
	assert.ErrorContains(t, err, "unknown config format")

	_, err = LoadConfig(writeConfig(t, "bad.toml", "width = ["))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"present mode":    func(c *Config) { c.PresentMode = "vsync" },
		"staging size":    func(c *Config) { c.StagingMinSize = "lots" },
		"staging order":   func(c *Config) { c.StagingMinSize, c.StagingMaxSize = "8MB", "1MB" },
		"negative size":   func(c *Config) { c.StagingMaxSize = "-1" },
		"immediate slots": func(c *Config) { c.ImmediateSlots = 32 },
		"textures":        func(c *Config) { c.InitialTextures = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
