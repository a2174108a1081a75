package gx

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/docker/go-units"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/celer/gx/native"
)

const immediateSlots = 64

// Config is the user facing configuration of a GX context and the backend
// it runs on. Sizes are strings such as "4MB" so they read well in files.
type Config struct {
	AppName    string `toml:"app_name" yaml:"app_name"`
	AppVersion string `toml:"app_version" yaml:"app_version"`
	Validation bool   `toml:"validation" yaml:"validation"`

	Width       uint32 `toml:"width" yaml:"width"`
	Height      uint32 `toml:"height" yaml:"height"`
	PresentMode string `toml:"present_mode" yaml:"present_mode"`

	StagingMinSize string `toml:"staging_min_size" yaml:"staging_min_size"`
	StagingMaxSize string `toml:"staging_max_size" yaml:"staging_max_size"`

	InitialTextures uint32 `toml:"initial_textures" yaml:"initial_textures"`
	InitialSamplers uint32 `toml:"initial_samplers" yaml:"initial_samplers"`
	ImmediateSlots  int    `toml:"immediate_slots" yaml:"immediate_slots"`
}

func DefaultConfig() Config {
	return Config{
		AppName:         "gx",
		AppVersion:      "0.1.0",
		Width:           1280,
		Height:          720,
		PresentMode:     "fifo",
		StagingMinSize:  "4MB",
		StagingMaxSize:  "128MB",
		InitialTextures: 16,
		InitialSamplers: 16,
		ImmediateSlots:  immediateSlots,
	}
}

// LoadConfig reads a TOML or YAML file, picked by extension, on top of
// DefaultConfig and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return cfg, errors.Newf("unknown config format %q", filepath.Ext(path))
	}
	if err != nil {
		return cfg, errors.Wrapf(err, "parse %s", path)
	}
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.PresentMode == "" {
		c.PresentMode = def.PresentMode
	}
	if c.StagingMinSize == "" {
		c.StagingMinSize = def.StagingMinSize
	}
	if c.StagingMaxSize == "" {
		c.StagingMaxSize = def.StagingMaxSize
	}
	if c.InitialTextures == 0 {
		c.InitialTextures = def.InitialTextures
	}
	if c.InitialSamplers == 0 {
		c.InitialSamplers = def.InitialSamplers
	}
	if c.ImmediateSlots == 0 {
		c.ImmediateSlots = def.ImmediateSlots
	}
}

func (c Config) Validate() error {
	if _, err := c.presentMode(); err != nil {
		return err
	}
	lo, err := c.stagingMin()
	if err != nil {
		return err
	}
	hi, err := c.stagingMax()
	if err != nil {
		return err
	}
	if lo > hi {
		return errors.Newf("staging_min_size %s is larger than staging_max_size %s", c.StagingMinSize, c.StagingMaxSize)
	}
	if c.ImmediateSlots != immediateSlots {
		return errors.Newf("immediate_slots must be %d, got %d", immediateSlots, c.ImmediateSlots)
	}
	if c.InitialTextures == 0 || c.InitialSamplers == 0 {
		return errors.New("initial_textures and initial_samplers must be positive")
	}
	return nil
}

func parseSize(name, s string) (uint64, error) {
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, errors.Wrapf(err, "%s", name)
	}
	if n <= 0 {
		return 0, errors.Newf("%s must be positive, got %q", name, s)
	}
	return uint64(n), nil
}

func (c Config) stagingMin() (uint64, error) { return parseSize("staging_min_size", c.StagingMinSize) }
func (c Config) stagingMax() (uint64, error) { return parseSize("staging_max_size", c.StagingMaxSize) }

func (c Config) presentMode() (native.PresentMode, error) {
	switch strings.ToLower(c.PresentMode) {
	case "", "fifo":
		return native.PresentFifo, nil
	case "mailbox":
		return native.PresentMailbox, nil
	case "immediate":
		return native.PresentImmediate, nil
	case "fifo_relaxed":
		return native.PresentFifoRelaxed, nil
	}
	return 0, errors.Newf("unknown present_mode %q", c.PresentMode)
}

// BackendConfig is the part of Config the device bootstrap needs.
type BackendConfig struct {
	AppName     string
	AppVersion  string
	Validation  bool
	Width       uint32
	Height      uint32
	PresentMode native.PresentMode
}

func (c Config) Backend() BackendConfig {
	pm, err := c.presentMode()
	if err != nil {
		pm = native.PresentFifo
	}
	return BackendConfig{
		AppName:     c.AppName,
		AppVersion:  c.AppVersion,
		Validation:  c.Validation,
		Width:       c.Width,
		Height:      c.Height,
		PresentMode: pm,
	}
}
