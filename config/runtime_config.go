package config

import "time"

// RuntimeConfig defines the subset of the configuration that can be
// safely modified at runtime through the web API. These are the settings
// a running program takes over on reload, the hardware wiring is only
// read at startup.
type RuntimeConfig struct {
	LogLevel  string                  `yaml:"LogLevel" json:"LogLevel"`
	Primary   RuntimeControllerConfig `yaml:"Primary" json:"Primary"`
	Secondary RuntimeControllerConfig `yaml:"Secondary" json:"Secondary"`
}

type RuntimeControllerConfig struct {
	Timeout time.Duration `yaml:"Timeout" json:"Timeout"`
	Preset  ColorSpec     `yaml:"Preset" json:"Preset"`
}

func runtimeOf(c ControllerConfig) RuntimeControllerConfig {
	return RuntimeControllerConfig{
		Timeout: c.Timeout,
		Preset:  c.Preset,
	}
}

func (r RuntimeControllerConfig) mergeInto(c *ControllerConfig) {
	c.Timeout = r.Timeout
	c.Preset = r.Preset
}

// Runtime extracts the runtime adjustable settings
func (c *Config) Runtime() RuntimeConfig {
	return RuntimeConfig{
		LogLevel:  c.Logging.Level,
		Primary:   runtimeOf(c.Primary),
		Secondary: runtimeOf(c.Secondary),
	}
}

// MergeRuntime overwrites the runtime adjustable settings
func (c *Config) MergeRuntime(r RuntimeConfig) {
	c.Logging.Level = r.LogLevel
	r.Primary.mergeInto(&c.Primary)
	r.Secondary.mergeInto(&c.Secondary)
}
