package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"

	"lautenbacher.net/ledlights/color"
)

const CONFILE = "config.yml"

// Unwired marks an unused pin in the configuration
const Unwired = -1

// Highest GPIO number on the Raspberry Pi header
const maxGPIO = 27

type Config struct {
	RealHW     bool             `yaml:"-" json:"-"`
	Configfile string           `yaml:"-" json:"-"`
	Logging    LoggingConfig    `yaml:"Logging"`
	Metrics    MetricsConfig    `yaml:"Metrics"`
	Hardware   HardwareConfig   `yaml:"Hardware"`
	CaseLight  CaseLightConfig  `yaml:"CaseLight"`
	Primary    ControllerConfig `yaml:"Primary"`
	Secondary  ControllerConfig `yaml:"Secondary"`
}

type LoggingConfig struct {
	Level  string `yaml:"Level" env:"LEDLIGHTS_LOG_LEVEL"`
	Format string `yaml:"Format" env:"LEDLIGHTS_LOG_FORMAT"`
	File   string `yaml:"File" env:"LEDLIGHTS_LOG_FILE"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"Enabled"`
	Listen  string `yaml:"Listen" env:"LEDLIGHTS_METRICS_LISTEN"`
}

type HardwareConfig struct {
	SPIFrequency     int                     `yaml:"SPIFrequency"`
	I2CBus           string                  `yaml:"I2CBus"`
	SpiMultiplexGPIO map[string]MultiplexCfg `yaml:"SpiMultiplexGPIO"`
	// Input pin reading the state of the main power supply
	PowerSensePin   int           `yaml:"PowerSensePin"`
	ToggleButtonPin int           `yaml:"ToggleButtonPin"`
	ButtonSamples   int           `yaml:"ButtonSamples"`
	LoopDelay       time.Duration `yaml:"LoopDelay"`
}

// MultiplexCfg lists the pins to pull low and high to route the shared
// SPI bus to one strip.
type MultiplexCfg struct {
	Low  []int `yaml:"Low"`
	High []int `yaml:"High"`
}

const (
	CaseLightAlways = "always"
	CaseLightSwitch = "switch"
	CaseLightNight  = "night"
)

type CaseLightConfig struct {
	Mode        string  `yaml:"Mode"`
	InitiallyOn bool    `yaml:"InitiallyOn"`
	Latitude    float64 `yaml:"Latitude"`
	Longitude   float64 `yaml:"Longitude"`
}

type ControllerConfig struct {
	Enabled         bool           `yaml:"Enabled" json:"Enabled"`
	StartupTest     bool           `yaml:"StartupTest" json:"StartupTest"`
	StepDelay       time.Duration  `yaml:"StepDelay" json:"StepDelay"`
	Timeout         time.Duration  `yaml:"Timeout" json:"Timeout"`
	Preset          ColorSpec      `yaml:"Preset" json:"-"`
	PresetAtStartup bool           `yaml:"PresetAtStartup" json:"-"`
	Pins            PinsConfig     `yaml:"Pins" json:"-"`
	Pixels          PixelsConfig   `yaml:"Pixels" json:"-"`
	Drivers         []DriverConfig `yaml:"Drivers" json:"-"`
}

type PinsConfig struct {
	Enabled        bool `yaml:"Enabled"`
	Red            int  `yaml:"Red"`
	Green          int  `yaml:"Green"`
	Blue           int  `yaml:"Blue"`
	White          int  `yaml:"White"`
	CaseLightGated bool `yaml:"CaseLightGated"`
}

func (p PinsConfig) wired() []int {
	ret := make([]int, 0, 4)
	for _, pin := range []int{p.Red, p.Green, p.Blue, p.White} {
		if pin != Unwired {
			ret = append(ret, pin)
		}
	}
	return ret
}

type PixelsConfig struct {
	Enabled         bool      `yaml:"Enabled"`
	Type            string    `yaml:"Type"`
	Count           int       `yaml:"Count"`
	RGBW            bool      `yaml:"RGBW"`
	SpiMultiplex    string    `yaml:"SpiMultiplex"`
	Sequential      bool      `yaml:"Sequential"`
	BackgroundFirst int       `yaml:"BackgroundFirst"`
	BackgroundLast  int       `yaml:"BackgroundLast"`
	BackgroundColor ColorSpec `yaml:"BackgroundColor"`
	CaseLightGated  bool      `yaml:"CaseLightGated"`
	ColorCorrection []float64 `yaml:"ColorCorrection"`
}

// HasBackground is true when a background index range is configured
func (p PixelsConfig) HasBackground() bool {
	return p.BackgroundFirst != Unwired && p.BackgroundLast != Unwired
}

const (
	DriverPCA9632 = "PCA9632"
	DriverPCA9533 = "PCA9533"
	DriverBlinkM  = "BLINKM"
)

type DriverConfig struct {
	Type    string `yaml:"Type"`
	Address int    `yaml:"Address"`
	// The PCA9632 has a fourth output usable as white channel
	White bool `yaml:"White"`
}

// ColorSpec is a color in the configuration file, either a hex string
// like "#ff8000" or a list [r, g, b] with optional white and brightness.
type ColorSpec color.Color

func (s ColorSpec) Color() color.Color {
	return color.Color(s)
}

func (s *ColorSpec) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		c, err := colorful.Hex(value.Value)
		if err != nil {
			return fmt.Errorf("line %d: invalid color %q: %w", value.Line, value.Value, err)
		}
		r, g, b := c.RGB255()
		*s = ColorSpec{R: r, G: g, B: b, I: 255}
		return nil
	case yaml.SequenceNode:
		var parts []int
		if err := value.Decode(&parts); err != nil {
			return err
		}
		if len(parts) < 3 || len(parts) > 5 {
			return fmt.Errorf("line %d: color needs 3 to 5 components, got %d", value.Line, len(parts))
		}
		for _, part := range parts {
			if part < 0 || part > 255 {
				return fmt.Errorf("line %d: color component %d must be between 0 and 255", value.Line, part)
			}
		}
		spec := ColorSpec{R: byte(parts[0]), G: byte(parts[1]), B: byte(parts[2]), I: 255}
		if len(parts) > 3 {
			spec.W = byte(parts[3])
		}
		if len(parts) > 4 {
			spec.I = byte(parts[4])
		}
		*s = spec
		return nil
	}
	return fmt.Errorf("line %d: color must be a hex string or a list", value.Line)
}

func (s ColorSpec) MarshalYAML() (any, error) {
	return []int{int(s.R), int(s.G), int(s.B), int(s.W), int(s.I)}, nil
}

// Default returns the configuration the file is decoded on top of. Pins
// and ranges not mentioned in the file stay unwired.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "INFO", Format: "text"},
		Metrics: MetricsConfig{Listen: ":9108"},
		Hardware: HardwareConfig{
			SPIFrequency:    4000000,
			I2CBus:          "/dev/i2c-1",
			PowerSensePin:   Unwired,
			ToggleButtonPin: Unwired,
			ButtonSamples:   4,
			LoopDelay:       50 * time.Millisecond,
		},
		CaseLight: CaseLightConfig{Mode: CaseLightAlways, InitiallyOn: true},
		Primary:   defaultController(),
		Secondary: defaultController(),
	}
}

func defaultController() ControllerConfig {
	return ControllerConfig{
		StepDelay: 10 * time.Millisecond,
		Preset:    ColorSpec(color.White),
		Pins:      PinsConfig{Red: Unwired, Green: Unwired, Blue: Unwired, White: Unwired},
		Pixels: PixelsConfig{
			Type:            "APA102",
			BackgroundFirst: Unwired,
			BackgroundLast:  Unwired,
		},
	}
}

// ReadConfig reads and validates the config file. Environment variables
// override the logging and metrics settings of the file.
func ReadConfig(cfile string, realhw bool) (*Config, error) {
	conf, err := decodeFile(cfile, realhw)
	if err != nil {
		return nil, err
	}
	if err := conf.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", cfile, err)
	}
	return conf, nil
}

// decodeFile decodes the config file on top of the defaults, without
// environment overrides and without validation
func decodeFile(cfile string, realhw bool) (*Config, error) {
	f, err := os.Open(cfile)
	if err != nil {
		return nil, fmt.Errorf("can't find config file %s: %w", cfile, err)
	}
	defer f.Close()

	conf := Default()
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&conf); err != nil {
		return nil, fmt.Errorf("can't decode config file %s: %w", cfile, err)
	}
	conf.RealHW = realhw
	conf.Configfile = cfile
	return &conf, nil
}

func (c *Config) ApplyEnv() error {
	if err := env.Parse(&c.Logging); err != nil {
		return fmt.Errorf("invalid logging environment: %w", err)
	}
	if err := env.Parse(&c.Metrics); err != nil {
		return fmt.Errorf("invalid metrics environment: %w", err)
	}
	return nil
}

// Validate returns the first problem found in the configuration
func (c *Config) Validate() error {
	switch strings.ToUpper(c.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("Logging.Level %q must be one of DEBUG, INFO, WARN, ERROR", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("Logging.Format %q must be text or json", c.Logging.Format)
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return errors.New("Metrics.Listen must be set when metrics are enabled")
	}
	if c.Hardware.LoopDelay <= 0 {
		return errors.New("Hardware.LoopDelay must be positive")
	}
	if c.Hardware.ButtonSamples < 1 {
		return errors.New("Hardware.ButtonSamples must be at least 1")
	}
	for _, pin := range []int{c.Hardware.PowerSensePin, c.Hardware.ToggleButtonPin} {
		if err := validatePin(pin); err != nil {
			return fmt.Errorf("Hardware: %w", err)
		}
	}

	switch c.CaseLight.Mode {
	case CaseLightAlways, CaseLightSwitch:
	case CaseLightNight:
		if c.CaseLight.Latitude < -90 || c.CaseLight.Latitude > 90 {
			return fmt.Errorf("CaseLight.Latitude %f must be between -90 and 90", c.CaseLight.Latitude)
		}
		if c.CaseLight.Longitude < -180 || c.CaseLight.Longitude > 180 {
			return fmt.Errorf("CaseLight.Longitude %f must be between -180 and 180", c.CaseLight.Longitude)
		}
	default:
		return fmt.Errorf("CaseLight.Mode %q must be one of %s, %s, %s", c.CaseLight.Mode, CaseLightAlways, CaseLightSwitch, CaseLightNight)
	}

	if !c.Primary.Enabled && !c.Secondary.Enabled {
		return errors.New("at least one controller must be enabled")
	}
	if err := c.Primary.validate(c.Hardware); err != nil {
		return fmt.Errorf("Primary: %w", err)
	}
	if err := c.Secondary.validate(c.Hardware); err != nil {
		return fmt.Errorf("Secondary: %w", err)
	}
	if c.Primary.Enabled && c.Secondary.Enabled {
		if err := checkDisjoint(c.Primary, c.Secondary); err != nil {
			return err
		}
	}
	return nil
}

func (c ControllerConfig) validate(hw HardwareConfig) error {
	if !c.Enabled {
		return nil
	}
	if !c.Pins.Enabled && !c.Pixels.Enabled && len(c.Drivers) == 0 {
		return errors.New("an enabled controller needs at least one backend")
	}
	if c.Timeout < 0 {
		return errors.New("Timeout must not be negative")
	}
	if c.StepDelay < 0 {
		return errors.New("StepDelay must not be negative")
	}

	if c.Pins.Enabled {
		wired := c.Pins.wired()
		if len(wired) == 0 {
			return errors.New("Pins: at least one pin must be wired")
		}
		for _, pin := range wired {
			if err := validatePin(pin); err != nil {
				return fmt.Errorf("Pins: %w", err)
			}
		}
		if hasDuplicates(wired) {
			return errors.New("Pins: a pin is used for more than one channel")
		}
	}

	if c.Pixels.Enabled {
		px := c.Pixels
		switch strings.ToUpper(px.Type) {
		case "APA102", "WS2801":
		default:
			return fmt.Errorf("Pixels.Type %q must be APA102 or WS2801", px.Type)
		}
		if px.Count < 1 {
			return errors.New("Pixels.Count must be at least 1")
		}
		if px.SpiMultiplex != "" {
			if _, ok := hw.SpiMultiplexGPIO[px.SpiMultiplex]; !ok {
				return fmt.Errorf("Pixels.SpiMultiplex %q is not defined in Hardware.SpiMultiplexGPIO", px.SpiMultiplex)
			}
		}
		if len(px.ColorCorrection) != 0 && len(px.ColorCorrection) != 3 {
			return errors.New("Pixels.ColorCorrection needs exactly 3 factors")
		}
		if (px.BackgroundFirst == Unwired) != (px.BackgroundLast == Unwired) {
			return errors.New("Pixels.BackgroundFirst and BackgroundLast must be set together")
		}
		if px.HasBackground() {
			if px.BackgroundFirst < 0 || px.BackgroundFirst > px.BackgroundLast || px.BackgroundLast >= px.Count {
				return fmt.Errorf("Pixels background range %d..%d must be within 0..%d", px.BackgroundFirst, px.BackgroundLast, px.Count-1)
			}
			if !px.Sequential {
				return errors.New("Pixels background range requires Sequential")
			}
		}
	}

	for i, d := range c.Drivers {
		switch strings.ToUpper(d.Type) {
		case DriverPCA9632, DriverPCA9533, DriverBlinkM:
		default:
			return fmt.Errorf("Drivers[%d].Type %q must be one of %s, %s, %s", i, d.Type, DriverPCA9632, DriverPCA9533, DriverBlinkM)
		}
		if d.Address < 0x01 || d.Address > 0x7F {
			return fmt.Errorf("Drivers[%d].Address 0x%02x must be a 7 bit I2C address", i, d.Address)
		}
		if d.White && strings.ToUpper(d.Type) != DriverPCA9632 {
			return fmt.Errorf("Drivers[%d]: only the %s has a white channel", i, DriverPCA9632)
		}
	}
	return nil
}

// checkDisjoint makes sure two controllers never share hardware
func checkDisjoint(a, b ControllerConfig) error {
	if a.Pins.Enabled && b.Pins.Enabled {
		for _, pin := range a.Pins.wired() {
			if slices.Contains(b.Pins.wired(), pin) {
				return fmt.Errorf("pin %d is used by both controllers", pin)
			}
		}
	}
	if a.Pixels.Enabled && b.Pixels.Enabled && a.Pixels.SpiMultiplex == b.Pixels.SpiMultiplex {
		return fmt.Errorf("both controllers drive the pixel strip on multiplex %q", a.Pixels.SpiMultiplex)
	}
	for _, da := range a.Drivers {
		for _, db := range b.Drivers {
			if da.Address == db.Address {
				return fmt.Errorf("I2C address 0x%02x is used by both controllers", da.Address)
			}
		}
	}
	return nil
}

func validatePin(pin int) error {
	if pin == Unwired {
		return nil
	}
	if pin < 0 || pin > maxGPIO {
		return fmt.Errorf("pin %d must be between 0 and %d", pin, maxGPIO)
	}
	return nil
}

func hasDuplicates(pins []int) bool {
	seen := make(map[int]bool, len(pins))
	for _, pin := range pins {
		if seen[pin] {
			return true
		}
		seen[pin] = true
	}
	return false
}
