package platform

import (
	"lautenbacher.net/ledlights/backend"
	"lautenbacher.net/ledlights/config"
	"lautenbacher.net/ledlights/hardware"
	"lautenbacher.net/ledlights/util"
)

// Platform defines the interface for abstracting away the real hardware
// from the TUI simulation.
type Platform interface {
	// Start initializes the platform (e.g., opens GPIO/SPI, or starts the TUI).
	Start() error

	// Stop cleans up all platform resources.
	Stop()

	// Ready is closed once backends can be created and logging is live.
	Ready() <-chan bool

	// Events delivers button presses, key presses and power changes.
	Events() <-chan *util.Event

	// Power holds the debounced state of the main power supply.
	Power() *util.Latest[bool]

	// PinPort drives LEDs on header pins. All controllers share it.
	PinPort() backend.PinPort

	NewStrip(controller string, cfg config.PixelsConfig) (backend.PixelStrip, error)

	NewDrivers(controller string, cfgs []config.DriverConfig) ([]hardware.Driver, error)
}
