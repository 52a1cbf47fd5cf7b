// Package backend defines the hardware facing interfaces the LED
// controllers dispatch to. Implementations live in the hardware package
// (real Raspberry Pi) and the platform package (terminal simulation).
//
// All setters are fire-and-forget: implementations log transfer errors
// and never report them back to the caller.
package backend

import (
	"time"

	"lautenbacher.net/ledlights/color"
)

// PinPort drives LEDs wired directly to GPIO pins.
type PinPort interface {
	// IsPWMCapable reports whether the pin can be dimmed. Other pins are
	// driven as plain digital outputs.
	IsPWMCapable(pin int) bool
	// SetDuty sets the duty cycle of a PWM pin, 0 is off and 255 is
	// fully on.
	SetDuty(pin int, value byte)
	WriteDigital(pin int, high bool)
}

// Sleeper paces animations. The real implementation blocks the calling
// goroutine.
type Sleeper interface {
	Sleep(d time.Duration)
}

// SleeperFunc adapts a plain function to the Sleeper interface
type SleeperFunc func(d time.Duration)

func (f SleeperFunc) Sleep(d time.Duration) { f(d) }

// RealSleeper uses time.Sleep
var RealSleeper = SleeperFunc(time.Sleep)

// PixelStrip is a chain of individually addressable LEDs.
type PixelStrip interface {
	Init() error
	PixelCount() int
	// SetPixel stores the packed 0xWWRRGGBB color for one pixel. Nothing
	// is visible before Show.
	SetPixel(index int, packed uint32)
	// SetAll stores the packed color for every pixel outside the
	// background range.
	SetAll(packed uint32)
	SetBrightness(level byte)
	Show()
	// ResetBackgroundColor repaints the reserved background range with
	// its configured color.
	ResetBackgroundColor()
}

// ColorDriver is an I2C LED driver chip taking a whole color per write.
type ColorDriver interface {
	SetColor(c color.Color)
}

// Initializer is implemented by drivers that need a one time setup
// before the first SetColor.
type Initializer interface {
	Init() error
}

// CaseLight tells whether the enclosure light is logically on. Color
// writes to gated backends are suppressed while it is off.
type CaseLight interface {
	On() bool
}

// Local Variables:
// compile-command: "cd .. && go build"
// End:
