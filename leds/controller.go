package leds

import (
	"fmt"
	"log/slog"
	"time"

	"lautenbacher.net/ledlights/backend"
	"lautenbacher.net/ledlights/color"
)

// Unwired marks a color channel without a pin
const Unwired = -1

// Pins lists the GPIO pins of an RGB(W) LED wired directly to the board.
type Pins struct {
	Red   int
	Green int
	Blue  int
	White int
	// Gated pins stay dark while the case light is off
	Gated bool
}

func (p Pins) byChannel() [4]int {
	return [4]int{p.Red, p.Green, p.Blue, p.White}
}

func (p Pins) wired() []int {
	ret := make([]int, 0, 4)
	for _, pin := range p.byChannel() {
		if pin != Unwired {
			ret = append(ret, pin)
		}
	}
	return ret
}

// IndexRange is an inclusive range of pixel indices
type IndexRange struct {
	First int
	Last  int
}

func (r IndexRange) contains(index int) bool {
	return index >= r.First && index <= r.Last
}

type PixelOptions struct {
	Strip backend.PixelStrip
	// RGBW strips pack the white channel and use it for color.White
	RGBW bool
	// Sequential enables single pixel writes at a wrapping cursor
	Sequential bool
	// Background is a reserved range repainted once by a sweep before
	// any sequential drawing. Only used together with Sequential.
	Background *IndexRange
	// Gated strips only take brightness and color while the case light
	// is on, switching off always works.
	Gated bool
}

// Observer is notified about every state change of a controller.
type Observer interface {
	ColorChanged(controller string, c color.Color, lightsOn bool)
	TimedOut(controller string)
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Options bind a controller to its backends. A nil backend is disabled.
type Options struct {
	Name string

	Port    backend.PinPort
	Pins    *Pins
	Pixels  *PixelOptions
	Drivers []backend.ColorDriver
	// FadeDrivers are the drivers the startup test fades through, a
	// subset of Drivers
	FadeDrivers []backend.ColorDriver
	// DriverChannels is 4 when a fade driver has a white output
	DriverChannels int

	CaseLight backend.CaseLight

	StartupTest bool
	StepDelay   time.Duration
	Sleeper     backend.Sleeper

	Preset          color.Color
	PresetAtStartup bool

	// Timeout switches the lights off after this much idle time. Zero
	// disables the timeout.
	Timeout time.Duration
	Clock   Clock

	Observer Observer
	// Logger defaults to the default logger tagged with the name
	Logger   *slog.Logger
}

// Controller keeps the last color shown on a set of LED backends and
// fans every color change out to all of them. A controller is not safe
// for concurrent use, every call has to come from the control loop.
type Controller struct {
	opts        Options
	log         *slog.Logger
	color       color.Color
	lightsOn    bool
	offDeadline time.Time
	nextPixel   int
}

func NewController(opts Options) *Controller {
	if opts.StepDelay <= 0 {
		opts.StepDelay = DefaultStepDelay
	}
	if opts.Sleeper == nil {
		opts.Sleeper = backend.RealSleeper
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.DriverChannels == 0 {
		opts.DriverChannels = 3
	}
	if opts.Pins != nil && opts.Port == nil {
		panic(fmt.Sprintf("controller %s: pins configured without a pin port", opts.Name))
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("controller", opts.Name)
	}
	return &Controller{
		opts: opts,
		log:  logger,
	}
}

func (s *Controller) Name() string {
	return s.opts.Name
}

// Setup initialises the backends, plays the startup animation if
// configured and optionally shows the preset color. It blocks until the
// animation is finished.
func (s *Controller) Setup() error {
	if s.opts.Pixels != nil {
		if err := s.opts.Pixels.Strip.Init(); err != nil {
			return fmt.Errorf("controller %s: failed to init pixel strip: %w", s.opts.Name, err)
		}
	}
	for _, d := range s.opts.Drivers {
		if i, ok := d.(backend.Initializer); ok {
			if err := i.Init(); err != nil {
				return fmt.Errorf("controller %s: failed to init driver: %w", s.opts.Name, err)
			}
		}
	}

	if s.opts.StartupTest {
		if anim := s.startupAnimation(); anim != nil {
			start := time.Now()
			frames := Play(anim, s.opts.Sleeper)
			s.log.Info("Startup animation finished", "frames", frames, "duration", time.Since(start))
		} else {
			s.log.Info("No backend suitable for a startup animation")
		}
	}

	if s.opts.PresetAtStartup {
		s.SetDefault()
	}
	return nil
}

// Directly wired pins take precedence over I2C drivers
func (s *Controller) startupAnimation() Animation {
	if s.opts.Pins != nil {
		if anim := NewPinFadeTest(s.opts.Port, *s.opts.Pins, s.opts.StepDelay); anim != nil {
			return anim
		}
		return nil
	}
	if len(s.opts.FadeDrivers) > 0 {
		return NewDriverFadeTest(driverSet(s.opts.FadeDrivers), s.opts.DriverChannels, s.opts.StepDelay)
	}
	return nil
}

// SetColor shows c on all backends, the whole strip for pixel backends
func (s *Controller) SetColor(c color.Color) {
	s.SetColorSequential(c, false)
}

// SetColorSequential shows c on all backends. With sequential set a pixel
// strip only gets the single pixel under its cursor, which then moves on.
func (s *Controller) SetColorSequential(c color.Color, sequential bool) {
	if s.opts.Pixels != nil {
		if !s.setPixels(c, sequential) {
			return
		}
	}

	for _, d := range s.opts.Drivers {
		d.SetColor(c)
	}

	if s.opts.Pins != nil {
		s.setPins(c)
	}

	s.lightsOn = !c.IsOff()
	if s.lightsOn {
		s.color = c
	}
	s.log.Debug("Color set", "color", c, "sequential", sequential, "on", s.lightsOn)
	if s.opts.Observer != nil {
		s.opts.Observer.ColorChanged(s.opts.Name, c, s.lightsOn)
	}
}

// setPixels returns false when the call was used up by the background
// sweep and nothing else may be drawn.
func (s *Controller) setPixels(c color.Color, sequential bool) bool {
	px := s.opts.Pixels
	strip := px.Strip

	var packed uint32
	if c == color.White {
		packed = stripWhite(px.RGBW)
	} else {
		packed = c.Packed(px.RGBW)
	}

	if px.Sequential && px.Background != nil {
		for px.Background.contains(s.nextPixel) {
			strip.ResetBackgroundColor()
			s.nextPixel++
			if s.nextPixel >= strip.PixelCount() {
				s.nextPixel = 0
				return false
			}
		}
	}

	open := s.gateOpen(px.Gated, c)
	if open {
		strip.SetBrightness(c.I)
	}

	if px.Sequential && sequential {
		strip.SetPixel(s.nextPixel, packed)
		strip.Show()
		s.nextPixel++
		if s.nextPixel >= strip.PixelCount() {
			s.nextPixel = 0
		}
		return true
	}

	if open {
		strip.SetAll(packed)
		strip.Show()
	}
	return true
}

func (s *Controller) setPins(c color.Color) {
	pins := s.opts.Pins
	show := !pins.Gated || s.caseLightOn()
	for ch, pin := range pins.byChannel() {
		if pin == Unwired {
			continue
		}
		var value byte
		if show {
			value = c.Channel(ch)
		}
		if s.opts.Port.IsPWMCapable(pin) {
			s.opts.Port.SetDuty(pin, value)
		} else {
			s.opts.Port.WriteDigital(pin, value != 0)
		}
	}
}

// gateOpen reports whether a gated backend may take the color c
func (s *Controller) gateOpen(gated bool, c color.Color) bool {
	return !gated || s.caseLightOn() || c.IsOff()
}

// Without a case light there is nothing to gate on
func (s *Controller) caseLightOn() bool {
	return s.opts.CaseLight == nil || s.opts.CaseLight.On()
}

func stripWhite(rgbw bool) uint32 {
	if rgbw {
		return color.NewRGBW(0, 0, 0, 255).Packed(true)
	}
	return color.New(255, 255, 255).Packed(false)
}

func (s *Controller) SetOff() {
	s.SetColor(color.Off)
}

// Update shows the remembered color again
func (s *Controller) Update() {
	s.SetColor(s.color)
}

// SetDefault shows the configured preset color
func (s *Controller) SetDefault() {
	s.SetColor(s.opts.Preset)
}

func (s *Controller) Toggle() {
	if s.lightsOn {
		s.SetOff()
	} else {
		s.Update()
	}
}

// UpdateTimeout has to be called on every pass of the control loop.
// While powerOn is set the deadline keeps moving, otherwise the lights go
// off once it has passed. Nothing happens while the lights are off or no
// timeout is configured.
func (s *Controller) UpdateTimeout(powerOn bool) {
	if s.opts.Timeout <= 0 || !s.lightsOn {
		return
	}
	now := s.opts.Clock.Now()
	if powerOn {
		s.offDeadline = now.Add(s.opts.Timeout)
	} else if !now.Before(s.offDeadline) {
		s.log.Info("Idle timeout reached, switching lights off", "timeout", s.opts.Timeout)
		s.SetOff()
		if s.opts.Observer != nil {
			s.opts.Observer.TimedOut(s.opts.Name)
		}
	}
}

// Color returns the last color shown that was not off
func (s *Controller) Color() color.Color {
	return s.color
}

func (s *Controller) LightsOn() bool {
	return s.lightsOn
}

// SetTimeout changes the idle timeout. The current deadline stays until
// the next reset.
func (s *Controller) SetTimeout(d time.Duration) {
	s.opts.Timeout = d
}

func (s *Controller) SetPreset(c color.Color) {
	s.opts.Preset = c
}

// Local Variables:
// compile-command: "cd .. && go build"
// End:
