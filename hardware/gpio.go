package hardware

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

// Header pins wired to one of the two hardware PWM channels
var pwmPins = []int{12, 13, 18, 19}

// 255 duty steps at 500Hz
const (
	pwmCycle = 255
	pwmClock = pwmCycle * 500
)

type pinMode int

const (
	modeUnset pinMode = iota
	modeOutput
	modePWM
	modeInput
)

type gpioPin interface {
	Output()
	Input()
	Pwm()
	PullUp()
	High()
	Low()
	Read() rpio.State
	Freq(freq int)
	DutyCycle(dutyLen, cycleLen uint32)
}

// GPIO drives the header pins through go-rpio. A pin is switched into
// the mode it is used in on first access.
type GPIO struct {
	mu    sync.Mutex
	open  func() error
	close func() error
	pin   func(int) gpioPin
	modes map[int]pinMode
}

func NewGPIO() *GPIO {
	return &GPIO{
		open:  rpio.Open,
		close: rpio.Close,
		pin:   func(n int) gpioPin { return rpio.Pin(n) },
		modes: make(map[int]pinMode),
	}
}

func (g *GPIO) Open() error {
	slog.Info("Initialise GPIO...")
	if err := g.open(); err != nil {
		return fmt.Errorf("failed to open rpio: %w", err)
	}
	return nil
}

// Close switches all used outputs off before releasing the memory mapping
func (g *GPIO) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for n, mode := range g.modes {
		switch mode {
		case modePWM:
			g.pin(n).DutyCycle(0, pwmCycle)
		case modeOutput:
			g.pin(n).Low()
		}
	}
	g.modes = make(map[int]pinMode)
	return g.close()
}

// IsPWMPin tells whether a header pin can be dimmed
func IsPWMPin(pin int) bool {
	return slices.Contains(pwmPins, pin)
}

func (g *GPIO) IsPWMCapable(pin int) bool {
	return IsPWMPin(pin)
}

func (g *GPIO) SetDuty(pin int, value byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.IsPWMCapable(pin) {
		// best effort on pins without PWM
		g.writeDigital(pin, value > 0)
		return
	}
	p := g.pin(pin)
	if g.modes[pin] != modePWM {
		p.Pwm()
		p.Freq(pwmClock)
		g.modes[pin] = modePWM
	}
	p.DutyCycle(uint32(value), pwmCycle)
}

func (g *GPIO) WriteDigital(pin int, high bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.writeDigital(pin, high)
}

func (g *GPIO) writeDigital(pin int, high bool) {
	p := g.pin(pin)
	if g.modes[pin] != modeOutput {
		p.Output()
		g.modes[pin] = modeOutput
	}
	if high {
		p.High()
	} else {
		p.Low()
	}
}

// ReadInput reads a pin configured as input with pull-up
func (g *GPIO) ReadInput(pin int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.pin(pin)
	if g.modes[pin] != modeInput {
		p.Input()
		p.PullUp()
		g.modes[pin] = modeInput
	}
	return p.Read() == rpio.High
}
