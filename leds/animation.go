package leds

import (
	"time"

	"lautenbacher.net/ledlights/backend"
	"lautenbacher.net/ledlights/color"
)

const (
	BlackoutDelay = 200 * time.Millisecond
	SettleDelay   = 500 * time.Millisecond
	// DefaultStepDelay is the pause between two animation frames
	DefaultStepDelay = 10 * time.Millisecond
)

// Animation is a startup self-test, rendered one frame per Step. Step
// returns the pause to keep before the next frame and false once the
// frame just rendered was the last one.
type Animation interface {
	Step() (time.Duration, bool)
}

// Play runs an animation to completion, blocking the caller for its whole
// duration. There is no way to abort it.
func Play(anim Animation, sleeper backend.Sleeper) int {
	frames := 0
	for {
		delay, more := anim.Step()
		frames++
		sleeper.Sleep(delay)
		if !more {
			return frames
		}
	}
}

type phase int

const (
	phaseBlackout phase = iota
	phaseRun
	phaseFinish
	phaseDone
)

// triangle wave: 0..100 for b in 0..100, back down to 0 for b up to 200
const (
	rampPeak  = 100
	rampSteps = 2 * rampPeak
)

// PinFadeTest ramps each directly wired channel up and down in turn while
// holding all others dark.
type PinFadeTest struct {
	port      backend.PinPort
	channels  []int
	wired     []int
	stepDelay time.Duration
	phase     phase
	channel   int
	b         int
}

// NewPinFadeTest returns nil if the pins are not suitable: red, green
// and blue must all be wired to PWM capable pins. White takes part when
// it is wired to a PWM pin as well.
func NewPinFadeTest(port backend.PinPort, pins Pins, stepDelay time.Duration) *PinFadeTest {
	for _, pin := range []int{pins.Red, pins.Green, pins.Blue} {
		if pin == Unwired || !port.IsPWMCapable(pin) {
			return nil
		}
	}
	channels := []int{pins.Red, pins.Green, pins.Blue}
	if pins.White != Unwired && port.IsPWMCapable(pins.White) {
		channels = append(channels, pins.White)
	}
	return &PinFadeTest{
		port:      port,
		channels:  channels,
		wired:     pins.wired(),
		stepDelay: stepDelay,
	}
}

func (s *PinFadeTest) Channels() int {
	return len(s.channels)
}

func (s *PinFadeTest) Step() (time.Duration, bool) {
	switch s.phase {
	case phaseBlackout:
		for _, pin := range s.wired {
			if s.port.IsPWMCapable(pin) {
				s.port.SetDuty(pin, 0)
			} else {
				s.port.WriteDigital(pin, false)
			}
		}
		s.phase = phaseRun
		return BlackoutDelay, true

	case phaseRun:
		value := s.b
		if value > rampPeak {
			value = rampSteps - s.b
		}
		for i, pin := range s.channels {
			if i == s.channel {
				s.port.SetDuty(pin, byte(value))
			} else {
				s.port.SetDuty(pin, 0)
			}
		}
		delay := s.stepDelay
		if s.channel == color.ChanWhite {
			// white is ramped at half speed
			delay *= 2
		}
		s.b++
		if s.b > rampSteps {
			s.b = 0
			s.channel++
			if s.channel == len(s.channels) {
				s.phase = phaseFinish
			}
		}
		return delay, true

	case phaseFinish:
		s.phase = phaseDone
		return SettleDelay, false
	}
	return 0, false
}

// Counter milestones of DriverFadeTest. A counter is 0 while its channel
// is idle and runs 1..399: fade in up to 100, hold until 300 (passing
// 201 starts the next channel), fade out until 400 switches it off.
const (
	counterHold  = 100
	counterChain = 201
	counterFade  = 300
	counterOff   = 400
	// the loop ends the second time channel 0 sits at this value
	counterEnd = 99
)

// DriverFadeTest cross-fades the channels of an I2C driver one after the
// other, then fades everything up to a common white.
type DriverFadeTest struct {
	driver    backend.ColorDriver
	counters  []uint16
	canEnd    bool
	current   color.Color
	floor     int
	stepDelay time.Duration
	phase     phase
}

func NewDriverFadeTest(driver backend.ColorDriver, channels int, stepDelay time.Duration) *DriverFadeTest {
	if channels < 3 {
		channels = 3
	} else if channels > 4 {
		channels = 4
	}
	counters := make([]uint16, channels)
	counters[0] = 1
	return &DriverFadeTest{
		driver:    driver,
		counters:  counters,
		stepDelay: stepDelay,
	}
}

func (s *DriverFadeTest) Step() (time.Duration, bool) {
	if s.phase == phaseBlackout {
		s.current = color.Off
		s.driver.SetColor(s.current)
		s.phase = phaseRun
		return BlackoutDelay, true
	}

	if s.phase == phaseRun {
		// The check happens before advancing, so after arming at the
		// first 99 a whole further cycle runs until channel 0 is back
		// at 99.
		if s.counters[0] != counterEnd || !s.canEnd {
			if s.counters[0] == counterEnd {
				s.canEnd = true
			}
			s.advance()
			for i, counter := range s.counters {
				s.current = s.current.WithChannel(i, trapezoid(counter))
			}
			s.driver.SetColor(s.current)
			return s.stepDelay, true
		}
		s.phase = phaseFinish
	}

	if s.phase == phaseFinish {
		for i := range s.counters {
			s.current = s.current.Raise(i, byte(s.floor))
		}
		s.driver.SetColor(s.current)
		s.floor++
		if s.floor > rampPeak {
			s.phase = phaseDone
			return s.stepDelay, false
		}
		return s.stepDelay, true
	}
	return 0, false
}

func (s *DriverFadeTest) advance() {
	for i := 0; i < len(s.counters); i++ {
		if s.counters[i] == 0 {
			continue
		}
		s.counters[i]++
		if s.counters[i] == counterOff {
			s.counters[i] = 0
		} else if s.counters[i] == counterChain {
			s.counters[(i+1)%len(s.counters)] = 1
			// the freshly started channel must not advance twice
			i++
		}
	}
}

func trapezoid(counter uint16) byte {
	switch {
	case counter <= counterHold:
		return byte(counter)
	case counter <= counterFade:
		return counterHold
	default:
		return byte(counterOff - counter)
	}
}

// driverSet fans a color out to several I2C drivers
type driverSet []backend.ColorDriver

func (s driverSet) SetColor(c color.Color) {
	for _, d := range s {
		d.SetColor(c)
	}
}
