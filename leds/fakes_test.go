package leds

import (
	"time"

	"lautenbacher.net/ledlights/color"
)

type portCall struct {
	pin     int
	value   byte
	digital bool
}

type fakePort struct {
	pwm   map[int]bool
	duty  map[int]byte
	level map[int]bool
	calls []portCall
}

func newFakePort(pwmPins ...int) *fakePort {
	pwm := make(map[int]bool, len(pwmPins))
	for _, pin := range pwmPins {
		pwm[pin] = true
	}
	return &fakePort{pwm: pwm, duty: make(map[int]byte), level: make(map[int]bool)}
}

func (f *fakePort) IsPWMCapable(pin int) bool { return f.pwm[pin] }

func (f *fakePort) SetDuty(pin int, value byte) {
	f.duty[pin] = value
	f.calls = append(f.calls, portCall{pin: pin, value: value})
}

func (f *fakePort) WriteDigital(pin int, high bool) {
	f.level[pin] = high
	var v byte
	if high {
		v = 1
	}
	f.calls = append(f.calls, portCall{pin: pin, value: v, digital: true})
}

type fakeStrip struct {
	count       int
	pixels      []uint32
	brightness  byte
	brightCalls int
	allCalls    int
	shows       int
	resets      int
	initCalls   int
	initErr     error
}

func newFakeStrip(count int) *fakeStrip {
	return &fakeStrip{count: count, pixels: make([]uint32, count)}
}

func (f *fakeStrip) Init() error {
	f.initCalls++
	return f.initErr
}
func (f *fakeStrip) PixelCount() int                   { return f.count }
func (f *fakeStrip) SetPixel(index int, packed uint32) { f.pixels[index] = packed }
func (f *fakeStrip) SetAll(packed uint32) {
	f.allCalls++
	for i := range f.pixels {
		f.pixels[i] = packed
	}
}
func (f *fakeStrip) SetBrightness(level byte) {
	f.brightCalls++
	f.brightness = level
}
func (f *fakeStrip) Show()                 { f.shows++ }
func (f *fakeStrip) ResetBackgroundColor() { f.resets++ }

type fakeDriver struct {
	colors    []color.Color
	initCalls int
	// number of colors written before the last Init
	initAfter int
}

func (f *fakeDriver) SetColor(c color.Color) { f.colors = append(f.colors, c) }
func (f *fakeDriver) Init() error {
	f.initCalls++
	f.initAfter = len(f.colors)
	return nil
}

func (f *fakeDriver) last() color.Color {
	if len(f.colors) == 0 {
		return color.Off
	}
	return f.colors[len(f.colors)-1]
}

type fakeCaseLight struct {
	on bool
}

func (f *fakeCaseLight) On() bool { return f.on }

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

type fakeSleeper struct {
	total time.Duration
	calls int
}

func (f *fakeSleeper) Sleep(d time.Duration) {
	f.total += d
	f.calls++
}

type recordingObserver struct {
	changes  int
	timeouts int
	lastOn   bool
}

func (r *recordingObserver) ColorChanged(controller string, c color.Color, lightsOn bool) {
	r.changes++
	r.lastOn = lightsOn
}

func (r *recordingObserver) TimedOut(controller string) { r.timeouts++ }
