package main

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lautenbacher.net/ledlights/backend"
	"lautenbacher.net/ledlights/caselight"
	c "lautenbacher.net/ledlights/config"
	"lautenbacher.net/ledlights/color"
	"lautenbacher.net/ledlights/hardware"
	pl "lautenbacher.net/ledlights/platform"
	u "lautenbacher.net/ledlights/util"
)

type MockPort struct {
	duty map[int]byte
}

func (m *MockPort) IsPWMCapable(pin int) bool { return hardware.IsPWMPin(pin) }
func (m *MockPort) SetDuty(pin int, value byte) {
	m.duty[pin] = value
}
func (m *MockPort) WriteDigital(pin int, high bool) {
	if high {
		m.duty[pin] = 255
	} else {
		m.duty[pin] = 0
	}
}

type MockStrip struct {
	count  int
	all    uint32
	bright byte
	shows  int
}

func (m *MockStrip) Init() error                       { return nil }
func (m *MockStrip) PixelCount() int                   { return m.count }
func (m *MockStrip) SetPixel(index int, packed uint32) {}
func (m *MockStrip) SetAll(packed uint32)              { m.all = packed }
func (m *MockStrip) SetBrightness(level byte)          { m.bright = level }
func (m *MockStrip) Show()                             { m.shows++ }
func (m *MockStrip) ResetBackgroundColor()             {}

type MockDriver struct {
	mu       sync.Mutex
	channels int
	colors   []color.Color
}

func (m *MockDriver) Init() error  { return nil }
func (m *MockDriver) Close() error { return nil }
func (m *MockDriver) Channels() int {
	return m.channels
}
func (m *MockDriver) SetColor(col color.Color) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.colors = append(m.colors, col)
}

func (m *MockDriver) last() color.Color {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.colors) == 0 {
		return color.Off
	}
	return m.colors[len(m.colors)-1]
}

type MockPlatform struct {
	pl.Platform
	events  chan *u.Event
	power   *u.Latest[bool]
	port    *MockPort
	strips  map[string]*MockStrip
	drivers map[string]*MockDriver
}

func NewMockPlatform() *MockPlatform {
	return &MockPlatform{
		events:  make(chan *u.Event, 4),
		power:   u.NewLatest(true),
		port:    &MockPort{duty: make(map[int]byte)},
		strips:  make(map[string]*MockStrip),
		drivers: make(map[string]*MockDriver),
	}
}

func (m *MockPlatform) Start() error { return nil }
func (m *MockPlatform) Stop()        {}

func (m *MockPlatform) Ready() <-chan bool {
	readyChan := make(chan bool)
	close(readyChan)
	return readyChan
}

func (m *MockPlatform) Events() <-chan *u.Event  { return m.events }
func (m *MockPlatform) Power() *u.Latest[bool]   { return m.power }
func (m *MockPlatform) PinPort() backend.PinPort { return m.port }

func (m *MockPlatform) NewStrip(controller string, cfg c.PixelsConfig) (backend.PixelStrip, error) {
	strip := &MockStrip{count: cfg.Count}
	m.strips[controller] = strip
	return strip, nil
}

func (m *MockPlatform) NewDrivers(controller string, cfgs []c.DriverConfig) ([]hardware.Driver, error) {
	ret := make([]hardware.Driver, 0, len(cfgs))
	for _, cfg := range cfgs {
		channels := 3
		if cfg.White {
			channels = 4
		}
		drv := &MockDriver{channels: channels}
		m.drivers[controller] = drv
		ret = append(ret, drv)
	}
	return ret, nil
}

func testConfig() *c.Config {
	conf := c.Default()
	conf.Hardware.LoopDelay = 5 * time.Millisecond
	conf.Primary.Enabled = true
	conf.Primary.Pins = c.PinsConfig{Enabled: true, Red: 12, Green: 13, Blue: 18, White: c.Unwired}
	conf.Primary.Drivers = []c.DriverConfig{{Type: c.DriverPCA9632, Address: 0x60, White: true}}
	conf.Primary.Preset = c.ColorSpec(color.Orange)
	conf.Secondary.Enabled = true
	conf.Secondary.Pixels.Enabled = true
	conf.Secondary.Pixels.Count = 8
	return &conf
}

func newTestApp(t *testing.T, conf *c.Config) (*App, *MockPlatform) {
	t.Helper()
	app := NewApp(make(chan os.Signal, 1))
	app.conf = conf
	app.cfile = c.CONFILE
	app.caseLight = caselight.Always{}
	mock := NewMockPlatform()
	app.platform = mock

	for _, name := range []string{PRIMARY, SECONDARY} {
		cc := app.controllerConfig(name, conf)
		if !cc.Enabled {
			continue
		}
		ctl, err := app.newController(name, cc)
		require.NoError(t, err)
		require.NoError(t, ctl.Setup())
		app.controllers[name] = ctl
	}
	return app, mock
}

func TestNewController_Wiring(t *testing.T) {
	app, mock := newTestApp(t, testConfig())

	app.controllers[PRIMARY].SetColor(color.Red)
	assert.Equal(t, byte(255), mock.port.duty[12])
	assert.Equal(t, byte(0), mock.port.duty[13])
	assert.Equal(t, byte(0), mock.port.duty[18])
	assert.Equal(t, color.Red, mock.drivers[PRIMARY].last())
	assert.NotContains(t, mock.strips, PRIMARY)

	app.controllers[SECONDARY].SetColor(color.Blue)
	strip := mock.strips[SECONDARY]
	require.NotNil(t, strip)
	assert.Equal(t, color.Blue.Packed(false), strip.all)
	assert.Equal(t, byte(255), strip.bright)
	assert.NotContains(t, mock.drivers, SECONDARY)
}

func TestHandleEvent(t *testing.T) {
	app, mock := newTestApp(t, testConfig())
	primary := app.controllers[PRIMARY]
	secondary := app.controllers[SECONDARY]

	app.handleEvent(u.NewEvent(u.Preset, "", 3, time.Now()))
	assert.Equal(t, color.Green, primary.Color())
	assert.True(t, primary.LightsOn())
	assert.False(t, secondary.LightsOn(), "an empty name targets the primary controller")

	app.handleEvent(u.NewEvent(u.Toggle, "", 0, time.Now()))
	assert.False(t, primary.LightsOn())
	assert.Equal(t, color.Off, mock.drivers[PRIMARY].last())

	app.handleEvent(u.NewEvent(u.Toggle, "", 0, time.Now()))
	assert.True(t, primary.LightsOn())
	assert.Equal(t, color.Green, mock.drivers[PRIMARY].last())

	app.handleEvent(u.NewEvent(u.Preset, SECONDARY, 0, time.Now()))
	assert.Equal(t, color.Red, secondary.Color())

	app.handleEvent(u.NewEvent(u.Off, SECONDARY, 0, time.Now()))
	assert.False(t, secondary.LightsOn())
	assert.Equal(t, color.Red, secondary.Color(), "switching off keeps the color")

	// ignored
	app.handleEvent(u.NewEvent(u.Preset, "", len(color.Presets), time.Now()))
	assert.Equal(t, color.Green, primary.Color())
	app.handleEvent(u.NewEvent(u.PowerOff, "", 0, time.Now()))
	assert.True(t, primary.LightsOn())
}

func TestHandleEvent_DisabledController(t *testing.T) {
	conf := testConfig()
	conf.Secondary.Enabled = false
	app, _ := newTestApp(t, conf)

	assert.NotPanics(t, func() {
		app.handleEvent(u.NewEvent(u.Toggle, SECONDARY, 0, time.Now()))
	})
	assert.False(t, app.controllers[PRIMARY].LightsOn())
}

func TestHandleEvent_CaseLight(t *testing.T) {
	conf := testConfig()
	conf.Primary.Pins.CaseLightGated = true
	app := NewApp(make(chan os.Signal, 1))
	app.conf = conf
	app.caseLight = caselight.NewSwitch(true)
	mock := NewMockPlatform()
	app.platform = mock
	ctl, err := app.newController(PRIMARY, conf.Primary)
	require.NoError(t, err)
	app.controllers[PRIMARY] = ctl

	ctl.SetColor(color.Red)
	assert.Equal(t, byte(255), mock.port.duty[12])

	app.handleEvent(u.NewEvent(u.CaseLight, "", 0, time.Now()))
	assert.False(t, app.caseLight.On())
	assert.Equal(t, byte(0), mock.port.duty[12], "gated pins go dark with the case light")
	assert.True(t, ctl.LightsOn())

	app.handleEvent(u.NewEvent(u.CaseLight, "", 0, time.Now()))
	assert.Equal(t, byte(255), mock.port.duty[12])
}

func TestApplyConfig(t *testing.T) {
	app, mock := newTestApp(t, testConfig())
	primary := app.controllers[PRIMARY]

	primary.SetDefault()
	assert.Equal(t, color.Orange, mock.drivers[PRIMARY].last())

	conf := testConfig()
	conf.Primary.Preset = c.ColorSpec(color.Violet)
	conf.Logging.Level = "DEBUG"
	app.applyConfig(conf)

	primary.SetDefault()
	assert.Equal(t, color.Violet, mock.drivers[PRIMARY].last())
	assert.Equal(t, "DEBUG", app.conf.Logging.Level)
}

func TestHandleEvent_DefaultAfterReload(t *testing.T) {
	app, mock := newTestApp(t, testConfig())
	primary := app.controllers[PRIMARY]

	app.handleEvent(u.NewEvent(u.Default, "", 0, time.Now()))
	assert.Equal(t, color.Orange, mock.drivers[PRIMARY].last())

	conf := testConfig()
	conf.Primary.Preset = c.ColorSpec(color.Violet)
	app.applyConfig(conf)

	app.handleEvent(u.NewEvent(u.Off, "", 0, time.Now()))
	assert.False(t, primary.LightsOn())
	app.handleEvent(u.NewEvent(u.Default, "", 0, time.Now()))
	assert.Equal(t, color.Violet, mock.drivers[PRIMARY].last())
	assert.True(t, primary.LightsOn())
}

func TestControlLoop(t *testing.T) {
	conf := testConfig()
	conf.Primary.Timeout = 20 * time.Millisecond
	app, mock := newTestApp(t, conf)
	driver := mock.drivers[PRIMARY]

	app.shutdownWg.Add(1)
	go app.controlLoop()
	t.Cleanup(func() {
		close(app.stopsignal)
		app.shutdownWg.Wait()
	})

	mock.events <- u.NewEvent(u.Preset, "", 4, time.Now())
	assert.Eventually(t, func() bool {
		return driver.last() == color.Blue
	}, time.Second, 5*time.Millisecond)

	// the supply is on, the deadline keeps moving
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, color.Blue, driver.last())

	mock.power.Set(false)
	assert.Eventually(t, func() bool {
		return driver.last() == color.Off
	}, time.Second, 5*time.Millisecond, "idle timeout switches off")
}

func TestRootCmd(t *testing.T) {
	root := newRootCmd()

	cfile := root.PersistentFlags().Lookup("config")
	require.NotNil(t, cfile)
	assert.Equal(t, c.CONFILE, cfile.DefValue)
	assert.NotNil(t, root.PersistentFlags().Lookup("real"))
	assert.NotNil(t, root.Flags().Lookup("metrics"))

	selftest, _, err := root.Find([]string{"selftest"})
	require.NoError(t, err)
	assert.Equal(t, "selftest", selftest.Name())
}
