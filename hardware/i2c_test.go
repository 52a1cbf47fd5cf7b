package hardware

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lautenbacher.net/ledlights/backend"
	"lautenbacher.net/ledlights/color"
	"lautenbacher.net/ledlights/config"
	"lautenbacher.net/ledlights/leds"
)

func TestNewDriver(t *testing.T) {
	for _, tc := range []struct {
		cfg      config.DriverConfig
		channels int
	}{
		{config.DriverConfig{Type: "PCA9632", Address: 0x60}, 3},
		{config.DriverConfig{Type: "pca9632", Address: 0x60, White: true}, 4},
		{config.DriverConfig{Type: "PCA9533", Address: 0x62}, 3},
		{config.DriverConfig{Type: "BlinkM", Address: 0x09}, 3},
	} {
		drv, err := NewDriver(&fakeI2C{}, tc.cfg)
		require.NoError(t, err)
		assert.Equal(t, tc.channels, drv.Channels(), tc.cfg.Type)
	}

	_, err := NewDriver(&fakeI2C{}, config.DriverConfig{Type: "TLC5947"})
	assert.Error(t, err)
}

func TestPCA9632_Init(t *testing.T) {
	dev := &fakeI2C{}
	require.NoError(t, NewPCA9632(dev, 0x60, false).Init())
	assert.Equal(t, []regWrite{
		{reg: pca9632RegMode1, data: []byte{0x01}},
		{reg: pca9632RegMode2, data: []byte{0x04}},
		{reg: pca9632RegLedout, data: []byte{0}},
	}, dev.regs)

	dev.err = errors.New("nack")
	assert.Error(t, NewPCA9632(dev, 0x60, false).Init())
}

func TestPCA9632_SetColor(t *testing.T) {
	dev := &fakeI2C{}
	pca := NewPCA9632(dev, 0x60, false)

	pca.SetColor(color.NewRGBW(10, 0, 30, 40))
	require.Len(t, dev.regs, 2)
	assert.Equal(t, regWrite{reg: 0x82, data: []byte{10, 0, 30, 0}}, dev.regs[0], "white is dropped without a white channel")
	assert.Equal(t, regWrite{reg: pca9632RegLedout, data: []byte{0b00100010}}, dev.regs[1])

	pca.SetColor(color.NewRGBW(10, 0, 30, 40))
	assert.Len(t, dev.regs, 2, "unchanged colors are not written again")

	pca.SetColor(color.NewRGBW(11, 0, 30, 40))
	assert.Len(t, dev.regs, 3, "only the PWM registers changed")
}

func TestPCA9632_White(t *testing.T) {
	dev := &fakeI2C{}
	pca := NewPCA9632(dev, 0x60, true)
	pca.SetColor(color.White)
	assert.Equal(t, []byte{255, 255, 255, 255}, dev.regs[0].data)
	assert.Equal(t, []byte{0xAA}, dev.regs[1].data)
}

func TestPCA9632_InitAfterSetColor(t *testing.T) {
	dev := &fakeI2C{}
	pca := NewPCA9632(dev, 0x60, true)
	pca.SetColor(color.White)
	require.NoError(t, pca.Init())

	dev.regs = nil
	pca.SetColor(color.White)
	require.Len(t, dev.regs, 2, "Init cleared LEDOUT, the same color is written again")
	assert.Equal(t, regWrite{reg: pca9632RegLedout, data: []byte{0xAA}}, dev.regs[1])
}

func TestPCA9632_ControllerSetup(t *testing.T) {
	dev := &fakeI2C{}
	pca := NewPCA9632(dev, 0x60, true)
	ctl := leds.NewController(leds.Options{
		Name:            "primary",
		Drivers:         []backend.ColorDriver{pca},
		FadeDrivers:     []backend.ColorDriver{pca},
		DriverChannels:  pca.Channels(),
		StartupTest:     true,
		StepDelay:       time.Millisecond,
		Sleeper:         backend.SleeperFunc(func(time.Duration) {}),
		Preset:          color.White,
		PresetAtStartup: true,
	})
	require.NoError(t, ctl.Setup())

	require.NotEmpty(t, dev.regs)
	assert.Equal(t, byte(pca9632RegMode1), dev.regs[0].reg, "the chip is woken up before the animation")

	var ledout []byte
	for _, w := range dev.regs {
		if w.reg == pca9632RegLedout {
			ledout = w.data
		}
	}
	assert.Equal(t, []byte{0xAA}, ledout, "the preset is visible after setup")
	assert.True(t, ctl.LightsOn())
}

func TestPCA9632_WriteErrorIsLogged(t *testing.T) {
	dev := &fakeI2C{err: errors.New("nack")}
	pca := NewPCA9632(dev, 0x60, false)
	assert.NotPanics(t, func() { pca.SetColor(color.Red) })
	assert.NoError(t, pca.Close())
	assert.True(t, dev.closed)
}

func TestPCA9533_Allocate(t *testing.T) {
	tests := []struct {
		name             string
		r, g, b          byte
		pwm0, pwm1, ls0  byte
	}{
		{"off", 0, 0, 0, 0, 0, 0},
		{"full on", 255, 255, 255, 0, 0, 0b010101},
		{"green dim", 0, 100, 0, 100, 0, 0b001000},
		{"red and green share", 100, 100, 0, 100, 0, 0b001010},
		{"two levels", 50, 100, 0, 100, 50, 0b001011},
		{"blue joins generator 1", 50, 100, 50, 100, 50, 0b111011},
		{"blue closest to green", 10, 100, 110, 105, 10, 0b101011},
		{"blue closest to red", 100, 10, 110, 10, 105, 0b111011},
		{"red closest to green", 100, 110, 10, 105, 10, 0b111010},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pwm0, pwm1, ls0 := pca9533Allocate(tt.r, tt.g, tt.b)
			assert.Equal(t, tt.pwm0, pwm0, "pwm0")
			assert.Equal(t, tt.pwm1, pwm1, "pwm1")
			assert.Equal(t, tt.ls0, ls0, "ls0 %06b", ls0)
		})
	}
}

func TestPCA9533_SetColor(t *testing.T) {
	dev := &fakeI2C{}
	pca := NewPCA9533(dev, 0x62)
	require.NoError(t, pca.Init())
	dev.regs = nil

	pca.SetColor(color.New(255, 100, 0))
	assert.Equal(t, []regWrite{
		{reg: pca9533RegLs0, data: []byte{0}},
		{reg: pca9533RegPwm0, data: []byte{100}},
		{reg: pca9533RegPwm1, data: []byte{0}},
		{reg: pca9533RegLs0, data: []byte{0b001001}},
	}, dev.regs)
}

func TestBlinkM(t *testing.T) {
	dev := &fakeI2C{}
	b := NewBlinkM(dev, 0x09)
	require.NoError(t, b.Init())
	b.SetColor(color.Orange)
	assert.Equal(t, [][]byte{{'o'}, {'n', 255, 80, 0}}, dev.raw)
}
