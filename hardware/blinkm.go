package hardware

import (
	"lautenbacher.net/ledlights/color"
)

const (
	blinkmStopScript = 'o'
	blinkmGoToRGB    = 'n'
)

// BlinkM is a smart RGB LED taking single letter commands
type BlinkM struct {
	dev  I2CDevice
	addr int
}

func NewBlinkM(dev I2CDevice, addr int) *BlinkM {
	return &BlinkM{dev: dev, addr: addr}
}

// Init stops the startup light script
func (b *BlinkM) Init() error {
	return b.dev.Write([]byte{blinkmStopScript})
}

func (b *BlinkM) Channels() int {
	return 3
}

func (b *BlinkM) SetColor(c color.Color) {
	logWriteError("BlinkM", b.addr, b.dev.Write([]byte{blinkmGoToRGB, c.R, c.G, c.B}))
}

func (b *BlinkM) Close() error {
	return b.dev.Close()
}
