package hardware

import (
	"errors"

	"lautenbacher.net/ledlights/color"
)

const (
	pca9632RegMode1      = 0x00
	pca9632RegMode2      = 0x01
	pca9632RegPwm0       = 0x02
	pca9632RegLedout     = 0x08
	pca9632AutoIncrement = 0x80

	// normal mode, respond to all call
	pca9632Mode1 = 0x01
	// totem pole outputs
	pca9632Mode2 = 0x04
)

const (
	pca9632LedOff = 0
	pca9632LedPwm = 2
)

// PCA9632 is a 4 channel PWM driver. Outputs 0..2 are red, green and
// blue, output 3 is white when wired.
type PCA9632 struct {
	dev     I2CDevice
	addr    int
	white   bool
	pwm     [4]byte
	ledout  byte
	written bool
}

func NewPCA9632(dev I2CDevice, addr int, white bool) *PCA9632 {
	return &PCA9632{dev: dev, addr: addr, white: white}
}

func (p *PCA9632) Init() error {
	// LEDOUT is cleared, the next SetColor writes every register
	p.written = false
	return errors.Join(
		p.dev.WriteReg(pca9632RegMode1, []byte{pca9632Mode1}),
		p.dev.WriteReg(pca9632RegMode2, []byte{pca9632Mode2}),
		p.dev.WriteReg(pca9632RegLedout, []byte{0}),
	)
}

func (p *PCA9632) Channels() int {
	if p.white {
		return 4
	}
	return 3
}

// SetColor writes only the registers that changed since the last write
func (p *PCA9632) SetColor(c color.Color) {
	pwm := [4]byte{c.R, c.G, c.B, 0}
	if p.white {
		pwm[3] = c.W
	}
	ledout := byte(0)
	for i, v := range pwm {
		mode := byte(pca9632LedOff)
		if v > 0 {
			mode = pca9632LedPwm
		}
		ledout |= mode << (i * 2)
	}

	if !p.written || pwm != p.pwm {
		logWriteError("PCA9632", p.addr, p.dev.WriteReg(pca9632RegPwm0|pca9632AutoIncrement, pwm[:]))
	}
	if !p.written || ledout != p.ledout {
		logWriteError("PCA9632", p.addr, p.dev.WriteReg(pca9632RegLedout, []byte{ledout}))
	}
	p.pwm = pwm
	p.ledout = ledout
	p.written = true
}

func (p *PCA9632) Close() error {
	return p.dev.Close()
}
