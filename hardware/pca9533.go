package hardware

import (
	"errors"

	"lautenbacher.net/ledlights/color"
)

const (
	pca9533RegPsc0 = 0x01
	pca9533RegPwm0 = 0x02
	pca9533RegPsc1 = 0x03
	pca9533RegPwm1 = 0x04
	pca9533RegLs0  = 0x05
)

const (
	pca9533LedOff  = 0
	pca9533LedOn   = 1
	pca9533LedPwm0 = 2
	pca9533LedPwm1 = 3
)

// output positions in LS0
const (
	pca9533Red   = 0
	pca9533Green = 1
	pca9533Blue  = 2
)

// PCA9533 has four outputs but only two PWM generators. Three distinct
// dim levels are approximated by sharing a generator between the two
// closest channels.
type PCA9533 struct {
	dev  I2CDevice
	addr int
}

func NewPCA9533(dev I2CDevice, addr int) *PCA9533 {
	return &PCA9533{dev: dev, addr: addr}
}

// Init runs both generators at full speed and switches all outputs off
func (p *PCA9533) Init() error {
	return errors.Join(
		p.dev.WriteReg(pca9533RegPsc0, []byte{0}),
		p.dev.WriteReg(pca9533RegPsc1, []byte{0}),
		p.dev.WriteReg(pca9533RegLs0, []byte{0}),
	)
}

func (p *PCA9533) Channels() int {
	return 3
}

func (p *PCA9533) SetColor(c color.Color) {
	pwm0, pwm1, ls0 := pca9533Allocate(c.R, c.G, c.B)
	logWriteError("PCA9533", p.addr, errors.Join(
		p.dev.WriteReg(pca9533RegLs0, []byte{0}),
		p.dev.WriteReg(pca9533RegPwm0, []byte{pwm0}),
		p.dev.WriteReg(pca9533RegPwm1, []byte{pwm1}),
		p.dev.WriteReg(pca9533RegLs0, []byte{ls0}),
	))
}

func (p *PCA9533) Close() error {
	return p.dev.Close()
}

func absDiff(a, b byte) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// pca9533Allocate picks the generator for every channel. Green is
// placed first as it is the most visible one.
func pca9533Allocate(red, green, blue byte) (pwm0, pwm1, ls0 byte) {
	var opR, opG, opB byte

	switch green {
	case 0:
		opG = pca9533LedOff
	case 255:
		opG = pca9533LedOn
	default:
		pwm0, opG = green, pca9533LedPwm0
	}

	switch {
	case red == 0:
		opR = pca9533LedOff
	case red == 255:
		opR = pca9533LedOn
	case pwm0 == 0 || pwm0 == red:
		pwm0, opR = red, pca9533LedPwm0
	default:
		pwm1, opR = red, pca9533LedPwm1
	}

	switch {
	case blue == 0:
		opB = pca9533LedOff
	case blue == 255:
		opB = pca9533LedOn
	case pwm0 == 0 || pwm0 == blue:
		pwm0, opB = blue, pca9533LedPwm0
	case pwm1 == 0 || pwm1 == blue:
		pwm1, opB = blue, pca9533LedPwm1
	default:
		// green sits on generator 0 and red on generator 1
		dgb := absDiff(green, blue)
		dgr := absDiff(green, red)
		dbr := absDiff(blue, red)
		switch {
		case dgb < dgr && dgb < dbr:
			opB = pca9533LedPwm0
			pwm0 = byte((uint16(green) + uint16(blue)) / 2)
		case dbr <= dgr && dbr <= dgb:
			opB = pca9533LedPwm1
			pwm1 = byte((uint16(red) + uint16(blue)) / 2)
		default:
			opR = pca9533LedPwm0
			pwm0 = byte((uint16(green) + uint16(red)) / 2)
			opB = pca9533LedPwm1
			pwm1 = blue
		}
	}

	ls0 = opR<<(pca9533Red*2) | opG<<(pca9533Green*2) | opB<<(pca9533Blue*2)
	return pwm0, pwm1, ls0
}
