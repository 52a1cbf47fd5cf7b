package hardware

import (
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/exp/io/i2c"

	"lautenbacher.net/ledlights/color"
	"lautenbacher.net/ledlights/config"
)

// I2CDevice is the part of *i2c.Device the LED drivers use
type I2CDevice interface {
	Write(buf []byte) error
	WriteReg(reg byte, buf []byte) error
	Close() error
}

// Driver is an I2C color driver chip
type Driver interface {
	Init() error
	SetColor(c color.Color)
	Close() error
	// Channels is 4 when the chip drives a white LED, 3 otherwise
	Channels() int
}

func OpenI2C(bus string, addr int) (*i2c.Device, error) {
	dev, err := i2c.Open(&i2c.Devfs{Dev: bus}, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c device 0x%02x on %s: %w", addr, bus, err)
	}
	return dev, nil
}

// OpenDriver opens the bus device and wraps it in the configured chip
func OpenDriver(bus string, cfg config.DriverConfig) (Driver, error) {
	dev, err := OpenI2C(bus, cfg.Address)
	if err != nil {
		return nil, err
	}
	drv, err := NewDriver(dev, cfg)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return drv, nil
}

func NewDriver(dev I2CDevice, cfg config.DriverConfig) (Driver, error) {
	switch strings.ToUpper(cfg.Type) {
	case config.DriverPCA9632:
		return NewPCA9632(dev, cfg.Address, cfg.White), nil
	case config.DriverPCA9533:
		return NewPCA9533(dev, cfg.Address), nil
	case config.DriverBlinkM:
		return NewBlinkM(dev, cfg.Address), nil
	}
	return nil, fmt.Errorf("unknown driver type: %s", cfg.Type)
}

func logWriteError(chip string, addr int, err error) {
	if err != nil {
		slog.Error("i2c write failed", "chip", chip, "address", fmt.Sprintf("0x%02x", addr), "error", err)
	}
}
