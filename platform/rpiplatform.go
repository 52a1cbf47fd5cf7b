package platform

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lautenbacher.net/ledlights/backend"
	"lautenbacher.net/ledlights/color"
	"lautenbacher.net/ledlights/config"
	"lautenbacher.net/ledlights/hardware"
	"lautenbacher.net/ledlights/util"
)

// inputs is the part of the GPIO the input poller reads
type inputs interface {
	ReadInput(pin int) bool
}

type RaspberryPiPlatform struct {
	*AbstractPlatform
	gpio          *hardware.GPIO
	spi           *hardware.SPIBus
	spiOpen       bool
	drivers       []hardware.Driver
	inputWg       sync.WaitGroup
	inputStopChan chan bool
}

func NewRaspberryPiPlatform(conf *config.Config) *RaspberryPiPlatform {
	gpio := hardware.NewGPIO()
	return &RaspberryPiPlatform{
		AbstractPlatform: newAbstractPlatform(conf),
		gpio:             gpio,
		spi:              hardware.NewSPIBus(gpio, conf.Hardware.SpiMultiplexGPIO),
		inputStopChan:    make(chan bool),
	}
}

func (s *RaspberryPiPlatform) Start() error {
	if err := s.gpio.Open(); err != nil {
		return err
	}
	if s.config.Primary.Pixels.Enabled || s.config.Secondary.Pixels.Enabled {
		if err := s.spi.Open(s.config.Hardware.SPIFrequency); err != nil {
			s.gpio.Close()
			return err
		}
		s.spiOpen = true
	}

	s.inputWg.Add(1)
	go s.inputDriver(s.gpio, s.config.Hardware.LoopDelay)

	close(s.readyChan) // For RPi, we are ready immediately.
	return nil
}

func (s *RaspberryPiPlatform) Stop() {
	s.setInShutdown()

	close(s.inputStopChan)
	s.inputWg.Wait()

	// Now, safely close hardware
	for _, drv := range s.drivers {
		drv.SetColor(color.Off)
		if err := drv.Close(); err != nil {
			slog.Error("Error closing i2c device", "error", err)
		}
	}
	s.drivers = nil
	if s.spiOpen {
		s.spi.Close()
		s.spiOpen = false
	}
	if err := s.gpio.Close(); err != nil {
		slog.Error("Error closing rpio", "error", err)
	}
}

func (s *RaspberryPiPlatform) PinPort() backend.PinPort {
	return s.gpio
}

func (s *RaspberryPiPlatform) NewStrip(controller string, cfg config.PixelsConfig) (backend.PixelStrip, error) {
	if !s.spiOpen {
		return nil, errors.New("spi bus is not open")
	}
	strip, err := hardware.NewStrip(s.spi, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", controller, err)
	}
	return strip, nil
}

// NewDrivers opens all configured I2C chips. On error the chips opened
// so far are closed again.
func (s *RaspberryPiPlatform) NewDrivers(controller string, cfgs []config.DriverConfig) ([]hardware.Driver, error) {
	ret := make([]hardware.Driver, 0, len(cfgs))
	for _, cfg := range cfgs {
		drv, err := hardware.OpenDriver(s.config.Hardware.I2CBus, cfg)
		if err != nil {
			for _, opened := range ret {
				opened.Close()
			}
			return nil, fmt.Errorf("%s: %w", controller, err)
		}
		slog.Info("Opened LED driver", "controller", controller, "type", cfg.Type, "address", fmt.Sprintf("0x%02x", cfg.Address))
		ret = append(ret, drv)
	}
	s.drivers = append(s.drivers, ret...)
	return ret, nil
}

// inputDriver polls the power sense pin and the toggle button
func (s *RaspberryPiPlatform) inputDriver(in inputs, loopDelay time.Duration) {
	defer s.inputWg.Done()
	ticker := time.NewTicker(loopDelay)
	defer ticker.Stop()

	hw := s.config.Hardware
	var power, button *debouncer
	if hw.PowerSensePin != config.Unwired {
		initial := in.ReadInput(hw.PowerSensePin)
		power = newDebouncer(hw.ButtonSamples, initial)
		s.setPower(initial)
	}
	if hw.ToggleButtonPin != config.Unwired {
		// pulled up, pressing connects to ground
		button = newDebouncer(hw.ButtonSamples, false)
	}

	for {
		select {
		case <-s.inputStopChan:
			slog.Info("Ending InputDriver go-routine (RPi)")
			return
		case <-ticker.C:
			s.pollInputs(in, power, button)
		}
	}
}

func (s *RaspberryPiPlatform) pollInputs(in inputs, power, button *debouncer) {
	hw := s.config.Hardware
	if power != nil {
		if on, changed := power.sample(in.ReadInput(hw.PowerSensePin)); changed {
			s.setPower(on)
		}
	}
	if button != nil {
		if pressed, changed := button.sample(!in.ReadInput(hw.ToggleButtonPin)); changed && pressed {
			slog.Debug("Toggle button pressed")
			s.send(util.Toggle, "", 0)
		}
	}
}
