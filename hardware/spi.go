package hardware

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"

	"lautenbacher.net/ledlights/config"
)

// Exchanger sends a frame over the SPI bus routed to one multiplex target
type Exchanger interface {
	Exchange(multiplex string, data []byte)
}

type gpiocfg struct {
	low  []int
	high []int
}

// SPIBus shares SPI0 between several strips. Before each transfer the
// multiplex pins of the target are pulled low and high.
type SPIBus struct {
	mu              sync.Mutex
	gpio            *GPIO
	spimultiplexcfg map[string]gpiocfg
	begin           func() error
	end             func()
	speed           func(int)
	exchange        func([]byte)
}

func NewSPIBus(gpio *GPIO, multiplex map[string]config.MultiplexCfg) *SPIBus {
	cfg := make(map[string]gpiocfg, len(multiplex))
	for key, m := range multiplex {
		cfg[key] = gpiocfg{low: m.Low, high: m.High}
	}
	return &SPIBus{
		gpio:            gpio,
		spimultiplexcfg: cfg,
		begin:           func() error { return rpio.SpiBegin(rpio.Spi0) },
		end:             func() { rpio.SpiEnd(rpio.Spi0) },
		speed:           rpio.SpiSpeed,
		exchange:        rpio.SpiExchange,
	}
}

func (b *SPIBus) Open(frequency int) error {
	slog.Info("Initialise Spi...", "frequency", frequency)
	if err := b.begin(); err != nil {
		return fmt.Errorf("failed to begin spi: %w", err)
	}
	b.speed(frequency)
	return nil
}

func (b *SPIBus) Close() {
	b.end()
}

// Exchange writes data to the target selected by multiplex. An empty
// key leaves the multiplex pins alone.
func (b *SPIBus) Exchange(multiplex string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if multiplex != "" {
		// The existence of the key is guaranteed by the config validation at startup.
		cfg := b.spimultiplexcfg[multiplex]
		for _, pin := range cfg.low {
			b.gpio.WriteDigital(pin, false)
		}
		for _, pin := range cfg.high {
			b.gpio.WriteDigital(pin, true)
		}
	}
	b.exchange(data)
}
