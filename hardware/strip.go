package hardware

import (
	"fmt"
	"math"
	"strings"

	"lautenbacher.net/ledlights/config"
)

// stripEncoder turns packed 0xWWRRGGBB pixels into the wire format of a
// strip type.
type stripEncoder interface {
	encode(pixels []uint32, brightness byte) []byte
}

// Strip is a SPI pixel strip. Pixels are buffered until Show.
type Strip struct {
	bus        Exchanger
	multiplex  string
	encoder    stripEncoder
	pixels     []uint32
	brightness byte
	bgFirst    int
	bgLast     int
	bgColor    uint32
}

func NewStrip(bus Exchanger, cfg config.PixelsConfig) (*Strip, error) {
	correction := [3]float64{1, 1, 1}
	if len(cfg.ColorCorrection) == 3 {
		copy(correction[:], cfg.ColorCorrection)
	}

	var encoder stripEncoder
	switch strings.ToUpper(cfg.Type) {
	case "APA102":
		encoder = newApa102Encoder(cfg.Count, correction)
	case "WS2801":
		encoder = newWs2801Encoder(cfg.Count, correction)
	default:
		return nil, fmt.Errorf("unknown LED type: %s", cfg.Type)
	}

	s := &Strip{
		bus:        bus,
		multiplex:  cfg.SpiMultiplex,
		encoder:    encoder,
		pixels:     make([]uint32, cfg.Count),
		brightness: 255,
		bgFirst:    config.Unwired,
		bgLast:     config.Unwired,
	}
	if cfg.HasBackground() {
		s.bgFirst = cfg.BackgroundFirst
		s.bgLast = cfg.BackgroundLast
		s.bgColor = cfg.BackgroundColor.Color().Packed(cfg.RGBW)
	}
	return s, nil
}

// Init clears the strip and lights the background range
func (s *Strip) Init() error {
	clear(s.pixels)
	s.brightness = 255
	s.ResetBackgroundColor()
	s.Show()
	return nil
}

func (s *Strip) PixelCount() int {
	return len(s.pixels)
}

func (s *Strip) SetPixel(index int, packed uint32) {
	if index < 0 || index >= len(s.pixels) {
		return
	}
	s.pixels[index] = packed
}

func (s *Strip) SetAll(packed uint32) {
	for i := range s.pixels {
		if !s.inBackground(i) {
			s.pixels[i] = packed
		}
	}
}

func (s *Strip) inBackground(i int) bool {
	return s.bgFirst != config.Unwired && i >= s.bgFirst && i <= s.bgLast
}

func (s *Strip) SetBrightness(level byte) {
	s.brightness = level
}

func (s *Strip) Show() {
	s.bus.Exchange(s.multiplex, s.encoder.encode(s.pixels, s.brightness))
}

func (s *Strip) ResetBackgroundColor() {
	if s.bgFirst == config.Unwired {
		return
	}
	for i := s.bgFirst; i <= s.bgLast && i < len(s.pixels); i++ {
		s.pixels[i] = s.bgColor
	}
}

// unpack splits a packed pixel into corrected r, g, b. The white byte
// is mixed into all three channels since both strip types are RGB only.
func unpack(packed uint32, correction [3]float64) (byte, byte, byte) {
	w := float64(packed >> 24 & 0xFF)
	r := float64(packed >> 16 & 0xFF)
	g := float64(packed >> 8 & 0xFF)
	b := float64(packed & 0xFF)
	return byte(math.Min((r+w)*correction[0], 255)),
		byte(math.Min((g+w)*correction[1], 255)),
		byte(math.Min((b+w)*correction[2], 255))
}

type ws2801Encoder struct {
	correction [3]float64
	buffer     []byte
}

func newWs2801Encoder(count int, correction [3]float64) *ws2801Encoder {
	return &ws2801Encoder{
		correction: correction,
		buffer:     make([]byte, 3*count),
	}
}

// WS2801 has no global brightness, the channels are scaled instead
func (d *ws2801Encoder) encode(pixels []uint32, brightness byte) []byte {
	display := d.buffer[:3*len(pixels)]
	scale := float64(brightness) / 255
	for idx, packed := range pixels {
		r, g, b := unpack(packed, d.correction)
		display[3*idx] = byte(math.Round(float64(r) * scale))
		display[(3*idx)+1] = byte(math.Round(float64(g) * scale))
		display[(3*idx)+2] = byte(math.Round(float64(b) * scale))
	}
	return display
}

type apa102Encoder struct {
	correction [3]float64
	buffer     []byte
}

func newApa102Encoder(count int, correction [3]float64) *apa102Encoder {
	frameEndLength := (count / 16) + 1
	return &apa102Encoder{
		correction: correction,
		buffer:     make([]byte, 4+(4*count)+frameEndLength),
	}
}

// apa102Level maps 0..255 to the 5 bit global brightness, keeping any
// non zero level visible.
func apa102Level(brightness byte) byte {
	level := brightness >> 3
	if level == 0 && brightness > 0 {
		level = 1
	}
	return level
}

func (d *apa102Encoder) encode(pixels []uint32, brightness byte) []byte {
	frameEndLength := (len(pixels) / 16) + 1
	requiredSize := 4 + (4 * len(pixels)) + frameEndLength
	display := d.buffer[:requiredSize]

	// Frame start: 4 zero bytes
	copy(display[0:4], []byte{0x00, 0x00, 0x00, 0x00})

	global := apa102Level(brightness) | 0xE0
	offset := 4
	for _, packed := range pixels {
		r, g, b := unpack(packed, d.correction)
		// protocol: brightness byte, blue, green, red
		display[offset] = global
		display[offset+1] = b
		display[offset+2] = g
		display[offset+3] = r
		offset += 4
	}

	// Frame end: fill the rest of the slice with 0xFF
	for i := offset; i < requiredSize; i++ {
		display[i] = 0xFF
	}
	return display
}
