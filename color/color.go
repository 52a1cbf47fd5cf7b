package color

import "fmt"

// Channel indices as used by Channel, WithChannel and Raise
const (
	ChanRed = iota
	ChanGreen
	ChanBlue
	ChanWhite
)

// Color is the value pushed to every LED backend. W is only used by
// hardware with a dedicated white channel, I (intensity) only by pixel
// strips. Treat values as immutable, all helpers return copies.
type Color struct {
	R byte
	G byte
	B byte
	W byte
	I byte
}

var (
	Off    = Color{}
	Red    = Color{R: 255, I: 255}
	Orange = Color{R: 255, G: 80, I: 255}
	Yellow = Color{R: 255, G: 255, I: 255}
	Green  = Color{G: 255, I: 255}
	Blue   = Color{B: 255, I: 255}
	Indigo = Color{G: 255, B: 255, I: 255}
	Violet = Color{R: 255, B: 255, I: 255}
	// White is the one color a pixel strip renders with its native
	// white instead of mixing red, green and blue.
	White = Color{R: 255, G: 255, B: 255, W: 255, I: 255}
)

// Presets in menu order, Off excluded
var Presets = []Color{Red, Orange, Yellow, Green, Blue, Indigo, Violet, White}

func New(r, g, b byte) Color {
	return Color{R: r, G: g, B: b}
}

func NewRGBW(r, g, b, w byte) Color {
	return Color{R: r, G: g, B: b, W: w}
}

// WithBrightness returns a copy with the intensity set to i
func (s Color) WithBrightness(i byte) Color {
	s.I = i
	return s
}

// True if all chromatic components are zero. The intensity does not
// count: a black color at full brightness is still off.
func (s Color) IsOff() bool {
	return s.R == 0 && s.G == 0 && s.B == 0 && s.W == 0
}

// Channel returns the component with index ChanRed..ChanWhite
func (s Color) Channel(i int) byte {
	switch i {
	case ChanRed:
		return s.R
	case ChanGreen:
		return s.G
	case ChanBlue:
		return s.B
	case ChanWhite:
		return s.W
	}
	panic(fmt.Sprintf("color channel %d out of range", i))
}

func (s Color) WithChannel(i int, value byte) Color {
	switch i {
	case ChanRed:
		s.R = value
	case ChanGreen:
		s.G = value
	case ChanBlue:
		s.B = value
	case ChanWhite:
		s.W = value
	default:
		panic(fmt.Sprintf("color channel %d out of range", i))
	}
	return s
}

// Raise returns a copy where channel i is at least floor. A channel
// already above floor is left alone.
func (s Color) Raise(i int, floor byte) Color {
	if s.Channel(i) < floor {
		return s.WithChannel(i, floor)
	}
	return s
}

// Packed returns the 0xWWRRGGBB word pixel strips work with. The white
// byte is dropped for plain RGB strips.
func (s Color) Packed(rgbw bool) uint32 {
	packed := uint32(s.R)<<16 | uint32(s.G)<<8 | uint32(s.B)
	if rgbw {
		packed |= uint32(s.W) << 24
	}
	return packed
}

func (s Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x w=%d i=%d", s.R, s.G, s.B, s.W, s.I)
}

// Local Variables:
// compile-command: "cd .. && go build"
// End:
