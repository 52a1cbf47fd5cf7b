package platform

import (
	"fmt"
	"strings"
	"sync"

	"github.com/lucasb-eyer/go-colorful"

	"lautenbacher.net/ledlights/config"
	"lautenbacher.net/ledlights/hardware"
	u "lautenbacher.net/ledlights/util"
)

var channelColors = [4]colorful.Color{
	{R: 1, G: 0, B: 0},
	{R: 0, G: 1, B: 0},
	{R: 0, G: 0, B: 1},
	{R: 1, G: 1, B: 1},
}

// swatch renders a color cell as tview color tag. White is mixed in on
// top of red, green and blue, level dims the result.
func swatch(r, g, b, w, level byte, width int) string {
	if (r == 0 && g == 0 && b == 0 && w == 0) || level == 0 {
		return strings.Repeat("·", width)
	}
	c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	if w > 0 {
		c = c.BlendRgb(channelColors[3], float64(w)/255)
	}
	c = colorful.Color{}.BlendRgb(c, float64(level)/255)
	return "[" + c.Clamped().Hex() + "]" + strings.Repeat("█", width) + "[-]"
}

type pinLabel struct {
	controller string
	channel    int
}

// simPort simulates the header pins. The state of all pins of one
// controller is rendered as one line.
type simPort struct {
	mu     sync.Mutex
	labels map[int]pinLabel
	duty   map[int]byte
	state  *u.LatestMap[string]
}

func newSimPort(conf *config.Config, state *u.LatestMap[string]) *simPort {
	labels := make(map[int]pinLabel)
	for name, cc := range map[string]config.ControllerConfig{primary: conf.Primary, secondary: conf.Secondary} {
		if !cc.Enabled || !cc.Pins.Enabled {
			continue
		}
		for ch, pin := range []int{cc.Pins.Red, cc.Pins.Green, cc.Pins.Blue, cc.Pins.White} {
			if pin != config.Unwired {
				labels[pin] = pinLabel{controller: name, channel: ch}
			}
		}
	}
	return &simPort{labels: labels, duty: make(map[int]byte), state: state}
}

func (s *simPort) IsPWMCapable(pin int) bool {
	return hardware.IsPWMPin(pin)
}

func (s *simPort) SetDuty(pin int, value byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duty[pin] = value
	s.publish(pin)
}

func (s *simPort) WriteDigital(pin int, high bool) {
	var value byte
	if high {
		value = 255
	}
	s.SetDuty(pin, value)
}

func (s *simPort) publish(pin int) {
	label, ok := s.labels[pin]
	if !ok {
		return
	}
	pins := make([]int, 4)
	for i := range pins {
		pins[i] = config.Unwired
	}
	for p, l := range s.labels {
		if l.controller == label.controller {
			pins[l.channel] = p
		}
	}

	var buf strings.Builder
	for ch, p := range pins {
		if p == config.Unwired {
			continue
		}
		c := channelColors[ch]
		v := s.duty[p]
		fmt.Fprintf(&buf, "GPIO%-2d %s %3d  ", p,
			swatch(byte(c.R*255), byte(c.G*255), byte(c.B*255), 0, v, 2), v)
	}
	s.state.Set(label.controller+" pins", buf.String())
}

type simStripTarget struct {
	controller string
	ledType    string
	count      int
}

// simSPI decodes the frames the real strip encoders produce and renders
// them, so the simulation runs through the same wire format.
type simSPI struct {
	mu      sync.Mutex
	targets map[string]simStripTarget
	state   *u.LatestMap[string]
}

func newSimSPI(state *u.LatestMap[string]) *simSPI {
	return &simSPI{targets: make(map[string]simStripTarget), state: state}
}

func (s *simSPI) register(multiplex string, target simStripTarget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[multiplex] = target
}

func (s *simSPI) Exchange(multiplex string, data []byte) {
	s.mu.Lock()
	target, ok := s.targets[multiplex]
	s.mu.Unlock()
	if !ok {
		return
	}

	var buf strings.Builder
	switch strings.ToUpper(target.ledType) {
	case "APA102":
		for i := 0; i < target.count && 4+4*i+3 < len(data); i++ {
			frame := data[4+4*i:]
			global := frame[0] & 0x1F
			buf.WriteString(swatch(frame[3], frame[2], frame[1], 0, global<<3|global>>2, 1))
		}
	default:
		for i := 0; i < target.count && 3*i+2 < len(data); i++ {
			buf.WriteString(swatch(data[3*i], data[3*i+1], data[3*i+2], 0, 255, 1))
		}
	}
	s.state.Set(target.controller+" strip", buf.String())
}

// simI2C keeps the register file of a simulated driver chip and renders
// the color it would show.
type simI2C struct {
	key   string
	cfg   config.DriverConfig
	regs  [16]byte
	rgb   [3]byte
	state *u.LatestMap[string]
}

func (d *simI2C) WriteReg(reg byte, buf []byte) error {
	// PCA9632 flags auto increment in the register address
	start := int(reg & 0x0F)
	for i, v := range buf {
		d.regs[(start+i)%len(d.regs)] = v
	}
	d.publish()
	return nil
}

func (d *simI2C) Write(buf []byte) error {
	if len(buf) == 4 && buf[0] == 'n' {
		copy(d.rgb[:], buf[1:])
	}
	d.publish()
	return nil
}

func (d *simI2C) Close() error {
	return nil
}

// output returns the value an output shows for a LED selector mode
func output(mode, pwm0, pwm1 byte) byte {
	switch mode {
	case 1:
		return 255
	case 2:
		return pwm0
	case 3:
		return pwm1
	}
	return 0
}

func (d *simI2C) color() (r, g, b, w byte) {
	switch strings.ToUpper(d.cfg.Type) {
	case config.DriverPCA9632:
		ledout := d.regs[8]
		var ch [4]byte
		for i := range ch {
			mode := ledout >> (2 * i) & 0x03
			pwm := d.regs[2+i]
			ch[i] = output(mode, pwm, pwm)
		}
		return ch[0], ch[1], ch[2], ch[3]
	case config.DriverPCA9533:
		ls0 := d.regs[5]
		pwm0, pwm1 := d.regs[2], d.regs[4]
		return output(ls0&0x03, pwm0, pwm1), output(ls0>>2&0x03, pwm0, pwm1), output(ls0>>4&0x03, pwm0, pwm1), 0
	}
	return d.rgb[0], d.rgb[1], d.rgb[2], 0
}

func (d *simI2C) publish() {
	r, g, b, w := d.color()
	d.state.Set(d.key, fmt.Sprintf("%-7s 0x%02x %s  %3d %3d %3d %3d", d.cfg.Type, d.cfg.Address, swatch(r, g, b, w, 255, 6), r, g, b, w))
}
