package hardware

import (
	"github.com/stianeikeland/go-rpio/v4"
)

type fakePin struct {
	n     int
	board *fakeBoard
}

type fakeBoard struct {
	modes  map[int]string
	levels map[int]bool
	duty   map[int]uint32
	freq   map[int]int
	inputs map[int]bool
	setups int
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{
		modes:  make(map[int]string),
		levels: make(map[int]bool),
		duty:   make(map[int]uint32),
		freq:   make(map[int]int),
		inputs: make(map[int]bool),
	}
}

func (b *fakeBoard) gpio() *GPIO {
	return &GPIO{
		open:  func() error { return nil },
		close: func() error { return nil },
		pin:   func(n int) gpioPin { return fakePin{n: n, board: b} },
		modes: make(map[int]pinMode),
	}
}

func (p fakePin) setMode(m string) {
	p.board.modes[p.n] = m
	p.board.setups++
}

func (p fakePin) Output()       { p.setMode("out") }
func (p fakePin) Input()        { p.setMode("in") }
func (p fakePin) Pwm()          { p.setMode("pwm") }
func (p fakePin) PullUp()       {}
func (p fakePin) High()         { p.board.levels[p.n] = true }
func (p fakePin) Low()          { p.board.levels[p.n] = false }
func (p fakePin) Freq(freq int) { p.board.freq[p.n] = freq }
func (p fakePin) DutyCycle(dutyLen, cycleLen uint32) {
	p.board.duty[p.n] = dutyLen
}
func (p fakePin) Read() rpio.State {
	if p.board.inputs[p.n] {
		return rpio.High
	}
	return rpio.Low
}

type regWrite struct {
	reg  byte
	data []byte
}

type fakeI2C struct {
	regs   []regWrite
	raw    [][]byte
	err    error
	closed bool
}

func (f *fakeI2C) Write(buf []byte) error {
	f.raw = append(f.raw, append([]byte(nil), buf...))
	return f.err
}

func (f *fakeI2C) WriteReg(reg byte, buf []byte) error {
	f.regs = append(f.regs, regWrite{reg: reg, data: append([]byte(nil), buf...)})
	return f.err
}

func (f *fakeI2C) Close() error {
	f.closed = true
	return nil
}

type capturedFrame struct {
	multiplex string
	data      []byte
}

type fakeBus struct {
	frames []capturedFrame
}

func (f *fakeBus) Exchange(multiplex string, data []byte) {
	f.frames = append(f.frames, capturedFrame{multiplex: multiplex, data: append([]byte(nil), data...)})
}

func (f *fakeBus) last() capturedFrame {
	return f.frames[len(f.frames)-1]
}
