package hardware

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lautenbacher.net/ledlights/config"
)

func TestGPIO_SetDuty(t *testing.T) {
	board := newFakeBoard()
	g := board.gpio()

	assert.True(t, g.IsPWMCapable(18))
	assert.False(t, g.IsPWMCapable(17))

	g.SetDuty(18, 128)
	g.SetDuty(18, 255)
	assert.Equal(t, "pwm", board.modes[18])
	assert.Equal(t, pwmClock, board.freq[18])
	assert.Equal(t, uint32(255), board.duty[18])
	assert.Equal(t, 1, board.setups, "the pin mode is set once")
}

func TestGPIO_SetDutyOnDigitalPin(t *testing.T) {
	board := newFakeBoard()
	g := board.gpio()

	g.SetDuty(17, 10)
	assert.Equal(t, "out", board.modes[17])
	assert.True(t, board.levels[17])
	g.SetDuty(17, 0)
	assert.False(t, board.levels[17])
}

func TestGPIO_WriteDigitalAndRead(t *testing.T) {
	board := newFakeBoard()
	g := board.gpio()

	g.WriteDigital(5, true)
	assert.True(t, board.levels[5])
	g.WriteDigital(5, false)
	assert.False(t, board.levels[5])

	board.inputs[6] = true
	assert.True(t, g.ReadInput(6))
	assert.Equal(t, "in", board.modes[6])
	board.inputs[6] = false
	assert.False(t, g.ReadInput(6))
}

func TestGPIO_CloseSwitchesOff(t *testing.T) {
	board := newFakeBoard()
	g := board.gpio()
	g.SetDuty(12, 200)
	g.WriteDigital(5, true)

	assert.NoError(t, g.Close())
	assert.Equal(t, uint32(0), board.duty[12])
	assert.False(t, board.levels[5])
}

func TestSPIBus_Exchange(t *testing.T) {
	board := newFakeBoard()
	var sent [][]byte
	bus := NewSPIBus(board.gpio(), map[string]config.MultiplexCfg{
		"case": {Low: []int{22}, High: []int{23, 24}},
	})
	bus.exchange = func(data []byte) { sent = append(sent, data) }

	bus.Exchange("case", []byte{1, 2, 3})
	assert.Equal(t, [][]byte{{1, 2, 3}}, sent)
	assert.False(t, board.levels[22])
	assert.True(t, board.levels[23])
	assert.True(t, board.levels[24])

	bus.Exchange("", []byte{4})
	assert.Len(t, sent, 2)
	assert.Len(t, board.modes, 3, "no multiplex pins touched without a key")
}
