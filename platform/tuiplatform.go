package platform

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"lautenbacher.net/ledlights/backend"
	"lautenbacher.net/ledlights/config"
	"lautenbacher.net/ledlights/hardware"
	"lautenbacher.net/ledlights/logging"
	"lautenbacher.net/ledlights/util"
)

const (
	primary   = "primary"
	secondary = "secondary"
)

type TUIPlatform struct {
	*AbstractPlatform
	tviewapp       *tview.Application
	intro          *tview.TextView
	ledDisplay     *tview.TextView
	logView        *tview.TextView
	ossignalChan   chan os.Signal
	logFlushOnce   sync.Once
	state          *util.LatestMap[string]
	port           *simPort
	spi            *simSPI
	redrawWg       sync.WaitGroup
	redrawStopChan chan bool
}

func NewTUIPlatform(conf *config.Config, ossignalchan chan os.Signal) *TUIPlatform {
	state := util.NewLatestMap[string]()
	return &TUIPlatform{
		AbstractPlatform: newAbstractPlatform(conf),
		ossignalChan:     ossignalchan,
		state:            state,
		port:             newSimPort(conf, state),
		spi:              newSimSPI(state),
		redrawStopChan:   make(chan bool),
	}
}

func (s *TUIPlatform) Start() error {
	s.initSimulationTUI()

	s.redrawWg.Add(1)
	go s.redrawDriver()
	return nil
}

func (s *TUIPlatform) Stop() {
	s.setInShutdown()

	close(s.redrawStopChan)
	s.redrawWg.Wait()

	if s.tviewapp != nil {
		s.tviewapp.Stop()
	}
}

func (s *TUIPlatform) PinPort() backend.PinPort {
	return s.port
}

func (s *TUIPlatform) NewStrip(controller string, cfg config.PixelsConfig) (backend.PixelStrip, error) {
	s.spi.register(cfg.SpiMultiplex, simStripTarget{controller: controller, ledType: cfg.Type, count: cfg.Count})
	return hardware.NewStrip(s.spi, cfg)
}

func (s *TUIPlatform) NewDrivers(controller string, cfgs []config.DriverConfig) ([]hardware.Driver, error) {
	ret := make([]hardware.Driver, 0, len(cfgs))
	for i, cfg := range cfgs {
		dev := &simI2C{key: fmt.Sprintf("%s driver %d", controller, i), cfg: cfg, state: s.state}
		drv, err := hardware.NewDriver(dev, cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", controller, err)
		}
		ret = append(ret, drv)
	}
	return ret, nil
}

// redrawDriver redraws the LED pane whenever a simulated backend changed
func (s *TUIPlatform) redrawDriver() {
	defer s.redrawWg.Done()
	for {
		select {
		case <-s.redrawStopChan:
			slog.Info("Ending RedrawDriver go-routine...")
			return
		case <-s.state.Changed():
			s.tviewapp.QueueUpdateDraw(s.simulateLedDisplay)
		}
	}
}

// getIntroText generates the dynamic text for the top info pane.
func (s *TUIPlatform) getIntroText() string {
	power := "[#00ff00]on[white]"
	if !s.power.Get() {
		power = "[#ff0000]off[white]"
	}
	line1 := fmt.Sprintf("Power: %s | Case light mode: %s", power, s.config.CaseLight.Mode)
	line2 := "Hit [blue]t[-]/[blue]T[-] to toggle primary/secondary, [blue]1[-]...[blue]8[-] for a preset, [blue]0[-] for off, [blue]s[-] for a secondary preset, [blue]d[-]/[blue]D[-] for the default"
	line3 := "Hit [blue]p[-] to switch power, [blue]c[-] for the case light, [#ff0000]q[-] to exit, [#ff0000]r[-] to reload, [#ff0000]Up/Down[-] to scroll logs"

	return fmt.Sprintf("%s\n%s\n%s", line1, line2, line3)
}

func (s *TUIPlatform) initSimulationTUI() {
	s.tviewapp = tview.NewApplication()

	// --- Intro Pane ---
	s.intro = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	s.intro.SetText(s.getIntroText())
	s.intro.SetBorder(true).SetTitle(" LEDLIGHTS Simulation ").SetTitleColor(tcell.ColorLightBlue)
	s.intro.SetBackgroundColor(tcell.NewRGBColor(20, 20, 20))

	// --- LED Display Pane ---
	s.ledDisplay = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	s.ledDisplay.SetBorder(true)
	s.ledDisplay.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))

	// --- Log Pane ---
	s.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetChangedFunc(func() {
			s.logView.ScrollToEnd()
			s.tviewapp.Draw()
		})
	s.logView.SetBorder(true).SetTitle(" Logs ").SetTitleColor(tcell.ColorLightBlue)
	s.logView.SetBackgroundColor(tcell.NewRGBColor(40, 40, 40))

	// --- Layout ---
	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.intro, 5, 0, false).
		AddItem(s.ledDisplay, s.displayHeight(), 0, false).
		AddItem(s.logView, 0, 1, true) // Flexible height, gets focus

	// --- Flush logs after first draw ---
	s.tviewapp.SetAfterDrawFunc(func(screen tcell.Screen) {
		s.logFlushOnce.Do(func() {
			logWriter := tview.ANSIWriter(s.logView)
			logging.SetOutput(logWriter)
			close(s.readyChan) // Signal that the TUI is ready
		})
	})

	s.tviewapp.SetInputCapture(s.handleKey)

	// --- Start TUI ---
	go func() {
		if err := s.tviewapp.SetRoot(layout, true).Run(); err != nil {
			slog.Error("Error running TUI", "error", err)
			s.ossignalChan <- os.Interrupt
		}
	}()
}

// displayHeight has room for every backend line plus the border
func (s *TUIPlatform) displayHeight() int {
	lines := 0
	for _, cc := range []config.ControllerConfig{s.config.Primary, s.config.Secondary} {
		if !cc.Enabled {
			continue
		}
		if cc.Pins.Enabled {
			lines++
		}
		if cc.Pixels.Enabled {
			lines++
		}
		lines += len(cc.Drivers)
	}
	return max(lines, 1) + 2
}

func (s *TUIPlatform) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyCtrlC:
		s.tviewapp.Stop()
		s.ossignalChan <- os.Interrupt
		return nil
	case tcell.KeyUp:
		row, col := s.logView.GetScrollOffset()
		s.logView.ScrollTo(row-1, col)
		return nil
	case tcell.KeyDown:
		row, col := s.logView.GetScrollOffset()
		s.logView.ScrollTo(row+1, col)
		return nil
	case tcell.KeyRune:
		if s.handleRune(event.Rune()) {
			return nil
		}
	}
	return event
}

// handleRune maps a key to an input event and reports whether it was used
func (s *TUIPlatform) handleRune(key rune) bool {
	switch {
	case key >= '1' && key <= '8':
		s.send(util.Preset, "", int(key-'1'))
	case key == '0':
		s.send(util.Off, "", 0)
	case key == 't':
		s.send(util.Toggle, "", 0)
	case key == 'T':
		s.send(util.Toggle, secondary, 0)
	case key == 's':
		s.send(util.Preset, secondary, 0)
	case key == 'd':
		s.send(util.Default, "", 0)
	case key == 'D':
		s.send(util.Default, secondary, 0)
	case key == 'p', key == 'P':
		s.setPower(!s.power.Get())
		s.intro.SetText(s.getIntroText())
	case key == 'c', key == 'C':
		s.send(util.CaseLight, "", 0)
	case key == 'q', key == 'Q':
		s.ossignalChan <- os.Interrupt
	case key == 'r', key == 'R':
		s.ossignalChan <- syscall.SIGHUP
	default:
		return false
	}
	return true
}

// simulateLedDisplay redraws the entire LED display pane.
// This function must be called on the main TUI thread via app.QueueUpdateDraw().
func (s *TUIPlatform) simulateLedDisplay() {
	var buf strings.Builder
	lines := s.state.Snapshot()
	for _, key := range s.state.Keys() {
		fmt.Fprintf(&buf, " [yellow]%-20s[-] %s\n", key, lines[key])
	}
	s.ledDisplay.SetText(buf.String())
}
