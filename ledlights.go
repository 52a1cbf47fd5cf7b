package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"lautenbacher.net/ledlights/caselight"
	c "lautenbacher.net/ledlights/config"
	"lautenbacher.net/ledlights/color"
	"lautenbacher.net/ledlights/leds"
	"lautenbacher.net/ledlights/logging"
	"lautenbacher.net/ledlights/metrics"
	pl "lautenbacher.net/ledlights/platform"
	u "lautenbacher.net/ledlights/util"
)

const (
	PRIMARY   = "primary"
	SECONDARY = "secondary"
)

type App struct {
	conf        *c.Config
	cfile       string
	platform    pl.Platform
	caseLight   caselight.Light
	collector   *metrics.Collector
	server      *http.Server
	watcher     *c.Watcher
	controllers map[string]*leds.Controller
	ossignal    chan os.Signal
	reload      chan struct{}
	stopsignal  chan struct{}
	shutdownWg  sync.WaitGroup
}

func NewApp(ossignal chan os.Signal) *App {
	return &App{
		ossignal:    ossignal,
		controllers: make(map[string]*leds.Controller),
		reload:      make(chan struct{}, 1),
		stopsignal:  make(chan struct{}),
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfile string
	var realHW bool
	var metricsListen string

	root := &cobra.Command{
		Use:           "ledlights",
		Short:         "Drive the status LEDs of a 3D printer",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfile, realHW, metricsListen, false)
		},
	}
	addCommonFlags(root.PersistentFlags(), &cfile, &realHW)
	root.Flags().StringVar(&metricsListen, "metrics", "", "Serve metrics on this address, overrides the config file")

	root.AddCommand(&cobra.Command{
		Use:   "selftest",
		Short: "Play the startup animation of all controllers and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfile, realHW, "", true)
		},
	})
	return root
}

// addCommonFlags registers the flags shared by all commands
func addCommonFlags(fs *pflag.FlagSet, cfile *string, realHW *bool) {
	fs.StringVarP(cfile, "config", "c", c.CONFILE, "Config file to use")
	fs.BoolVar(realHW, "real", false, "Set to true if program runs on the real hardware")
}

func run(cfile string, realHW bool, metricsListen string, selftest bool) error {
	conf, err := c.ReadConfig(cfile, realHW)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	if metricsListen != "" {
		conf.Metrics.Enabled = true
		conf.Metrics.Listen = metricsListen
	}
	if selftest {
		conf.Metrics.Enabled = false
		for _, cc := range []*c.ControllerConfig{&conf.Primary, &conf.Secondary} {
			cc.StartupTest = true
		}
	}

	// The TUI takes over the terminal, logs are held back until it is drawn
	if err := logging.Init(conf.Logging, !realHW); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	defer logging.Close()

	ossignal := make(chan os.Signal, 1)
	signal.Notify(ossignal, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(ossignal)

	app := NewApp(ossignal)
	app.conf = conf
	app.cfile = conf.Configfile
	if realHW {
		app.platform = pl.NewRaspberryPiPlatform(conf)
	} else {
		app.platform = pl.NewTUIPlatform(conf, ossignal)
	}

	if err := app.initialise(); err != nil {
		slog.Error("Failed to initialise", "error", err)
		app.shutdown()
		return err
	}

	if selftest {
		slog.Info("Selftest finished")
		app.shutdown()
		return nil
	}

	app.shutdownWg.Add(1)
	go app.controlLoop()

	app.waitForSignals()
	app.shutdown()
	return nil
}

// initialise starts the platform and builds and sets up the controllers.
// Setup plays the startup animations, so this blocks for a while.
func (a *App) initialise() error {
	slog.Info("Starting ledlights", "config", a.cfile)
	if err := a.platform.Start(); err != nil {
		return fmt.Errorf("failed to start platform: %w", err)
	}
	<-a.platform.Ready()

	light, err := caselight.New(a.conf.CaseLight)
	if err != nil {
		return err
	}
	a.caseLight = light

	if a.conf.Metrics.Enabled {
		a.collector = metrics.NewCollector()
		a.collector.SetPower(a.platform.Power().Get())
		a.startServer()
	}

	for _, name := range []string{PRIMARY, SECONDARY} {
		cc := a.controllerConfig(name, a.conf)
		if !cc.Enabled {
			continue
		}
		ctl, err := a.newController(name, cc)
		if err != nil {
			return err
		}
		if err := ctl.Setup(); err != nil {
			return err
		}
		a.controllers[name] = ctl
	}

	a.watcher = c.NewWatcher(a.cfile, a.conf.RealHW, c.DefaultDebounce)
	if err := a.watcher.Start(context.Background()); err != nil {
		// reloading by SIGHUP still works
		slog.Warn("Not watching the config file", "error", err)
		a.watcher = nil
	}
	return nil
}

func (a *App) controllerConfig(name string, conf *c.Config) c.ControllerConfig {
	if name == SECONDARY {
		return conf.Secondary
	}
	return conf.Primary
}

// newController binds a controller to the enabled backends of its config
func (a *App) newController(name string, cc c.ControllerConfig) (*leds.Controller, error) {
	opts := leds.Options{
		Name:            name,
		CaseLight:       a.caseLight,
		StartupTest:     cc.StartupTest,
		StepDelay:       cc.StepDelay,
		Preset:          cc.Preset.Color(),
		PresetAtStartup: cc.PresetAtStartup,
		Timeout:         cc.Timeout,
		Logger:          logging.ForController(name),
	}
	if a.collector != nil {
		opts.Observer = a.collector
	}

	if cc.Pins.Enabled {
		opts.Port = a.platform.PinPort()
		opts.Pins = &leds.Pins{
			Red:   cc.Pins.Red,
			Green: cc.Pins.Green,
			Blue:  cc.Pins.Blue,
			White: cc.Pins.White,
			Gated: cc.Pins.CaseLightGated,
		}
	}

	if cc.Pixels.Enabled {
		strip, err := a.platform.NewStrip(name, cc.Pixels)
		if err != nil {
			return nil, err
		}
		px := &leds.PixelOptions{
			Strip:      strip,
			RGBW:       cc.Pixels.RGBW,
			Sequential: cc.Pixels.Sequential,
			Gated:      cc.Pixels.CaseLightGated,
		}
		if cc.Pixels.HasBackground() {
			px.Background = &leds.IndexRange{First: cc.Pixels.BackgroundFirst, Last: cc.Pixels.BackgroundLast}
		}
		opts.Pixels = px
	}

	if len(cc.Drivers) > 0 {
		drivers, err := a.platform.NewDrivers(name, cc.Drivers)
		if err != nil {
			return nil, err
		}
		for i, drv := range drivers {
			opts.Drivers = append(opts.Drivers, drv)
			// only the PCA9632 has the dimming range for the fade test
			if strings.EqualFold(cc.Drivers[i].Type, c.DriverPCA9632) {
				opts.FadeDrivers = append(opts.FadeDrivers, drv)
				opts.DriverChannels = max(opts.DriverChannels, drv.Channels())
			}
		}
	}

	return leds.NewController(opts), nil
}

func (a *App) startServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.collector.Handler())
	mux.Handle("/api/config", c.ConfigHandler(a.cfile))
	a.server = &http.Server{
		Addr:              a.conf.Metrics.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("Serving metrics", "listen", a.conf.Metrics.Listen)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
}

// waitForSignals blocks until the program is asked to quit. SIGHUP
// reloads the config file.
func (a *App) waitForSignals() {
	for sig := range a.ossignal {
		if sig == syscall.SIGHUP {
			slog.Info("Reloading config file", "signal", sig)
			select {
			case a.reload <- struct{}{}:
			default:
			}
			continue
		}
		slog.Info("Shutting down", "signal", sig)
		return
	}
}

// controlLoop owns the controllers. Every controller call after setup
// happens on this goroutine.
func (a *App) controlLoop() {
	defer a.shutdownWg.Done()
	ticker := time.NewTicker(a.conf.Hardware.LoopDelay)
	defer ticker.Stop()

	var updates <-chan *c.Config
	if a.watcher != nil {
		updates = a.watcher.Updates()
	}
	power := a.platform.Power()

	for {
		select {
		case <-a.stopsignal:
			slog.Info("Ending control loop")
			return
		case <-ticker.C:
			on := power.Get()
			for _, ctl := range a.controllers {
				ctl.UpdateTimeout(on)
			}
		case <-power.Changed():
			if a.collector != nil {
				a.collector.SetPower(power.Get())
			}
		case ev := <-a.platform.Events():
			a.handleEvent(ev)
		case conf := <-updates:
			a.applyConfig(conf)
		case <-a.reload:
			conf, err := c.ReadConfig(a.cfile, a.conf.RealHW)
			if err != nil {
				slog.Error("Not reloading invalid config", "error", err)
				continue
			}
			a.applyConfig(conf)
		}
	}
}

// controller returns the controller an event is meant for, the primary
// one for an empty name
func (a *App) controller(name string) *leds.Controller {
	if name == "" {
		name = PRIMARY
	}
	return a.controllers[name]
}

func (a *App) handleEvent(ev *u.Event) {
	slog.Debug("Handling event", "event", ev)
	switch ev.Kind {
	case u.PowerOn, u.PowerOff:
		// the timeout polls the power state on every tick
		return
	case u.CaseLight:
		a.caseLight.Toggle()
		// show gating changes right away
		for _, ctl := range a.controllers {
			if ctl.LightsOn() {
				ctl.Update()
			}
		}
		return
	}

	ctl := a.controller(ev.Controller)
	if ctl == nil {
		slog.Warn("Event for a disabled controller", "event", ev)
		return
	}
	switch ev.Kind {
	case u.Toggle:
		ctl.Toggle()
	case u.Off:
		ctl.SetOff()
	case u.Preset:
		if ev.Value < 0 || ev.Value >= len(color.Presets) {
			slog.Warn("Unknown preset", "index", ev.Value)
			return
		}
		ctl.SetColor(color.Presets[ev.Value])
	case u.Default:
		ctl.SetDefault()
	}
}

// applyConfig takes over the settings that can change at runtime. The
// wiring of the backends is only read at startup.
func (a *App) applyConfig(conf *c.Config) {
	logging.SetLevel(conf.Logging.Level)
	for name, ctl := range a.controllers {
		cc := a.controllerConfig(name, conf)
		ctl.SetTimeout(cc.Timeout)
		ctl.SetPreset(cc.Preset.Color())
		slog.Info("Applied new config", "controller", name, "timeout", cc.Timeout, "preset", cc.Preset.Color())
	}
	a.conf.Logging.Level = conf.Logging.Level
}

func (a *App) shutdown() {
	close(a.stopsignal)
	a.shutdownWg.Wait()

	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			slog.Error("Error stopping config watcher", "error", err)
		}
	}
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("Error stopping metrics server", "error", err)
		}
	}
	a.platform.Stop()
	// back to the terminal for the last lines
	logging.SetOutput(os.Stderr)
	slog.Info("Exiting...")
}

// Local Variables:
// compile-command: "go build"
// End:
