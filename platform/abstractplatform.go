package platform

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gammazero/deque"

	c "lautenbacher.net/ledlights/config"
	u "lautenbacher.net/ledlights/util"
)

const eventBuffer = 16

type AbstractPlatform struct {
	config         *c.Config
	events         chan *u.Event
	power          *u.Latest[bool]
	readyChan      chan bool
	shutdownMutex  sync.RWMutex
	isShuttingDown bool
}

func newAbstractPlatform(conf *c.Config) *AbstractPlatform {
	return &AbstractPlatform{
		config: conf,
		events: make(chan *u.Event, eventBuffer),
		// without a sense pin the supply counts as always on
		power:     u.NewLatest(true),
		readyChan: make(chan bool),
	}
}

func (s *AbstractPlatform) Events() <-chan *u.Event {
	return s.events
}

func (s *AbstractPlatform) Power() *u.Latest[bool] {
	return s.power
}

func (s *AbstractPlatform) Ready() <-chan bool {
	return s.readyChan
}

func (s *AbstractPlatform) setInShutdown() {
	s.shutdownMutex.Lock()
	s.isShuttingDown = true
	s.shutdownMutex.Unlock()
}

// send hands an event to the control loop. Events are dropped while
// shutting down or when the loop is too far behind.
func (s *AbstractPlatform) send(kind u.EventKind, controller string, value int) {
	s.shutdownMutex.RLock()
	defer s.shutdownMutex.RUnlock()
	if s.isShuttingDown {
		return
	}
	ev := u.NewEvent(kind, controller, value, time.Now())
	select {
	case s.events <- ev:
	default:
		slog.Warn("Dropping input event", "event", ev)
	}
}

// setPower publishes a power change and reports it as event
func (s *AbstractPlatform) setPower(on bool) {
	if !s.power.Set(on) {
		return
	}
	slog.Info("Power supply changed", "on", on)
	if on {
		s.send(u.PowerOn, "", 0)
	} else {
		s.send(u.PowerOff, "", 0)
	}
}

// debouncer accepts a new level only after it was read the same for a
// number of samples in a row.
type debouncer struct {
	samples  deque.Deque[bool]
	capacity int
	stable   bool
}

func newDebouncer(capacity int, initial bool) *debouncer {
	d := &debouncer{capacity: max(capacity, 1), stable: initial}
	d.samples.Grow(d.capacity)
	return d
}

// sample adds a reading and returns the stable level and whether it
// just changed
func (d *debouncer) sample(level bool) (bool, bool) {
	d.samples.PushBack(level)
	if d.samples.Len() > d.capacity {
		d.samples.PopFront()
	}
	if d.samples.Len() < d.capacity {
		return d.stable, false
	}
	for i := 0; i < d.samples.Len(); i++ {
		if d.samples.At(i) != level {
			return d.stable, false
		}
	}
	if level == d.stable {
		return d.stable, false
	}
	d.stable = level
	return d.stable, true
}
