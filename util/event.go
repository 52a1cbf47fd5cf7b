package util

import (
	"fmt"
	"time"
)

type EventKind int

const (
	// Toggle switches the lights of a controller on or off
	Toggle EventKind = iota
	// PowerOn and PowerOff report the state of the main power supply
	PowerOn
	PowerOff
	// Preset shows one of the preset colors, Value is the index
	Preset
	// Off switches the lights of a controller off
	Off
	// CaseLight toggles the enclosure light
	CaseLight
	// Default shows the configured preset color of a controller
	Default
)

var kindNames = [...]string{"toggle", "power-on", "power-off", "preset", "off", "caselight", "default"}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
	return kindNames[k]
}

// Event is an input from a button, key or sensor. Controller names the
// controller the event is meant for, an empty name means the primary
// one.
type Event struct {
	Kind       EventKind
	Controller string
	Value      int
	Timestamp  time.Time
}

func NewEvent(kind EventKind, controller string, value int, time time.Time) *Event {
	inst := Event{
		Kind:       kind,
		Controller: controller,
		Value:      value,
		Timestamp:  time,
	}
	return &inst
}

func (e *Event) String() string {
	return fmt.Sprintf("%s controller=%q value=%d", e.Kind, e.Controller, e.Value)
}
