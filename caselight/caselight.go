// Package caselight decides whether the enclosure light is logically on.
// Controllers with gated backends only show colors while it is.
//
// Lights are polled from the control loop and are not safe for
// concurrent use.
package caselight

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nathan-osman/go-sunrise"

	"lautenbacher.net/ledlights/config"
)

type Light interface {
	On() bool
	// Toggle flips the light by hand and returns the new state
	Toggle() bool
}

func New(cfg config.CaseLightConfig) (Light, error) {
	switch cfg.Mode {
	case config.CaseLightAlways:
		return Always{}, nil
	case config.CaseLightSwitch:
		return NewSwitch(cfg.InitiallyOn), nil
	case config.CaseLightNight:
		return NewNight(cfg.Latitude, cfg.Longitude, time.Now), nil
	}
	return nil, fmt.Errorf("unknown case light mode: %s", cfg.Mode)
}

// Always is a case light that can't be switched off
type Always struct{}

func (Always) On() bool     { return true }
func (Always) Toggle() bool { return true }

type Switch struct {
	on bool
}

func NewSwitch(on bool) *Switch {
	return &Switch{on: on}
}

func (s *Switch) On() bool {
	return s.on
}

func (s *Switch) Set(on bool) {
	s.on = on
}

func (s *Switch) Toggle() bool {
	s.on = !s.on
	slog.Info("Case light switched", "on", s.on)
	return s.on
}

// Night is on between sunset and sunrise at the given location. A
// manual toggle holds until the next sunrise or sunset.
type Night struct {
	latitude      float64
	longitude     float64
	now           func() time.Time
	override      bool
	overrideOn    bool
	overrideUntil time.Time
}

func NewNight(latitude, longitude float64, now func() time.Time) *Night {
	return &Night{latitude: latitude, longitude: longitude, now: now}
}

func (s *Night) On() bool {
	now := s.now()
	if s.override {
		if now.Before(s.overrideUntil) {
			return s.overrideOn
		}
		s.override = false
	}
	dark, _ := s.schedule(now)
	return dark
}

func (s *Night) Toggle() bool {
	now := s.now()
	on := !s.On()
	_, next := s.schedule(now)
	s.override = true
	s.overrideOn = on
	s.overrideUntil = next
	slog.Info("Case light switched", "on", on, "until", next)
	return on
}

// schedule tells whether it is dark at now and when that changes next
func (s *Night) schedule(now time.Time) (bool, time.Time) {
	rise, set := sunrise.SunriseSunset(s.latitude, s.longitude, now.Year(), now.Month(), now.Day())
	switch {
	case now.Before(rise):
		// in the night after midnight but before sunrise
		return true, rise
	case now.Before(set):
		return false, set
	default:
		// in the night before midnight
		next := now.Add(24 * time.Hour)
		riseNext, _ := sunrise.SunriseSunset(s.latitude, s.longitude, next.Year(), next.Month(), next.Day())
		return true, riseNext
	}
}

// Local Variables:
// compile-command: "cd .. && go build"
// End:
