package util

import (
	"maps"
	"slices"
	"sync"
)

// Latest holds the most recent value of a state written by one goroutine
// and polled by another. Readers are notified only when the value
// actually changes, repeated writes of the same value are absorbed.
type Latest[T comparable] struct {
	mu     sync.Mutex
	value  T
	notify chan struct{} // Buffered channel of size 1 for notification
}

func NewLatest[T comparable](initial T) *Latest[T] {
	return &Latest[T]{
		value:  initial,
		notify: make(chan struct{}, 1),
	}
}

// Set stores value and reports whether it differed from the old one. It
// is non-blocking.
func (l *Latest[T]) Set(value T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.value == value {
		return false
	}
	l.value = value
	select {
	case l.notify <- struct{}{}:
	default:
		// a notification is already pending
	}
	return true
}

func (l *Latest[T]) Get() T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}

// Changed returns the notification channel for use in select statements
func (l *Latest[T]) Changed() <-chan struct{} {
	return l.notify
}

// LatestMap is a Latest per key, sharing one notification channel. The
// TUI uses it to collect the state of all simulated backends.
type LatestMap[T comparable] struct {
	mu     sync.Mutex
	values map[string]T
	notify chan struct{}
}

func NewLatestMap[T comparable]() *LatestMap[T] {
	return &LatestMap[T]{
		values: make(map[string]T),
		notify: make(chan struct{}, 1),
	}
}

func (l *LatestMap[T]) Set(key string, value T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if old, ok := l.values[key]; ok && old == value {
		return false
	}
	l.values[key] = value
	select {
	case l.notify <- struct{}{}:
	default:
	}
	return true
}

// Snapshot returns a copy of all values
func (l *LatestMap[T]) Snapshot() map[string]T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return maps.Clone(l.values)
}

// Keys returns the keys in sorted order
func (l *LatestMap[T]) Keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Sorted(maps.Keys(l.values))
}

func (l *LatestMap[T]) Changed() <-chan struct{} {
	return l.notify
}
