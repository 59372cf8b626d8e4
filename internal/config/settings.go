// Package config holds the explicit runtime settings of the language
// service. Settings are constructed once at startup and passed by reference
// to every component that needs them; changes are observed through OnChange
// rather than ambient global state.
package config

import (
	"sync"
	"time"
)

// Defaults applied by NewSettings and written to a fresh config file.
const (
	DefaultValidateDelay     = 500 * time.Millisecond
	DefaultWorkerIdleTimeout = 2 * time.Minute
)

// Settings is the mutable configuration of the language service. Setters
// notify every registered observer; fields carry no validation beyond type.
type Settings struct {
	mu                sync.RWMutex
	validate          bool
	validateDelay     time.Duration
	workerIdleTimeout time.Duration
	eagerSync         bool

	seq       int
	observers map[int]func()
}

// NewSettings creates settings with defaults applied
func NewSettings() *Settings {
	return &Settings{
		validate:          true,
		validateDelay:     DefaultValidateDelay,
		workerIdleTimeout: DefaultWorkerIdleTimeout,
		observers:         make(map[int]func()),
	}
}

// Validate reports whether validation is enabled at all
func (s *Settings) Validate() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validate
}

// SetValidate toggles validation and notifies observers
func (s *Settings) SetValidate(v bool) {
	s.mu.Lock()
	s.validate = v
	s.mu.Unlock()
	s.notify()
}

// ValidateDelay returns the debounce window between an edit and the
// validation pass it triggers.
func (s *Settings) ValidateDelay() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validateDelay
}

// SetValidateDelay changes the debounce window and notifies observers
func (s *Settings) SetValidateDelay(d time.Duration) {
	s.mu.Lock()
	s.validateDelay = d
	s.mu.Unlock()
	s.notify()
}

// WorkerIdleTimeout returns how long the worker process may sit idle before
// it is stopped. Zero or below disables idle shutdown.
func (s *Settings) WorkerIdleTimeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.workerIdleTimeout
}

// SetWorkerIdleTimeout changes the idle timeout and notifies observers
func (s *Settings) SetWorkerIdleTimeout(d time.Duration) {
	s.mu.Lock()
	s.workerIdleTimeout = d
	s.mu.Unlock()
	s.notify()
}

// EagerSync reports whether document content is forwarded to the worker on
// every change instead of only when validation fires.
func (s *Settings) EagerSync() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eagerSync
}

// SetEagerSync toggles eager syncing and notifies observers
func (s *Settings) SetEagerSync(v bool) {
	s.mu.Lock()
	s.eagerSync = v
	s.mu.Unlock()
	s.notify()
}

// OnChange registers an observer called after every settings change. The
// returned function removes the observer; it is safe to call more than once.
func (s *Settings) OnChange(fn func()) func() {
	s.mu.Lock()
	s.seq++
	id := s.seq
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Settings) notify() {
	s.mu.RLock()
	observers := make([]func(), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.RUnlock()

	for _, fn := range observers {
		fn()
	}
}
