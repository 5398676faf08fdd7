// Package autosave periodically writes the editor buffer to disk.
//
// The scheduler is a repeating timer that re-arms after each firing. A
// firing first checks whether autosave is still enabled: Disable does not
// cancel a tick that is already scheduled, it makes that tick a no-op that
// does not re-arm. Enable always (re)arms with the given interval.
package autosave

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"mutext/store"
)

const FileName = "autosave.txt"

var ErrInvalidInterval = errors.New("autosave interval must be positive")

// Target supplies what to write. path is the bound file, or "" when the
// document is unbound and the fallback file should be used.
type Target interface {
	AutosaveSnapshot() (path string, text string)
}

// Clock schedules callbacks. The default uses time.AfterFunc.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Enabled   bool          `json:"enabled"`
	Interval  time.Duration `json:"-"`
	Writes    int           `json:"writes"`
	Failures  int           `json:"failures"`
	LastPath  string        `json:"lastPath,omitempty"`
	LastError string        `json:"lastError,omitempty"`
}

type Scheduler struct {
	target   Target
	fallback string
	clock    Clock
	log      *slog.Logger

	mu       sync.Mutex
	enabled  bool
	stopped  bool
	interval time.Duration
	timer    Timer
	gen      uint64 // identifies the live timer; stale firings are ignored
	status   Status
}

type Option func(*Scheduler)

func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.log = logger }
}

// New returns a disabled scheduler. fallback is the file written while the
// document is unbound.
func New(target Target, fallback string, opts ...Option) *Scheduler {
	s := &Scheduler{
		target:   target,
		fallback: fallback,
		clock:    realClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Enable turns autosave on and arms the timer for interval from now,
// replacing any pending tick.
func (s *Scheduler) Enable(interval time.Duration) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.enabled = true
	s.interval = interval
	if s.timer != nil {
		s.timer.Stop()
	}
	s.armLocked()
	s.log.Debug("autosave enabled", "interval", interval)
	return nil
}

// Disable turns autosave off. A pending tick still fires but does nothing.
func (s *Scheduler) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
	s.log.Debug("autosave disabled")
}

// Stop cancels the pending tick for good. Used at process exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.enabled = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Enabled = s.enabled
	st.Interval = s.interval
	return st
}

func (s *Scheduler) armLocked() {
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.interval, func() { s.tick(gen) })
}

func (s *Scheduler) tick(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.stopped {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	if !s.enabled {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	path, err := s.write()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastPath = path
	if err != nil {
		s.status.Failures++
		s.status.LastError = err.Error()
		s.log.Warn("autosave failed", "path", path, "error", err)
	} else {
		s.status.Writes++
		s.status.LastError = ""
		s.log.Debug("autosaved", "path", path)
	}
	// Enable may have re-armed while we were writing.
	if gen == s.gen && s.enabled && !s.stopped {
		s.armLocked()
	}
}

func (s *Scheduler) write() (string, error) {
	path, text := s.target.AutosaveSnapshot()
	if path == "" {
		path = s.fallback
	}
	return path, store.WriteFile(path, []byte(text), 0644)
}
