package document

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"mutext/store"
)

// Session is the single editable document plus the settings it reads and
// writes. The buffer is guarded by mu; readers on other goroutines (the
// preview server, the autosave timer) get a copy via Snapshot.
type Session struct {
	ID string

	mu    sync.RWMutex
	text  string
	path  string
	dirty bool
	rev   uint64 // bumped on every edit
	disk  string // content last read from or written to path

	watchMu   sync.Mutex
	watchers  map[int]func()
	nextWatch int

	config  *store.ConfigStore
	scratch *store.ScratchStore
	onBind  func(path string)
	now     func() time.Time
	log     *slog.Logger
}

type Option func(*Session)

// WithBindHook registers fn to be called, outside the session lock, every
// time the bound path changes. fn receives "" when the session is unbound.
func WithBindHook(fn func(path string)) Option {
	return func(s *Session) { s.onBind = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.log = logger }
}

// WithClock overrides the time source used for the proposed save name.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func NewSession(config *store.ConfigStore, scratch *store.ScratchStore, opts ...Option) *Session {
	s := &Session{
		ID:      uuid.New().String(),
		config:  config,
		scratch: scratch,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("document", s.ID)
	return s
}

// OnChange registers fn to be called, outside the session lock, after the
// buffer changes by any means other than SetText: new, open, reload,
// insert and scratch restore. SetText comes from the front end that already
// holds the text. The returned func unregisters fn.
func (s *Session) OnChange(fn func()) (cancel func()) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watchers == nil {
		s.watchers = make(map[int]func())
	}
	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = fn
	return func() {
		s.watchMu.Lock()
		defer s.watchMu.Unlock()
		delete(s.watchers, id)
	}
}

func (s *Session) changed() {
	s.watchMu.Lock()
	fns := make([]func(), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.watchMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Snapshot returns the current buffer text.
func (s *Session) Snapshot() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text
}

// AutosaveSnapshot returns the bound path ("" when unbound) and the text.
func (s *Session) AutosaveSnapshot() (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path, s.text
}

func (s *Session) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

func (s *Session) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		ID:     s.ID,
		Path:   s.path,
		Dirty:  s.dirty,
		Title:  title(s.path),
		Length: utf8.RuneCountInString(s.text),
	}
}

// MarkDirty records that the buffer changed. Idempotent.
func (s *Session) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markDirtyLocked()
}

func (s *Session) markDirtyLocked() {
	s.dirty = true
	s.rev++
}

// SetText replaces the whole buffer. It is the edit event of a front end
// that ships its full text.
func (s *Session) SetText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
	s.markDirtyLocked()
}

// Insert appends text to the buffer.
func (s *Session) Insert(text string) {
	if text == "" {
		return
	}
	s.mu.Lock()
	s.text += text
	s.markDirtyLocked()
	s.mu.Unlock()

	s.changed()
}

// New clears the buffer and unbinds the path. Unsaved content of an
// unbound document is archived to the scratch store first.
func (s *Session) New() {
	s.mu.Lock()
	if s.path == "" && s.text != "" {
		s.scratch.Append(s.text)
		s.log.Info("archived unsaved document", "chars", utf8.RuneCountInString(s.text))
	}
	s.text = ""
	s.path = ""
	s.disk = ""
	s.dirty = false
	s.rev++
	s.mu.Unlock()

	s.bound("")
	s.changed()
}

// Open replaces the buffer with the content of path. The recent files
// list is written before the buffer is touched, so on any failure the
// session is left unchanged.
func (s *Session) Open(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	text, err := readText(path)
	if err != nil {
		return err
	}
	if err := s.pushRecent(path); err != nil {
		return err
	}

	s.mu.Lock()
	s.text = text
	s.path = path
	s.disk = text
	s.dirty = false
	s.rev++
	s.mu.Unlock()

	s.log.Info("opened", "path", path)
	s.bound(path)
	s.changed()
	return nil
}

// OpenRecent opens an entry of the recent files list. It refuses to do so
// unless the caller has confirmed the choice with the user.
func (s *Session) OpenRecent(path string, confirmed bool) error {
	found := false
	for _, p := range s.config.Get().RecentFiles {
		if p == path {
			found = true
			break
		}
	}
	if !found {
		return ErrNotRecent
	}
	if !confirmed {
		return ErrConfirmationRequired
	}
	return s.Open(path)
}

// Save writes the buffer to the bound path. An unbound session returns
// ErrPathRequired; the caller should ask for a path and use SaveAs.
func (s *Session) Save() error {
	s.mu.RLock()
	path := s.path
	s.mu.RUnlock()
	if path == "" {
		return ErrPathRequired
	}
	return s.SaveAs(path)
}

// SaveAs writes the buffer verbatim to path and binds the session to it.
// The file is replaced atomically. Once the file is written the save has
// happened: a failure to update the recent files list is only logged.
func (s *Session) SaveAs(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	s.mu.RLock()
	text, rev, prev := s.text, s.rev, s.path
	s.mu.RUnlock()

	if err := store.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	s.mu.Lock()
	s.path = path
	s.disk = text
	// An edit that raced the write is not on disk.
	if s.rev == rev {
		s.dirty = false
	}
	s.mu.Unlock()

	s.log.Info("saved", "path", path)
	if prev != path {
		s.bound(path)
	}
	if err := s.pushRecent(path); err != nil {
		s.log.Warn("update recent files", "path", path, "error", err)
	}
	return nil
}

// ProposedSaveName is the default file name offered by save-as.
func (s *Session) ProposedSaveName() string {
	return DefaultSaveName(s.now())
}

// SaveDir is the directory open and save dialogs start in.
func (s *Session) SaveDir() string {
	return s.config.Get().DefaultOpenFolder
}

// Reload re-reads path into the buffer when it is still the bound file and
// the buffer has no unsaved edits. Content the session itself last read or
// wrote is ignored, so its own saves never come back as reloads.
func (s *Session) Reload(path string) error {
	text, err := readText(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.path != path || text == s.disk {
		s.mu.Unlock()
		return nil
	}
	if s.dirty {
		s.mu.Unlock()
		return ErrDirty
	}
	s.disk = text
	if s.text == text {
		s.mu.Unlock()
		return nil
	}
	s.text = text
	s.rev++
	s.mu.Unlock()

	s.log.Info("reloaded after external change", "path", path)
	s.changed()
	return nil
}

// Close runs the exit protocol. A clean session always closes. A dirty one
// closes only on CloseSave (after a successful save, to savePath when the
// session is unbound) or CloseDiscard. When closed is true the scratch
// archive and settings have been written; err then reports a failure to
// persist them.
func (s *Session) Close(decision CloseDecision, savePath string) (closed bool, err error) {
	if s.Dirty() {
		switch decision {
		case CloseCancel:
			return false, nil
		case CloseSave:
			if s.Path() == "" {
				err = s.SaveAs(savePath)
			} else {
				err = s.Save()
			}
			if err != nil {
				return false, err
			}
		case CloseDiscard:
			s.log.Info("discarding unsaved changes on close")
		}
	}
	return true, s.Flush()
}

// Flush writes the scratch archive and the settings to disk.
func (s *Session) Flush() error {
	var errs []error
	if err := s.scratch.Flush(); err != nil {
		s.log.Error("write scratch buffer", "error", err)
		errs = append(errs, err)
	}
	if err := s.config.Save(); err != nil {
		s.log.Error("write config", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Session) pushRecent(path string) error {
	return s.config.Update(func(c *store.Config) error {
		c.RecentFiles = store.PushRecent(c.RecentFiles, path)
		return nil
	})
}

func (s *Session) bound(path string) {
	if s.onBind != nil {
		s.onBind(path)
	}
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s", ErrNotText, path)
	}
	return string(data), nil
}
