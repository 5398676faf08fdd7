package document

import (
	"fmt"
	"os"
	"strings"

	"mutext/store"
)

// Settings returns a copy of the persisted configuration.
func (s *Session) Settings() store.Config {
	return s.config.Get()
}

func (s *Session) RecentFiles() []string {
	return s.config.Get().RecentFiles
}

func (s *Session) DarkMode() bool {
	return s.config.Get().DarkMode
}

// ToggleDarkMode flips the dark-mode flag and returns the new value.
func (s *Session) ToggleDarkMode() (bool, error) {
	var on bool
	err := s.config.Update(func(c *store.Config) error {
		c.DarkMode = !c.DarkMode
		on = c.DarkMode
		return nil
	})
	return on, err
}

func (s *Session) SetDarkMode(on bool) error {
	return s.config.Update(func(c *store.Config) error {
		c.DarkMode = on
		return nil
	})
}

// SetDefaultOpenFolder changes the directory file dialogs start in.
func (s *Session) SetDefaultOpenFolder(dir string) error {
	return s.ApplySettings(SettingsChange{DefaultOpenFolder: &dir})
}

// SettingsChange lists settings to change. Nil fields are left alone.
type SettingsChange struct {
	DefaultOpenFolder *string
	DarkMode          *bool
	AutosaveEnabled   *bool
	AutosaveInterval  *int // below one keeps the current value
}

// ApplySettings validates every field of ch and then writes them in a
// single update: either all of them are saved or none is.
func (s *Session) ApplySettings(ch SettingsChange) error {
	if ch.DefaultOpenFolder != nil {
		if err := checkDir(*ch.DefaultOpenFolder); err != nil {
			return err
		}
	}
	return s.config.Update(func(c *store.Config) error {
		if ch.DefaultOpenFolder != nil {
			c.DefaultOpenFolder = *ch.DefaultOpenFolder
		}
		if ch.DarkMode != nil {
			c.DarkMode = *ch.DarkMode
		}
		if ch.AutosaveEnabled != nil {
			c.AutosaveEnabled = *ch.AutosaveEnabled
		}
		if ch.AutosaveInterval != nil && *ch.AutosaveInterval >= 1 {
			c.AutosaveInterval = *ch.AutosaveInterval
		}
		return nil
	})
}

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotDirectory, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}
	return nil
}

// SetAutosave persists the autosave flag and interval in seconds. An
// interval below one second keeps the current value.
func (s *Session) SetAutosave(enabled bool, interval int) error {
	return s.ApplySettings(SettingsChange{AutosaveEnabled: &enabled, AutosaveInterval: &interval})
}

func (s *Session) Folders() []store.QuickFolder {
	return s.config.Get().QuickFolders
}

// AddFolder registers a labelled shortcut. Labels are unique and trimmed.
func (s *Session) AddFolder(label, path string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return ErrEmptyLabel
	}
	if path == "" {
		return ErrPathRequired
	}
	return s.config.Update(func(c *store.Config) error {
		for _, f := range c.QuickFolders {
			if f.Label == label {
				return ErrLabelTaken
			}
		}
		c.QuickFolders = append(c.QuickFolders, store.QuickFolder{Label: label, Path: path})
		return nil
	})
}

func (s *Session) RemoveFolder(label string) error {
	return s.config.Update(func(c *store.Config) error {
		for i, f := range c.QuickFolders {
			if f.Label == label {
				c.QuickFolders = append(c.QuickFolders[:i], c.QuickFolders[i+1:]...)
				return nil
			}
		}
		return ErrFolderNotFound
	})
}

func (s *Session) RemoveFolderAt(index int) error {
	return s.config.Update(func(c *store.Config) error {
		if index < 0 || index >= len(c.QuickFolders) {
			return ErrFolderNotFound
		}
		c.QuickFolders = append(c.QuickFolders[:index], c.QuickFolders[index+1:]...)
		return nil
	})
}

func (s *Session) ScratchEntries() []string {
	return s.scratch.Entries()
}

// RestoreScratch loads archived entry index into an unbound buffer. The
// current unbound content, if any, is archived first so nothing is lost; a
// bound document with unsaved edits is refused with ErrDirty.
func (s *Session) RestoreScratch(index int) error {
	text, ok := s.scratch.Get(index)
	if !ok {
		return ErrScratchNotFound
	}

	s.mu.Lock()
	wasBound := s.path != ""
	if wasBound && s.dirty {
		s.mu.Unlock()
		return ErrDirty
	}
	if !wasBound && s.text != "" && s.text != text {
		s.scratch.Append(s.text)
	}
	s.text = text
	s.path = ""
	s.disk = ""
	s.markDirtyLocked()
	s.mu.Unlock()

	if wasBound {
		s.bound("")
	}
	s.changed()
	return nil
}

// ClearScratch empties the archive on disk and in memory.
func (s *Session) ClearScratch() error {
	return s.scratch.Clear()
}
