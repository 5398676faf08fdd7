package store

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// MaxRecentFiles caps Config.RecentFiles.
	MaxRecentFiles = 10

	DefaultOpenFolder       = "./"
	DefaultAutosaveInterval = 60 // seconds
)

// QuickFolder is a labelled shortcut to a directory. It is stored as a
// two-element JSON array: ["label", "/path"].
type QuickFolder struct {
	Label string
	Path  string
}

func (q QuickFolder) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{q.Label, q.Path})
}

func (q *QuickFolder) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("quick folder: want [label, path], got %d elements", len(pair))
	}
	q.Label, q.Path = pair[0], pair[1]
	return nil
}

// Config is the full persistent settings object.
type Config struct {
	DefaultOpenFolder string        `json:"default_open_folder"`
	RecentFiles       []string      `json:"recent_files"` // MRU order, max 10 paths
	DarkMode          bool          `json:"dark_mode"`
	AutosaveEnabled   bool          `json:"autosave_enabled"`
	AutosaveInterval  int           `json:"autosave_interval"` // seconds
	QuickFolders      []QuickFolder `json:"quick_folders"`
}

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig() Config {
	return Config{
		DefaultOpenFolder: DefaultOpenFolder,
		RecentFiles:       []string{},
		AutosaveInterval:  DefaultAutosaveInterval,
		QuickFolders:      []QuickFolder{},
	}
}

var ErrWriteFailed = errors.New("could not write settings")

// PushRecent moves path to the front of recent, dropping any earlier
// occurrence and anything past MaxRecentFiles. recent is not modified.
func PushRecent(recent []string, path string) []string {
	list := make([]string, 0, MaxRecentFiles)
	list = append(list, path)
	for _, p := range recent {
		if p == path {
			continue
		}
		list = append(list, p)
		if len(list) == MaxRecentFiles {
			break
		}
	}
	return list
}

func (c Config) clone() Config {
	out := c
	out.RecentFiles = append([]string{}, c.RecentFiles...)
	out.QuickFolders = append([]QuickFolder{}, c.QuickFolders...)
	return out
}

// normalize fills zero values that have a non-zero default and enforces
// the recent-files invariants on whatever was read from disk.
func (c *Config) normalize() {
	if c.DefaultOpenFolder == "" {
		c.DefaultOpenFolder = DefaultOpenFolder
	}
	if c.AutosaveInterval < 1 {
		c.AutosaveInterval = DefaultAutosaveInterval
	}
	labels := make(map[string]bool, len(c.QuickFolders))
	folders := []QuickFolder{}
	for _, f := range c.QuickFolders {
		if f.Label == "" || labels[f.Label] {
			continue
		}
		labels[f.Label] = true
		folders = append(folders, f)
	}
	c.QuickFolders = folders
	seen := make(map[string]bool, len(c.RecentFiles))
	recent := []string{}
	for _, p := range c.RecentFiles {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		recent = append(recent, p)
		if len(recent) == MaxRecentFiles {
			break
		}
	}
	c.RecentFiles = recent
}
