package document

import (
	"errors"
	"path/filepath"
	"time"
)

const appName = "MuText"

var (
	ErrNotText              = errors.New("file is not valid UTF-8 text")
	ErrReadFailed           = errors.New("could not open file")
	ErrSaveFailed           = errors.New("could not save file")
	ErrPathRequired         = errors.New("a file path is required")
	ErrNotRecent            = errors.New("file is not in the recent files list")
	ErrConfirmationRequired = errors.New("opening a recent file must be confirmed")
	ErrEmptyLabel           = errors.New("folder label must not be empty")
	ErrLabelTaken           = errors.New("folder label already in use")
	ErrFolderNotFound       = errors.New("quick folder not found")
	ErrNotDirectory         = errors.New("not a directory")
	ErrScratchNotFound      = errors.New("scratch entry not found")
	ErrDirty                = errors.New("document has unsaved changes")
)

// CloseDecision is the user's answer to the unsaved-changes prompt.
type CloseDecision int

const (
	CloseCancel CloseDecision = iota
	CloseSave
	CloseDiscard
)

// ParseCloseDecision maps "save", "discard" and "cancel" to a decision.
func ParseCloseDecision(s string) (CloseDecision, bool) {
	switch s {
	case "save":
		return CloseSave, true
	case "discard":
		return CloseDiscard, true
	case "cancel", "":
		return CloseCancel, true
	}
	return CloseCancel, false
}

// State is the externally visible part of a session.
type State struct {
	ID     string `json:"id"`
	Path   string `json:"path,omitempty"`
	Dirty  bool   `json:"dirty"`
	Title  string `json:"title"`
	Length int    `json:"length"`
}

// DefaultSaveName is the file name proposed by save-as.
func DefaultSaveName(now time.Time) string {
	return now.Format("2006-01-02") + ".txt"
}

func title(path string) string {
	if path == "" {
		return "New File - " + appName
	}
	return filepath.Base(path) + " - " + appName
}
