package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoClipboard is returned when the App has no clipboard or the system
// clipboard cannot be reached.
var ErrNoClipboard = errors.New("clipboard unavailable")

// Clipboard is the system clipboard.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

// paste appends the clipboard contents to the buffer.
func (h *handler) paste(w http.ResponseWriter, r *http.Request) {
	if h.app.Clipboard == nil {
		h.writeError(w, ErrNoClipboard)
		return
	}
	text, err := h.app.Clipboard.ReadAll()
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: %w", ErrNoClipboard, err))
		return
	}
	if text != "" {
		h.app.Document.Insert(text)
	}
	writeJSON(w, http.StatusOK, h.view())
}

// copyAll puts the whole buffer on the clipboard.
func (h *handler) copyAll(w http.ResponseWriter, r *http.Request) {
	if h.app.Clipboard == nil {
		h.writeError(w, ErrNoClipboard)
		return
	}
	if err := h.app.Clipboard.WriteAll(h.app.Document.Snapshot()); err != nil {
		h.writeError(w, fmt.Errorf("%w: %w", ErrNoClipboard, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
