package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"mutext/autosave"
	"mutext/document"
	"mutext/preview"
	"mutext/store"
)

type errorBody struct {
	Error         string `json:"error"`
	SuggestSaveAs bool   `json:"suggestSaveAs,omitempty"`
	ProposedName  string `json:"proposedName,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, document.ErrPathRequired),
		errors.Is(err, document.ErrEmptyLabel),
		errors.Is(err, document.ErrNotDirectory),
		errors.Is(err, autosave.ErrInvalidInterval):
		return http.StatusBadRequest
	case errors.Is(err, os.ErrNotExist),
		errors.Is(err, document.ErrNotRecent),
		errors.Is(err, document.ErrFolderNotFound),
		errors.Is(err, document.ErrScratchNotFound):
		return http.StatusNotFound
	case errors.Is(err, document.ErrLabelTaken),
		errors.Is(err, document.ErrDirty):
		return http.StatusConflict
	case errors.Is(err, document.ErrConfirmationRequired):
		return http.StatusPreconditionRequired
	case errors.Is(err, document.ErrNotText):
		return http.StatusUnprocessableEntity
	case errors.Is(err, preview.ErrListen),
		errors.Is(err, ErrNoClipboard):
		return http.StatusServiceUnavailable
	case errors.Is(err, document.ErrSaveFailed),
		errors.Is(err, document.ErrReadFailed),
		errors.Is(err, store.ErrWriteFailed):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	if errors.Is(err, document.ErrSaveFailed) {
		body.SuggestSaveAs = true
		body.ProposedName = h.app.Document.ProposedSaveName()
	}
	if errors.Is(err, document.ErrPathRequired) {
		body.ProposedName = h.app.Document.ProposedSaveName()
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "error", err)
	}
	writeJSON(w, status, body)
}
