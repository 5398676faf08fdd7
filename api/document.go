package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"

	"mutext/document"
)

type documentView struct {
	document.State
	Text string `json:"text"`
}

type pathRequest struct {
	Path      string `json:"path"`
	Confirmed bool   `json:"confirmed"`
}

func (h *handler) view() documentView {
	doc := h.app.Document
	return documentView{State: doc.State(), Text: doc.Snapshot()}
}

// resolve treats relative paths as relative to the default open folder,
// the directory a file dialog would start in.
func (h *handler) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(h.app.Document.SaveDir(), path)
}

func decodePath(w http.ResponseWriter, r *http.Request) (pathRequest, bool) {
	var req pathRequest
	if r.ContentLength == 0 {
		return req, true
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func (h *handler) getDocument(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.view())
}

func (h *handler) putDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text *string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	h.app.Document.SetText(*req.Text)
	writeJSON(w, http.StatusOK, h.app.Document.State())
}

func (h *handler) newDocument(w http.ResponseWriter, r *http.Request) {
	h.app.Document.New()
	writeJSON(w, http.StatusOK, h.view())
}

func (h *handler) openDocument(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePath(w, r)
	if !ok {
		return
	}
	if err := h.app.Document.Open(h.resolve(req.Path)); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view())
}

func (h *handler) openRecent(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePath(w, r)
	if !ok {
		return
	}
	if err := h.app.Document.OpenRecent(req.Path, req.Confirmed); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view())
}

// saveDocument saves to the bound file, or behaves like save-as when the
// document is unbound.
func (h *handler) saveDocument(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePath(w, r)
	if !ok {
		return
	}
	doc := h.app.Document
	var err error
	if doc.Path() != "" {
		err = doc.Save()
	} else {
		err = doc.SaveAs(h.resolve(req.Path))
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc.State())
}

func (h *handler) saveDocumentAs(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePath(w, r)
	if !ok {
		return
	}
	if err := h.app.Document.SaveAs(h.resolve(req.Path)); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.app.Document.State())
}

func (h *handler) closeDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Decision string `json:"decision"`
		Path     string `json:"path"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	decision, ok := document.ParseCloseDecision(req.Decision)
	if !ok {
		http.Error(w, "decision must be save, discard or cancel", http.StatusBadRequest)
		return
	}

	closed, err := h.app.Document.Close(decision, h.resolve(req.Path))
	if !closed {
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"closed": false, "state": h.app.Document.State()})
		return
	}
	if err != nil {
		h.log.Warn("closing with unsaved settings", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"closed": true})
	if h.app.Quit != nil {
		go h.app.Quit()
	}
}
