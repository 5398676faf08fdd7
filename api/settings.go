package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"mutext/document"
)

type settingsView struct {
	DefaultOpenFolder string         `json:"defaultOpenFolder"`
	DarkMode          bool           `json:"darkMode"`
	AutosaveEnabled   bool           `json:"autosaveEnabled"`
	AutosaveInterval  int            `json:"autosaveInterval"`
	Autosave          autosaveStatus `json:"autosave"`
	RecentFiles       []string       `json:"recentFiles"`
	QuickFolders      []folderView   `json:"quickFolders"`
}

type autosaveStatus struct {
	Running   bool   `json:"running"`
	Writes    int    `json:"writes"`
	Failures  int    `json:"failures"`
	LastPath  string `json:"lastPath,omitempty"`
	LastError string `json:"lastError,omitempty"`
}

type folderView struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

func (h *handler) folders() []folderView {
	folders := h.app.Document.Folders()
	out := make([]folderView, len(folders))
	for i, f := range folders {
		out[i] = folderView{Label: f.Label, Path: f.Path}
	}
	return out
}

func (h *handler) settings() settingsView {
	cfg := h.app.Document.Settings()
	st := h.app.Autosave.Status()
	return settingsView{
		DefaultOpenFolder: cfg.DefaultOpenFolder,
		DarkMode:          cfg.DarkMode,
		AutosaveEnabled:   cfg.AutosaveEnabled,
		AutosaveInterval:  cfg.AutosaveInterval,
		Autosave: autosaveStatus{
			Running:   st.Enabled,
			Writes:    st.Writes,
			Failures:  st.Failures,
			LastPath:  st.LastPath,
			LastError: st.LastError,
		},
		RecentFiles:  cfg.RecentFiles,
		QuickFolders: h.folders(),
	}
}

func (h *handler) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settings())
}

// putSettings applies only the fields present in the body, all or none.
func (h *handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DefaultOpenFolder *string `json:"defaultOpenFolder"`
		DarkMode          *bool   `json:"darkMode"`
		AutosaveEnabled   *bool   `json:"autosaveEnabled"`
		AutosaveInterval  *int    `json:"autosaveInterval"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AutosaveInterval != nil && *req.AutosaveInterval < 1 {
		http.Error(w, "autosaveInterval must be at least 1 second", http.StatusBadRequest)
		return
	}

	err := h.app.Document.ApplySettings(document.SettingsChange{
		DefaultOpenFolder: req.DefaultOpenFolder,
		DarkMode:          req.DarkMode,
		AutosaveEnabled:   req.AutosaveEnabled,
		AutosaveInterval:  req.AutosaveInterval,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	if req.AutosaveEnabled != nil || req.AutosaveInterval != nil {
		if err := h.app.ApplyAutosave(); err != nil {
			h.writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, h.settings())
}

func (h *handler) listRecent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Document.RecentFiles())
}

func (h *handler) listFolders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.folders())
}

func (h *handler) addFolder(w http.ResponseWriter, r *http.Request) {
	var req folderView
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.app.Document.AddFolder(req.Label, req.Path); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.folders())
}

func (h *handler) removeFolder(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")
	if err := h.app.Document.RemoveFolder(label); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listScratch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Document.ScratchEntries())
}

func (h *handler) clearScratch(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Document.ClearScratch(); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) restoreScratch(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "invalid scratch index", http.StatusBadRequest)
		return
	}
	if err := h.app.Document.RestoreScratch(index); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view())
}

func (h *handler) render(w http.ResponseWriter, r *http.Request) {
	url, err := h.app.Preview.Render()
	if url == "" {
		h.writeError(w, err)
		return
	}
	resp := map[string]string{"url": url}
	if err != nil {
		resp["browserError"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
