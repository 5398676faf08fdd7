package api

import (
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mutext/autosave"
	"mutext/document"
	"mutext/preview"
)

// App is the application context the handlers act on. It is built once by
// main and shared by reference.
type App struct {
	Document  *document.Session
	Preview   *preview.Server
	Autosave  *autosave.Scheduler
	Clipboard Clipboard // nil disables paste and copy

	// Quit is called after a close request has been granted.
	Quit func()
	Log  *slog.Logger
}

// ApplyAutosave brings the scheduler in line with the persisted settings.
func (a *App) ApplyAutosave() error {
	cfg := a.Document.Settings()
	if !cfg.AutosaveEnabled {
		a.Autosave.Disable()
		return nil
	}
	return a.Autosave.Enable(time.Duration(cfg.AutosaveInterval) * time.Second)
}

func (a *App) logger() *slog.Logger {
	if a.Log == nil {
		return slog.Default()
	}
	return a.Log
}

func RegisterRoutes(app *App, staticFS fs.FS) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	h := &handler{app: app, log: app.logger()}

	// Document
	r.Get("/api/document", h.getDocument)
	r.Put("/api/document", h.putDocument)
	r.Post("/api/document/new", h.newDocument)
	r.Post("/api/document/open", h.openDocument)
	r.Post("/api/document/open-recent", h.openRecent)
	r.Post("/api/document/save", h.saveDocument)
	r.Post("/api/document/save-as", h.saveDocumentAs)
	r.Post("/api/document/close", h.closeDocument)
	r.Post("/api/document/paste", h.paste)
	r.Post("/api/document/copy", h.copyAll)

	// WebSocket edit channel
	r.Get("/api/document/ws", h.handleWS)

	// Scratch buffer
	r.Get("/api/scratch", h.listScratch)
	r.Delete("/api/scratch", h.clearScratch)
	r.Post("/api/scratch/{index}/restore", h.restoreScratch)

	// Settings
	r.Get("/api/recent", h.listRecent)
	r.Get("/api/folders", h.listFolders)
	r.Post("/api/folders", h.addFolder)
	r.Delete("/api/folders/{label}", h.removeFolder)
	r.Get("/api/settings", h.getSettings)
	r.Put("/api/settings", h.putSettings)

	// Preview
	r.Post("/api/render", h.render)

	// Static sub-FS: strip the "static/" prefix present in the embed.FS.
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		staticSub = staticFS
	} else if _, statErr := fs.Stat(staticSub, "index.html"); statErr != nil {
		staticSub = staticFS
	}

	// Reading the file directly avoids http.FileServer's redirect of
	// ".../index.html" to "./".
	r.Get("/", serveFile(staticSub, "index.html"))

	return r
}

// serveFile returns a handler that reads a single file from fsys and sends it.
func serveFile(fsys fs.FS, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content)
	}
}

type handler struct {
	app *App
	log *slog.Logger
}
