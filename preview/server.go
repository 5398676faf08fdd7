package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/browser"
)

const (
	DefaultPort         = 8000
	DefaultPollInterval = time.Second

	// Requests beyond the single worker wait in this backlog.
	queueLimit   = 64
	queueTimeout = 30 * time.Second
)

var ErrListen = errors.New("could not start preview server")

// Source provides the text to render. It is called once per request.
type Source interface {
	Snapshot() string
}

// Server serves the live buffer on a fixed local port. The listener is
// started on first use and then kept until Shutdown.
type Server struct {
	source   Source
	addr     string
	poll     time.Duration
	darkMode func() bool
	open     func(url string) error
	docID    string
	log      *slog.Logger

	mu  sync.Mutex
	ln  net.Listener
	srv *http.Server
	url string
}

type Option func(*Server)

// WithAddr overrides the listen address (default localhost:8000).
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

func WithPort(port int) Option {
	return WithAddr(net.JoinHostPort("localhost", strconv.Itoa(port)))
}

func WithPollInterval(d time.Duration) Option {
	return func(s *Server) { s.poll = d }
}

// WithDarkMode makes the page follow the editor's dark-mode setting.
func WithDarkMode(fn func() bool) Option {
	return func(s *Server) { s.darkMode = fn }
}

// WithBrowser replaces the browser launcher used by Render.
func WithBrowser(fn func(url string) error) Option {
	return func(s *Server) { s.open = fn }
}

// WithDocumentID tags responses with the X-Document-Id header.
func WithDocumentID(id string) Option {
	return func(s *Server) { s.docID = id }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.log = logger }
}

func NewServer(source Source, opts ...Option) *Server {
	s := &Server{
		source: source,
		addr:   net.JoinHostPort("localhost", strconv.Itoa(DefaultPort)),
		poll:   DefaultPollInterval,
		open:   browser.OpenURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Handler returns the preview routes. Requests are handled one at a time.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.ThrottleBacklog(1, queueLimit, queueTimeout))
	r.Get("/", s.serveRoot)
	return r
}

func (s *Server) serveRoot(w http.ResponseWriter, r *http.Request) {
	dark := s.darkMode != nil && s.darkMode()
	var buf bytes.Buffer
	if err := writePage(&buf, s.source.Snapshot(), dark, s.poll); err != nil {
		s.log.Error("render preview page", "error", err)
		http.Error(w, "failed to render preview", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if s.docID != "" {
		w.Header().Set("X-Document-Id", s.docID)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// EnsureRunning starts the listener if it is not running yet and returns
// the preview URL. Later calls reuse the same listener.
func (s *Server) EnsureRunning() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.url, nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrListen, err)
	}
	host, _, err := net.SplitHostPort(s.addr)
	if err != nil || host == "" {
		host = "localhost"
	}
	port := ln.Addr().(*net.TCPAddr).Port

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.ln = ln
	s.srv = srv
	s.url = "http://" + net.JoinHostPort(host, strconv.Itoa(port))

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("preview server stopped", "error", err)
		}
	}()
	s.log.Info("preview server listening", "url", s.url)
	return s.url, nil
}

// Render makes sure the server is running and opens a browser tab on it.
func (s *Server) Render() (string, error) {
	url, err := s.EnsureRunning()
	if err != nil {
		return "", err
	}
	if s.open != nil {
		if err := s.open(url); err != nil {
			s.log.Warn("open browser", "url", url, "error", err)
			return url, err
		}
	}
	return url, nil
}

func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ln != nil
}

// URL returns the preview URL, or "" before the first EnsureRunning.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// Shutdown stops the listener. It is meant for process exit.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv, s.ln, s.url = nil, nil, ""
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
