package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"mutext/api"
	"mutext/autosave"
	"mutext/document"
	"mutext/logging"
	"mutext/preview"
	"mutext/store"
	"mutext/watch"
)

type options struct {
	addr        string
	previewPort int
	dataDir     string
	open        bool
	logLevel    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{
		addr:        envOr("MUTEXT_ADDR", "localhost:8090"),
		previewPort: envIntOr("MUTEXT_PREVIEW_PORT", preview.DefaultPort),
		dataDir:     os.Getenv("MUTEXT_DATA_DIR"),
		logLevel:    envOr("MUTEXT_LOG_LEVEL", "info"),
	}

	cmd := &cobra.Command{
		Use:          "mutext",
		Short:        "Plain text and HTML editor with a live KaTeX preview",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.addr, "addr", opts.addr, "editor listen address (env MUTEXT_ADDR)")
	flags.IntVar(&opts.previewPort, "preview-port", opts.previewPort, "fixed port of the preview server (env MUTEXT_PREVIEW_PORT)")
	flags.StringVar(&opts.dataDir, "data-dir", opts.dataDir, "directory for config, scratch buffer and autosave (default: beside the executable)")
	flags.BoolVar(&opts.open, "open", false, "open the editor in the default browser")
	flags.StringVar(&opts.logLevel, "log-level", opts.logLevel, "debug, info, warn or error")
	return cmd
}

func run(ctx context.Context, opts options) error {
	level, err := logging.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	dataDir, err := resolveDataDir(opts.dataDir)
	if err != nil {
		return err
	}
	logger, closer, err := logging.New(os.Stderr, filepath.Join(dataDir, logging.FileName), level)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	cfg := store.NewConfigStore(filepath.Join(dataDir, store.ConfigFileName), logger)
	scratch := store.NewScratchStore(filepath.Join(dataDir, store.ScratchFileName), logger)

	var follower *watch.Follower
	doc := document.NewSession(cfg, scratch,
		document.WithLogger(logger),
		document.WithBindHook(func(path string) {
			if follower == nil {
				return
			}
			if err := follower.Follow(path); err != nil {
				logger.Warn("watch bound file", "path", path, "error", err)
			}
		}),
	)
	follower, err = watch.NewFollower(doc, logger)
	if err != nil {
		logger.Warn("file watching disabled", "error", err)
		follower = nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, quit := context.WithCancel(ctx)
	defer quit()

	if follower != nil {
		defer follower.Close()
		go follower.Run(ctx)
	}

	app := &api.App{
		Document: doc,
		Preview: preview.NewServer(doc,
			preview.WithPort(opts.previewPort),
			preview.WithDarkMode(doc.DarkMode),
			preview.WithDocumentID(doc.ID),
			preview.WithLogger(logger),
		),
		Autosave:  autosave.New(doc, filepath.Join(dataDir, autosave.FileName), autosave.WithLogger(logger)),
		Clipboard: systemClipboard{},
		Quit:      quit,
		Log:       logger,
	}
	if err := app.ApplyAutosave(); err != nil {
		logger.Warn("autosave not started", "error", err)
	}

	ln, err := net.Listen("tcp", opts.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", opts.addr, err)
	}
	srv := &http.Server{
		Handler:           api.RegisterRoutes(app, staticFiles),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			quit()
		}
	}()

	url := "http://" + ln.Addr().String()
	logger.Info("mutext listening", "url", url, "data_dir", dataDir)
	if opts.open {
		if err := browser.OpenURL(url); err != nil {
			logger.Warn("open browser", "error", err)
		}
	}

	<-ctx.Done()
	return shutdown(app, srv, logger)
}

func shutdown(app *api.App, srv *http.Server, logger *slog.Logger) error {
	app.Autosave.Stop()
	if app.Document.Dirty() {
		logger.Warn("exiting with unsaved changes", "path", app.Document.Path())
	}
	flushErr := app.Document.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("shutdown editor server", "error", err)
	}
	if err := app.Preview.Shutdown(ctx); err != nil {
		logger.Warn("shutdown preview server", "error", err)
	}
	logger.Info("bye")
	return flushErr
}

// resolveDataDir defaults to the directory holding the executable.
func resolveDataDir(dir string) (string, error) {
	if dir == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("locate executable: %w", err)
		}
		dir = filepath.Dir(exe)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

type systemClipboard struct{}

func (systemClipboard) ReadAll() (string, error) { return clipboard.ReadAll() }

func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }
