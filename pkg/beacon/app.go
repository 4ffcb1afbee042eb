// Package beacon announces a stand-in plug-in on the local network and serves
// a page for it, so a scanner has something to find.
package beacon

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rescp17/pisco/pkg/discovery"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Name}}</title></head>
<body>
<h1>{{.Name}}</h1>
<p>Plug-in URI: <code>{{.URI}}</code></p>
<p>Instance: <code>{{.InstanceID}}</code></p>
</body>
</html>
`))

// App announces a plug-in and serves its page until its context is cancelled.
type App struct {
	cfg       *Config
	registrar discovery.Announcer
}

// NewApp creates a new beacon application instance.
func NewApp(cfg *Config, registrar discovery.Announcer) *App {
	return &App{cfg: cfg, registrar: registrar}
}

// Handler serves the plug-in page.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if err := pageTemplate.Execute(w, a.cfg); err != nil {
			slog.Warn("Failed to render page", "error", err)
		}
	})
	return mux
}

// Run serves the page and announces it. It returns when ctx is cancelled or
// either side fails.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", a.cfg.Port, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.serve(ctx, ln)
	})
	g.Go(func() error {
		reg := a.cfg.Registration()
		slog.Info("Announcing plug-in", "name", reg.Name, "port", reg.Port, "uri", a.cfg.URI)
		if err := a.registrar.Announce(ctx, reg); err != nil {
			return fmt.Errorf("failed to announce plug-in: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (a *App) serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
	}()

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}
