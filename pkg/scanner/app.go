package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/rescp17/pisco/internal/app"
	appevents "github.com/rescp17/pisco/internal/app_events"
	"github.com/rescp17/pisco/internal/app_events/scanner"
	"github.com/rescp17/pisco/pkg/concurrency"
	"github.com/rescp17/pisco/pkg/content"
	"github.com/rescp17/pisco/pkg/discovery"
	"github.com/rescp17/pisco/pkg/scan"
)

// App is the main application logic controller for the scanner. It is the
// sink of its coordinator: the winning endpoint is handed over to the App's
// own goroutine before anything is loaded from it.
type App struct {
	coordinator *scan.Coordinator
	loader      *content.Loader
	guard       *concurrency.ConcurrencyGuard
	uiMessages  chan tea.Msg            // App -> TUI
	appEvents   chan appevents.AppEvent // TUI -> App
	endpoints   chan discovery.Endpoint // coordinator -> App
	loadWG      sync.WaitGroup          // Track active page loads
}

// NewApp creates a new scanner application instance. A nil cfg means DefaultConfig.
func NewApp(port discovery.Port, cfg *Config) *App {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	a := &App{
		loader:     content.NewLoader(cfg.LoadTimeout, cfg.MaxPageBytes),
		guard:      concurrency.NewConcurrencyGuard(),
		uiMessages: make(chan tea.Msg, cfg.MessageBuffer),
		appEvents:  make(chan appevents.AppEvent),
		endpoints:  make(chan discovery.Endpoint, 1),
	}
	a.coordinator = scan.New(port, a)
	return a
}

// UIMessages returns the channel for the UI to listen on for updates.
func (a *App) UIMessages() <-chan tea.Msg {
	return a.uiMessages
}

// AppEvents returns a write-only channel for the TUI to send events to the app.
func (a *App) AppEvents() chan<- appevents.AppEvent {
	return a.appEvents
}

// State reports the discovery session state.
func (a *App) State() app.State {
	return a.coordinator.State()
}

// LoadEndpoint implements discovery.Sink. It is called at most once per session.
func (a *App) LoadEndpoint(endpoint discovery.Endpoint) {
	select {
	case a.endpoints <- endpoint:
	default:
		slog.Warn("Dropping endpoint, previous one not consumed yet", "endpoint", endpoint.URL())
	}
}

// Run starts the application's main event loop.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.runDiscovery(ctx)
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case event := <-a.appEvents:
				a.handleEvent(ctx, event)
			}
		}
	})
	return g.Wait()
}

// runDiscovery starts the first session and loads whatever endpoint it yields.
func (a *App) runDiscovery(ctx context.Context) error {
	a.resume(ctx)

	for {
		select {
		case <-ctx.Done():
			a.coordinator.Stop()
			// Wait for any active page load to notice the cancellation
			a.loadWG.Wait()
			return nil
		case endpoint := <-a.endpoints:
			a.notify(ctx, scanner.EndpointFoundMsg{Endpoint: endpoint})
			a.startLoad(ctx, endpoint)
		}
	}
}

func (a *App) handleEvent(ctx context.Context, event appevents.AppEvent) {
	switch event.(type) {
	case scanner.ForegroundEvent:
		a.resume(ctx)
	case scanner.BackgroundEvent:
		if a.coordinator.State() == app.Discovering {
			a.coordinator.Stop()
			a.notify(ctx, scanner.PausedMsg{})
		}
	case scanner.RescanEvent:
		slog.Info("Rescanning for plug-ins")
		if err := a.coordinator.Restart(ctx); err != nil {
			a.sendAndLogError(ctx, "Failed to restart discovery", err)
			return
		}
		a.notify(ctx, scanner.SearchingMsg{})
	case scanner.ReloadEvent:
		if endpoint, ok := a.coordinator.Winner(); ok {
			a.LoadEndpoint(endpoint)
		}
	default:
		slog.Warn("Received unhandled app event", "event", event)
	}
}

// resume starts discovery unless an endpoint has already been resolved.
func (a *App) resume(ctx context.Context) {
	err := a.coordinator.Start(ctx)
	switch {
	case err == nil:
		a.notify(ctx, scanner.SearchingMsg{})
	case errors.Is(err, scan.ErrAlreadyResolved), errors.Is(err, scan.ErrSessionActive):
		slog.Debug("Discovery not started", "reason", err)
	default:
		a.sendAndLogError(ctx, "Failed to start discovery", err)
	}
}

func (a *App) startLoad(ctx context.Context, endpoint discovery.Endpoint) {
	a.loadWG.Add(1)
	go func() {
		defer a.loadWG.Done()
		err := a.guard.ExecuteWithContext(ctx, func(ctx context.Context) error {
			a.notify(ctx, scanner.StatusUpdateMsg{Message: "Loading " + endpoint.URL()})
			page, err := a.loader.Load(ctx, endpoint)
			if err != nil {
				return err
			}
			a.notify(ctx, scanner.PageLoadedMsg{Page: *page})
			return nil
		})
		switch {
		case err == nil:
		case errors.Is(err, concurrency.ErrBusy):
			slog.Warn("A page load is already in progress", "endpoint", endpoint.URL())
		case ctx.Err() != nil:
			slog.Debug("Page load cancelled", "endpoint", endpoint.URL())
		default:
			a.sendAndLogError(ctx, "Failed to load plug-in page", err)
		}
	}()
}

func (a *App) notify(ctx context.Context, msg tea.Msg) {
	select {
	case a.uiMessages <- msg:
	case <-ctx.Done():
	}
}

// sendAndLogError is a helper function to both log an error and send it to the UI.
func (a *App) sendAndLogError(ctx context.Context, baseMessage string, err error) {
	slog.Error(baseMessage, "error", err)
	a.notify(ctx, appevents.ErrorMsg{Err: fmt.Errorf("%s: %w", baseMessage, err)})
}
