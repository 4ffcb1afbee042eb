// Package scan finds the first plug-in advertised on the local network and
// hands its endpoint to a sink exactly once per discovery session.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/rescp17/pisco/internal/app"
	"github.com/rescp17/pisco/pkg/discovery"
)

var (
	ErrSessionActive   = app.ErrSessionActive
	ErrAlreadyResolved = app.ErrAlreadyResolved
)

// Stats counts what a coordinator has observed since it was created.
type Stats struct {
	Found    int64
	Matched  int64
	Resolved int64
	Failed   int64
	Lost     int64
}

// session is one discovery run. Its id tags every arbiter call made on its
// behalf.
type session struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

// Coordinator owns the discovery lifecycle. It filters found services by type,
// resolves the matches and lets its arbiter pick the winner.
type Coordinator struct {
	port        discovery.Port
	serviceType string
	arbiter     *app.Arbiter

	mu   sync.Mutex
	sess *session

	found, matched, resolved, failed, lost atomic.Int64
}

// New creates a coordinator browsing discovery.ServiceType on port and
// delivering the winning endpoint to sink.
func New(port discovery.Port, sink discovery.Sink) *Coordinator {
	c := &Coordinator{
		port:        port,
		serviceType: discovery.ServiceType,
	}
	c.arbiter = app.NewArbiter(c.stopSession, sink)
	return c
}

// Start begins a discovery session.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess != nil {
		return ErrSessionActive
	}
	id := uuid.NewString()
	if err := c.arbiter.Begin(id); err != nil {
		return err
	}

	sessCtx, cancel := context.WithCancel(ctx)
	events, err := c.port.Browse(sessCtx, c.serviceType)
	if err != nil {
		cancel()
		c.arbiter.End(id)
		slog.Error("Failed to start discovery", "type", c.serviceType, "error", err)
		return fmt.Errorf("start discovery: %w", err)
	}

	s := &session{
		id:     id,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.sess = s
	slog.Info("Discovery session started", "session", s.id, "type", c.serviceType)

	go c.run(sessCtx, s, events)
	return nil
}

// Stop ends the current session, if any. It is safe to call at any time.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	s := c.sess
	c.sess = nil
	c.mu.Unlock()

	c.shutdown(s)
}

// stopSession stops the session with the given id. It does nothing once that
// session has been replaced, so a late winner cannot stop its successor.
func (c *Coordinator) stopSession(id string) {
	c.mu.Lock()
	s := c.sess
	if s == nil || s.id != id {
		c.mu.Unlock()
		slog.Debug("Ignoring stop for a finished session", "session", id)
		return
	}
	c.sess = nil
	c.mu.Unlock()

	c.shutdown(s)
}

func (c *Coordinator) shutdown(s *session) {
	if s == nil {
		return
	}

	c.arbiter.End(s.id)
	s.cancel()
	<-s.done
	slog.Info("Discovery session stopped", "session", s.id)
}

// Restart stops the current session, forgets any previous winner and starts over.
func (c *Coordinator) Restart(ctx context.Context) error {
	c.Stop()
	c.arbiter.Reset()
	return c.Start(ctx)
}

func (c *Coordinator) State() app.State {
	return c.arbiter.State()
}

func (c *Coordinator) Winner() (discovery.Endpoint, bool) {
	return c.arbiter.Winner()
}

func (c *Coordinator) Stats() Stats {
	return Stats{
		Found:    c.found.Load(),
		Matched:  c.matched.Load(),
		Resolved: c.resolved.Load(),
		Failed:   c.failed.Load(),
		Lost:     c.lost.Load(),
	}
}

func (c *Coordinator) run(ctx context.Context, s *session, events <-chan discovery.BrowseEvent) {
	defer close(s.done)

	for ev := range events {
		switch ev.Kind {
		case discovery.DiscoveryStarted:
			slog.Debug("Discovery started", "session", s.id)
		case discovery.ServiceFound:
			c.onAdvertisementFound(ctx, s, ev.Advertisement)
		case discovery.ServiceLost:
			c.lost.Add(1)
			slog.Info("Service lost", "session", s.id, "name", ev.Advertisement.Name)
		case discovery.DiscoveryStopped:
			slog.Debug("Discovery stopped", "session", s.id)
		case discovery.StartFailed:
			slog.Error("Discovery failed to start", "session", s.id, "code", ev.Code, "error", ev.Err)
			c.endSession(s)
		case discovery.StopFailed:
			slog.Warn("Discovery failed to stop", "session", s.id, "code", ev.Code, "error", ev.Err)
		default:
			slog.Warn("Unhandled discovery event", "session", s.id, "kind", ev.Kind)
		}
	}
}

// endSession drops s without waiting for its event loop, which is the caller.
func (c *Coordinator) endSession(s *session) {
	c.mu.Lock()
	if c.sess != s {
		c.mu.Unlock()
		return
	}
	c.sess = nil
	c.mu.Unlock()

	c.arbiter.End(s.id)
	s.cancel()
}

func (c *Coordinator) onAdvertisementFound(ctx context.Context, s *session, ad discovery.Advertisement) {
	c.found.Add(1)
	slog.Debug("Service found", "name", ad.Name, "type", ad.Type)
	if ad.Type != c.serviceType {
		return
	}
	c.matched.Add(1)

	results := c.port.Resolve(ctx, ad)
	go func() {
		res, ok := <-results
		if !ok {
			return
		}
		c.onResolutionResult(s, ad, res)
	}()
}

// onResolutionResult feeds a result to the arbiter under the session that asked
// for it. Results from a stopped or replaced session are discarded there.
func (c *Coordinator) onResolutionResult(s *session, ad discovery.Advertisement, res discovery.ResolveResult) {
	if res.Err != nil {
		c.failed.Add(1)
		slog.Warn("Failed to resolve service", "name", ad.Name, "error", res.Err)
		return
	}
	c.resolved.Add(1)
	slog.Debug("Service resolved", "session", s.id, "name", res.Service.Name, "host", res.Service.Host, "port", res.Service.Port)
	c.arbiter.Accept(s.id, res.Service)
}
