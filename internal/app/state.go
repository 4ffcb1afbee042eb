package app

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/rescp17/pisco/pkg/discovery"
)

// State is the lifecycle state of a discovery session.
type State int

const (
	Idle State = iota
	Discovering
	Resolved
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Discovering:
		return "discovering"
	case Resolved:
		return "resolved"
	default:
		return "unknown"
	}
}

var (
	ErrSessionActive   = errors.New("discovery session already active")
	ErrAlreadyResolved = errors.New("an endpoint has already been resolved")
)

// Arbiter decides which resolved service wins a discovery session. The first
// valid candidate accepted while discovering wins; everything after it is discarded.
//
// Every call names the session it belongs to. Candidates, stops and deliveries
// from a session that is no longer current are dropped, so a restart racing a
// late winner cannot leak the old endpoint into the new session.
type Arbiter struct {
	mu      sync.Mutex
	state   State
	session string
	winner  *discovery.Endpoint

	// deliverMu orders sink delivery against Reset.
	deliverMu sync.Mutex

	stop func(session string)
	sink discovery.Sink
}

// NewArbiter creates an arbiter. stop is called with the winning session once a
// winner is chosen, before the winner is handed to sink. sink must not call
// back into Reset.
func NewArbiter(stop func(session string), sink discovery.Sink) *Arbiter {
	if stop == nil {
		stop = func(string) {}
	}
	return &Arbiter{stop: stop, sink: sink}
}

// Begin moves an idle arbiter to Discovering on behalf of session.
func (a *Arbiter) Begin(session string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case Discovering:
		return ErrSessionActive
	case Resolved:
		return ErrAlreadyResolved
	}
	a.state = Discovering
	a.session = session
	return nil
}

// End returns session to Idle if it is current and produced no winner. A
// resolved session is left untouched.
func (a *Arbiter) End(session string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == session && a.state == Discovering {
		a.state = Idle
	}
}

// Reset forgets the session and its winner and returns to Idle. It waits for an
// in-flight delivery to finish.
func (a *Arbiter) Reset() {
	a.deliverMu.Lock()
	defer a.deliverMu.Unlock()
	a.mu.Lock()
	defer a.mu.Unlock()

	a.state = Idle
	a.session = ""
	a.winner = nil
}

// State returns the current session state.
func (a *Arbiter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Winner returns the endpoint chosen in the current session, if any.
func (a *Arbiter) Winner() (discovery.Endpoint, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.winner == nil {
		return discovery.Endpoint{}, false
	}
	return *a.winner, true
}

func (a *Arbiter) current(session string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session == session && a.state == Resolved
}

// Accept offers a candidate resolved during session. It returns the endpoint and
// true only for the call that wins the session and delivers it to the sink.
func (a *Arbiter) Accept(session string, resolved discovery.ResolvedService) (discovery.Endpoint, bool) {
	a.mu.Lock()
	if a.state != Discovering || a.session != session {
		a.mu.Unlock()
		return discovery.Endpoint{}, false
	}

	uri, ok := resolved.Attribute(discovery.AttrURI)
	if !ok {
		a.mu.Unlock()
		slog.Debug("Ignoring service without plug-in URI", "name", resolved.Name, "host", resolved.Host)
		return discovery.Endpoint{}, false
	}

	attrs := []any{"session", session, "name", resolved.Name, "uri", string(uri)}
	// TODO: compare the instance id against a preferred instance once one can be configured.
	if id, ok := resolved.Attribute(discovery.AttrInstanceID); ok {
		attrs = append(attrs, "instance_id", string(id))
	}

	endpoint := discovery.Endpoint{
		Scheme: "http",
		Host:   resolved.Host,
		Port:   resolved.Port,
	}
	a.winner = &endpoint
	a.state = Resolved
	a.mu.Unlock()

	slog.Info("Found plug-in", append(attrs, "endpoint", endpoint.URL())...)

	a.stop(session)

	a.deliverMu.Lock()
	defer a.deliverMu.Unlock()
	if !a.current(session) {
		slog.Debug("Dropping winner of a superseded session", "session", session, "endpoint", endpoint.URL())
		return discovery.Endpoint{}, false
	}
	if a.sink != nil {
		a.sink.LoadEndpoint(endpoint)
	}
	return endpoint, true
}
