package app

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescp17/pisco/pkg/discovery"
)

type recordingSink struct {
	mu        sync.Mutex
	endpoints []discovery.Endpoint
}

func (s *recordingSink) LoadEndpoint(e discovery.Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints = append(s.endpoints, e)
}

func (s *recordingSink) delivered() []discovery.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]discovery.Endpoint(nil), s.endpoints...)
}

func candidate(host string, port int) discovery.ResolvedService {
	return discovery.ResolvedService{
		Name: host,
		Host: host,
		Port: port,
		Attributes: map[string][]byte{
			discovery.AttrURI:        []byte("plugin://x"),
			discovery.AttrInstanceID: []byte("abc"),
		},
	}
}

const sess = "session-1"

func newDiscoveringArbiter(t *testing.T) (*Arbiter, *recordingSink, *atomic.Int32) {
	t.Helper()
	sink := &recordingSink{}
	stops := &atomic.Int32{}
	a := NewArbiter(func(session string) {
		assert.Equal(t, sess, session)
		stops.Add(1)
	}, sink)
	require.NoError(t, a.Begin(sess))
	return a, sink, stops
}

func TestArbiter_AcceptFirstCandidate(t *testing.T) {
	a, sink, stops := newDiscoveringArbiter(t)

	endpoint, ok := a.Accept(sess, candidate("192.168.1.10", 8080))
	require.True(t, ok)
	assert.Equal(t, discovery.Endpoint{Scheme: "http", Host: "192.168.1.10", Port: 8080}, endpoint)
	assert.Equal(t, Resolved, a.State())
	assert.Equal(t, int32(1), stops.Load())
	assert.Equal(t, []discovery.Endpoint{endpoint}, sink.delivered())

	winner, ok := a.Winner()
	require.True(t, ok)
	assert.Equal(t, endpoint, winner)
}

func TestArbiter_DiscardsAfterWinner(t *testing.T) {
	a, sink, stops := newDiscoveringArbiter(t)

	first, ok := a.Accept(sess, candidate("10.0.0.1", 80))
	require.True(t, ok)

	for i := 0; i < 5; i++ {
		_, ok := a.Accept(sess, candidate("10.0.0.2", 81))
		assert.False(t, ok)
	}

	winner, _ := a.Winner()
	assert.Equal(t, first, winner)
	assert.Equal(t, int32(1), stops.Load())
	assert.Len(t, sink.delivered(), 1)
}

func TestArbiter_RejectsCandidateWithoutURI(t *testing.T) {
	tests := []struct {
		name  string
		attrs map[string][]byte
	}{
		{"no attributes", nil},
		{"instance id only", map[string][]byte{discovery.AttrInstanceID: []byte("abc")}},
		{"uri without value", map[string][]byte{discovery.AttrURI: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, sink, stops := newDiscoveringArbiter(t)

			_, ok := a.Accept(sess, discovery.ResolvedService{Host: "10.0.0.1", Port: 80, Attributes: tt.attrs})
			assert.False(t, ok)

			_, hasWinner := a.Winner()
			assert.False(t, hasWinner)
			assert.Equal(t, Discovering, a.State())
			assert.Zero(t, stops.Load())
			assert.Empty(t, sink.delivered())
		})
	}
}

func TestArbiter_AcceptsWithoutInstanceID(t *testing.T) {
	a, _, _ := newDiscoveringArbiter(t)

	_, ok := a.Accept(sess, discovery.ResolvedService{
		Host:       "10.0.0.1",
		Port:       80,
		Attributes: map[string][]byte{discovery.AttrURI: []byte("plugin://x")},
	})
	assert.True(t, ok)
}

func TestArbiter_DiscardsWhenIdle(t *testing.T) {
	sink := &recordingSink{}
	a := NewArbiter(nil, sink)

	_, ok := a.Accept(sess, candidate("10.0.0.1", 80))
	assert.False(t, ok)

	require.NoError(t, a.Begin(sess))
	a.End(sess)
	_, ok = a.Accept(sess, candidate("10.0.0.1", 80))
	assert.False(t, ok, "results arriving after the session stopped are discarded")
	assert.Empty(t, sink.delivered())
}

func TestArbiter_SingleWinnerUnderConcurrency(t *testing.T) {
	const n = 64
	a, sink, stops := newDiscoveringArbiter(t)

	var (
		wg    sync.WaitGroup
		wins  atomic.Int32
		start = make(chan struct{})
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			if _, ok := a.Accept(sess, candidate("10.0.0.1", 1000+i)); ok {
				wins.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(1), stops.Load())
	delivered := sink.delivered()
	require.Len(t, delivered, 1)
	winner, _ := a.Winner()
	assert.Equal(t, winner, delivered[0])
}

func TestArbiter_Lifecycle(t *testing.T) {
	a := NewArbiter(nil, nil)
	assert.Equal(t, Idle, a.State())

	require.NoError(t, a.Begin(sess))
	assert.ErrorIs(t, a.Begin(sess), ErrSessionActive)

	_, ok := a.Accept(sess, candidate("10.0.0.1", 80))
	require.True(t, ok)

	a.End(sess)
	assert.Equal(t, Resolved, a.State(), "stopping does not clear a winner")
	assert.ErrorIs(t, a.Begin(sess), ErrAlreadyResolved)

	a.Reset()
	assert.Equal(t, Idle, a.State())
	_, ok = a.Winner()
	assert.False(t, ok)
	assert.NoError(t, a.Begin(sess))
}

func TestArbiter_IgnoresOtherSessions(t *testing.T) {
	a, sink, stops := newDiscoveringArbiter(t)

	_, ok := a.Accept("session-0", candidate("10.0.0.1", 80))
	assert.False(t, ok)
	a.End("session-0")

	assert.Equal(t, Discovering, a.State(), "ending a stale session leaves the current one running")
	assert.Zero(t, stops.Load())
	assert.Empty(t, sink.delivered())
}

func TestArbiter_ResetDuringStopDropsDelivery(t *testing.T) {
	sink := &recordingSink{}
	var a *Arbiter
	a = NewArbiter(func(session string) {
		// The session is replaced after the winner was chosen but before delivery.
		a.Reset()
		require.NoError(t, a.Begin("session-2"))
	}, sink)
	require.NoError(t, a.Begin(sess))

	_, ok := a.Accept(sess, candidate("10.0.0.1", 80))
	assert.False(t, ok)
	assert.Empty(t, sink.delivered())
	assert.Equal(t, Discovering, a.State())
	_, hasWinner := a.Winner()
	assert.False(t, hasWinner)
}
