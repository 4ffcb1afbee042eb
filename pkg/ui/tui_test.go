package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appevents "github.com/rescp17/pisco/internal/app_events"
	scanEvent "github.com/rescp17/pisco/internal/app_events/scanner"
	"github.com/rescp17/pisco/pkg/content"
	"github.com/rescp17/pisco/pkg/discovery"
)

type fakeController struct {
	ui     chan tea.Msg
	events chan appevents.AppEvent
}

func newFakeController() *fakeController {
	return &fakeController{
		ui:     make(chan tea.Msg, 1),
		events: make(chan appevents.AppEvent, 1),
	}
}

func (f *fakeController) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (f *fakeController) UIMessages() <-chan tea.Msg { return f.ui }

func (f *fakeController) AppEvents() chan<- appevents.AppEvent { return f.events }

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(model)
	require.True(t, ok)
	return nm, cmd
}

func TestModel_FocusDrivesDiscoveryLifecycle(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.Msg
		want appevents.AppEvent
	}{
		{"focus resumes", tea.FocusMsg{}, scanEvent.ForegroundEvent{}},
		{"blur pauses", tea.BlurMsg{}, scanEvent.BackgroundEvent{}},
		{"rescan key", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")}, scanEvent.RescanEvent{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := newFakeController()
			m := InitialModel(ctrl)
			defer m.cancel()

			_, cmd := update(t, m, tt.msg)
			require.NotNil(t, cmd)
			cmd()

			select {
			case ev := <-ctrl.events:
				assert.Equal(t, tt.want, ev)
			case <-time.After(time.Second):
				t.Fatal("no event sent to the app")
			}
		})
	}
}

func TestModel_AppMessagesDriveState(t *testing.T) {
	ctrl := newFakeController()
	m := InitialModel(ctrl)
	defer m.cancel()

	assert.Contains(t, m.View(), "Looking for plug-ins")

	endpoint := discovery.Endpoint{Scheme: "http", Host: "192.168.1.10", Port: 8080}
	m, cmd := update(t, m, scanEvent.EndpointFoundMsg{Endpoint: endpoint})
	assert.NotNil(t, cmd, "keeps listening for app messages")
	assert.Equal(t, loading, m.state)
	assert.Contains(t, m.View(), "http://192.168.1.10:8080")

	m, _ = update(t, m, scanEvent.PageLoadedMsg{Page: content.Page{
		URL:        "http://192.168.1.10:8080/",
		StatusCode: 200,
		MIMEType:   "text/html; charset=utf-8",
		Title:      "Reverb",
		Size:       2048,
	}})
	assert.Equal(t, loaded, m.state)
	view := m.View()
	assert.Contains(t, view, "Reverb")
	assert.Contains(t, view, "2 KB")

	m, _ = update(t, m, appevents.ErrorMsg{Err: errors.New("connection refused")})
	assert.Equal(t, failed, m.state)
	assert.Contains(t, m.View(), "connection refused")

	m, _ = update(t, m, scanEvent.PausedMsg{})
	assert.Equal(t, paused, m.state)

	m, _ = update(t, m, scanEvent.SearchingMsg{})
	assert.Equal(t, searching, m.state)
}

func TestModel_ReloadOnlyWithEndpoint(t *testing.T) {
	ctrl := newFakeController()
	m := InitialModel(ctrl)
	defer m.cancel()

	reload := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("l")}
	_, cmd := update(t, m, reload)
	assert.Nil(t, cmd, "nothing to reload while searching")

	m, _ = update(t, m, scanEvent.EndpointFoundMsg{Endpoint: discovery.Endpoint{Scheme: "http", Host: "10.0.0.1", Port: 80}})
	m, _ = update(t, m, scanEvent.PageLoadedMsg{Page: content.Page{StatusCode: 200}})
	m, cmd = update(t, m, reload)
	require.NotNil(t, cmd)
	assert.Equal(t, loading, m.state)
	cmd()
	assert.Equal(t, scanEvent.ReloadEvent{}, <-ctrl.events)
}

func TestModel_Quit(t *testing.T) {
	m := InitialModel(newFakeController())
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Error(t, m.ctx.Err(), "quitting cancels the app context")
}
