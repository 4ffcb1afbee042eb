package ui

import (
	"context"
	"log/slog"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	appevents "github.com/rescp17/pisco/internal/app_events"
	scanEvent "github.com/rescp17/pisco/internal/app_events/scanner"
	"github.com/rescp17/pisco/internal/style"
	"github.com/rescp17/pisco/pkg/content"
	"github.com/rescp17/pisco/pkg/discovery"
)

// scanState defines the different states of the scanner UI.
type scanState int

const (
	searching scanState = iota
	paused
	loading
	loaded
	failed
)

type KeyMap struct {
	Rescan key.Binding
	Reload key.Binding
	Quit   key.Binding
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Rescan, k.Reload, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// DefaultKeyMap provides sensible default keybindings.
var DefaultKeyMap = KeyMap{
	Rescan: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
	Reload: key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "reload page")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type model struct {
	appController AppController
	ctx           context.Context
	cancel        context.CancelFunc

	state    scanState
	spinner  spinner.Model
	help     help.Model
	endpoint discovery.Endpoint
	page     content.Page
	status   string
	err      error
}

// InitialModel builds the scanner UI on top of controller.
func InitialModel(controller AppController) model {
	ctx, cancel := context.WithCancel(context.Background())
	return model{
		appController: controller,
		ctx:           ctx,
		cancel:        cancel,
		state:         searching,
		spinner:       style.NewSpinner(),
		help:          help.New(),
	}
}

func (m model) Init() tea.Cmd {
	go func() {
		if err := m.appController.Run(m.ctx); err != nil {
			slog.Error("App stopped with error", "error", err)
		}
	}()
	return tea.Batch(m.spinner.Tick, m.listenForAppMessages())
}

// listenForAppMessages is a command that listens for messages from the app controller.
func (m model) listenForAppMessages() tea.Cmd {
	return func() tea.Msg {
		return <-m.appController.UIMessages()
	}
}

// sendEvent hands event to the app without blocking the UI loop.
func (m model) sendEvent(event appevents.AppEvent) tea.Cmd {
	return func() tea.Msg {
		select {
		case m.appController.AppEvents() <- event:
		case <-m.ctx.Done():
		}
		return nil
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if cmd, processed := m.handleAppMessage(msg); processed {
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.FocusMsg:
		return m, m.sendEvent(scanEvent.ForegroundEvent{})
	case tea.BlurMsg:
		return m, m.sendEvent(scanEvent.BackgroundEvent{})
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, DefaultKeyMap.Quit):
		m.cancel()
		return m, tea.Quit
	case key.Matches(msg, DefaultKeyMap.Rescan):
		m.state = searching
		m.endpoint = discovery.Endpoint{}
		m.err = nil
		return m, m.sendEvent(scanEvent.RescanEvent{})
	case key.Matches(msg, DefaultKeyMap.Reload):
		if m.state == loaded || (m.state == failed && m.endpoint.Host != "") {
			m.state = loading
			m.err = nil
			return m, m.sendEvent(scanEvent.ReloadEvent{})
		}
	}
	return m, nil
}

func (m *model) handleAppMessage(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case scanEvent.SearchingMsg:
		m.state = searching
		m.endpoint = discovery.Endpoint{}
		m.status = ""
	case scanEvent.PausedMsg:
		m.state = paused
	case scanEvent.EndpointFoundMsg:
		m.state = loading
		m.endpoint = msg.Endpoint
	case scanEvent.StatusUpdateMsg:
		m.status = msg.Message
	case scanEvent.PageLoadedMsg:
		m.state = loaded
		m.page = msg.Page
	case appevents.ErrorMsg:
		m.state = failed
		m.err = msg.Err
	default:
		return nil, false
	}
	return m.listenForAppMessages(), true
}
