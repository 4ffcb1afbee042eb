package scanner

import (
	appevents "github.com/rescp17/pisco/internal/app_events"
	"github.com/rescp17/pisco/pkg/content"
	"github.com/rescp17/pisco/pkg/discovery"
)

// --- App Events (from TUI to App) ---

// ForegroundEvent is sent when the terminal gains focus. Discovery resumes
// unless an endpoint has already been found.
type ForegroundEvent struct {
	appevents.Event
}

// BackgroundEvent is sent when the terminal loses focus. Discovery is paused.
type BackgroundEvent struct {
	appevents.Event
}

// RescanEvent forgets the current plug-in and looks for one again.
type RescanEvent struct {
	appevents.Event
}

// ReloadEvent loads the current endpoint's page again.
type ReloadEvent struct {
	appevents.Event
}

var (
	_ appevents.AppEvent = (*ForegroundEvent)(nil)
	_ appevents.AppEvent = (*BackgroundEvent)(nil)
	_ appevents.AppEvent = (*RescanEvent)(nil)
	_ appevents.AppEvent = (*ReloadEvent)(nil)
)

// --- UI Messages (from App to TUI) ---

// SearchingMsg is sent whenever a discovery session starts.
type SearchingMsg struct {
	appevents.UIMessage
}

// PausedMsg is sent when discovery stops without a result.
type PausedMsg struct {
	appevents.UIMessage
}

// EndpointFoundMsg carries the endpoint chosen by the discovery session.
type EndpointFoundMsg struct {
	appevents.UIMessage
	Endpoint discovery.Endpoint
}

// PageLoadedMsg is sent once the endpoint's page has been fetched.
type PageLoadedMsg struct {
	appevents.UIMessage
	Page content.Page
}

// StatusUpdateMsg is a free form status line.
type StatusUpdateMsg struct {
	appevents.UIMessage
	Message string
}

var (
	_ appevents.AppUIMessage = SearchingMsg{}
	_ appevents.AppUIMessage = PausedMsg{}
	_ appevents.AppUIMessage = EndpointFoundMsg{}
	_ appevents.AppUIMessage = PageLoadedMsg{}
	_ appevents.AppUIMessage = StatusUpdateMsg{}
)
