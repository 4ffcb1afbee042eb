package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/rescp17/pisco/internal/style"
	"github.com/rescp17/pisco/internal/util"
)

const labelWidth = 10

func (m model) View() string {
	var s string
	switch m.state {
	case searching:
		s = fmt.Sprintf("\n %s Looking for plug-ins on the local network...\n", m.spinner.View())
	case paused:
		s = "\n Discovery paused. Focus the terminal to resume.\n"
	case loading:
		s = fmt.Sprintf("\n %s Loading %s...\n", m.spinner.View(), style.HighlightFontStyle.Render(m.endpoint.URL()))
	case loaded:
		s = "\n" + m.pageView() + "\n"
	case failed:
		s = fmt.Sprintf("\n %s\n", style.ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	default:
		s = "Internal error: unknown scanner state"
	}
	s += "\n" + style.HelpStyle.Render(m.help.View(DefaultKeyMap))
	return s
}

func (m model) pageView() string {
	title := m.page.Title
	if title == "" {
		title = "(untitled)"
	}
	size := util.FormatSize(m.page.Size)
	if m.page.Truncated {
		size += " (truncated)"
	}

	rows := []struct{ label, value string }{
		{"URL", m.page.URL},
		{"Status", fmt.Sprintf("%d", m.page.StatusCode)},
		{"Type", m.page.MIMEType},
		{"Size", size},
		{"Loaded in", m.page.LoadedIn.Round(time.Millisecond).String()},
	}

	var b strings.Builder
	b.WriteString(style.SuccessStyle.Render("✔ Connected") + "  " + style.TitleStyle.Render(title) + "\n")
	for _, r := range rows {
		b.WriteString(style.LabelStyle.Render(util.PadRight(r.label, labelWidth)))
		b.WriteString(style.ValueStyle.Render(r.value) + "\n")
	}
	return style.BaseStyle.Render(strings.TrimSuffix(b.String(), "\n"))
}
