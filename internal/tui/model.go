package tui

import (
	"time"

	"arpmitm/internal/spoofer"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// StatusSource is polled for the session status on every tick.
type StatusSource interface {
	Status() spoofer.Status
}

// TickMsg triggers a status refresh.
type TickMsg time.Time

// StateMsg announces a state transition pushed by the engine.
type StateMsg spoofer.State

type SessionModel struct {
	source        StatusSource
	status        spoofer.Status
	table         table.Model
	interfaceName string
	now           time.Time
}

func NewSessionModel(source StatusSource, iface string) SessionModel {
	columns := []table.Column{
		{Title: "Direction", Width: 18},
		{Title: "Claims", Width: 16},
		{Title: "Told To", Width: 16},
		{Title: "Target MAC", Width: 19},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(false),
		table.WithHeight(5),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return SessionModel{
		source:        source,
		status:        source.Status(),
		interfaceName: iface,
		table:         t,
		now:           time.Now(),
	}
}

func (m SessionModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
