package tui

import (
	"time"

	"arpmitm/internal/spoofer"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

func (m SessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case TickMsg:
		m.now = time.Time(msg)
		m.refresh()
		return m, tickCmd()

	case StateMsg:
		m.refresh()
		if spoofer.State(msg) == spoofer.StateStopped {
			return m, tea.Quit
		}
		return m, nil
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *SessionModel) refresh() {
	m.status = m.source.Status()

	s := m.status.Session
	if !s.Ready() {
		m.table.SetRows(nil)
		return
	}
	m.table.SetRows([]table.Row{
		{"gateway -> victim", s.Gateway.IP.String(), s.Victim.IP.String(), s.Victim.MAC.String()},
		{"victim -> gateway", s.Victim.IP.String(), s.Gateway.IP.String(), s.Gateway.MAC.String()},
	})
}
