package tui

import (
	"fmt"
	"time"

	"arpmitm/internal/models"
	"arpmitm/internal/spoofer"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFF7DB")).
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Margin(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F")).
			Margin(0, 1)
)

func (m SessionModel) View() string {
	st := m.status
	title := titleStyle.Render(fmt.Sprintf("arpmitm - Interface: %s [%s]", m.interfaceName, st.State))

	hosts := fmt.Sprintf("Victim:   %s\nGateway:  %s\nAttacker: %s",
		formatHost(st.Session.Victim), formatHost(st.Session.Gateway), st.Local.MAC)
	hostsBox := infoStyle.Render(hosts)

	counters := fmt.Sprintf("Cycles: %d\nPoison frames: %d\nRestore frames: %d\nUptime: %s",
		st.Cycles, st.PoisonSent, st.RestoreSent, formatUptime(st.StartedAt, m.now))
	countersBox := infoStyle.Render(counters)

	tableBox := infoStyle.Render("Poisoned Mappings\n" + m.table.View())

	row1 := lipgloss.JoinHorizontal(lipgloss.Top, hostsBox, countersBox)
	body := lipgloss.JoinVertical(lipgloss.Left, title, row1, tableBox)
	if st.LastError != nil {
		body = lipgloss.JoinVertical(lipgloss.Left, body, errorStyle.Render("Error: "+st.LastError.Error()))
	}

	if st.State == spoofer.StateStopped {
		return body + "\nSession stopped."
	}
	return body + "\nPress q to stop and restore ARP tables."
}

func formatHost(h models.HostAddress) string {
	if h.IP == nil {
		return "-"
	}
	if !h.Resolved() {
		return h.IP.String() + " (resolving)"
	}
	return fmt.Sprintf("%s (%s)", h.IP, h.MAC)
}

func formatUptime(start, now time.Time) string {
	if start.IsZero() {
		return "-"
	}
	return now.Sub(start).Truncate(time.Second).String()
}
