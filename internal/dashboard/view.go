package dashboard

import (
	"fmt"
	"maps"
	"slices"
	"strings"

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
)

func (m Model) View() string {
	header := fmt.Sprintf("netgrok - %s", m.endpoint)
	if m.closed {
		header += " [closed]"
	}
	title := titleStyle.Render(header)

	counts := fmt.Sprintf("Events: %d\nUnreadable: %d", m.total, m.invalid)
	countBox := infoStyle.Render(counts)

	var protoStrs []string
	for _, name := range slices.Sorted(maps.Keys(m.protocols)) {
		protoStrs = append(protoStrs, fmt.Sprintf("%s: %d", name, m.protocols[name]))
	}
	if len(protoStrs) == 0 {
		protoStrs = append(protoStrs, "Waiting for events...")
	}
	protoBox := infoStyle.Render("Protocols:\n" + strings.Join(protoStrs, "\n"))

	row1 := lipgloss.JoinHorizontal(lipgloss.Top, countBox, protoBox)
	body := lipgloss.JoinVertical(lipgloss.Left, title, row1, infoStyle.Render(m.table.View()))

	return body + "\nPress q to quit."
}
