package dashboard

import (
	"encoding/json"
	"net"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case EventMsg:
		m.total++
		var ev Event
		if err := json.Unmarshal([]byte(msg), &ev); err != nil {
			m.invalid++
			return m, WaitForEvent(m.events)
		}
		m.protocols[ev.Protocol]++
		if ev.Host != "" {
			m.hosts.Learn(ev.DstIP, ev.Host)
		}

		// Newest first.
		m.recent = append([]Event{ev}, m.recent...)
		if len(m.recent) > m.rows {
			m.recent = m.recent[:m.rows]
		}
		m.table.SetRows(m.rowsFor(m.recent))
		return m, WaitForEvent(m.events)

	case ClosedMsg:
		m.closed = true
		return m, nil
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// learnedPrefix marks a host name recovered from an earlier event to the same
// destination rather than read from this one.
const learnedPrefix = "~"

func (m Model) rowsFor(events []Event) []table.Row {
	out := make([]table.Row, len(events))
	for i, ev := range events {
		out[i] = table.Row{
			ev.Time,
			net.JoinHostPort(ev.SrcIP, ev.SrcPort),
			net.JoinHostPort(ev.DstIP, ev.DstPort),
			ev.Protocol,
			strconv.FormatInt(ev.Bytes, 10),
			m.hostCell(ev),
		}
	}
	return out
}

func (m Model) hostCell(ev Event) string {
	if ev.Host != "" {
		return ev.Host
	}
	if names := m.hosts.Lookup(ev.DstIP); len(names) > 0 {
		return learnedPrefix + names[0]
	}
	return ""
}
