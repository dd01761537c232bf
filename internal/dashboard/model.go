// Package dashboard renders published events as a live terminal table.
package dashboard

import (
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/netgrok/netgrok/internal/hostmap"
)

// DefaultRows is how many recent events the table keeps.
const DefaultRows = 20

// Event is the decoded form of one published event.
type Event struct {
	SrcIP    string `json:"src_ip"`
	SrcPort  string `json:"src_port"`
	DstIP    string `json:"dst_ip"`
	DstPort  string `json:"dst_port"`
	Bytes    int64  `json:"bytes"`
	Protocol string `json:"protocol"`
	Host     string `json:"host,omitempty"`
	Referer  string `json:"referer,omitempty"`
	Time     string `json:"time"`
}

// EventMsg carries one raw event into the model.
type EventMsg string

// ClosedMsg reports that the event channel was closed.
type ClosedMsg struct{}

// WaitForEvent reads the next event from events.
func WaitForEvent(events <-chan string) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return ClosedMsg{}
		}
		return EventMsg(ev)
	}
}

// Model is the bubbletea model of the dashboard.
type Model struct {
	endpoint string
	events   <-chan string
	rows     int
	table    table.Model
	hosts    *hostmap.Map

	recent    []Event
	protocols map[string]int
	total     int
	invalid   int
	closed    bool
}

// NewModel creates a dashboard fed from events. rows <= 0 selects DefaultRows.
func NewModel(endpoint string, events <-chan string, rows int) Model {
	if rows <= 0 {
		rows = DefaultRows
	}

	columns := []table.Column{
		{Title: "Time", Width: 19},
		{Title: "Source", Width: 22},
		{Title: "Destination", Width: 22},
		{Title: "Proto", Width: 7},
		{Title: "Bytes", Width: 9},
		{Title: "Host", Width: 30},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(false),
		table.WithHeight(rows),
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

	return Model{
		endpoint:  endpoint,
		events:    events,
		rows:      rows,
		table:     t,
		hosts:     hostmap.New(),
		protocols: make(map[string]int),
	}
}

func (m Model) Init() tea.Cmd {
	return WaitForEvent(m.events)
}
