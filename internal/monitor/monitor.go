// Package monitor implements a live status dashboard for the bridge: a
// bubbletea model showing the tag registry, ENIP server port, and each
// configured PLC's sync rate, refreshed once a second.
package monitor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/doover-run/enip-plc-bridge/internal/bridge"
	"github.com/doover-run/enip-plc-bridge/internal/tagvalue"
)

// Theme is the dashboard's color palette.
type Theme struct {
	BgPanel     lipgloss.Color
	TextPrimary lipgloss.Color
	TextDim     lipgloss.Color
	Border      lipgloss.Color
	Accent      lipgloss.Color
	Success     lipgloss.Color
	Warning     lipgloss.Color
}

// DefaultTheme mirrors the bridge's ambient dark palette.
var DefaultTheme = Theme{
	BgPanel:     lipgloss.Color("#24283b"),
	TextPrimary: lipgloss.Color("#c0caf5"),
	TextDim:     lipgloss.Color("#565f89"),
	Border:      lipgloss.Color("#414868"),
	Accent:      lipgloss.Color("#7aa2f7"),
	Success:     lipgloss.Color("#9ece6a"),
	Warning:     lipgloss.Color("#e0af68"),
}

type styles struct {
	title  lipgloss.Style
	header lipgloss.Style
	dim    lipgloss.Style
	panel  lipgloss.Style
	status string
}

func newStyles(t Theme) styles {
	return styles{
		title:  lipgloss.NewStyle().Foreground(t.Accent).Bold(true).Padding(0, 1),
		header: lipgloss.NewStyle().Foreground(t.TextDim).Bold(true),
		dim:    lipgloss.NewStyle().Foreground(t.TextDim),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(1, 2),
	}
}

type tickMsg time.Time

type clipboardMsg struct {
	err error
}

// Model is the dashboard's bubbletea model.
type Model struct {
	app    *bridge.App
	styles styles
	err    string
	copied string
}

// NewModel creates a dashboard model bound to a running bridge.App.
func NewModel(app *bridge.App) Model {
	return Model{app: app, styles: newStyles(DefaultTheme)}
}

// Run starts the dashboard as a full-screen program. It blocks until the
// user quits (q / ctrl+c).
func Run(app *bridge.App) error {
	program := tea.NewProgram(NewModel(app), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "c":
			dump := m.renderTagDump()
			return m, func() tea.Msg { return clipboardMsg{err: clipboard.WriteAll(dump)} }
		}
	case tickMsg:
		return m, tick()
	case clipboardMsg:
		if msg.err != nil {
			m.err = fmt.Sprintf("clipboard copy failed: %v", msg.err)
		} else {
			m.copied = "tag dump copied to clipboard"
			m.err = ""
		}
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render(fmt.Sprintf("enip-plc-bridge — ENIP server port %d", m.app.Port())))
	b.WriteString("\n\n")

	b.WriteString(m.styles.header.Render("Channel rates"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  updates: %.2f Hz    writes: %.2f Hz\n\n",
		m.app.ChannelUpdateRate(), m.app.WriteRate())

	b.WriteString(m.styles.header.Render("PLC sync tasks"))
	b.WriteString("\n")
	tasks := m.app.Tasks()
	if len(tasks) == 0 {
		b.WriteString(m.styles.dim.Render("  (none configured)\n"))
	}
	for _, task := range tasks {
		fmt.Fprintf(&b, "  %-20s %6.2f Hz   avg %.3fs\n",
			task.Name(), task.Ticks.SpeedHz(), task.Ticks.AverageDuration().Seconds())
	}
	b.WriteString("\n")

	b.WriteString(m.styles.header.Render("Tags"))
	b.WriteString("\n")
	b.WriteString(m.renderTagTable())
	b.WriteString("\n")

	if m.err != "" {
		b.WriteString(m.styles.dim.Render(m.err))
		b.WriteString("\n")
	} else if m.copied != "" {
		b.WriteString(m.styles.dim.Render(m.copied))
		b.WriteString("\n")
	}

	b.WriteString(m.styles.dim.Render("\nq: quit   c: copy tag dump to clipboard"))
	return m.styles.panel.Render(b.String())
}

func (m Model) renderTagTable() string {
	names := m.sortedTagNames()
	if len(names) == 0 {
		return m.styles.dim.Render("  (empty)\n")
	}
	var b strings.Builder
	for _, name := range names {
		d, ok := m.app.Registry().Get(name)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "  %-40s %-10s %v\n", d.Name, d.EnipType, tagvalue.Interface(d.CurrentValue))
	}
	return b.String()
}

func (m Model) renderTagDump() string {
	names := m.sortedTagNames()
	var b strings.Builder
	for _, name := range names {
		d, ok := m.app.Registry().Get(name)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s=%s:%v\n", d.Name, d.EnipType, tagvalue.Interface(d.CurrentValue))
	}
	return b.String()
}

func (m Model) sortedTagNames() []string {
	snap := m.app.Registry().Snapshot()
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
