// Package tui is the live dashboard behind `latticed dash`.
//
// It follows the usual bubbletea loop: a tick message asks the controller for
// a fresh snapshot, the snapshot is rendered into a table, and key presses on
// the selected row are turned into start or stop commands.
package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/latticed/internal/control"
	"github.com/kingrea/latticed/internal/logbook"
	"github.com/kingrea/latticed/internal/task"
)

const (
	refreshInterval = time.Second
	logPanelLines   = 8
)

// Source is what the dashboard needs from the controller.
type Source interface {
	Status(ctx context.Context) ([]control.TaskStatus, error)
	Start(name string) (task.Definition, task.StartResult, error)
	Stop(name string) (task.Definition, task.StopResult, error)
}

type snapshotMsg struct {
	rows []control.TaskStatus
	err  error
}

type actionMsg struct {
	text string
	err  error
}

type tickMsg time.Time

// App is the dashboard model.
type App struct {
	source  Source
	logPath func(name string) string

	table     table.Model
	rows      []control.TaskStatus
	statusMsg string
	err       error

	width  int
	height int
}

// NewApp creates the dashboard. logPath maps a task to its log file; it may
// be nil to hide the log panel.
func NewApp(source Source, logPath func(name string) string) *App {
	columns := []table.Column{
		{Title: "Task", Width: 20},
		{Title: "Status", Width: 10},
		{Title: "PID", Width: 8},
		{Title: "Branch", Width: 24},
		{Title: "Trigger", Width: 14},
		{Title: "Depends on", Width: 24},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#5B8DEF")).
		Bold(true)
	t.SetStyles(styles)

	return &App{
		source:    source,
		logPath:   logPath,
		table:     t,
		statusMsg: "s start · x stop · r refresh · q quit",
	}
}

// Init fetches the first snapshot.
func (a *App) Init() tea.Cmd {
	return a.fetchSnapshot()
}

// Update handles one message.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.table.SetHeight(max(3, min(len(a.rows)+1, msg.Height-logPanelLines-10)))
		return a, nil

	case tickMsg:
		return a, a.fetchSnapshot()

	case snapshotMsg:
		a.err = msg.err
		if msg.err == nil {
			a.rows = msg.rows
			a.table.SetRows(tableRows(msg.rows))
			if a.height > 0 {
				a.table.SetHeight(max(3, min(len(a.rows)+1, a.height-logPanelLines-10)))
			}
		}
		return a, scheduleRefresh()

	case actionMsg:
		a.err = msg.err
		if msg.err == nil {
			a.statusMsg = msg.text
		}
		return a, a.fetchSnapshot()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return a, tea.Quit
		case "r":
			return a, a.fetchSnapshot()
		case "s":
			if name := a.selected(); name != "" {
				return a, a.start(name)
			}
			return a, nil
		case "x":
			if name := a.selected(); name != "" {
				return a, a.stop(name)
			}
			return a, nil
		}
	}

	var cmd tea.Cmd
	a.table, cmd = a.table.Update(msg)
	return a, cmd
}

// View renders the dashboard.
func (a *App) View() string {
	sections := []string{
		titleStyle.Render("⬡ LATTICED"),
		boxStyle.Render(a.table.View()),
	}
	if panel := a.renderLogPanel(); panel != "" {
		sections = append(sections, panel)
	}
	if a.err != nil {
		sections = append(sections, errorStyle.Render("error: "+a.err.Error()))
	}
	sections = append(sections, mutedStyle.Render(a.statusMsg))
	return strings.Join(sections, "\n")
}

func (a *App) selected() string {
	if len(a.rows) == 0 {
		return ""
	}
	idx := a.table.Cursor()
	if idx < 0 || idx >= len(a.rows) {
		return ""
	}
	return a.rows[idx].Definition.Name
}

func (a *App) renderLogPanel() string {
	name := a.selected()
	if a.logPath == nil || name == "" {
		return ""
	}
	path := a.logPath(name)
	lines, _, err := logbook.New(path).Tail(logPanelLines)
	if err != nil || len(lines) == 0 {
		return ""
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s", filepath.Base(path)))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return boxStyle.Render(head + "\n" + body)
}

func (a *App) fetchSnapshot() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), refreshInterval)
		defer cancel()
		rows, err := a.source.Status(ctx)
		return snapshotMsg{rows: rows, err: err}
	}
}

func scheduleRefresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *App) start(name string) tea.Cmd {
	return func() tea.Msg {
		def, res, err := a.source.Start(name)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: fmt.Sprintf("%s: %s", def.Name, res)}
	}
}

func (a *App) stop(name string) tea.Cmd {
	return func() tea.Msg {
		def, res, err := a.source.Stop(name)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: fmt.Sprintf("%s: %s", def.Name, res)}
	}
}

func tableRows(rows []control.TaskStatus) []table.Row {
	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		pid := "-"
		if r.PID > 0 {
			pid = fmt.Sprint(r.PID)
		}
		branch := r.Branch
		if branch == "" {
			branch = "-"
		}
		deps := strings.Join(r.Definition.Dependencies, ", ")
		if deps == "" {
			deps = "-"
		}
		out = append(out, table.Row{
			r.Definition.Name,
			string(r.Status),
			pid,
			branch,
			r.Definition.Trigger,
			deps,
		})
	}
	return out
}

// Run starts the dashboard on the terminal and blocks until the user quits.
func Run(source Source, logPath func(name string) string) error {
	_, err := tea.NewProgram(NewApp(source, logPath), tea.WithAltScreen()).Run()
	return err
}
