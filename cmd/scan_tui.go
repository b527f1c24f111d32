package cmd

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"modlab/gameconfig"
)

// ScanProgressMsg represents a progress update from the scan process
type ScanProgressMsg struct {
	Type    string // "file", "warn", "error", "summary", "done"
	Message string
	File    string
	Index   int
	Total   int
}

// ScanModel controls the UI for the scan command
type ScanModel struct {
	spinner      spinner.Model
	progressChan chan ScanProgressMsg
	app          *app
	game         gameconfig.GameInfo

	// State
	status   string
	warnings []string
	errors   []string
	summary  string
	done     bool
}

func initialScanModel(a *app, game gameconfig.GameInfo) ScanModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return ScanModel{
		spinner:      s,
		progressChan: make(chan ScanProgressMsg, 100),
		app:          a,
		game:         game,
		status:       "Scanning...",
	}
}

func (m ScanModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.startScan(),
		m.waitForActivity(),
	)
}

func (m ScanModel) startScan() tea.Cmd {
	return func() tea.Msg {
		go func() {
			defer close(m.progressChan)
			runScanWithEvents(m.app, m.game, m.progressChan)
		}()
		return nil
	}
}

func (m ScanModel) waitForActivity() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.progressChan
		if !ok {
			return ScanProgressMsg{Type: "done"}
		}
		return msg
	}
}

func (m ScanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.done {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ScanProgressMsg:
		switch msg.Type {
		case "done":
			m.done = true
			m.status = "Finished"
			return m, tea.Quit

		case "file":
			m.status = fmt.Sprintf("Scanning %s (%d/%d)...", msg.File, msg.Index, msg.Total)

		case "warn":
			m.warnings = append(m.warnings, msg.Message)

		case "error":
			m.errors = append(m.errors, msg.Message)

		case "summary":
			m.summary = msg.Message
		}

		return m, m.waitForActivity()
	}

	return m, nil
}

func (m ScanModel) View() string {
	var symbol string
	if m.done {
		symbol = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("✓")
	} else {
		symbol = m.spinner.View()
	}

	s := fmt.Sprintf("\n %s %s\n\n", symbol, m.status)

	if len(m.warnings) > 0 {
		s += lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Render("Warnings:") + "\n"
		for _, w := range m.warnings {
			s += fmt.Sprintf("  • %s\n", w)
		}
		s += "\n"
	}

	if len(m.errors) > 0 {
		s += lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("Errors:") + "\n"
		for _, e := range m.errors {
			s += fmt.Sprintf("  • %s\n", e)
		}
		s += "\n"
	}

	if m.done {
		s += lipgloss.NewStyle().Bold(true).Render(m.summary) + "\n"
	}

	return s
}
