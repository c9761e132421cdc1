package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
)

var (
	accent       = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	subtle       = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	panel        = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	tabActive    = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")).Padding(0, 1).Bold(true)
	tabInactive  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("238")).Padding(0, 1)
	statusGood   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	statusBad    = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	topperStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	cursorStyle  = lipgloss.NewStyle().Reverse(true)
	colHeadStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	groupStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("135")).Bold(true)
)

func main() {
	_ = godotenv.Load()

	apiURL := flag.String("api-url", envOr("GRADING_API_URL", "http://localhost:5000"), "grading backend base URL")
	dbURL := flag.String("db-url", "", "Postgres DSN for the snapshot archive (GRADING_DB_DSN and DATABASE_URL are fallbacks)")
	downloadDir := flag.String("download-dir", envOr("GRADING_DOWNLOAD_DIR", "downloads"), "directory generated reports are saved into")
	reportPath := flag.String("report", "grading-summary.txt", "path for the roster summary report")
	flag.Parse()

	if os.Getenv("GRADING_DEBUG") != "" {
		f, err := tea.LogToFile("grading-console.log", "debug")
		if err != nil {
			fmt.Println("error opening debug log:", err)
			os.Exit(1)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	client := newAPIClient(*apiURL)
	m := rootModel{
		client:  client,
		grading: newGradingModel(client, *downloadDir, *reportPath, *dbURL),
		history: newHistoryModel(client, *downloadDir, *dbURL),
	}

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Println("error running program:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

type tabID int

const (
	tabGrading tabID = iota
	tabHistory
)

type rootModel struct {
	client  *apiClient
	tab     tabID
	grading gradingModel
	history historyModel
	width   int
	height  int
	ready   bool
}

func (m rootModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m rootModel) capturing() bool {
	if m.tab == tabGrading {
		return m.grading.capturing()
	}
	return m.history.capturing()
}

func (m rootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		listHeight := msg.Height - 12
		if listHeight < 8 {
			listHeight = 8
		}
		m.history.list.SetSize(msg.Width-4, listHeight)
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if !m.capturing() {
				return m, tea.Quit
			}
		case "t":
			if !m.capturing() {
				return m.switchTab()
			}
		}
		return m.routeToActive(msg)

	case uploadResultMsg, summaryWrittenMsg:
		var cmd tea.Cmd
		m.grading, cmd = m.grading.update(msg)
		return m, cmd

	case generateResultMsg:
		var cmd tea.Cmd
		m.grading, cmd = m.grading.update(msg)
		// A fresh export shows up in history, so refresh the list, but
		// only on success.
		if msg.err == nil {
			m.history.loading = true
			return m, tea.Batch(cmd, loadHistoryCmd(m.client))
		}
		return m, cmd

	case historySaveMsg:
		var cmd tea.Cmd
		m.history, cmd = m.history.update(msg)
		if msg.err == nil {
			m.history.loading = true
			return m, tea.Batch(cmd, loadHistoryCmd(m.client))
		}
		return m, cmd

	case historyExportMsg:
		var cmd tea.Cmd
		m.history, cmd = m.history.update(msg)
		if msg.err == nil {
			m.history.loading = true
			return m, tea.Batch(cmd, loadHistoryCmd(m.client))
		}
		return m, cmd

	case historyListMsg, historyFileMsg, historyDeleteMsg, historyDownloadMsg:
		var cmd tea.Cmd
		m.history, cmd = m.history.update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmds []tea.Cmd
		var cmd tea.Cmd
		m.grading, cmd = m.grading.update(msg)
		cmds = append(cmds, cmd)
		m.history, cmd = m.history.update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)
	}

	return m.routeToActive(msg)
}

func (m rootModel) switchTab() (rootModel, tea.Cmd) {
	if m.tab == tabGrading {
		m.tab = tabHistory
		// History fetches on first entry; later entries reuse the list
		// until something refreshes it.
		if !m.history.loaded && !m.history.loading {
			m.history.loading = true
			return m, tea.Batch(m.history.spin.Tick, loadHistoryCmd(m.client))
		}
		return m, nil
	}
	m.tab = tabGrading
	m.history = m.history.clearLocal()
	return m, nil
}

func (m rootModel) routeToActive(msg tea.Msg) (rootModel, tea.Cmd) {
	var cmd tea.Cmd
	if m.tab == tabGrading {
		m.grading, cmd = m.grading.update(msg)
	} else {
		m.history, cmd = m.history.update(msg)
	}
	return m, cmd
}

func (m rootModel) View() string {
	if !m.ready {
		return "Loading immersion grading console..."
	}

	header := accent.Render("Immersion Grading Console")

	gradingTab := tabInactive.Render("Grading")
	historyTab := tabInactive.Render("History")
	if m.tab == tabGrading {
		gradingTab = tabActive.Render("Grading")
	} else {
		historyTab = tabActive.Render("History")
	}
	tabs := gradingTab + " " + historyTab + "  " + subtle.Render("t to switch")

	body := m.grading.view()
	if m.tab == tabHistory {
		body = m.history.view()
	}

	return strings.Join([]string{header, tabs, body}, "\n\n")
}
