package main

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type gradingFocus int

const (
	focusPath gradingFocus = iota
	focusGrid
	focusDate
)

// gradingModel drives the upload → edit → export flow.
type gradingModel struct {
	client      *apiClient
	downloadDir string
	reportPath  string
	dbDSN       string

	pathInput textinput.Model
	dateInput textinput.Model
	grid      gridModel

	roster           []Trainee
	originalFileName string
	topper           int

	focus      gradingFocus
	uploading  bool
	generating bool
	spin       spinner.Model
	status     string
	statusErr  bool
}

type uploadResultMsg struct {
	students []Trainee
	path     string
	err      error
}

type generateResultMsg struct {
	filename   string
	path       string
	archiveErr error
	err        error
}

type summaryWrittenMsg struct {
	path string
	err  error
}

func newGradingModel(client *apiClient, downloadDir, reportPath, dbDSN string) gradingModel {
	pathInput := textinput.New()
	pathInput.Placeholder = "path/to/roster.xlsx"
	pathInput.Width = 48
	pathInput.Focus()

	dateInput := textinput.New()
	dateInput.Placeholder = "YYYY-MM-DD (optional date override)"
	dateInput.Width = 36

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return gradingModel{
		client:      client,
		downloadDir: downloadDir,
		reportPath:  reportPath,
		dbDSN:       dbDSN,
		pathInput:   pathInput,
		dateInput:   dateInput,
		grid:        newGridModel(),
		topper:      -1,
		focus:       focusPath,
		spin:        s,
	}
}

func (m gradingModel) capturing() bool {
	return m.focus == focusPath || m.focus == focusDate || m.grid.editing
}

func (m gradingModel) update(msg tea.Msg) (gradingModel, tea.Cmd) {
	switch msg := msg.(type) {
	case uploadResultMsg:
		m.uploading = false
		if msg.err != nil {
			log.Printf("upload failed: %v", msg.err)
			m.status = "Upload failed. Please try again. (" + msg.err.Error() + ")"
			m.statusErr = true
			return m, nil
		}
		m.roster = msg.students
		m.originalFileName = filepath.Base(msg.path)
		m.grid.setRoster(m.roster)
		m.grid.setActive(m.grid.active)
		m.topper = topPerformer(m.roster)
		m.focus = focusGrid
		m.pathInput.Blur()
		m.status = fmt.Sprintf("Loaded %d trainees from %s.", len(m.roster), m.originalFileName)
		m.statusErr = false
		return m, nil

	case generateResultMsg:
		m.generating = false
		if msg.err != nil {
			log.Printf("generate failed: %v", msg.err)
			m.status = "Report generation failed. (" + msg.err.Error() + ")"
			m.statusErr = true
			return m, nil
		}
		m.status = fmt.Sprintf("Report %s saved to %s.", msg.filename, msg.path)
		m.statusErr = false
		if msg.archiveErr != nil {
			log.Printf("snapshot archive failed: %v", msg.archiveErr)
			m.status += " Snapshot archive failed: " + msg.archiveErr.Error()
		}
		return m, nil

	case summaryWrittenMsg:
		if msg.err != nil {
			log.Printf("summary report failed: %v", msg.err)
			m.status = "Summary report failed. (" + msg.err.Error() + ")"
			m.statusErr = true
			return m, nil
		}
		m.status = "Summary written to " + msg.path + "."
		m.statusErr = false
		return m, nil

	case spinner.TickMsg:
		if m.uploading || m.generating {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateInputs(msg)
}

func (m gradingModel) handleKey(msg tea.KeyMsg) (gradingModel, tea.Cmd) {
	if m.grid.editing {
		var cmd tea.Cmd
		var changed bool
		m.grid, cmd, changed = m.grid.update(msg)
		if changed {
			m.topper = topPerformer(m.roster)
		}
		return m, cmd
	}

	if msg.Type == tea.KeyTab {
		return m.cycleFocus(), nil
	}

	switch m.focus {
	case focusPath:
		if msg.Type == tea.KeyEnter {
			return m.startUpload()
		}
		var cmd tea.Cmd
		m.pathInput, cmd = m.pathInput.Update(msg)
		return m, cmd

	case focusDate:
		if msg.Type == tea.KeyEnter || msg.Type == tea.KeyEsc {
			m.dateInput.Blur()
			m.focus = focusGrid
			return m, nil
		}
		var cmd tea.Cmd
		m.dateInput, cmd = m.dateInput.Update(msg)
		return m, cmd

	default:
		switch msg.String() {
		case "v":
			m.grid.setActive(nextDepartment(m.grid.active))
			return m, nil
		case "g":
			return m.startGenerate()
		case "w":
			return m.startSummary()
		}
		var cmd tea.Cmd
		var changed bool
		m.grid, cmd, changed = m.grid.update(msg)
		if changed {
			m.topper = topPerformer(m.roster)
		}
		return m, cmd
	}
}

func (m gradingModel) cycleFocus() gradingModel {
	switch m.focus {
	case focusPath:
		m.pathInput.Blur()
		if len(m.roster) > 0 {
			m.focus = focusGrid
		} else {
			m.focus = focusDate
			m.dateInput.Focus()
		}
	case focusGrid:
		m.focus = focusDate
		m.dateInput.Focus()
	default:
		m.dateInput.Blur()
		m.focus = focusPath
		m.pathInput.Focus()
	}
	return m
}

func (m gradingModel) startUpload() (gradingModel, tea.Cmd) {
	if m.uploading {
		return m, nil
	}
	path := strings.TrimSpace(m.pathInput.Value())
	if path == "" {
		m.status = "Please select a file first."
		m.statusErr = true
		return m, nil
	}
	m.uploading = true
	m.status = ""
	return m, tea.Batch(m.spin.Tick, uploadRosterCmd(m.client, path))
}

func (m gradingModel) startGenerate() (gradingModel, tea.Cmd) {
	if m.generating {
		return m, nil
	}
	if len(m.roster) == 0 {
		m.status = "No trainee rows to export. Upload a file first."
		m.statusErr = true
		return m, nil
	}
	m.generating = true
	m.status = ""
	students := applyDateOverride(m.roster, m.dateInput.Value())
	fallback := reportFallbackName(m.originalFileName, false)
	stats := buildRosterStats(students, time.Now())
	return m, tea.Batch(m.spin.Tick, generateReportCmd(m.client, students, m.originalFileName, fallback, m.downloadDir, m.dbDSN, stats))
}

func (m gradingModel) startSummary() (gradingModel, tea.Cmd) {
	if len(m.roster) == 0 {
		m.status = "Nothing to summarize yet."
		m.statusErr = true
		return m, nil
	}
	stats := buildRosterStats(m.roster, time.Now())
	path := m.reportPath
	return m, func() tea.Msg {
		return summaryWrittenMsg{path: path, err: writeSummaryReport(path, "", stats)}
	}
}

func (m gradingModel) updateInputs(msg tea.Msg) (gradingModel, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	cmds = append(cmds, cmd)
	m.dateInput, cmd = m.dateInput.Update(msg)
	cmds = append(cmds, cmd)
	m.grid.cellInput, cmd = m.grid.cellInput.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func nextDepartment(dept Department) Department {
	for i, d := range departments {
		if d == dept {
			return departments[(i+1)%len(departments)]
		}
	}
	return DeptTechnical
}

func uploadRosterCmd(c *apiClient, path string) tea.Cmd {
	return func() tea.Msg {
		students, err := c.UploadRoster(path)
		return uploadResultMsg{students: students, path: path, err: err}
	}
}

func generateReportCmd(c *apiClient, students []Trainee, originalName, fallback, downloadDir, dsn string, stats rosterStats) tea.Cmd {
	return func() tea.Msg {
		name, content, err := c.GenerateReport(students, originalName, fallback)
		if err != nil {
			return generateResultMsg{err: err}
		}
		path, err := saveDownload(downloadDir, name, content)
		if err != nil {
			return generateResultMsg{err: err}
		}
		var archiveErr error
		if archiveConfigured(dsn) {
			archiveErr = archiveSnapshot(students, stats, name, dsn)
		}
		return generateResultMsg{filename: name, path: path, archiveErr: archiveErr}
	}
}

func (m gradingModel) view() string {
	var b strings.Builder

	uploadLine := "Roster file: " + m.pathInput.View()
	if m.uploading {
		uploadLine += "  " + m.spin.View() + " Uploading..."
	} else if m.focus == focusPath {
		uploadLine += "  " + subtle.Render("enter to upload")
	}
	b.WriteString(uploadLine + "\n")

	if len(m.roster) > 0 {
		b.WriteString("\n" + m.departmentTabs() + "\n")

		if m.topper >= 0 {
			top := m.roster[m.topper]
			b.WriteString(topperStyle.Render(fmt.Sprintf("Top Performer: %s · Overall %s · %s · %s",
				fullName(top), top.OverAll, top.Department, top.Strand)) + "\n")
		}

		b.WriteString(panel.Render(m.grid.view()) + "\n")

		dateLine := "Export date override: " + m.dateInput.View()
		if m.generating {
			dateLine += "  " + m.spin.View() + " Generating..."
		}
		b.WriteString(dateLine + "\n")
	}

	if m.status != "" {
		if m.statusErr {
			b.WriteString(statusBad.Render(m.status) + "\n")
		} else {
			b.WriteString(statusGood.Render(m.status) + "\n")
		}
	}

	help := "tab focus · enter edit cell · v department · g generate report · w summary · t history · q quit"
	b.WriteString(subtle.Render(help))
	return b.String()
}

func (m gradingModel) departmentTabs() string {
	tabs := make([]string, 0, len(departments))
	for _, dept := range departments {
		label := fmt.Sprintf("%s (%d)", dept, len(filterIndices(m.roster, dept)))
		if dept == m.grid.active {
			tabs = append(tabs, tabActive.Render(label))
		} else {
			tabs = append(tabs, tabInactive.Render(label))
		}
	}
	return strings.Join(tabs, " ")
}
