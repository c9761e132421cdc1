package main

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type historyItem struct {
	file GeneratedFile
}

func (h historyItem) Title() string { return h.file.Filename }
func (h historyItem) Description() string {
	return fmt.Sprintf("%s · %s · %d trainees · avg %0.1f · %s",
		h.file.Batch, h.file.School, h.file.StudentCount, h.file.AveragePerformance, h.file.CreatedAt)
}
func (h historyItem) FilterValue() string { return h.file.Filename }

// historyModel drives the generated-report browser: list, view/edit,
// update, delete, and re-download. The backend owns the records; this
// holds only the currently displayed list and selection.
type historyModel struct {
	client      *apiClient
	downloadDir string
	dbDSN       string

	list    list.Model
	loaded  bool
	loading bool
	listErr string

	selected *GeneratedFile
	students []Trainee
	grid     gridModel
	editing  bool

	dateInput   textinput.Model
	dateFocused bool

	fetching    bool
	saving      bool
	deleting    bool
	downloading bool
	exporting   bool

	spin      spinner.Model
	status    string
	statusErr bool
}

type historyListMsg struct {
	files []GeneratedFile
	err   error
}

type historyFileMsg struct {
	file     GeneratedFile
	students []Trainee
	err      error
}

type historySaveMsg struct {
	id  int64
	err error
}

type historyDeleteMsg struct {
	id  int64
	err error
}

type historyDownloadMsg struct {
	path string
	err  error
}

type historyExportMsg struct {
	filename   string
	path       string
	archiveErr error
	err        error
}

func newHistoryModel(client *apiClient, downloadDir, dbDSN string) historyModel {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Generated Reports"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)

	dateInput := textinput.New()
	dateInput.Placeholder = "YYYY-MM-DD (optional date override)"
	dateInput.Width = 36

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return historyModel{
		client:      client,
		downloadDir: downloadDir,
		dbDSN:       dbDSN,
		list:        l,
		grid:        newGridModel(),
		dateInput:   dateInput,
		spin:        s,
	}
}

func (m historyModel) capturing() bool {
	if m.editing {
		return m.grid.editing || m.dateFocused
	}
	return m.list.FilterState() == list.Filtering
}

// clearLocal drops history-side selection state. Called when the user
// switches back to the grading tab; the fetched list itself is kept.
func (m historyModel) clearLocal() historyModel {
	m.editing = false
	m.selected = nil
	m.students = nil
	m.dateFocused = false
	m.dateInput.Reset()
	m.dateInput.Blur()
	m.status = ""
	m.statusErr = false
	return m
}

func (m historyModel) update(msg tea.Msg) (historyModel, tea.Cmd) {
	switch msg := msg.(type) {
	case historyListMsg:
		m.loading = false
		m.loaded = true
		if msg.err != nil {
			log.Printf("history list failed: %v", msg.err)
			m.listErr = msg.err.Error()
			return m, nil
		}
		m.listErr = ""
		items := make([]list.Item, 0, len(msg.files))
		for _, f := range msg.files {
			items = append(items, historyItem{file: f})
		}
		return m, m.list.SetItems(items)

	case historyFileMsg:
		m.fetching = false
		if msg.err != nil {
			log.Printf("history fetch failed: %v", msg.err)
			m.status = "Could not load report. (" + msg.err.Error() + ")"
			m.statusErr = true
			return m, nil
		}
		file := msg.file
		m.selected = &file
		m.students = msg.students
		m.grid.setRoster(m.students)
		m.grid.setActive(DeptTechnical)
		m.editing = true
		m.dateInput.Reset()
		m.dateFocused = false
		m.status = ""
		m.statusErr = false
		return m, nil

	case historySaveMsg:
		m.saving = false
		if msg.err != nil {
			log.Printf("history update failed: %v", msg.err)
			m.status = "Update failed. (" + msg.err.Error() + ")"
			m.statusErr = true
			return m, nil
		}
		m.editing = false
		m.selected = nil
		m.students = nil
		m.status = fmt.Sprintf("Report #%d updated.", msg.id)
		m.statusErr = false
		return m, nil

	case historyDeleteMsg:
		m.deleting = false
		if msg.err != nil {
			log.Printf("history delete failed: %v", msg.err)
			m.status = "Delete failed. (" + msg.err.Error() + ")"
			m.statusErr = true
			return m, nil
		}
		m.removeItem(msg.id)
		if m.selected != nil && m.selected.ID == msg.id {
			m.selected = nil
			m.students = nil
			m.editing = false
		}
		m.status = "Report deleted."
		m.statusErr = false
		return m, nil

	case historyDownloadMsg:
		m.downloading = false
		if msg.err != nil {
			log.Printf("history download failed: %v", msg.err)
			m.status = "Download failed. (" + msg.err.Error() + ")"
			m.statusErr = true
			return m, nil
		}
		m.status = "Saved to " + msg.path + "."
		m.statusErr = false
		return m, nil

	case historyExportMsg:
		m.exporting = false
		if msg.err != nil {
			log.Printf("history export failed: %v", msg.err)
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

	case spinner.TickMsg:
		if m.busy() {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.editing {
		var cmds []tea.Cmd
		var cmd tea.Cmd
		m.dateInput, cmd = m.dateInput.Update(msg)
		cmds = append(cmds, cmd)
		m.grid.cellInput, cmd = m.grid.cellInput.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m historyModel) busy() bool {
	return m.loading || m.fetching || m.saving || m.deleting || m.downloading || m.exporting
}

func (m *historyModel) removeItem(id int64) {
	for i, item := range m.list.Items() {
		if h, ok := item.(historyItem); ok && h.file.ID == id {
			m.list.RemoveItem(i)
			return
		}
	}
}

func (m historyModel) handleKey(msg tea.KeyMsg) (historyModel, tea.Cmd) {
	if m.editing {
		return m.handleEditKey(msg)
	}
	return m.handleListKey(msg)
}

func (m historyModel) handleListKey(msg tea.KeyMsg) (historyModel, tea.Cmd) {
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "enter":
		if item, ok := m.list.SelectedItem().(historyItem); ok && !m.fetching {
			m.fetching = true
			m.status = ""
			return m, tea.Batch(m.spin.Tick, fetchHistoryCmd(m.client, item.file.ID))
		}
		return m, nil
	case "r":
		if !m.loading {
			m.loading = true
			m.listErr = ""
			return m, tea.Batch(m.spin.Tick, loadHistoryCmd(m.client))
		}
		return m, nil
	case "d":
		if item, ok := m.list.SelectedItem().(historyItem); ok && !m.downloading {
			m.downloading = true
			m.status = ""
			return m, tea.Batch(m.spin.Tick, downloadHistoryCmd(m.client, item.file.ID, item.file.Filename, m.downloadDir))
		}
		return m, nil
	case "x":
		if item, ok := m.list.SelectedItem().(historyItem); ok && !m.deleting {
			m.deleting = true
			m.status = ""
			return m, tea.Batch(m.spin.Tick, deleteHistoryCmd(m.client, item.file.ID))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m historyModel) handleEditKey(msg tea.KeyMsg) (historyModel, tea.Cmd) {
	if m.grid.editing {
		var cmd tea.Cmd
		m.grid, cmd, _ = m.grid.update(msg)
		return m, cmd
	}

	if msg.Type == tea.KeyTab {
		m.dateFocused = !m.dateFocused
		if m.dateFocused {
			m.dateInput.Focus()
		} else {
			m.dateInput.Blur()
		}
		return m, nil
	}

	if m.dateFocused {
		if msg.Type == tea.KeyEnter || msg.Type == tea.KeyEsc {
			m.dateFocused = false
			m.dateInput.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.dateInput, cmd = m.dateInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "esc":
		m.editing = false
		m.selected = nil
		m.students = nil
		m.status = ""
		return m, nil
	case "v":
		m.grid.setActive(nextDepartment(m.grid.active))
		return m, nil
	case "s":
		return m.startSave()
	case "g":
		return m.startExport()
	}

	var cmd tea.Cmd
	m.grid, cmd, _ = m.grid.update(msg)
	return m, cmd
}

func (m historyModel) startSave() (historyModel, tea.Cmd) {
	if m.saving || m.selected == nil {
		return m, nil
	}
	m.saving = true
	m.status = ""
	f := *m.selected
	return m, tea.Batch(m.spin.Tick, saveHistoryCmd(m.client, f, m.students))
}

func (m historyModel) startExport() (historyModel, tea.Cmd) {
	if m.exporting || m.selected == nil {
		return m, nil
	}
	if len(m.students) == 0 {
		m.status = "No trainee rows to export."
		m.statusErr = true
		return m, nil
	}
	m.exporting = true
	m.status = ""
	students := applyDateOverride(m.students, m.dateInput.Value())
	fallback := reportFallbackName(m.selected.Filename, true)
	stats := buildRosterStats(students, time.Now())
	return m, tea.Batch(m.spin.Tick, exportHistoryCmd(m.client, students, m.selected.Filename, fallback, m.downloadDir, m.dbDSN, stats))
}

func loadHistoryCmd(c *apiClient) tea.Cmd {
	return func() tea.Msg {
		files, err := c.ListGeneratedFiles()
		return historyListMsg{files: files, err: err}
	}
}

func fetchHistoryCmd(c *apiClient, id int64) tea.Cmd {
	return func() tea.Msg {
		file, students, err := c.GetGeneratedFile(id)
		return historyFileMsg{file: file, students: students, err: err}
	}
}

func saveHistoryCmd(c *apiClient, f GeneratedFile, students []Trainee) tea.Cmd {
	return func() tea.Msg {
		err := c.UpdateGeneratedFile(f.ID, students, f.Batch, f.School, f.DateOfImmersion)
		return historySaveMsg{id: f.ID, err: err}
	}
}

func deleteHistoryCmd(c *apiClient, id int64) tea.Cmd {
	return func() tea.Msg {
		return historyDeleteMsg{id: id, err: c.DeleteGeneratedFile(id)}
	}
}

func downloadHistoryCmd(c *apiClient, id int64, filename, dir string) tea.Cmd {
	return func() tea.Msg {
		content, err := c.DownloadGeneratedFile(id)
		if err != nil {
			return historyDownloadMsg{err: err}
		}
		path, err := saveDownload(dir, filename, content)
		return historyDownloadMsg{path: path, err: err}
	}
}

func exportHistoryCmd(c *apiClient, students []Trainee, originalName, fallback, downloadDir, dsn string, stats rosterStats) tea.Cmd {
	return func() tea.Msg {
		name, content, err := c.GenerateReport(students, originalName, fallback)
		if err != nil {
			return historyExportMsg{err: err}
		}
		path, err := saveDownload(downloadDir, name, content)
		if err != nil {
			return historyExportMsg{err: err}
		}
		var archiveErr error
		if archiveConfigured(dsn) {
			archiveErr = archiveSnapshot(students, stats, name, dsn)
		}
		return historyExportMsg{filename: name, path: path, archiveErr: archiveErr}
	}
}

func (m historyModel) view() string {
	if m.editing && m.selected != nil {
		return m.editView()
	}
	return m.listView()
}

func (m historyModel) listView() string {
	var b strings.Builder

	switch {
	case m.loading && !m.loaded:
		b.WriteString(m.spin.View() + " Loading report history...\n")
	case m.listErr != "":
		b.WriteString(statusBad.Render("Could not load history: "+m.listErr) + "\n")
		b.WriteString(subtle.Render("press r to retry") + "\n")
	case len(m.list.Items()) == 0:
		b.WriteString(subtle.Render("No generated reports yet.") + "\n")
	default:
		b.WriteString(m.list.View() + "\n")
	}

	if m.busy() && m.loaded {
		b.WriteString(m.spin.View() + " Working...\n")
	}
	if m.status != "" {
		if m.statusErr {
			b.WriteString(statusBad.Render(m.status) + "\n")
		} else {
			b.WriteString(statusGood.Render(m.status) + "\n")
		}
	}
	b.WriteString(subtle.Render("enter open · d download · x delete · r refresh · / filter · t grading · q quit"))
	return b.String()
}

func (m historyModel) editView() string {
	var b strings.Builder
	f := m.selected

	b.WriteString(headerStyle.Render(f.Filename) + "\n")
	b.WriteString(subtle.Render(fmt.Sprintf("Batch %s · %s · %s · %d trainees · avg %0.1f",
		f.Batch, f.School, f.DateOfImmersion, f.StudentCount, f.AveragePerformance)) + "\n\n")

	b.WriteString(m.departmentTabs() + "\n")
	b.WriteString(panel.Render(m.grid.view()) + "\n")

	dateLine := "Export date override: " + m.dateInput.View()
	if m.busy() {
		dateLine += "  " + m.spin.View() + " Working..."
	}
	b.WriteString(dateLine + "\n")

	if m.status != "" {
		if m.statusErr {
			b.WriteString(statusBad.Render(m.status) + "\n")
		} else {
			b.WriteString(statusGood.Render(m.status) + "\n")
		}
	}
	b.WriteString(subtle.Render("enter edit cell · v department · s save changes · g regenerate report · esc back"))
	return b.String()
}

func (m historyModel) departmentTabs() string {
	tabs := make([]string, 0, len(departments))
	for _, dept := range departments {
		label := fmt.Sprintf("%s (%d)", dept, len(filterIndices(m.students, dept)))
		if dept == m.grid.active {
			tabs = append(tabs, tabActive.Render(label))
		} else {
			tabs = append(tabs, tabInactive.Render(label))
		}
	}
	return strings.Join(tabs, " ")
}
