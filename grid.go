package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// gridModel is the editable grade table shared by the grading tab and the
// history editor. It shows the rows of one department bucket at a time and
// keeps a cursor over the editable columns (performance appraisal plus the
// bucket's criterion fields). Edits land directly in the owning roster
// slice.
type gridModel struct {
	roster    []Trainee
	indices   []int
	active    Department
	fields    []string
	row       int
	col       int
	editing   bool
	cellInput textinput.Model
}

type identityColumn struct {
	title string
	width int
	value func(Trainee) string
}

var identityColumns = []identityColumn{
	{"Name", 24, fullName},
	{"Strand", 8, func(t Trainee) string { return t.Strand }},
	{"Department", 11, func(t Trainee) string { return t.Department }},
	{"School", 16, func(t Trainee) string { return t.School }},
	{"Batch", 6, func(t Trainee) string { return t.Batch }},
	{"Date", 11, func(t Trainee) string { return t.DateOfImmersion }},
}

func newGridModel() gridModel {
	ti := textinput.New()
	ti.CharLimit = 6
	ti.Prompt = ""
	return gridModel{active: DeptTechnical, cellInput: ti}
}

func (g *gridModel) setRoster(roster []Trainee) {
	g.roster = roster
	g.refresh()
}

func (g *gridModel) setActive(dept Department) {
	g.active = dept
	g.editing = false
	g.row = 0
	g.col = 0
	g.refresh()
}

func (g *gridModel) refresh() {
	g.indices = filterIndices(g.roster, g.active)
	g.fields = append([]string{overAllField}, gradingFields(g.active)...)
	if g.row >= len(g.indices) {
		g.row = len(g.indices) - 1
	}
	if g.row < 0 {
		g.row = 0
	}
	if g.col >= len(g.fields) {
		g.col = len(g.fields) - 1
	}
	if g.col < 0 {
		g.col = 0
	}
}

func (g gridModel) cellValue(rosterIdx int, field string) string {
	if field == overAllField {
		return g.roster[rosterIdx].OverAll
	}
	return g.roster[rosterIdx].Grades[field]
}

// update handles grid navigation and cell editing. The boolean reports
// whether an edit was accepted, so the owner can recompute the top
// performer.
func (g gridModel) update(msg tea.Msg) (gridModel, tea.Cmd, bool) {
	if len(g.indices) == 0 {
		return g, nil, false
	}

	if g.editing {
		if key, ok := msg.(tea.KeyMsg); ok {
			switch key.Type {
			case tea.KeyEnter:
				g.editing = false
				g.cellInput.Blur()
				idx := g.indices[g.row]
				accepted := setGrade(&g.roster[idx], g.fields[g.col], strings.TrimSpace(g.cellInput.Value()))
				return g, nil, accepted
			case tea.KeyEsc:
				g.editing = false
				g.cellInput.Blur()
				return g, nil, false
			}
		}
		var cmd tea.Cmd
		g.cellInput, cmd = g.cellInput.Update(msg)
		return g, cmd, false
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "up", "k":
			if g.row > 0 {
				g.row--
			}
		case "down", "j":
			if g.row < len(g.indices)-1 {
				g.row++
			}
		case "left", "h":
			if g.col > 0 {
				g.col--
			}
		case "right", "l":
			if g.col < len(g.fields)-1 {
				g.col++
			}
		case "enter":
			g.editing = true
			g.cellInput.SetValue(g.cellValue(g.indices[g.row], g.fields[g.col]))
			g.cellInput.CursorEnd()
			g.cellInput.Focus()
			return g, textinput.Blink, false
		}
	}
	return g, nil, false
}

func fieldWidth(field string) int {
	header := fieldHeader(field)
	if len(header) < 4 {
		return 4
	}
	return len(header)
}

func fieldHeader(field string) string {
	if field == overAllField {
		return "PA"
	}
	return field
}

func padCell(s string, width int) string {
	runes := []rune(s)
	if len(runes) > width {
		return string(runes[:width])
	}
	return s + strings.Repeat(" ", width-len(runes))
}

func centerCell(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		return string(runes[:width])
	}
	left := (width - len(runes)) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-len(runes)-left)
}

func (g gridModel) view() string {
	if len(g.indices) == 0 {
		return subtle.Render(fmt.Sprintf("No %s trainees in this view.", strings.ToLower(string(g.active))))
	}

	var identityWidth int
	for _, col := range identityColumns {
		identityWidth += col.width + 1
	}

	// Group label row, then field code row, then data rows.
	var groupRow strings.Builder
	groupRow.WriteString(strings.Repeat(" ", identityWidth))
	groupRow.WriteString(centerCell("PA", fieldWidth(overAllField)+1))
	for _, group := range gradingGroups(g.active) {
		span := 0
		for _, field := range group.Fields {
			span += fieldWidth(field) + 1
		}
		groupRow.WriteString(groupStyle.Render(centerCell(group.Label, span)))
	}

	var headRow strings.Builder
	for _, col := range identityColumns {
		headRow.WriteString(colHeadStyle.Render(padCell(col.title, col.width)) + " ")
	}
	for _, field := range g.fields {
		headRow.WriteString(colHeadStyle.Render(padCell(fieldHeader(field), fieldWidth(field))) + " ")
	}

	rows := make([]string, 0, len(g.indices)+2)
	rows = append(rows, groupRow.String(), headRow.String())
	for r, idx := range g.indices {
		var row strings.Builder
		for _, col := range identityColumns {
			row.WriteString(subtle.Render(padCell(col.value(g.roster[idx]), col.width)) + " ")
		}
		for c, field := range g.fields {
			width := fieldWidth(field)
			if r == g.row && c == g.col {
				if g.editing {
					// The input renders its own cursor; padding its ANSI
					// output would truncate escape codes.
					g.cellInput.Width = width
					row.WriteString(g.cellInput.View() + " ")
				} else {
					row.WriteString(cursorStyle.Render(padCell(g.cellValue(idx, field), width)) + " ")
				}
				continue
			}
			row.WriteString(padCell(g.cellValue(idx, field), width) + " ")
		}
		rows = append(rows, row.String())
	}
	return strings.Join(rows, "\n")
}
