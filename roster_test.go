package main

import (
	"encoding/json"
	"testing"
	"time"
)

func TestAttachPlaceholderGradeCounts(t *testing.T) {
	cases := []struct {
		department string
		want       int
	}{
		{"PRODUCTION", 18},
		{" production ", 18},
		{"PROD", 15},
		{"TECHNICAL", 15},
		{"IT", 15},
		{"Maintenance", 15},
		{"", 15},
	}
	for _, c := range cases {
		trainee := Trainee{Department: c.department}
		attachPlaceholderGrades(&trainee)
		if len(trainee.Grades) != c.want {
			t.Fatalf("department %q: expected %d placeholder grades, got %d", c.department, c.want, len(trainee.Grades))
		}
		if v, ok := trainee.Grades["1G"]; !ok || v != "" {
			t.Fatalf("department %q: expected empty 1G placeholder", c.department)
		}
	}
}

func TestAttachPlaceholderGradesKeepsValues(t *testing.T) {
	trainee := Trainee{Department: "IT", Grades: map[string]string{"3G": "77"}}
	attachPlaceholderGrades(&trainee)
	if trainee.Grades["3G"] != "77" {
		t.Fatalf("expected existing placeholder value to survive, got %q", trainee.Grades["3G"])
	}
}

func TestClassifyDepartment(t *testing.T) {
	cases := []struct {
		raw  string
		want Department
	}{
		{"TECHNICAL", DeptTechnical},
		{"it", DeptTechnical},
		{" IT ", DeptTechnical},
		{"PRODUCTION", DeptProduction},
		{"prod", DeptProduction},
		{"SUPPORT", DeptSupport},
		{"HR", DeptSupport},
		{"maintenance", DeptSupport},
		{"", DeptSupport},
	}
	for _, c := range cases {
		if got := classifyDepartment(c.raw); got != c.want {
			t.Fatalf("classifyDepartment(%q) = %s, expected %s", c.raw, got, c.want)
		}
	}
}

func TestFilterPartitionsRoster(t *testing.T) {
	roster := []Trainee{
		{LastName: "A", Department: "IT"},
		{LastName: "B", Department: "PROD"},
		{LastName: "C", Department: "HR"},
		{LastName: "D", Department: "TECHNICAL"},
		{LastName: "E", Department: ""},
		{LastName: "F", Department: "Production"},
	}

	technical := filterByDepartment(roster, DeptTechnical)
	production := filterByDepartment(roster, DeptProduction)
	support := filterByDepartment(roster, DeptSupport)

	if len(technical)+len(production)+len(support) != len(roster) {
		t.Fatalf("partition sizes %d+%d+%d do not cover roster of %d",
			len(technical), len(production), len(support), len(roster))
	}
	if technical[0].LastName != "A" || technical[1].LastName != "D" {
		t.Fatalf("technical view lost roster order: %+v", technical)
	}
	if production[0].LastName != "B" || production[1].LastName != "F" {
		t.Fatalf("production view lost roster order: %+v", production)
	}
	if support[0].LastName != "C" || support[1].LastName != "E" {
		t.Fatalf("support view is not the complement: %+v", support)
	}
}

func TestTopPerformerFirstMaxWins(t *testing.T) {
	roster := []Trainee{
		{LastName: "None"},
		{LastName: "Zero", OverAll: "0"},
		{LastName: "Mid", OverAll: "85.5"},
		{LastName: "First", OverAll: "92.0"},
		{LastName: "Second", OverAll: "92.0"},
	}
	top := topPerformer(roster)
	if top != 3 {
		t.Fatalf("expected index 3 (first max), got %d", top)
	}
}

func TestTopPerformerClearsWhenNoneQualify(t *testing.T) {
	roster := []Trainee{
		{LastName: "A"},
		{LastName: "B", OverAll: "0"},
	}
	if top := topPerformer(roster); top != -1 {
		t.Fatalf("expected -1, got %d", top)
	}
}

func TestGradeValidation(t *testing.T) {
	cases := []struct {
		field string
		value string
		want  bool
	}{
		{overAllField, "85.5", true},
		{overAllField, "85.55", false},
		{overAllField, "85.", true},
		{overAllField, "", true},
		{overAllField, "abc", false},
		{"WI", "12", true},
		{"WI", "12.5", false},
		{"WI", "", true},
		{"WI", "-3", false},
		{"WI", "x", false},
	}
	for _, c := range cases {
		if got := validGradeInput(c.field, c.value); got != c.want {
			t.Fatalf("validGradeInput(%q, %q) = %v, expected %v", c.field, c.value, got, c.want)
		}
	}
}

func TestSetGradeRejectKeepsPrior(t *testing.T) {
	trainee := Trainee{OverAll: "90.0", Grades: map[string]string{"WI": "80"}}
	if setGrade(&trainee, overAllField, "85.55") {
		t.Fatal("expected invalid over_all edit to be rejected")
	}
	if trainee.OverAll != "90.0" {
		t.Fatalf("rejected edit changed value to %q", trainee.OverAll)
	}
	if setGrade(&trainee, "WI", "12.5") {
		t.Fatal("expected fractional WI edit to be rejected")
	}
	if trainee.Grades["WI"] != "80" {
		t.Fatalf("rejected edit changed WI to %q", trainee.Grades["WI"])
	}
	if !setGrade(&trainee, overAllField, "85.5") {
		t.Fatal("expected valid over_all edit to be accepted")
	}
	if trainee.OverAll != "85.5" {
		t.Fatalf("accepted edit not applied, got %q", trainee.OverAll)
	}
}

func TestGradingFieldsByDepartment(t *testing.T) {
	cases := []struct {
		dept   Department
		fields []string
	}{
		{DeptTechnical, []string{"WI", "CO", "5S", "BO", "CBO", "SDG", "OHSA", "WE", "UJC", "ISO", "PO", "HR", "AppDev", "Tech", "DS"}},
		{DeptProduction, []string{"WI", "CO", "5S", "BO", "CBO", "SDG", "OHSA", "WE", "UJC", "ISO", "PO", "HR", "WI2", "ELEX", "CM", "SPC", "PROD", "DS"}},
		{DeptSupport, []string{"WI", "CO", "5S", "BO", "CBO", "SDG", "OHSA", "WE", "UJC", "ISO", "PO", "HR", "PerDev", "Supp", "DS"}},
	}
	for _, c := range cases {
		got := gradingFields(c.dept)
		if len(got) != len(c.fields) {
			t.Fatalf("%s: expected %d fields, got %d (%v)", c.dept, len(c.fields), len(got), got)
		}
		for i := range got {
			if got[i] != c.fields[i] {
				t.Fatalf("%s: field %d is %q, expected %q", c.dept, i, got[i], c.fields[i])
			}
		}
	}
}

func TestTraineeJSONFlattens(t *testing.T) {
	trainee := Trainee{
		ID:         7,
		LastName:   "Reyes",
		FirstName:  "Ana",
		Department: "TECHNICAL",
		OverAll:    "91.5",
		Grades:     map[string]string{"WI": "88", "1G": ""},
	}
	data, err := json.Marshal(trainee)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatalf("unmarshal flat: %v", err)
	}
	if flat["WI"] != "88" {
		t.Fatalf("expected grade key WI at top level, got %v", flat["WI"])
	}
	if flat["over_all"] != "91.5" {
		t.Fatalf("expected over_all at top level, got %v", flat["over_all"])
	}
	if _, ok := flat["Grades"]; ok {
		t.Fatal("grade map leaked as a nested object")
	}
}

func TestTraineeJSONUnmarshalCoercesNumbers(t *testing.T) {
	raw := `{"id": 3, "last_name": "Cruz", "department": "PROD", "over_all": 87.5, "WI": 80, "SPC": "75"}`
	var trainee Trainee
	if err := json.Unmarshal([]byte(raw), &trainee); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if trainee.ID != 3 || trainee.LastName != "Cruz" {
		t.Fatalf("identity fields not parsed: %+v", trainee)
	}
	if trainee.OverAll != "87.5" {
		t.Fatalf("numeric over_all not coerced, got %q", trainee.OverAll)
	}
	if trainee.Grades["WI"] != "80" || trainee.Grades["SPC"] != "75" {
		t.Fatalf("grade keys not folded back: %+v", trainee.Grades)
	}
}

func TestBuildRosterStats(t *testing.T) {
	roster := []Trainee{
		{LastName: "A", FirstName: "One", Department: "IT", OverAll: "80.0"},
		{LastName: "B", Department: "PROD", OverAll: "90.0"},
		{LastName: "C", Department: "HR"},
	}
	stats := buildRosterStats(roster, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	if stats.RecordCount != 3 || stats.Technical != 1 || stats.Production != 1 || stats.Support != 1 {
		t.Fatalf("unexpected bucket counts: %+v", stats)
	}
	if stats.Graded != 2 {
		t.Fatalf("expected 2 graded, got %d", stats.Graded)
	}
	if stats.AverageOverall != 85.0 {
		t.Fatalf("expected average 85.0, got %0.2f", stats.AverageOverall)
	}
	if stats.TopName != "B" || stats.TopScore != "90.0" {
		t.Fatalf("unexpected top performer: %q %q", stats.TopName, stats.TopScore)
	}
}

func TestNextDepartmentCycles(t *testing.T) {
	if next := nextDepartment(DeptTechnical); next != DeptProduction {
		t.Fatalf("expected PRODUCTION after TECHNICAL, got %s", next)
	}
	if next := nextDepartment(DeptSupport); next != DeptTechnical {
		t.Fatalf("expected TECHNICAL after SUPPORT, got %s", next)
	}
}
