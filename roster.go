package main

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Trainee is one roster row. Identity fields come from the uploaded
// spreadsheet; grade fields are dynamic and keyed by short criterion codes.
// On the wire a trainee is a single flat JSON object, so marshaling lifts
// the grade map into top-level keys and unmarshaling folds unknown keys
// back into it.
type Trainee struct {
	ID              int64
	LastName        string
	FirstName       string
	MiddleName      string
	Strand          string
	Department      string
	School          string
	Batch           string
	DateOfImmersion string
	Status          string
	OverAll         string
	Grades          map[string]string
}

// Department is the derived grading bucket, never a stored field.
type Department string

const (
	DeptTechnical  Department = "TECHNICAL"
	DeptProduction Department = "PRODUCTION"
	DeptSupport    Department = "SUPPORT"
)

var departments = []Department{DeptTechnical, DeptProduction, DeptSupport}

// classifyDepartment normalizes the raw department string and maps it to a
// bucket. SUPPORT is the catch-all for anything that is neither technical
// nor production.
func classifyDepartment(raw string) Department {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "TECHNICAL", "IT":
		return DeptTechnical
	case "PRODUCTION", "PROD":
		return DeptProduction
	default:
		return DeptSupport
	}
}

type fieldGroup struct {
	Label  string
	Fields []string
}

var sharedGroups = []fieldGroup{
	{Label: "NTOP", Fields: []string{"WI", "CO", "5S", "BO", "CBO", "SDG"}},
	{Label: "WVS", Fields: []string{"OHSA", "WE", "UJC", "ISO", "PO", "HR"}},
}

var deptGroups = map[Department][]fieldGroup{
	DeptTechnical: {
		{Label: "EQUIP", Fields: []string{"AppDev"}},
		{Label: "ASSESSMENT", Fields: []string{"Tech", "DS"}},
	},
	DeptProduction: {
		{Label: "EQUIP", Fields: []string{"WI2", "ELEX", "CM", "SPC"}},
		{Label: "ASSESSMENT", Fields: []string{"PROD", "DS"}},
	},
	DeptSupport: {
		{Label: "EQUIP", Fields: []string{"PerDev"}},
		{Label: "ASSESSMENT", Fields: []string{"Supp", "DS"}},
	},
}

// gradingGroups returns the ordered field groups rendered for a bucket.
func gradingGroups(dept Department) []fieldGroup {
	groups := make([]fieldGroup, 0, len(sharedGroups)+2)
	groups = append(groups, sharedGroups...)
	groups = append(groups, deptGroups[dept]...)
	return groups
}

// gradingFields flattens the groups into the ordered editable field codes.
func gradingFields(dept Department) []string {
	fields := make([]string, 0, 18)
	for _, group := range gradingGroups(dept) {
		fields = append(fields, group.Fields...)
	}
	return fields
}

// attachPlaceholderGrades adds the empty numbered grade slots the loader
// has always attached: 18 when the normalized department string is exactly
// PRODUCTION, 15 otherwise. The slots are not rendered but they ride along
// on every export, so the count must stay stable.
func attachPlaceholderGrades(t *Trainee) {
	count := 15
	if strings.ToUpper(strings.TrimSpace(t.Department)) == "PRODUCTION" {
		count = 18
	}
	if t.Grades == nil {
		t.Grades = make(map[string]string, count)
	}
	for i := 1; i <= count; i++ {
		key := fmt.Sprintf("%dG", i)
		if _, ok := t.Grades[key]; !ok {
			t.Grades[key] = ""
		}
	}
}

const overAllField = "over_all"

var (
	overAllPattern = regexp.MustCompile(`^\d*\.?\d{0,1}$`)
	wholePattern   = regexp.MustCompile(`^\d+$`)
)

// validGradeInput reports whether value is acceptable for field. over_all
// allows at most one fractional digit; every other grade field is a whole
// non-negative number. Empty clears a cell and is always fine.
func validGradeInput(field, value string) bool {
	if field == overAllField {
		return overAllPattern.MatchString(value)
	}
	return value == "" || wholePattern.MatchString(value)
}

// setGrade applies an edit to a single field of a single record. Invalid
// input is a silent no-op and the prior value stays. Returns whether the
// edit was accepted.
func setGrade(t *Trainee, field, value string) bool {
	if !validGradeInput(field, value) {
		return false
	}
	if field == overAllField {
		t.OverAll = value
		return true
	}
	if t.Grades == nil {
		t.Grades = make(map[string]string)
	}
	t.Grades[field] = value
	return true
}

// topPerformer scans the full roster for the record with the highest
// over_all strictly above zero. Ties keep the first record encountered;
// returns -1 when nothing qualifies.
func topPerformer(roster []Trainee) int {
	best := -1
	var bestScore float64
	for i := range roster {
		score, err := strconv.ParseFloat(roster[i].OverAll, 64)
		if err != nil || score <= 0 {
			continue
		}
		if best == -1 || score > bestScore {
			best = i
			bestScore = score
		}
	}
	return best
}

// filterIndices returns the roster indices that fall into the given bucket,
// preserving roster order.
func filterIndices(roster []Trainee, dept Department) []int {
	indices := make([]int, 0, len(roster))
	for i := range roster {
		if classifyDepartment(roster[i].Department) == dept {
			indices = append(indices, i)
		}
	}
	return indices
}

// filterByDepartment is the pure view of filterIndices.
func filterByDepartment(roster []Trainee, dept Department) []Trainee {
	indices := filterIndices(roster, dept)
	out := make([]Trainee, 0, len(indices))
	for _, i := range indices {
		out = append(out, roster[i])
	}
	return out
}

func fullName(t Trainee) string {
	name := strings.TrimSpace(t.LastName + ", " + t.FirstName)
	if t.MiddleName != "" {
		name += " " + t.MiddleName
	}
	return strings.TrimSuffix(strings.TrimSpace(name), ",")
}

type rosterStats struct {
	GeneratedAt    time.Time
	RecordCount    int
	Technical      int
	Production     int
	Support        int
	Graded         int
	AverageOverall float64
	TopName        string
	TopScore       string
	TopDepartment  string
}

func buildRosterStats(roster []Trainee, now time.Time) rosterStats {
	stats := rosterStats{
		GeneratedAt: now,
		RecordCount: len(roster),
	}
	var sum float64
	for i := range roster {
		switch classifyDepartment(roster[i].Department) {
		case DeptTechnical:
			stats.Technical++
		case DeptProduction:
			stats.Production++
		default:
			stats.Support++
		}
		if score, err := strconv.ParseFloat(roster[i].OverAll, 64); err == nil && score > 0 {
			stats.Graded++
			sum += score
		}
	}
	if stats.Graded > 0 {
		stats.AverageOverall = sum / float64(stats.Graded)
	}
	if top := topPerformer(roster); top >= 0 {
		stats.TopName = fullName(roster[top])
		stats.TopScore = roster[top].OverAll
		stats.TopDepartment = roster[top].Department
	}
	return stats
}

var identityKeys = map[string]bool{
	"id":                true,
	"last_name":         true,
	"first_name":        true,
	"middle_name":       true,
	"strand":            true,
	"department":        true,
	"school":            true,
	"batch":             true,
	"date_of_immersion": true,
	"status":            true,
	overAllField:        true,
}

func (t Trainee) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(t.Grades)+len(identityKeys))
	if t.ID != 0 {
		flat["id"] = t.ID
	}
	flat["last_name"] = t.LastName
	flat["first_name"] = t.FirstName
	flat["middle_name"] = t.MiddleName
	flat["strand"] = t.Strand
	flat["department"] = t.Department
	flat["school"] = t.School
	flat["batch"] = t.Batch
	flat["date_of_immersion"] = t.DateOfImmersion
	flat["status"] = t.Status
	flat[overAllField] = t.OverAll
	for field, value := range t.Grades {
		flat[field] = value
	}
	return json.Marshal(flat)
}

func (t *Trainee) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	*t = Trainee{Grades: make(map[string]string, len(flat))}
	for key, raw := range flat {
		switch key {
		case "id":
			var id int64
			if err := json.Unmarshal(raw, &id); err == nil {
				t.ID = id
			}
		case "last_name":
			t.LastName = jsonScalarString(raw)
		case "first_name":
			t.FirstName = jsonScalarString(raw)
		case "middle_name":
			t.MiddleName = jsonScalarString(raw)
		case "strand":
			t.Strand = jsonScalarString(raw)
		case "department":
			t.Department = jsonScalarString(raw)
		case "school":
			t.School = jsonScalarString(raw)
		case "batch":
			t.Batch = jsonScalarString(raw)
		case "date_of_immersion":
			t.DateOfImmersion = jsonScalarString(raw)
		case "status":
			t.Status = jsonScalarString(raw)
		case overAllField:
			t.OverAll = jsonScalarString(raw)
		default:
			t.Grades[key] = jsonScalarString(raw)
		}
	}
	return nil
}

// jsonScalarString coerces a scalar JSON value to the string form the form
// model works with. The backend emits spreadsheet cells as strings or bare
// numbers depending on how pandas parsed them.
func jsonScalarString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}
