package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type summaryReportPayload struct {
	GeneratedAt    string  `json:"generated_at"`
	RecordCount    int     `json:"record_count"`
	Technical      int     `json:"technical"`
	Production     int     `json:"production"`
	Support        int     `json:"support"`
	Graded         int     `json:"graded"`
	AverageOverall float64 `json:"average_overall"`
	TopPerformer   string  `json:"top_performer,omitempty"`
	TopScore       string  `json:"top_score,omitempty"`
	TopDepartment  string  `json:"top_department,omitempty"`
}

// writeSummaryReport renders the current roster stats to path as text or
// JSON. An empty format is inferred from the file extension.
func writeSummaryReport(path, format string, stats rosterStats) error {
	format, err := normalizeReportFormat(path, format)
	if err != nil {
		return err
	}
	if format == "json" {
		content, err := json.MarshalIndent(buildSummaryReportPayload(stats), "", "  ")
		if err != nil {
			return err
		}
		return writeReportOutput(path, content)
	}
	return writeReportOutput(path, []byte(buildSummaryReportText(stats)))
}

func normalizeReportFormat(path, format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		if strings.EqualFold(filepath.Ext(path), ".json") {
			return "json", nil
		}
		return "text", nil
	}
	if format != "json" && format != "text" {
		return "", fmt.Errorf("unsupported report format %q", format)
	}
	return format, nil
}

func writeReportOutput(path string, content []byte) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, content, 0o644)
}

func buildSummaryReportPayload(stats rosterStats) summaryReportPayload {
	return summaryReportPayload{
		GeneratedAt:    stats.GeneratedAt.Format(time.RFC3339),
		RecordCount:    stats.RecordCount,
		Technical:      stats.Technical,
		Production:     stats.Production,
		Support:        stats.Support,
		Graded:         stats.Graded,
		AverageOverall: stats.AverageOverall,
		TopPerformer:   stats.TopName,
		TopScore:       stats.TopScore,
		TopDepartment:  stats.TopDepartment,
	}
}

func buildSummaryReportText(stats rosterStats) string {
	topLine := "Top performer: none graded yet"
	if stats.TopName != "" {
		topLine = fmt.Sprintf("Top performer: %s (%s, %s)", stats.TopName, stats.TopScore, stats.TopDepartment)
	}
	lines := []string{
		"Immersion Grading Summary",
		fmt.Sprintf("Generated: %s", stats.GeneratedAt.Format(time.RFC3339)),
		"",
		fmt.Sprintf("Trainees: %d · Technical %d · Production %d · Support %d",
			stats.RecordCount,
			stats.Technical,
			stats.Production,
			stats.Support,
		),
		fmt.Sprintf("Graded: %d of %d · Average overall %0.1f", stats.Graded, stats.RecordCount, stats.AverageOverall),
		topLine,
	}
	return strings.Join(lines, "\n") + "\n"
}
