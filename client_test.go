package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempRoster(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trainees.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("fake spreadsheet bytes"), 0o644))
	return path
}

func TestUploadRosterAttachesPlaceholders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/upload/trainee", r.URL.Path)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err, "expected a multipart field named file")
		defer file.Close()
		assert.Equal(t, "trainees.xlsx", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"students": [
			{"last_name": "Reyes", "first_name": "Ana", "department": "Production", "strand": "TVL", "school": "SNHS", "batch": "2026-A", "date_of_immersion": "2026-02-02", "status": "active"},
			{"last_name": "Cruz", "first_name": "Ben", "department": "IT"}
		]}`))
	}))
	defer server.Close()

	client := newAPIClient(server.URL)
	students, err := client.UploadRoster(writeTempRoster(t))
	require.NoError(t, err)
	require.Len(t, students, 2)

	assert.Equal(t, "Reyes", students[0].LastName)
	assert.Equal(t, "2026-A", students[0].Batch)
	assert.Len(t, students[0].Grades, 18, "production rows get 18 placeholder slots")
	assert.Len(t, students[1].Grades, 15, "everyone else gets 15")
}

func TestUploadRosterBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "could not parse file"}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newAPIClient(server.URL)
	_, err := client.UploadRoster(writeTempRoster(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestGenerateReportUsesDispositionFilename(t *testing.T) {
	content := []byte("xlsx bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate/excel", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "trainees.xlsx", payload["originalFileName"])
		students, ok := payload["students"].([]any)
		require.True(t, ok)
		require.Len(t, students, 1)
		row, ok := students[0].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "88", row["WI"], "grade keys travel at the top level")

		w.Header().Set("Content-Disposition", `attachment; filename="BATCH-2026-REPORT.xlsx"`)
		_, _ = w.Write(content)
	}))
	defer server.Close()

	client := newAPIClient(server.URL)
	students := []Trainee{{LastName: "Reyes", Department: "IT", OverAll: "91.5", Grades: map[string]string{"WI": "88"}}}
	name, got, err := client.GenerateReport(students, "trainees.xlsx", "trainees-REPORT.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "BATCH-2026-REPORT.xlsx", name)
	assert.Equal(t, content, got)
}

func TestGenerateReportFallsBackWithoutHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("xlsx"))
	}))
	defer server.Close()

	client := newAPIClient(server.URL)
	name, _, err := client.GenerateReport([]Trainee{{LastName: "A"}}, "trainees.xlsx", "trainees-REPORT.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "trainees-REPORT.xlsx", name)
}

func TestGenerateReportRejectsEmptyRoster(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	client := newAPIClient(server.URL)
	_, _, err := client.GenerateReport(nil, "", "fallback.xlsx")
	require.Error(t, err)
	assert.Zero(t, requests, "an empty roster must never reach the backend")
}

func TestHistoryCRUD(t *testing.T) {
	var gotUpdate map[string]any
	deleted := false

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/generated-files", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"files": [
			{"id": 1, "filename": "trainees-REPORT.xlsx", "school": "SNHS", "batch": "2026-A",
			 "date_of_immersion": "2026-02-02", "student_count": 2, "average_performance": 88.5,
			 "created_at": "2026-02-03T08:00:00Z"}
		]}`))
	})
	mux.HandleFunc("GET /api/generated-files/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"file": {"id": 1, "filename": "trainees-REPORT.xlsx", "batch": "2026-A", "school": "SNHS", "date_of_immersion": "2026-02-02"},
			"students": [{"id": 11, "last_name": "Reyes", "department": "IT", "over_all": "91.5", "WI": "88"}]
		}`))
	})
	mux.HandleFunc("PUT /api/generated-files/1", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotUpdate))
		_, _ = w.Write([]byte(`{"id": 1}`))
	})
	mux.HandleFunc("DELETE /api/generated-files/1", func(w http.ResponseWriter, r *http.Request) {
		deleted = true
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/generated-files/1/download", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("stored xlsx"))
	})

	server := httptest.NewServer(mux)
	defer server.Close()
	client := newAPIClient(server.URL)

	files, err := client.ListGeneratedFiles()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, int64(1), files[0].ID)
	assert.Equal(t, 88.5, files[0].AveragePerformance)

	file, students, err := client.GetGeneratedFile(1)
	require.NoError(t, err)
	assert.Equal(t, "trainees-REPORT.xlsx", file.Filename)
	require.Len(t, students, 1)
	assert.Equal(t, int64(11), students[0].ID)
	assert.Equal(t, "88", students[0].Grades["WI"])

	require.NoError(t, client.UpdateGeneratedFile(1, students, file.Batch, file.School, file.DateOfImmersion))
	assert.Equal(t, "2026-A", gotUpdate["batch"])
	assert.Equal(t, "SNHS", gotUpdate["school"])
	assert.Equal(t, "2026-02-02", gotUpdate["date_of_immersion"])
	rows, ok := gotUpdate["students"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 1)
	row, ok := rows[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(11), row["id"], "persisted rows keep their id on update")
	assert.Equal(t, "88", row["WI"])

	content, err := client.DownloadGeneratedFile(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("stored xlsx"), content)

	require.NoError(t, client.DeleteGeneratedFile(1))
	assert.True(t, deleted)
}

func TestHistoryErrorsSurface(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()
	client := newAPIClient(server.URL)

	_, err := client.ListGeneratedFiles()
	require.Error(t, err)

	_, _, err = client.GetGeneratedFile(9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "9")

	require.Error(t, client.DeleteGeneratedFile(9))
	require.Error(t, client.UpdateGeneratedFile(9, nil, "", "", ""))
	_, err = client.DownloadGeneratedFile(9)
	require.Error(t, err)
}

func TestFilenameFromDisposition(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{`attachment; filename="BATCH-REPORT.xlsx"`, "BATCH-REPORT.xlsx"},
		{`attachment; filename=plain.xlsx`, "plain.xlsx"},
		{"", "fallback.xlsx"},
		{"attachment", "fallback.xlsx"},
	}
	for _, c := range cases {
		if got := filenameFromDisposition(c.header, "fallback.xlsx"); got != c.want {
			t.Fatalf("filenameFromDisposition(%q) = %q, expected %q", c.header, got, c.want)
		}
	}
}

func TestReportFallbackName(t *testing.T) {
	assert.Equal(t, "trainees-REPORT.xlsx", reportFallbackName("trainees.xlsx", false))
	assert.Equal(t, "trainees-UPDATED-REPORT.xlsx", reportFallbackName("trainees.xlsx", true))
	assert.Equal(t, "IMMERSION-GENERATED.xlsx", reportFallbackName("", false))
}

func TestApplyDateOverride(t *testing.T) {
	roster := []Trainee{{LastName: "A", DateOfImmersion: "2026-01-01"}}
	out := applyDateOverride(roster, "2026-03-03")
	assert.Equal(t, "2026-03-03", out[0].DateOfImmersion)
	assert.Equal(t, "2026-01-01", roster[0].DateOfImmersion, "live roster stays untouched")

	same := applyDateOverride(roster, "  ")
	assert.Equal(t, "2026-01-01", same[0].DateOfImmersion)
}

func TestSaveDownload(t *testing.T) {
	dir := t.TempDir()
	path, err := saveDownload(dir, "../escape.xlsx", []byte("bytes"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.xlsx"), path, "filenames are flattened into the download dir")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes"), content)
}
