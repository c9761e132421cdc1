package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// GeneratedFile is the backend's metadata record for a persisted report.
type GeneratedFile struct {
	ID                 int64   `json:"id"`
	Filename           string  `json:"filename"`
	School             string  `json:"school"`
	Batch              string  `json:"batch"`
	DateOfImmersion    string  `json:"date_of_immersion"`
	StudentCount       int     `json:"student_count"`
	AveragePerformance float64 `json:"average_performance"`
	CreatedAt          string  `json:"created_at"`
}

type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

// UploadRoster sends the spreadsheet at path to the parse endpoint and
// returns the trainee rows with their empty placeholder grade slots
// attached.
func (c *apiClient) UploadRoster(path string) ([]Trainee, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster file: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("read roster file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finish upload form: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/upload/trainee", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var parsed struct {
		Students []Trainee `json:"students"`
	}
	if err := c.doJSON(req, &parsed); err != nil {
		return nil, fmt.Errorf("upload roster: %w", err)
	}
	for i := range parsed.Students {
		attachPlaceholderGrades(&parsed.Students[i])
	}
	return parsed.Students, nil
}

type generateRequest struct {
	Students         []Trainee `json:"students"`
	OriginalFileName string    `json:"originalFileName,omitempty"`
}

// GenerateReport posts the roster to the spreadsheet generator and returns
// the resolved filename plus the binary document. An empty roster is
// rejected before any request goes out.
func (c *apiClient) GenerateReport(students []Trainee, originalFileName, fallback string) (string, []byte, error) {
	if len(students) == 0 {
		return "", nil, fmt.Errorf("no trainee rows to export")
	}
	payload, err := json.Marshal(generateRequest{Students: students, OriginalFileName: originalFileName})
	if err != nil {
		return "", nil, err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/generate/excel", bytes.NewReader(payload))
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("generate report: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return "", nil, fmt.Errorf("generate report: %w", err)
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("read report: %w", err)
	}
	name := filenameFromDisposition(resp.Header.Get("Content-Disposition"), fallback)
	return name, content, nil
}

// ListGeneratedFiles fetches the full report history.
func (c *apiClient) ListGeneratedFiles() ([]GeneratedFile, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/api/generated-files", nil)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Files []GeneratedFile `json:"files"`
	}
	if err := c.doJSON(req, &parsed); err != nil {
		return nil, fmt.Errorf("list generated files: %w", err)
	}
	return parsed.Files, nil
}

// GetGeneratedFile fetches one report record together with its rows.
func (c *apiClient) GetGeneratedFile(id int64) (GeneratedFile, []Trainee, error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/api/generated-files/%d", c.baseURL, id), nil)
	if err != nil {
		return GeneratedFile{}, nil, err
	}
	var parsed struct {
		File     GeneratedFile `json:"file"`
		Students []Trainee     `json:"students"`
	}
	if err := c.doJSON(req, &parsed); err != nil {
		return GeneratedFile{}, nil, fmt.Errorf("fetch generated file %d: %w", id, err)
	}
	return parsed.File, parsed.Students, nil
}

type updateRequest struct {
	Students        []Trainee `json:"students"`
	Batch           string    `json:"batch"`
	School          string    `json:"school"`
	DateOfImmersion string    `json:"date_of_immersion"`
}

// UpdateGeneratedFile pushes the edited rows back wholesale under the same
// id, carrying the unchanged metadata along.
func (c *apiClient) UpdateGeneratedFile(id int64, students []Trainee, batch, school, dateOfImmersion string) error {
	payload, err := json.Marshal(updateRequest{
		Students:        students,
		Batch:           batch,
		School:          school,
		DateOfImmersion: dateOfImmersion,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPut, fmt.Sprintf("%s/api/generated-files/%d", c.baseURL, id), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("update generated file %d: %w", id, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("update generated file %d: %w", id, err)
	}
	return nil
}

// DeleteGeneratedFile removes a report from the backend store.
func (c *apiClient) DeleteGeneratedFile(id int64) error {
	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/generated-files/%d", c.baseURL, id), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete generated file %d: %w", id, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("delete generated file %d: %w", id, err)
	}
	return nil
}

// DownloadGeneratedFile fetches the stored spreadsheet bytes for a report.
func (c *apiClient) DownloadGeneratedFile(id int64) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/api/generated-files/%d/download", c.baseURL, id), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download generated file %d: %w", id, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("download generated file %d: %w", id, err)
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read download %d: %w", id, err)
	}
	return content, nil
}

func (c *apiClient) doJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	message := strings.TrimSpace(string(body))
	if message == "" {
		return fmt.Errorf("backend returned %s", resp.Status)
	}
	return fmt.Errorf("backend returned %s: %s", resp.Status, message)
}

var dispositionPattern = regexp.MustCompile(`filename="?([^"]+)"?`)

// filenameFromDisposition extracts the suggested filename from a
// Content-Disposition header, falling back deterministically when the
// header is absent or unparsable. A malformed header never surfaces as an
// error.
func filenameFromDisposition(header, fallback string) string {
	if header != "" {
		if m := dispositionPattern.FindStringSubmatch(header); m != nil && m[1] != "" {
			return m[1]
		}
	}
	return fallback
}

// reportFallbackName derives the default export filename from the
// originally uploaded file.
func reportFallbackName(originalName string, updated bool) string {
	base := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	if base == "" || base == "." {
		return "IMMERSION-GENERATED.xlsx"
	}
	if updated {
		return base + "-UPDATED-REPORT.xlsx"
	}
	return base + "-REPORT.xlsx"
}

// saveDownload writes report bytes under name inside dir and returns the
// full path.
func saveDownload(dir, name string, content []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("write download: %w", err)
	}
	return path, nil
}

// applyDateOverride returns a copy of the roster with every row's
// date_of_immersion replaced. The live roster is never mutated.
func applyDateOverride(students []Trainee, date string) []Trainee {
	if strings.TrimSpace(date) == "" {
		return students
	}
	out := make([]Trainee, len(students))
	copy(out, students)
	for i := range out {
		out[i].DateOfImmersion = date
	}
	return out
}
