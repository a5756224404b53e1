package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/sheetgrader/internal/model"
)

func sampleExport() model.ReportExport {
	r := model.Report{
		"img10.png": {Score: 1, Choices: map[string]string{"Q1": "B"}, CorrectAnswers: map[string]string{"Q1": "A"}},
		"img2.png":  {Score: 2.5, Choices: map[string]string{"Q1": "A"}, CorrectAnswers: map[string]string{"Q1": "A"}},
	}
	return model.NewReportExport("Midterm1", r, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
}

func TestWriteReportText(t *testing.T) {
	var buf bytes.Buffer
	if err := writeReport(&buf, sampleExport(), "text"); err != nil {
		t.Fatalf("writeReport: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[1], "img2.png") || !strings.Contains(lines[1], "2.5") || !strings.Contains(lines[1], "1/1") {
		t.Errorf("first row = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "img10.png") || !strings.Contains(lines[2], "0/1") {
		t.Errorf("second row = %q", lines[2])
	}
}

func TestWriteReportJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := writeReport(&buf, sampleExport(), "JSON"); err != nil {
		t.Fatalf("writeReport: %v", err)
	}
	var got model.ReportExport
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Exam != "Midterm1" || got.NumResults != 2 {
		t.Errorf("export = %+v", got)
	}
}

func TestWriteReportUnknownFormat(t *testing.T) {
	if err := writeReport(io.Discard, sampleExport(), "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestReadPassword(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"secret\n", "secret", false},
		{"secret\r\nignored\n", "secret", false},
		{"no newline", "no newline", false},
		{"\n", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := readPassword(strings.NewReader(tt.in))
		if (err != nil) != tt.wantErr {
			t.Errorf("readPassword(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("readPassword(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeBasePath(t *testing.T) {
	tests := map[string]string{
		"":      "",
		"/":     "",
		"omr":   "/omr",
		"/omr/": "/omr",
		" /omr": "/omr",
	}
	for in, want := range tests {
		if got := normalizeBasePath(in); got != want {
			t.Errorf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/get_exams":
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"exams":["Midterm1","Final"]}`)
		case "/download_report":
			w.Header().Set("Content-Type", "text/csv")
			_, _ = io.WriteString(w, "filename,score\nimg1.png,8\n")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExamsCommand(t *testing.T) {
	srv := fakeBackend(t)
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"exams", "--backend-url", srv.URL, "--log-level", "error"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.String() != "Midterm1\nFinal\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestDownloadCommand(t *testing.T) {
	srv := fakeBackend(t)
	dir := t.TempDir()
	cmd := rootCmd()
	cmd.SetArgs([]string{"download", "Final", "--backend-url", srv.URL, "--dir", dir, "--log-level", "error"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "Final_report.csv"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.HasPrefix(string(data), "filename,score") {
		t.Errorf("report = %q", data)
	}
}

func TestDownloadRejectsPathInExamName(t *testing.T) {
	srv := fakeBackend(t)
	root := t.TempDir()
	dir := filepath.Join(root, "reports")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, exam := range []string{"../Final", "sub/Final", `..\Final`, ".."} {
		cmd := rootCmd()
		cmd.SetArgs([]string{"download", exam, "--backend-url", srv.URL, "--dir", dir, "--log-level", "error"})
		if err := cmd.Execute(); err == nil {
			t.Errorf("download %q: expected error", exam)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "Final_report.csv")); !os.IsNotExist(err) {
		t.Errorf("report written outside --dir: %v", err)
	}
}

func TestReportPath(t *testing.T) {
	got, err := reportPath("out", "Final")
	if err != nil {
		t.Fatalf("reportPath: %v", err)
	}
	if want := filepath.Join("out", "Final_report.csv"); got != want {
		t.Errorf("reportPath = %q, want %q", got, want)
	}
}

func TestPasswdCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	cmd := rootCmd()
	cmd.SetIn(strings.NewReader("hunter2\n"))
	cmd.SetArgs([]string{"passwd", "--db", dbPath, "--log-level", "error"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database not created: %v", err)
	}
}
