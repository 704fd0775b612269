package notes

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"labtriage/internal/analysis"
	"labtriage/internal/queue"
)

const (
	rule     = "============================================================"
	thinRule = "------------------------------------------------------------"
	title    = "OFFICIAL HOSPITAL CLINICAL NOTE"
)

// Writer persists drafted notes as text files.
type Writer struct {
	dir string
	now func() time.Time
}

// NewWriter returns a Writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// Write stores note for item and returns the file path. Files are named
// Report_<Patient_Name>_<unix>.txt; a numeric suffix avoids overwriting a
// note written in the same second.
func (w *Writer) Write(item *queue.Item, result analysis.Result, note Note) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create notes directory: %w", err)
	}
	at := w.now()
	content := Render(item, result, note.Body, at)
	base := fmt.Sprintf("Report_%s_%d", FileStem(item.PatientName), at.Unix())
	for attempt := 0; attempt < 100; attempt++ {
		name := base + ".txt"
		if attempt > 0 {
			name = fmt.Sprintf("%s_%d.txt", base, attempt+1)
		}
		path := filepath.Join(w.dir, name)
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create note file: %w", err)
		}
		if _, err := file.WriteString(content); err != nil {
			file.Close()
			return "", fmt.Errorf("write note file: %w", err)
		}
		if err := file.Close(); err != nil {
			return "", fmt.Errorf("close note file: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("create note file: too many notes named %s", base)
}

// Render lays out the official note: header block, then body.
func Render(item *queue.Item, result analysis.Result, body string, at time.Time) string {
	upper := cases.Upper(language.English)
	var b strings.Builder
	b.WriteString(rule + "\n")
	b.WriteString(centered(title) + "\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "PATIENT NAME:  %s\n", item.PatientName)
	if item.PatientAge > 0 {
		fmt.Fprintf(&b, "AGE:           %d\n", item.PatientAge)
	}
	fmt.Fprintf(&b, "INVESTIGATION: %s\n", item.TestName)
	fmt.Fprintf(&b, "REPORT ID:     %s\n", item.ID)
	fmt.Fprintf(&b, "DATE:          %s\n", at.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "RISK:          %s - %s\n", upper.String(string(result.RiskLevel)), result.PolicyTier)
	if result.Citation != "" {
		fmt.Fprintf(&b, "POLICY:        %s\n", result.Citation)
	}
	b.WriteString(thinRule + "\n")
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n" + rule + "\n")
	return b.String()
}

// FileStem turns a patient name into the file name fragment used for notes.
func FileStem(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "Unknown"
	}
	stem := strings.Join(fields, "_")
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		return r
	}, stem)
}

func centered(text string) string {
	pad := (len(rule) - len(text)) / 2
	if pad <= 0 {
		return text
	}
	return strings.Repeat(" ", pad) + text
}
