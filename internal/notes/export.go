package notes

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"labtriage/internal/analysis"
	"labtriage/internal/queue"
)

// Export is a note ready to hand to a reader.
type Export struct {
	Filename    string
	Content     string
	Synthesized bool
}

// ExportNote returns the note recorded on item, else the newest note file for
// the patient in dir, else a note synthesized from the stored analysis.
func ExportNote(item *queue.Item, dir string, now time.Time) (Export, error) {
	if item == nil {
		return Export{}, errors.New("export note: item is nil")
	}
	if item.NotePath != "" {
		if data, err := os.ReadFile(item.NotePath); err == nil {
			return Export{Filename: filepath.Base(item.NotePath), Content: string(data)}, nil
		}
	}

	if path, err := latestNote(dir, item.PatientName); err != nil {
		return Export{}, err
	} else if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Export{}, fmt.Errorf("read note %s: %w", path, err)
		}
		return Export{Filename: filepath.Base(path), Content: string(data)}, nil
	}

	result := storedResult(item)
	body := fmt.Sprintf("RESULT:\n%s\n\nRISK ASSESSMENT: %s", result.Summary, result.RiskLevel)
	return Export{
		Filename:    fmt.Sprintf("Report_%s_%d.txt", FileStem(item.PatientName), now.Unix()),
		Content:     Render(item, result, body, now),
		Synthesized: true,
	}, nil
}

func latestNote(dir, patient string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", nil
	}
	pattern := filepath.Join(dir, "Report_"+FileStem(patient)+"_*.txt")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("find notes: %w", err)
	}
	if len(matches) == 0 {
		return "", nil
	}
	type candidate struct {
		path string
		mod  time.Time
	}
	candidates := make([]candidate, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		candidates = append(candidates, candidate{path: match, mod: info.ModTime()})
	}
	if len(candidates) == 0 {
		return "", nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].mod.Equal(candidates[j].mod) {
			return candidates[i].path > candidates[j].path
		}
		return candidates[i].mod.After(candidates[j].mod)
	})
	return candidates[0].path, nil
}

func storedResult(item *queue.Item) analysis.Result {
	if item.AnalysisJSON != "" {
		if result, err := analysis.FromJSON(item.AnalysisJSON); err == nil {
			return result
		}
	}
	result := analysis.Result{
		RiskLevel:  analysis.RiskLevel(item.RiskLevel),
		PolicyTier: item.PolicyTier,
		Summary:    item.Summary,
	}
	if result.RiskLevel == "" {
		result.RiskLevel = analysis.RiskUnknown
	}
	if result.PolicyTier == "" {
		result.PolicyTier = analysis.UnknownTier
	}
	if result.Summary == "" {
		result.Summary = "No Data Available"
	}
	return result
}
