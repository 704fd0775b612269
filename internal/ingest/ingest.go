package ingest

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"gopkg.in/yaml.v3"

	"labtriage/internal/logging"
	"labtriage/internal/queue"
)

//go:embed demo_batch.yaml
var demoBatch []byte

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Report is one lab or imaging result as delivered by a report feed. JSON
// batches decode through the same tags since JSON is valid YAML.
type Report struct {
	ID                string `yaml:"id"`
	PatientName       string `yaml:"patientName"`
	Age               int    `yaml:"age"`
	InvestigationName string `yaml:"investigationName"`
	TestName          string `yaml:"testName"`
	Status            string `yaml:"status"`
	RawData           any    `yaml:"raw_data"`
	History           any    `yaml:"history"`
}

type batchFile struct {
	Reports []Report `yaml:"reports"`
}

// Seeder is the subset of queue.Store used for seeding.
type Seeder interface {
	Upsert(ctx context.Context, item *queue.Item) (bool, error)
}

// Result summarizes a seeding run.
type Result struct {
	Written int
	Skipped []string
}

// Demo returns the embedded demo reports.
func Demo() ([]Report, error) {
	return Decode(bytes.NewReader(demoBatch))
}

// LoadFile reads a YAML or JSON batch from path.
func LoadFile(path string) ([]Report, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch: %w", err)
	}
	defer file.Close()
	reports, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reports, nil
}

// Decode accepts either a top-level list of reports or a mapping with a
// "reports" list.
func Decode(r io.Reader) ([]Report, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	doc := root.Content[0]
	switch doc.Kind {
	case yaml.SequenceNode:
		var reports []Report
		if err := doc.Decode(&reports); err != nil {
			return nil, fmt.Errorf("decode reports: %w", err)
		}
		return reports, nil
	case yaml.MappingNode:
		var batch batchFile
		if err := doc.Decode(&batch); err != nil {
			return nil, fmt.Errorf("decode reports: %w", err)
		}
		return batch.Reports, nil
	default:
		return nil, fmt.Errorf("decode batch: expected a list of reports or a reports mapping")
	}
}

// ToItem converts a report into a work item. Reports without an id get a
// generated one.
func (r Report) ToItem() (*queue.Item, error) {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		generated, err := gonanoid.Generate(idAlphabet, 12)
		if err != nil {
			return nil, fmt.Errorf("generate report id: %w", err)
		}
		id = "report-" + generated
	}
	status, ok := queue.ParseStatus(r.Status)
	if !ok {
		return nil, fmt.Errorf("report %s: unknown status %q", id, r.Status)
	}
	testName := strings.TrimSpace(r.InvestigationName)
	if testName == "" {
		testName = strings.TrimSpace(r.TestName)
	}
	if testName == "" {
		testName = "Unknown Test"
	}
	measurements, err := toPayload(r.RawData)
	if err != nil {
		return nil, fmt.Errorf("report %s raw_data: %w", id, err)
	}
	history, err := toPayload(r.History)
	if err != nil {
		return nil, fmt.Errorf("report %s history: %w", id, err)
	}
	return &queue.Item{
		ID:           id,
		PatientName:  strings.TrimSpace(r.PatientName),
		PatientAge:   r.Age,
		TestName:     testName,
		Status:       status,
		Measurements: measurements,
		History:      history,
	}, nil
}

// Seed upserts reports into the store. Items that already reached a terminal
// status, or are claimed by a running pass, are left alone and reported as
// skipped.
func Seed(ctx context.Context, store Seeder, reports []Report, logger *slog.Logger) (Result, error) {
	logger = logging.NewComponentLogger(logger, "ingest")
	var result Result
	for _, report := range reports {
		item, err := report.ToItem()
		if err != nil {
			return result, err
		}
		written, err := store.Upsert(ctx, item)
		if err != nil {
			return result, err
		}
		if !written {
			result.Skipped = append(result.Skipped, item.ID)
			logger.Debug("report left unchanged", logging.String(logging.FieldItemID, item.ID), logging.String("status", string(item.Status)))
			continue
		}
		result.Written++
		logger.Info("report seeded",
			logging.String(logging.FieldItemID, item.ID),
			logging.String("test_name", item.TestName),
			logging.String("status", item.Status.Label()),
		)
	}
	return result, nil
}

func toPayload(value any) (queue.Payload, error) {
	switch v := value.(type) {
	case nil:
		return queue.Payload{}, nil
	case string:
		return queue.TextPayload(v), nil
	case map[string]any:
		return queue.ValuesPayload(v), nil
	default:
		return queue.Payload{}, fmt.Errorf("expected a mapping or text, got %T", value)
	}
}
