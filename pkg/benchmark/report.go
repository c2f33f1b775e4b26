package benchmark

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Format is a benchmark report encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat parses a report format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatYAML:
		return Format(s), nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid report format %q (supported: json, yaml)", s)
	}
}

// FormatFromPath guesses the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Report is the persisted form of a set of runs.
type Report struct {
	GeneratedAt time.Time    `json:"generated_at" yaml:"generated_at"`
	Runs        []RunSummary `json:"runs" yaml:"runs"`
}

// RunSummary is a Run with durations expressed in seconds.
type RunSummary struct {
	ID             string  `json:"id" yaml:"id"`
	Layout         string  `json:"layout" yaml:"layout"`
	Mode           string  `json:"mode" yaml:"mode"`
	Filter         string  `json:"filter,omitempty" yaml:"filter,omitempty"`
	Iterations     int     `json:"iterations" yaml:"iterations"`
	Measured       int     `json:"measured" yaml:"measured"`
	Failures       int     `json:"failures" yaml:"failures"`
	WarmupSeconds  float64 `json:"warmup_seconds" yaml:"warmup_seconds"`
	TotalSeconds   float64 `json:"total_seconds" yaml:"total_seconds"`
	AverageSeconds float64 `json:"average_seconds" yaml:"average_seconds"`
}

// NewReport summarizes runs.
func NewReport(now time.Time, runs []*Run) *Report {
	r := &Report{
		GeneratedAt: now.UTC(),
		Runs:        make([]RunSummary, 0, len(runs)),
	}
	for _, run := range runs {
		s := RunSummary{
			ID:             run.ID,
			Layout:         run.Layout.String(),
			Mode:           string(run.Mode),
			Iterations:     run.Iterations,
			Measured:       len(run.Samples),
			Failures:       run.Failures,
			WarmupSeconds:  run.Warmup.Seconds(),
			TotalSeconds:   run.Total.Seconds(),
			AverageSeconds: run.Average.Seconds(),
		}
		if run.Filter != nil {
			s.Filter = run.Filter.String()
		}
		r.Runs = append(r.Runs, s)
	}
	return r
}

// ReportWriter writes reports to a filesystem.
type ReportWriter struct {
	fs afero.Fs
}

// NewReportWriter creates a ReportWriter. A nil fs means the OS filesystem.
func NewReportWriter(fs afero.Fs) *ReportWriter {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &ReportWriter{fs: fs}
}

// Write encodes report in format and writes it to path, creating parent
// directories as needed.
func (w *ReportWriter) Write(path string, format Format, report *Report) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(report, "", "  ")
	case FormatYAML:
		data, err = yaml.Marshal(report)
	default:
		return fmt.Errorf("invalid report format %q", format)
	}
	if err != nil {
		return fmt.Errorf("error encoding report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := w.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating report directory: %w", err)
		}
	}
	if err := afero.WriteFile(w.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("error writing report: %w", err)
	}
	return nil
}
