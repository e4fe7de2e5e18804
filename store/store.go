// Package store persists run artifacts to a directory on disk: the raw
// result as JSON, the revised document, and the rendered reports.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/redlinehq/redline/engine"
	"github.com/redlinehq/redline/report"
)

// Store writes run artifacts under a base directory. Each run gets its
// own subdirectory named after the run ID.
type Store struct {
	baseDir string
}

// New returns a store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("store: empty base directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create base directory: %w", err)
	}
	return &Store{baseDir: dir}, nil
}

// Dir returns the artifact directory for a run.
func (s *Store) Dir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

// SaveResult writes the full result as result.json plus the revised
// document text, and returns the run directory.
func (s *Store) SaveResult(result *engine.Result) (string, error) {
	dir := s.Dir(result.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("store: create run directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("store: encode result: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "result.json"), data, 0o644); err != nil {
		return "", fmt.Errorf("store: write result.json: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "revised.md"), []byte(RevisedDocument(result)), 0o644); err != nil {
		return "", fmt.Errorf("store: write revised.md: %w", err)
	}
	return dir, nil
}

// SaveReports renders and writes the requested report formats
// ("markdown", "html") into the run directory.
func (s *Store) SaveReports(result *engine.Result, formats []string) error {
	dir := s.Dir(result.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create run directory: %w", err)
	}
	for _, format := range formats {
		switch format {
		case "markdown", "md":
			md := report.Markdown(result)
			if err := os.WriteFile(filepath.Join(dir, "report.md"), []byte(md), 0o644); err != nil {
				return fmt.Errorf("store: write report.md: %w", err)
			}
		case "html":
			page, err := report.HTML(result)
			if err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(dir, "report.html"), []byte(page), 0o644); err != nil {
				return fmt.Errorf("store: write report.html: %w", err)
			}
		default:
			return fmt.Errorf("store: unknown report format %q", format)
		}
	}
	return nil
}

// LoadResult reads a previously saved result.json back.
func (s *Store) LoadResult(runID string) (*engine.Result, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(runID), "result.json"))
	if err != nil {
		return nil, fmt.Errorf("store: read result: %w", err)
	}
	var result engine.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("store: decode result: %w", err)
	}
	return &result, nil
}

// RevisedDocument reassembles the final document text from the
// per-section results, in section order.
func RevisedDocument(result *engine.Result) string {
	var sb strings.Builder
	for i, sr := range result.Sections {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(sr.FinalText)
	}
	if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
		sb.WriteString("\n")
	}
	return sb.String()
}
