// Package document defines the structured-document model the review engine
// operates on: an ordered sequence of sections with per-section revision
// state. Documents are produced by ingestion and mutated only by the
// orchestrator; agents receive section text by value and never write back.
package document

import (
	"github.com/google/uuid"
)

// Status tracks where a document or section is in the review lifecycle.
type Status string

const (
	StatusPending       Status = "pending"
	StatusInProgress    Status = "in_progress"
	StatusConverged     Status = "converged"
	StatusMaxIterations Status = "max_iterations"
	StatusFailed        Status = "failed"
	StatusCancelled     Status = "cancelled"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	switch s {
	case StatusConverged, StatusMaxIterations, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Section is a contiguous, independently revisable unit of a document.
// OriginalText is retained unchanged for diffing and reporting; CurrentText
// carries the latest committed revision and is only written by the
// orchestrator between cycles.
type Section struct {
	ID           string `json:"id"`
	Ordinal      int    `json:"ordinal"`
	Title        string `json:"title"`
	OriginalText string `json:"original_text"`
	CurrentText  string `json:"current_text"`
	Status       Status `json:"status"`
}

// NewSection creates a pending section at the given position.
func NewSection(ordinal int, title, text string) *Section {
	return &Section{
		ID:           uuid.New().String(),
		Ordinal:      ordinal,
		Title:        title,
		OriginalText: text,
		CurrentText:  text,
		Status:       StatusPending,
	}
}

// Document is an ordered set of sections plus run-level metadata.
type Document struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	SourceFormat string     `json:"source_format"`
	Sections     []*Section `json:"sections"`
	Status       Status     `json:"status"`
}

// New creates a pending document.
func New(title, sourceFormat string) *Document {
	return &Document{
		ID:           uuid.New().String(),
		Title:        title,
		SourceFormat: sourceFormat,
		Status:       StatusPending,
	}
}

// AddSection appends a section, assigning its ordinal position.
func (d *Document) AddSection(title, text string) *Section {
	sec := NewSection(len(d.Sections), title, text)
	d.Sections = append(d.Sections, sec)
	return sec
}

// SectionByID returns the section with the given ID, or nil.
func (d *Document) SectionByID(id string) *Section {
	for _, sec := range d.Sections {
		if sec.ID == id {
			return sec
		}
	}
	return nil
}
