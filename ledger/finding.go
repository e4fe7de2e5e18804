// Package ledger accumulates and deduplicates review findings across all
// cycles and sections of a run. It is the only structure shared between
// concurrently running section workers; every write is an atomic
// insert-if-absent keyed by the finding identity, so racing workers cannot
// produce duplicate entries. History is append-only: findings are never
// deleted, only marked resolved when a later cycle stops reproducing them.
package ledger

import (
	"fmt"
	"strings"
	"time"
)

// Category classifies a finding.
type Category string

const (
	CategoryGrammar     Category = "grammar"
	CategoryTechnical   Category = "technical"
	CategoryStructural  Category = "structural"
	CategoryConsistency Category = "consistency"
)

// ParseCategory maps a free-form category string from a model response onto
// a canonical Category. Unknown labels fall back to structural.
func ParseCategory(s string) Category {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "grammar", "grammatical", "spelling", "punctuation", "agreement":
		return CategoryGrammar
	case "technical", "terminology", "normative", "numeric", "reference":
		return CategoryTechnical
	case "consistency", "contradiction", "divergence":
		return CategoryConsistency
	default:
		return CategoryStructural
	}
}

// Span locates a finding within a section's text by character offsets.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Finding is a single identified issue with location and suggested fix.
// It is immutable once recorded except for the Resolved and Disputed flags,
// which the ledger manages.
type Finding struct {
	SectionID    string    `json:"section_id"`
	Category     Category  `json:"category"`
	Severity     int       `json:"severity"` // 1 (low) .. 5 (critical)
	Span         Span      `json:"span"`
	Description  string    `json:"description"`
	Excerpt      string    `json:"excerpt,omitempty"`
	SuggestedFix string    `json:"suggested_fix,omitempty"`
	Agent        string    `json:"agent,omitempty"`
	Iteration    int       `json:"iteration"`
	Resolved     bool      `json:"resolved"`
	Disputed     bool      `json:"disputed"`
	DetectedAt   time.Time `json:"detected_at"`
}

// Key returns the finding's identity: (section, category, normalized
// description, span). The key is stable across iterations so resolved vs.
// newly introduced can be determined by set difference.
func (f Finding) Key() string {
	return fmt.Sprintf("%s|%s|%s|%d:%d",
		f.SectionID, f.Category, normalize(f.Description), f.Span.Start, f.Span.End)
}

// normalize lowercases and collapses runs of whitespace so cosmetic
// variation in model output does not defeat deduplication.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
