package inference

import (
	"encoding/json"
	"strings"

	"github.com/redlinehq/redline/ledger"
)

// wireFinding is the JSON shape models are instructed to produce.
type wireFinding struct {
	SectionID    string `json:"section_id,omitempty"`
	Category     string `json:"category"`
	Severity     int    `json:"severity"`
	Start        int    `json:"start"`
	End          int    `json:"end"`
	Excerpt      string `json:"excerpt"`
	SuggestedFix string `json:"suggested_fix"`
	Description  string `json:"description"`
}

type wireResponse struct {
	Findings    []wireFinding `json:"findings"`
	RevisedText string        `json:"revised_text"`
	Approved    *bool         `json:"approved"`
	Reason      string        `json:"reason"`
}

// stripFences removes an optional Markdown code fence around a JSON payload.
// Models wrap JSON in ```json blocks often enough that this is mandatory.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "```json"); idx >= 0 {
		s = s[idx+len("```json"):]
	} else if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+len("```"):]
	} else {
		return s
	}
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// ParseResponse decodes a model reply into a ReviewResult. Malformed JSON
// is a SchemaError: it usually means the response was truncated, and
// retrying the identical prompt rarely helps.
func ParseResponse(raw string, req ReviewRequest) (*ReviewResult, error) {
	var wire wireResponse
	if err := json.Unmarshal([]byte(stripFences(raw)), &wire); err != nil {
		return nil, &SchemaError{Fault: Fault{
			Message: "model response is not valid JSON (truncated output?)",
			Cause:   err,
		}}
	}

	result := &ReviewResult{CorrectedText: wire.RevisedText}
	if result.CorrectedText == "" {
		result.CorrectedText = req.SectionText
	}

	if req.Role == RoleValidator {
		if wire.Approved == nil {
			return nil, &SchemaError{Fault: Fault{
				Message: "validator response missing approved field",
			}}
		}
		result.Verdict = &Verdict{Approved: *wire.Approved, Reason: wire.Reason}
		return result, nil
	}

	for _, wf := range wire.Findings {
		sectionID := req.Context.SectionID
		if req.Role == RoleConsistency && wf.SectionID != "" {
			sectionID = wf.SectionID
		}
		f := ledger.Finding{
			SectionID:    sectionID,
			Category:     ledger.ParseCategory(wf.Category),
			Severity:     clampSeverity(wf.Severity),
			Span:         ledger.Span{Start: wf.Start, End: wf.End},
			Description:  wf.Description,
			Excerpt:      wf.Excerpt,
			SuggestedFix: wf.SuggestedFix,
			Agent:        string(req.Role),
		}
		if f.Description == "" {
			f.Description = wf.Category
		}
		if req.Role == RoleConsistency {
			f.Category = ledger.CategoryConsistency
		}
		result.Findings = append(result.Findings, f)
	}
	return result, nil
}

func clampSeverity(s int) int {
	if s < 1 {
		return 1
	}
	if s > 5 {
		return 5
	}
	return s
}
