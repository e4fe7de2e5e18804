package inference

import (
	"context"
	"strings"
	"sync"

	"github.com/redlinehq/redline/ledger"
)

// mockCorrections is the canned misspelling table the mock grammar role
// detects. Deterministic: the same input always yields the same findings.
var mockCorrections = []struct {
	wrong, right string
}{
	{"teh", "the"},
	{"recieve", "receive"},
	{"adress", "address"},
	{"occured", "occurred"},
}

// MockAdapter is an offline Port with deterministic canned findings. It
// performs zero network I/O; once its canned corrections are applied the
// next review of the corrected text yields no findings, so sections
// converge naturally. A Script hook overrides the canned behavior per call.
type MockAdapter struct {
	mu    sync.Mutex
	calls int

	// Script, when set, fully controls each Review call. The call counter
	// starts at 1 and increments across all roles.
	Script func(call int, req ReviewRequest) (*ReviewResult, error)
}

// NewMockAdapter creates a MockAdapter with the default canned behavior.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{}
}

// Name returns the provider identifier.
func (a *MockAdapter) Name() string {
	return "mock"
}

// Calls returns how many Review calls the adapter has served.
func (a *MockAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// Review serves a canned response for the request's role.
func (a *MockAdapter) Review(ctx context.Context, req ReviewRequest) (*ReviewResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &AbortError{Fault: Fault{Message: "mock: cancelled", Cause: err}}
	}

	a.mu.Lock()
	a.calls++
	call := a.calls
	script := a.Script
	a.mu.Unlock()

	if script != nil {
		return script(call, req)
	}

	usage := Usage{
		InputTokens:  len(req.SectionText) / 4,
		OutputTokens: 64,
		TotalTokens:  len(req.SectionText)/4 + 64,
	}

	switch req.Role {
	case RoleValidator:
		return &ReviewResult{
			CorrectedText: req.Context.ProposedText,
			Verdict:       &Verdict{Approved: true, Reason: "mock validator approves"},
			Usage:         usage,
		}, nil
	case RoleConsistency:
		return &ReviewResult{Usage: usage}, nil
	}

	// Grammar and technical roles: flag and fix the canned misspellings.
	text := req.SectionText
	var findings []ledger.Finding
	if req.Role == RoleGrammar {
		for _, c := range mockCorrections {
			idx := 0
			for {
				pos := strings.Index(text[idx:], c.wrong)
				if pos < 0 {
					break
				}
				start := idx + pos
				findings = append(findings, ledger.Finding{
					SectionID:    req.Context.SectionID,
					Category:     ledger.CategoryGrammar,
					Severity:     2,
					Span:         ledger.Span{Start: start, End: start + len(c.wrong)},
					Description:  "misspelling of " + c.right,
					Excerpt:      c.wrong,
					SuggestedFix: c.right,
					Agent:        string(req.Role),
				})
				idx = start + len(c.wrong)
			}
			text = strings.ReplaceAll(text, c.wrong, c.right)
		}
	}

	return &ReviewResult{
		Findings:      findings,
		CorrectedText: text,
		Usage:         usage,
	}, nil
}

// ListAvailableModels returns a fixed single-entry catalog.
func (a *MockAdapter) ListAvailableModels(ctx context.Context) ([]string, error) {
	return []string{"mock-reviewer-1"}, nil
}
