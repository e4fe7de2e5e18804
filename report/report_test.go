package report

import (
	"strings"
	"testing"
	"time"

	"github.com/redlinehq/redline/document"
	"github.com/redlinehq/redline/engine"
	"github.com/redlinehq/redline/inference"
	"github.com/redlinehq/redline/ledger"
)

func sampleResult() *engine.Result {
	doc := document.New("API Guide", "markdown")
	return &engine.Result{
		RunID:    "run-123",
		Status:   engine.RunPartialFailure,
		Document: doc,
		Sections: []engine.SectionResult{
			{
				SectionID: "s1",
				Title:     "Intro",
				Status:    document.StatusConverged,
				State: engine.ConvergenceState{
					State:     engine.StateConverged,
					Iteration: 2,
					Reason:    engine.ReasonNoNewFindings,
				},
				FinalText: "the corrected intro",
				Findings: []ledger.Finding{
					{
						SectionID:    "s1",
						Category:     ledger.CategoryGrammar,
						Severity:     2,
						Description:  "misspelling of the",
						Excerpt:      "teh",
						SuggestedFix: "the",
						Resolved:     true,
					},
					{
						SectionID:   "s1",
						Category:    ledger.CategoryTechnical,
						Severity:    3,
						Description: "term with a | pipe inside",
						Disputed:    true,
					},
				},
			},
			{
				SectionID: "s2",
				Title:     "Details",
				Status:    document.StatusFailed,
				State: engine.ConvergenceState{
					State:  engine.StateFailed,
					Reason: engine.ReasonProviderFault,
					Err:    "key revoked",
				},
			},
		},
		Ledger: ledger.Export{
			Total:    2,
			Resolved: 1,
			Disputed: 1,
			ByCategory: map[ledger.Category]int{
				ledger.CategoryGrammar:   1,
				ledger.CategoryTechnical: 1,
			},
		},
		Usage:    inference.Usage{TotalTokens: 1234},
		Elapsed:  3 * time.Second,
		Failures: map[string]string{"s2": "key revoked"},
	}
}

func TestMarkdownReportContent(t *testing.T) {
	md := Markdown(sampleResult())

	for _, want := range []string{
		"# Review Report: API Guide",
		"run-123",
		"partial_failure",
		"| Grammar | 1 |",
		"| Technical | 1 |",
		"| Intro | converged | 2 |",
		"| Details | failed |",
		"## Failures",
		"**Details**: key revoked",
		"misspelling of the",
		"resolved",
		"unresolved-disputed",
		"Tokens: 1234",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("expected report to contain %q", want)
		}
	}
}

func TestMarkdownReportEscapesPipes(t *testing.T) {
	md := Markdown(sampleResult())
	if !strings.Contains(md, `term with a \| pipe inside`) {
		t.Error("expected pipe characters escaped in table cells")
	}
}

func TestMarkdownReportSkipsFindingTableForCleanSections(t *testing.T) {
	r := sampleResult()
	r.Sections[0].Findings = nil
	r.Sections[1].Findings = nil
	md := Markdown(r)
	if strings.Contains(md, "Suggested Fix") {
		t.Error("expected no per-section finding tables without findings")
	}
}

func TestHTMLReport(t *testing.T) {
	page, err := HTML(sampleResult())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"<!DOCTYPE html>",
		"<title>Review Report: API Guide</title>",
		"<table>",
		"<h1",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("expected page to contain %q", want)
		}
	}
}
