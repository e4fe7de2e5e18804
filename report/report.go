// Package report renders a consolidated run result as Markdown or HTML.
// The HTML variant is the Markdown report converted with goldmark and
// wrapped in a minimal self-contained page.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/redlinehq/redline/engine"
	"github.com/redlinehq/redline/ledger"
)

var categoryLabels = map[ledger.Category]string{
	ledger.CategoryGrammar:     "Grammar",
	ledger.CategoryTechnical:   "Technical",
	ledger.CategoryStructural:  "Structural",
	ledger.CategoryConsistency: "Consistency",
}

// Markdown renders the full review report.
func Markdown(result *engine.Result) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Review Report: %s\n\n", result.Document.Title)
	fmt.Fprintf(&sb, "- Run: `%s`\n", result.RunID)
	fmt.Fprintf(&sb, "- Status: **%s**\n", result.Status)
	fmt.Fprintf(&sb, "- Sections: %d\n", len(result.Sections))
	fmt.Fprintf(&sb, "- Unique findings: %d (%d open, %d resolved, %d disputed)\n",
		result.Ledger.Total, result.Ledger.Open, result.Ledger.Resolved, result.Ledger.Disputed)
	fmt.Fprintf(&sb, "- Tokens: %d\n", result.Usage.TotalTokens)
	fmt.Fprintf(&sb, "- Elapsed: %s\n\n", result.Elapsed.Round(time.Millisecond))

	sb.WriteString("## Findings by Category\n\n")
	sb.WriteString("| Category | Count |\n|---|---|\n")
	for _, cat := range []ledger.Category{
		ledger.CategoryGrammar, ledger.CategoryTechnical,
		ledger.CategoryStructural, ledger.CategoryConsistency,
	} {
		fmt.Fprintf(&sb, "| %s | %d |\n", categoryLabels[cat], result.Ledger.ByCategory[cat])
	}
	sb.WriteString("\n")

	sb.WriteString("## Sections\n\n")
	sb.WriteString("| Section | Status | Iterations | Findings | Stop Reason |\n|---|---|---|---|---|\n")
	for _, sr := range result.Sections {
		fmt.Fprintf(&sb, "| %s | %s | %d | %d | %s |\n",
			sr.Title, sr.Status, sr.State.Iteration, len(sr.Findings), sr.State.Reason)
	}
	sb.WriteString("\n")

	if len(result.Failures) > 0 {
		sb.WriteString("## Failures\n\n")
		for _, sr := range result.Sections {
			if reason, ok := result.Failures[sr.SectionID]; ok {
				fmt.Fprintf(&sb, "- **%s**: %s\n", sr.Title, reason)
			}
		}
		sb.WriteString("\n")
	}

	for _, sr := range result.Sections {
		if len(sr.Findings) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "## %s\n\n", sr.Title)
		sb.WriteString("| # | Category | Severity | Excerpt | Suggested Fix | Description | State |\n")
		sb.WriteString("|---|---|---|---|---|---|---|\n")
		for i, f := range sr.Findings {
			fmt.Fprintf(&sb, "| %d | %s | %d | %s | %s | %s | %s |\n",
				i+1, categoryLabels[f.Category], f.Severity,
				cell(f.Excerpt), cell(f.SuggestedFix), cell(f.Description), findingState(f))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// HTML renders the report as a standalone page.
func HTML(result *engine.Result) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(result)), &body); err != nil {
		return "", fmt.Errorf("render html report: %w", err)
	}

	var page strings.Builder
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>Review Report: %s</title>\n", result.Document.Title)
	page.WriteString("<style>\n")
	page.WriteString("body{font-family:sans-serif;max-width:72rem;margin:2rem auto;padding:0 1rem;}\n")
	page.WriteString("table{border-collapse:collapse;width:100%;}\n")
	page.WriteString("th,td{border:1px solid #ccc;padding:0.4rem 0.6rem;text-align:left;}\n")
	page.WriteString("th{background:#f3f3f3;}\n")
	page.WriteString("</style>\n</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.String(), nil
}

func findingState(f ledger.Finding) string {
	switch {
	case f.Disputed:
		return "unresolved-disputed"
	case f.Resolved:
		return "resolved"
	default:
		return "open"
	}
}

// cell escapes pipes and newlines so free text cannot break table layout.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 120 {
		s = s[:120] + "…"
	}
	return s
}
