package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redlinehq/redline/document"
	"github.com/redlinehq/redline/inference"
	"github.com/redlinehq/redline/ledger"
)

// CycleRecord is the append-only audit entry for one (section, iteration)
// pass of the agent pipeline. Never mutated after creation.
type CycleRecord struct {
	SectionID    string           `json:"section_id"`
	Iteration    int              `json:"iteration"`
	InputHash    string           `json:"input_hash"`
	OutputText   string           `json:"output_text"`
	Findings     []ledger.Finding `json:"findings"`
	NewFindings  int              `json:"new_findings"`
	Disputed     bool             `json:"disputed"`
	Elapsed      time.Duration    `json:"elapsed"`
	Usage        inference.Usage  `json:"usage"`
	VetoReason   string           `json:"veto_reason,omitempty"`
	Err          string           `json:"error,omitempty"`
}

func hashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// runCycle executes one pass of Grammar -> Technical -> Validator over the
// section's current text. The validator vets the combined proposal; on
// approval the corrected text is committed as the section's new current
// text, on veto the input text is retained and the cycle's findings are
// marked disputed. All findings, approved or disputed, are recorded in the
// ledger tagged with the iteration index.
//
// On a provider fault that survives the retry policy, the cycle is returned
// with Err set alongside the error; findings accumulated in earlier
// iterations are untouched.
func (o *Orchestrator) runCycle(ctx context.Context, sec *document.Section, iteration int) (*CycleRecord, error) {
	start := time.Now()
	rec := &CycleRecord{
		SectionID: sec.ID,
		Iteration: iteration,
		InputHash: hashText(sec.CurrentText),
	}

	fail := func(err error) (*CycleRecord, error) {
		rec.Err = err.Error()
		rec.Elapsed = time.Since(start)
		return rec, err
	}

	inputText := sec.CurrentText

	grammarRes, err := o.grammar.Review(ctx, sec.ID, inputText)
	if err != nil {
		return fail(err)
	}
	rec.Usage = rec.Usage.Add(grammarRes.Usage)

	technicalRes, err := o.technical.Review(ctx, sec.ID, grammarRes.CorrectedText)
	if err != nil {
		return fail(err)
	}
	rec.Usage = rec.Usage.Add(technicalRes.Usage)

	findings := make([]ledger.Finding, 0, len(grammarRes.Findings)+len(technicalRes.Findings))
	for _, f := range append(grammarRes.Findings, technicalRes.Findings...) {
		f.Iteration = iteration
		findings = append(findings, f)
	}
	proposed := technicalRes.CorrectedText

	verdict, usage, err := o.validator.Validate(ctx, sec.ID, inputText, proposed, findings)
	if err != nil {
		return fail(err)
	}
	rec.Usage = rec.Usage.Add(usage)

	if verdict.Approved {
		rec.OutputText = proposed
	} else {
		// Veto: discard the correction, keep the cycle's input text.
		rec.OutputText = inputText
		rec.Disputed = true
		rec.VetoReason = verdict.Reason
		for i := range findings {
			findings[i].Disputed = true
		}
	}
	rec.Findings = findings

	introduced, resolved := o.ledger.Reconcile(sec.ID, findings)
	rec.NewFindings = len(introduced)
	if rec.Disputed {
		o.ledger.Dispute(findings)
	}

	rec.Elapsed = time.Since(start)
	o.ledger.RecordCycle(sec.ID, rec.Elapsed, rec.Usage.TotalTokens)

	o.logger.Debug("cycle completed",
		"section", sec.ID,
		"iteration", iteration,
		"findings", len(findings),
		"new", len(introduced),
		"resolved", len(resolved),
		"disputed", rec.Disputed,
		"elapsed", rec.Elapsed,
	)
	return rec, nil
}
