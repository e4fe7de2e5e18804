// Package agents defines the four specialized review roles (grammar,
// technical, validator, consistency) as thin policies over the inference
// port. Each call applies the shared retry policy and per-call timeout, so
// transient provider faults are absorbed here and only exhausted or fatal
// faults surface to the engine.
package agents

import (
	"context"
	"time"

	"github.com/redlinehq/redline/inference"
	"github.com/redlinehq/redline/ledger"
)

// Options are shared across all agent roles for a run.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	CallTimeout time.Duration // 0 = no per-call timeout
	Retry       inference.RetryPolicy
	Terminology string // technical role only
}

// call runs one port review with timeout and retry applied.
func call(ctx context.Context, port inference.Port, opts Options, req inference.ReviewRequest) (*inference.ReviewResult, error) {
	req.Model = opts.Model
	req.Temperature = opts.Temperature
	req.MaxTokens = opts.MaxTokens

	return inference.Retry(ctx, opts.Retry, func(ctx context.Context) (*inference.ReviewResult, error) {
		if opts.CallTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.CallTimeout)
			defer cancel()
		}
		return port.Review(ctx, req)
	})
}

// Grammar flags spelling, agreement, and punctuation in one section.
type Grammar struct {
	port inference.Port
	opts Options
}

// NewGrammar creates the grammar agent.
func NewGrammar(port inference.Port, opts Options) *Grammar {
	return &Grammar{port: port, opts: opts}
}

// Review analyzes the section text and proposes a corrected version.
func (a *Grammar) Review(ctx context.Context, sectionID, text string) (*inference.ReviewResult, error) {
	return call(ctx, a.port, a.opts, inference.ReviewRequest{
		Role:        inference.RoleGrammar,
		SectionText: text,
		Context:     inference.ReviewContext{SectionID: sectionID},
	})
}

// Technical flags terminology and normative non-conformance in one section,
// consulting the configured domain-terminology reference.
type Technical struct {
	port inference.Port
	opts Options
}

// NewTechnical creates the technical agent.
func NewTechnical(port inference.Port, opts Options) *Technical {
	return &Technical{port: port, opts: opts}
}

// Review analyzes the section text and proposes a corrected version.
func (a *Technical) Review(ctx context.Context, sectionID, text string) (*inference.ReviewResult, error) {
	return call(ctx, a.port, a.opts, inference.ReviewRequest{
		Role:        inference.RoleTechnical,
		SectionText: text,
		Context: inference.ReviewContext{
			SectionID:   sectionID,
			Terminology: a.opts.Terminology,
		},
	})
}

// Validator confirms a proposed edit is safe: no semantic drift, no
// unintended deletion. A veto discards the correction for the cycle.
type Validator struct {
	port inference.Port
	opts Options
}

// NewValidator creates the validator agent.
func NewValidator(port inference.Port, opts Options) *Validator {
	return &Validator{port: port, opts: opts}
}

// Validate judges the proposed text against the cycle's input text.
func (a *Validator) Validate(ctx context.Context, sectionID, original, proposed string, findings []ledger.Finding) (*inference.Verdict, inference.Usage, error) {
	result, err := call(ctx, a.port, a.opts, inference.ReviewRequest{
		Role:        inference.RoleValidator,
		SectionText: proposed,
		Context: inference.ReviewContext{
			SectionID:    sectionID,
			OriginalText: original,
			ProposedText: proposed,
			Findings:     findings,
		},
	})
	if err != nil {
		return nil, inference.Usage{}, err
	}
	if result.Verdict == nil {
		return nil, result.Usage, &inference.SchemaError{Fault: inference.Fault{
			Message: "validator returned no verdict",
		}}
	}
	return result.Verdict, result.Usage, nil
}

// Consistency flags contradictions across all finalized sections. It runs
// once per run, after every section reaches a terminal state, because it
// needs global state.
type Consistency struct {
	port inference.Port
	opts Options
}

// NewConsistency creates the consistency agent.
func NewConsistency(port inference.Port, opts Options) *Consistency {
	return &Consistency{port: port, opts: opts}
}

// Check reviews the finalized sections together.
func (a *Consistency) Check(ctx context.Context, peers []inference.PeerSection) ([]ledger.Finding, inference.Usage, error) {
	result, err := call(ctx, a.port, a.opts, inference.ReviewRequest{
		Role:    inference.RoleConsistency,
		Context: inference.ReviewContext{Peers: peers},
	})
	if err != nil {
		return nil, inference.Usage{}, err
	}
	return result.Findings, result.Usage, nil
}
