package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/redlinehq/redline/agents"
	"github.com/redlinehq/redline/document"
	"github.com/redlinehq/redline/inference"
	"github.com/redlinehq/redline/ledger"
)

// Config is the single configuration record handed to the orchestrator at
// run start. The engine never reads environment variables or files itself.
type Config struct {
	Model                string
	Temperature          float64
	MaxTokens            int
	MaxRetries           int
	CallTimeout          time.Duration
	MaxIterations        int
	ConvergenceThreshold float64
	SimilarityStrategy   string
	Workers              int
	Terminology          string
	EventBuffer          int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Temperature:          0.3,
		MaxTokens:            8192,
		MaxRetries:           3,
		CallTimeout:          2 * time.Minute,
		MaxIterations:        5,
		ConvergenceThreshold: 0.95,
		SimilarityStrategy:   "levenshtein",
		Workers:              4,
		EventBuffer:          256,
	}
}

// Validate rejects configurations that cannot drive a run. Called at run
// start so faults abort before any section begins.
func (c Config) Validate() error {
	if c.MaxIterations < 1 {
		return &inference.ConfigError{Fault: inference.Fault{
			Message: fmt.Sprintf("max iterations must be at least 1, got %d", c.MaxIterations),
		}}
	}
	if c.ConvergenceThreshold <= 0 || c.ConvergenceThreshold > 1 {
		return &inference.ConfigError{Fault: inference.Fault{
			Message: fmt.Sprintf("convergence threshold must be in (0, 1], got %g", c.ConvergenceThreshold),
		}}
	}
	if c.Workers < 1 {
		return &inference.ConfigError{Fault: inference.Fault{
			Message: fmt.Sprintf("worker count must be at least 1, got %d", c.Workers),
		}}
	}
	if c.MaxRetries < 0 {
		return &inference.ConfigError{Fault: inference.Fault{
			Message: fmt.Sprintf("max retries cannot be negative, got %d", c.MaxRetries),
		}}
	}
	return nil
}

// RunStatus summarizes the outcome of a whole run.
type RunStatus string

const (
	RunCompleted      RunStatus = "completed"
	RunPartialFailure RunStatus = "partial_failure"
	RunFailed         RunStatus = "failed"
	RunCancelled      RunStatus = "cancelled"
)

// SectionResult is the per-section slice of the consolidated result.
type SectionResult struct {
	SectionID string           `json:"section_id"`
	Title     string           `json:"title"`
	Status    document.Status  `json:"status"`
	State     ConvergenceState `json:"state"`
	FinalText string           `json:"final_text"`
	Findings  []ledger.Finding `json:"findings"`
}

// Result is the consolidated run output: final texts, full finding history,
// cycle records, and aggregate metrics. A plain data structure with no
// behavior, consumed by the external report/persistence layer.
type Result struct {
	RunID    string            `json:"run_id"`
	Status   RunStatus         `json:"status"`
	Document *document.Document `json:"document"`
	Sections []SectionResult   `json:"sections"`
	Cycles   []CycleRecord     `json:"cycles"`
	Ledger   ledger.Export     `json:"ledger"`
	Usage    inference.Usage   `json:"usage"`
	Elapsed  time.Duration     `json:"elapsed"`
	Failures map[string]string `json:"failures,omitempty"` // section ID -> reason
}

// Orchestrator drives the complete review run: the per-section iteration
// loops, the cross-section consistency pass, and assembly of the
// consolidated result.
type Orchestrator struct {
	cfg       Config
	logger    *slog.Logger
	ledger    *ledger.Ledger
	emitter   *Emitter
	evaluator *Evaluator
	runID     string

	grammar     *agents.Grammar
	technical   *agents.Technical
	validator   *agents.Validator
	consistency *agents.Consistency

	mu     sync.Mutex
	cycles []CycleRecord
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an Orchestrator over the given inference port. Configuration
// faults are returned here, before any section work can begin.
func New(port inference.Port, cfg Config, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	agentOpts := agents.Options{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		CallTimeout: cfg.CallTimeout,
		Terminology: cfg.Terminology,
		Retry:       inference.DefaultRetryPolicy(),
	}
	agentOpts.Retry.MaxRetries = cfg.MaxRetries

	o := &Orchestrator{
		cfg:       cfg,
		logger:    slog.Default(),
		ledger:    ledger.New(),
		emitter:   NewEmitter(runID, cfg.EventBuffer),
		evaluator: NewEvaluator(cfg.ConvergenceThreshold, cfg.MaxIterations, SimilarityByName(cfg.SimilarityStrategy)),
		runID:     runID,

		grammar:     agents.NewGrammar(port, agentOpts),
		technical:   agents.NewTechnical(port, agentOpts),
		validator:   agents.NewValidator(port, agentOpts),
		consistency: agents.NewConsistency(port, agentOpts),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Events returns the progress event channel. Consumers may subscribe or
// not; either way the run is unaffected.
func (o *Orchestrator) Events() <-chan Event {
	return o.emitter.Events()
}

// Ledger exposes the run's error ledger.
func (o *Orchestrator) Ledger() *ledger.Ledger {
	return o.ledger
}

// Run processes every section of the document to a terminal state, then
// performs one global consistency pass, and assembles the consolidated
// result. A single section's failure never aborts the run: the section is
// reported as a partial-failure entry and the others complete.
//
// On cancellation Run stops issuing new cycles and still returns a Result
// carrying every ledger entry accumulated so far, alongside ctx.Err().
func (o *Orchestrator) Run(ctx context.Context, doc *document.Document) (*Result, error) {
	start := time.Now()
	defer o.emitter.Close()

	doc.Status = document.StatusInProgress
	states := make(map[string]*ConvergenceState, len(doc.Sections))
	for _, sec := range doc.Sections {
		states[sec.ID] = o.evaluator.Begin(sec.ID)
	}

	o.logger.Info("run started", "run", o.runID, "sections", len(doc.Sections), "workers", o.cfg.Workers)
	o.emitter.Emit(EventRunStarted, "", map[string]interface{}{
		"sections": len(doc.Sections),
	})

	// Sections are independent: no cycle reads another section's mutable
	// state, so they process concurrently under a bounded pool. Worker
	// errors are captured in the section state, never returned, so one
	// failure cannot cancel the group.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for _, sec := range doc.Sections {
		g.Go(func() error {
			o.reviewSection(gctx, sec, states[sec.ID])
			return nil
		})
	}
	_ = g.Wait() // barrier: the consistency pass reads every finalized text

	if ctx.Err() == nil {
		o.consistencyPass(ctx, doc, states)
	}

	result := o.assemble(doc, states, time.Since(start), ctx.Err() != nil)
	o.logger.Info("run completed",
		"run", o.runID,
		"status", result.Status,
		"findings", result.Ledger.Total,
		"elapsed", result.Elapsed,
	)
	o.emitter.Emit(EventRunCompleted, "", map[string]interface{}{
		"status":   string(result.Status),
		"findings": result.Ledger.Total,
	})

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// reviewSection drives one section's iteration loop to a terminal state.
// Iterations are strictly sequential: cycle n+1 always starts from cycle
// n's committed text, never a re-read of the original.
func (o *Orchestrator) reviewSection(ctx context.Context, sec *document.Section, cs *ConvergenceState) {
	sec.Status = document.StatusInProgress
	cs.State = StateIterating
	o.emitter.Emit(EventSectionStarted, sec.ID, map[string]interface{}{
		"title":   sec.Title,
		"ordinal": sec.Ordinal,
	})

	for !cs.State.Terminal() {
		if ctx.Err() != nil {
			sec.Status = document.StatusCancelled
			return
		}

		prevText := sec.CurrentText
		rec, err := o.runCycle(ctx, sec, cs.Iteration+1)

		o.mu.Lock()
		o.cycles = append(o.cycles, *rec)
		o.mu.Unlock()

		if err != nil {
			if ctx.Err() != nil {
				sec.Status = document.StatusCancelled
				return
			}
			o.evaluator.Fail(cs, err)
			sec.Status = document.StatusFailed
			o.logger.Warn("section failed", "section", sec.ID, "iteration", rec.Iteration, "err", err)
			o.emitter.Emit(EventSectionFailed, sec.ID, map[string]interface{}{
				"iteration": rec.Iteration,
				"error":     err.Error(),
			})
			return
		}

		sec.CurrentText = rec.OutputText
		o.evaluator.Evaluate(cs, rec.NewFindings, prevText, sec.CurrentText)
		o.emitter.Emit(EventIterationCompleted, sec.ID, map[string]interface{}{
			"iteration":    cs.Iteration,
			"new_findings": rec.NewFindings,
			"similarity":   cs.LastSimilarity,
		})
	}

	switch cs.State {
	case StateConverged:
		sec.Status = document.StatusConverged
	case StateMaxIterationsReached:
		sec.Status = document.StatusMaxIterations
	}
	o.logger.Info("section finished",
		"section", sec.ID,
		"state", cs.State,
		"reason", cs.Reason,
		"iterations", cs.Iteration,
	)
	o.emitter.Emit(EventSectionConverged, sec.ID, map[string]interface{}{
		"state":      string(cs.State),
		"reason":     string(cs.Reason),
		"iterations": cs.Iteration,
	})
}

// consistencyPass runs the cross-section agent once over the finalized
// texts of every non-failed section. Its findings go to the ledger like any
// other; a fault here degrades the run but does not fail sections.
func (o *Orchestrator) consistencyPass(ctx context.Context, doc *document.Document, states map[string]*ConvergenceState) {
	var peers []inference.PeerSection
	for _, sec := range doc.Sections {
		if sec.Status == document.StatusFailed || sec.Status == document.StatusCancelled {
			continue
		}
		peers = append(peers, inference.PeerSection{
			ID:    sec.ID,
			Title: sec.Title,
			Text:  sec.CurrentText,
		})
	}
	if len(peers) < 2 {
		return
	}

	o.emitter.Emit(EventConsistencyStarted, "", map[string]interface{}{
		"sections": len(peers),
	})

	findings, usage, err := o.consistency.Check(ctx, peers)
	if err != nil {
		o.logger.Warn("consistency pass failed", "err", err)
		o.emitter.Emit(EventWarning, "", map[string]interface{}{
			"stage": "consistency",
			"error": err.Error(),
		})
		return
	}

	inserted := 0
	for _, f := range findings {
		if doc.SectionByID(f.SectionID) == nil && len(doc.Sections) > 0 {
			// Model referenced an unknown section; pin to the first peer so
			// the finding is not lost.
			f.SectionID = peers[0].ID
		}
		if o.ledger.Record(f) == ledger.Inserted {
			inserted++
		}
	}
	o.ledger.RecordCycle("", 0, usage.TotalTokens)
	o.logger.Info("consistency pass completed", "findings", len(findings), "new", inserted)
}

// assemble builds the consolidated result from the run's final state.
func (o *Orchestrator) assemble(doc *document.Document, states map[string]*ConvergenceState, elapsed time.Duration, cancelled bool) *Result {
	o.mu.Lock()
	cycles := make([]CycleRecord, len(o.cycles))
	copy(cycles, o.cycles)
	o.mu.Unlock()

	export := o.ledger.Export()
	result := &Result{
		RunID:    o.runID,
		Document: doc,
		Cycles:   cycles,
		Ledger:   export,
		Elapsed:  elapsed,
		Failures: make(map[string]string),
	}
	for _, rec := range cycles {
		result.Usage = result.Usage.Add(rec.Usage)
	}

	succeeded, failed := 0, 0
	for _, sec := range doc.Sections {
		cs := states[sec.ID]
		sr := SectionResult{
			SectionID: sec.ID,
			Title:     sec.Title,
			Status:    sec.Status,
			State:     *cs,
			FinalText: sec.CurrentText,
			Findings:  o.ledger.FindingsFor(sec.ID),
		}
		result.Sections = append(result.Sections, sr)

		switch sec.Status {
		case document.StatusFailed:
			failed++
			result.Failures[sec.ID] = cs.Err
		case document.StatusConverged, document.StatusMaxIterations:
			succeeded++
		}
	}

	switch {
	case cancelled:
		result.Status = RunCancelled
		doc.Status = document.StatusCancelled
	case failed == 0:
		result.Status = RunCompleted
		doc.Status = document.StatusConverged
	case succeeded == 0:
		result.Status = RunFailed
		doc.Status = document.StatusFailed
	default:
		result.Status = RunPartialFailure
		doc.Status = document.StatusConverged
	}
	return result
}
