package engine

// SectionState represents a section's position in the convergence state
// machine: Pending -> Iterating -> {Converged | MaxIterationsReached | Failed}.
type SectionState string

const (
	StatePending              SectionState = "pending"
	StateIterating            SectionState = "iterating"
	StateConverged            SectionState = "converged"
	StateMaxIterationsReached SectionState = "max_iterations_reached"
	StateFailed               SectionState = "failed"
)

// Terminal reports whether the state ends a section's iteration loop.
func (s SectionState) Terminal() bool {
	switch s {
	case StateConverged, StateMaxIterationsReached, StateFailed:
		return true
	}
	return false
}

// StopReason explains a terminal transition.
type StopReason string

const (
	ReasonNone          StopReason = ""
	ReasonNoNewFindings StopReason = "no-new-findings"
	ReasonSimilarity    StopReason = "similarity-above-threshold"
	ReasonMaxIterations StopReason = "max-iterations-reached"
	ReasonProviderFault StopReason = "provider-error-fatal"
)

// ConvergenceState is the per-section record the evaluator maintains.
type ConvergenceState struct {
	SectionID      string       `json:"section_id"`
	State          SectionState `json:"state"`
	Iteration      int          `json:"iteration"`
	LastFindings   int          `json:"last_findings"`
	LastSimilarity float64      `json:"last_similarity"`
	Reason         StopReason   `json:"reason,omitempty"`
	Err            string       `json:"error,omitempty"`
}

// Evaluator decides, after each cycle, whether a section keeps iterating.
type Evaluator struct {
	Threshold     float64 // similarity ratio that counts as converged
	MaxIterations int
	Metric        Similarity
}

// NewEvaluator creates an evaluator with the given thresholds.
func NewEvaluator(threshold float64, maxIterations int, metric Similarity) *Evaluator {
	if metric == nil {
		metric = LevenshteinSimilarity{}
	}
	return &Evaluator{Threshold: threshold, MaxIterations: maxIterations, Metric: metric}
}

// Begin returns the initial state for a section.
func (e *Evaluator) Begin(sectionID string) *ConvergenceState {
	return &ConvergenceState{SectionID: sectionID, State: StatePending}
}

// Fail transitions the section to Failed regardless of any other signal.
func (e *Evaluator) Fail(cs *ConvergenceState, err error) {
	cs.State = StateFailed
	cs.Reason = ReasonProviderFault
	if err != nil {
		cs.Err = err.Error()
	}
}

// Evaluate applies the transition rule after one completed cycle.
// newFindings is the count of previously-unseen findings the cycle
// produced; prevText/currText are the cycle's input and committed output.
//
// Zero new findings is the primary convergence witness: the model sees no
// actionable issues left. Similarity is a secondary economizer, so when the
// two signals disagree (new findings but stable text) the finding signal
// wins and iteration continues until the cap.
func (e *Evaluator) Evaluate(cs *ConvergenceState, newFindings int, prevText, currText string) {
	cs.Iteration++
	cs.LastFindings = newFindings
	cs.LastSimilarity = e.Metric.Ratio(prevText, currText)
	cs.State = StateIterating

	if newFindings == 0 {
		cs.State = StateConverged
		cs.Reason = ReasonNoNewFindings
		return
	}
	if cs.LastSimilarity >= e.Threshold {
		cs.State = StateConverged
		cs.Reason = ReasonSimilarity
		return
	}
	if cs.Iteration >= e.MaxIterations {
		cs.State = StateMaxIterationsReached
		cs.Reason = ReasonMaxIterations
	}
}
