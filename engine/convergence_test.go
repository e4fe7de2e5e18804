package engine

import (
	"errors"
	"testing"
)

func TestEvaluateConvergesOnNoNewFindings(t *testing.T) {
	e := NewEvaluator(0.95, 5, LevenshteinSimilarity{})
	cs := e.Begin("s1")

	e.Evaluate(cs, 0, "some text here", "completely rewritten text")
	if cs.State != StateConverged {
		t.Fatalf("expected Converged, got %s", cs.State)
	}
	if cs.Reason != ReasonNoNewFindings {
		t.Errorf("expected reason %s, got %s", ReasonNoNewFindings, cs.Reason)
	}
	if cs.Iteration != 1 {
		t.Errorf("expected iteration 1, got %d", cs.Iteration)
	}
}

func TestEvaluateNoNewFindingsTakesPrecedenceOverSimilarity(t *testing.T) {
	e := NewEvaluator(0.95, 5, LevenshteinSimilarity{})
	cs := e.Begin("s1")

	// Identical texts also satisfy the similarity check; the finding
	// signal is reported as the stop reason.
	e.Evaluate(cs, 0, "unchanged text", "unchanged text")
	if cs.Reason != ReasonNoNewFindings {
		t.Errorf("expected reason %s, got %s", ReasonNoNewFindings, cs.Reason)
	}
}

func TestEvaluateConvergesOnSimilarity(t *testing.T) {
	e := NewEvaluator(0.95, 5, LevenshteinSimilarity{})
	cs := e.Begin("s1")

	text := "a long stable paragraph of prose that the reviewers barely touch at all"
	e.Evaluate(cs, 1, text, text+".")
	if cs.State != StateConverged {
		t.Fatalf("expected Converged, got %s", cs.State)
	}
	if cs.Reason != ReasonSimilarity {
		t.Errorf("expected reason %s, got %s", ReasonSimilarity, cs.Reason)
	}
}

func TestEvaluateKeepsIteratingBelowThreshold(t *testing.T) {
	e := NewEvaluator(0.95, 5, LevenshteinSimilarity{})
	cs := e.Begin("s1")

	e.Evaluate(cs, 3, "original wording", "substantially different wording now")
	if cs.State != StateIterating {
		t.Errorf("expected Iterating, got %s", cs.State)
	}
	if cs.Reason != ReasonNone {
		t.Errorf("expected no reason yet, got %s", cs.Reason)
	}
}

func TestEvaluateStopsAtMaxIterations(t *testing.T) {
	e := NewEvaluator(0.95, 5, LevenshteinSimilarity{})
	cs := e.Begin("s1")

	// Each cycle keeps producing new findings over heavily edited text.
	texts := []string{
		"the first draft of this paragraph",
		"a thoroughly changed second draft entirely",
		"yet another completely new rendition appears",
		"nothing like the previous fourth version",
		"final fifth rewrite with different words",
		"and one more shape it will never reach",
	}
	for i := 0; i < 5; i++ {
		if cs.State.Terminal() {
			t.Fatalf("terminal state %s before iteration %d", cs.State, i+1)
		}
		e.Evaluate(cs, 1, texts[i], texts[i+1])
	}

	if cs.State != StateMaxIterationsReached {
		t.Fatalf("expected MaxIterationsReached, got %s", cs.State)
	}
	if cs.Reason != ReasonMaxIterations {
		t.Errorf("expected reason %s, got %s", ReasonMaxIterations, cs.Reason)
	}
	if cs.Iteration != 5 {
		t.Errorf("expected exactly 5 iterations, got %d", cs.Iteration)
	}
}

func TestFailOverridesEverything(t *testing.T) {
	e := NewEvaluator(0.95, 5, LevenshteinSimilarity{})
	cs := e.Begin("s1")
	e.Evaluate(cs, 2, "a", "completely different")

	e.Fail(cs, errors.New("provider exploded"))
	if cs.State != StateFailed {
		t.Fatalf("expected Failed, got %s", cs.State)
	}
	if cs.Reason != ReasonProviderFault {
		t.Errorf("expected reason %s, got %s", ReasonProviderFault, cs.Reason)
	}
	if cs.Err != "provider exploded" {
		t.Errorf("expected error message captured, got %q", cs.Err)
	}
}

func TestTerminalStates(t *testing.T) {
	terminal := []SectionState{StateConverged, StateMaxIterationsReached, StateFailed}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []SectionState{StatePending, StateIterating} {
		if s.Terminal() {
			t.Errorf("expected %s not to be terminal", s)
		}
	}
}
