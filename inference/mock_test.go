package inference

import (
	"context"
	"testing"

	"github.com/redlinehq/redline/ledger"
)

func TestMockGrammarFindsAndFixesMisspellings(t *testing.T) {
	m := NewMockAdapter()

	result, err := m.Review(context.Background(), ReviewRequest{
		Role:        RoleGrammar,
		SectionText: "teh server will recieve data",
		Context:     ReviewContext{SectionID: "s1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CorrectedText != "the server will receive data" {
		t.Errorf("unexpected corrected text %q", result.CorrectedText)
	}
	if len(result.Findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(result.Findings))
	}
	if result.Findings[0].Category != ledger.CategoryGrammar {
		t.Errorf("expected grammar category, got %s", result.Findings[0].Category)
	}
	if result.Findings[0].Span.Start != 0 || result.Findings[0].Span.End != 3 {
		t.Errorf("unexpected span %+v", result.Findings[0].Span)
	}
}

func TestMockIsDeterministic(t *testing.T) {
	m := NewMockAdapter()
	req := ReviewRequest{Role: RoleGrammar, SectionText: "the adress occured twice"}

	first, err := m.Review(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := m.Review(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.CorrectedText != second.CorrectedText {
		t.Error("expected identical corrected text on repeat calls")
	}
	if len(first.Findings) != len(second.Findings) {
		t.Error("expected identical findings on repeat calls")
	}
}

func TestMockCorrectedTextYieldsNoFurtherFindings(t *testing.T) {
	m := NewMockAdapter()
	req := ReviewRequest{Role: RoleGrammar, SectionText: "we recieve teh adress"}

	first, err := m.Review(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	again, err := m.Review(context.Background(), ReviewRequest{
		Role:        RoleGrammar,
		SectionText: first.CorrectedText,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(again.Findings) != 0 {
		t.Errorf("expected no findings on corrected text, got %d", len(again.Findings))
	}
	if again.CorrectedText != first.CorrectedText {
		t.Errorf("expected text stable at fixpoint, got %q", again.CorrectedText)
	}
}

func TestMockValidatorApproves(t *testing.T) {
	m := NewMockAdapter()
	result, err := m.Review(context.Background(), ReviewRequest{
		Role:    RoleValidator,
		Context: ReviewContext{ProposedText: "proposed"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Verdict == nil || !result.Verdict.Approved {
		t.Error("expected approval verdict")
	}
	if result.CorrectedText != "proposed" {
		t.Errorf("expected proposed text echoed, got %q", result.CorrectedText)
	}
}

func TestMockScriptOverride(t *testing.T) {
	m := NewMockAdapter()
	m.Script = func(call int, req ReviewRequest) (*ReviewResult, error) {
		return &ReviewResult{CorrectedText: "scripted"}, nil
	}

	result, err := m.Review(context.Background(), ReviewRequest{Role: RoleGrammar, SectionText: "teh"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CorrectedText != "scripted" {
		t.Errorf("expected scripted result, got %q", result.CorrectedText)
	}
	if m.Calls() != 1 {
		t.Errorf("expected 1 call counted, got %d", m.Calls())
	}
}

func TestMockCancelledContext(t *testing.T) {
	m := NewMockAdapter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Review(ctx, ReviewRequest{Role: RoleGrammar, SectionText: "teh"})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*AbortError); !ok {
		t.Errorf("expected AbortError, got %T", err)
	}
}
