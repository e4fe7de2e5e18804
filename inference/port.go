// Package inference abstracts "submit prompt, get structured findings" over
// interchangeable AI providers. The engine depends only on the Port
// interface; concrete adapters for Gemini, Groq, OpenRouter, and an offline
// mock live alongside it and map provider-specific faults into a common
// taxonomy.
package inference

import (
	"context"

	"github.com/redlinehq/redline/ledger"
)

// AgentRole selects the instruction profile used for a review call.
type AgentRole string

const (
	RoleGrammar     AgentRole = "grammar"
	RoleTechnical   AgentRole = "technical"
	RoleValidator   AgentRole = "validator"
	RoleConsistency AgentRole = "consistency"
)

// PeerSection is a finalized section supplied to the consistency role.
type PeerSection struct {
	ID    string
	Title string
	Text  string
}

// ReviewContext carries role-specific inputs beyond the section text.
type ReviewContext struct {
	SectionID    string
	OriginalText string          // validator: text before the cycle's edits
	ProposedText string          // validator: combined proposed correction
	Findings     []ledger.Finding // validator: findings backing the proposal
	Peers        []PeerSection   // consistency: all finalized sections
	Terminology  string          // technical: domain terminology reference
}

// ReviewRequest is one inference call.
type ReviewRequest struct {
	Role        AgentRole
	SectionText string
	Context     ReviewContext
	Model       string
	Temperature float64
	MaxTokens   int
}

// Verdict is the validator's judgment of a proposed correction.
type Verdict struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

// Usage tracks token consumption for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add returns the sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}

// ReviewResult is the structured outcome of a review call.
type ReviewResult struct {
	Findings      []ledger.Finding
	CorrectedText string
	Verdict       *Verdict // set only for RoleValidator
	Usage         Usage
}

// Port is the capability every provider adapter implements. Calls have no
// side effects beyond the outbound request and must honor ctx cancellation.
type Port interface {
	// Review submits the section text under the role's instruction profile
	// and parses the response into findings plus a corrected text.
	Review(ctx context.Context, req ReviewRequest) (*ReviewResult, error)

	// ListAvailableModels returns the model identifiers the provider offers.
	ListAvailableModels(ctx context.Context) ([]string, error)

	// Name returns the provider identifier (e.g. "gemini", "groq").
	Name() string
}
