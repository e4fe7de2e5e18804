package inference

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

// Prompt templates per agent role. Each instructs the model to answer with
// a bare JSON object matching the schema parseResponse expects.

const grammarTemplate = `You are a meticulous copy editor reviewing one section of a structured document.
Identify spelling, agreement, and punctuation problems in the text below.

Respond with a single JSON object:
{
  "findings": [
    {
      "category": "grammar",
      "severity": 1,
      "start": 0,
      "end": 0,
      "excerpt": "text with the problem",
      "suggested_fix": "corrected text",
      "description": "what is wrong and why"
    }
  ],
  "revised_text": "the full section text with all corrections applied"
}

Severity is 1 (minor) to 5 (critical). start/end are character offsets into
the section text. If the text is already correct, return an empty findings
array and the text unchanged. Do not add commentary outside the JSON.

Section text:
{{.SectionText}}`

const technicalTemplate = `You are a technical reviewer checking one section of a structured document
for terminology and normative conformance.
{{if .Terminology}}
Domain terminology reference:
{{.Terminology}}
{{end}}
Flag incorrect terminology, non-conforming phrasing, numeric errors, and
broken references. Respond with a single JSON object:
{
  "findings": [
    {
      "category": "technical",
      "severity": 1,
      "start": 0,
      "end": 0,
      "excerpt": "text with the problem",
      "suggested_fix": "corrected text",
      "description": "what is wrong and why"
    }
  ],
  "revised_text": "the full section text with all corrections applied"
}

Do not add commentary outside the JSON.

Section text:
{{.SectionText}}`

const validatorTemplate = `You are validating an automated revision of a document section. Confirm the
edit is safe: no semantic drift and no unintended deletion of content.

Original text:
{{.OriginalText}}

Proposed revision:
{{.ProposedText}}

Findings behind the revision:
{{.FindingsJSON}}

Respond with a single JSON object:
{"approved": true, "reason": "short justification"}

Set approved to false if the revision changes meaning, drops content, or
introduces new problems. Do not add commentary outside the JSON.`

const consistencyTemplate = `You are checking the finalized sections of a document for cross-section
consistency: contradictions, factual divergence, and differing conclusions
about the same fact.

Sections:
{{.PeersJSON}}

Respond with a single JSON object:
{
  "findings": [
    {
      "section_id": "id of the section where the contradiction surfaces",
      "category": "consistency",
      "severity": 1,
      "excerpt": "the contradicting text",
      "suggested_fix": "how to reconcile",
      "description": "which sections disagree and about what"
    }
  ]
}

Return an empty findings array if the sections are consistent. Do not add
commentary outside the JSON.`

var promptTemplates = map[AgentRole]*template.Template{
	RoleGrammar:     template.Must(template.New("grammar").Parse(grammarTemplate)),
	RoleTechnical:   template.Must(template.New("technical").Parse(technicalTemplate)),
	RoleValidator:   template.Must(template.New("validator").Parse(validatorTemplate)),
	RoleConsistency: template.Must(template.New("consistency").Parse(consistencyTemplate)),
}

type promptData struct {
	SectionText  string
	Terminology  string
	OriginalText string
	ProposedText string
	FindingsJSON string
	PeersJSON    string
}

// BuildPrompt renders the instruction profile for the request's role.
func BuildPrompt(req ReviewRequest) (string, error) {
	tmpl, ok := promptTemplates[req.Role]
	if !ok {
		return "", &ConfigError{Fault: Fault{Message: fmt.Sprintf("unknown agent role %q", req.Role)}}
	}

	data := promptData{
		SectionText:  req.SectionText,
		Terminology:  req.Context.Terminology,
		OriginalText: req.Context.OriginalText,
		ProposedText: req.Context.ProposedText,
	}
	if len(req.Context.Findings) > 0 {
		raw, err := json.Marshal(req.Context.Findings)
		if err != nil {
			return "", err
		}
		data.FindingsJSON = string(raw)
	}
	if len(req.Context.Peers) > 0 {
		raw, err := json.Marshal(req.Context.Peers)
		if err != nil {
			return "", err
		}
		data.PeersJSON = string(raw)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
