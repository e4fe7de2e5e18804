package ledger

import (
	"sort"
	"sync"
	"time"
)

// RecordOutcome is the result of a Record call.
type RecordOutcome int

const (
	Inserted RecordOutcome = iota
	AlreadyPresent
)

// Ledger is the deduplicated, append-only record of all findings in a run.
// Safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	byKey   map[string]*Finding
	order   []string // insertion order of keys
	cycles  map[string]int
	elapsed time.Duration
	tokens  int
}

// New creates an empty Ledger.
func New() *Ledger {
	return &Ledger{
		byKey:  make(map[string]*Finding),
		cycles: make(map[string]int),
	}
}

// Record inserts the finding if its identity key is not already present.
// The first recording wins; later duplicates do not overwrite attributes.
func (l *Ledger) Record(f Finding) RecordOutcome {
	if f.DetectedAt.IsZero() {
		f.DetectedAt = time.Now()
	}
	key := f.Key()

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byKey[key]; ok {
		return AlreadyPresent
	}
	stored := f
	l.byKey[key] = &stored
	l.order = append(l.order, key)
	return Inserted
}

// Reconcile compares one iteration's finding set for a section against the
// running set. Findings not previously seen are recorded and returned as
// newly introduced; open findings for the section that the iteration no
// longer reproduces are marked resolved and returned. Persisting findings
// are carried forward without duplication.
func (l *Ledger) Reconcile(sectionID string, iterationFindings []Finding) (introduced, resolved []Finding) {
	current := make(map[string]bool, len(iterationFindings))
	for _, f := range iterationFindings {
		current[f.Key()] = true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, f := range iterationFindings {
		key := f.Key()
		if _, ok := l.byKey[key]; ok {
			continue
		}
		if f.DetectedAt.IsZero() {
			f.DetectedAt = time.Now()
		}
		stored := f
		l.byKey[key] = &stored
		l.order = append(l.order, key)
		introduced = append(introduced, stored)
	}

	for _, key := range l.order {
		f := l.byKey[key]
		if f.SectionID != sectionID || f.Resolved || f.Disputed {
			continue
		}
		if !current[key] {
			f.Resolved = true
			resolved = append(resolved, *f)
		}
	}
	return introduced, resolved
}

// Dispute marks every recorded finding matching the given set as disputed.
// Used when the validator vetoes a cycle's combined correction.
func (l *Ledger) Dispute(findings []Finding) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range findings {
		if stored, ok := l.byKey[f.Key()]; ok {
			stored.Disputed = true
		}
	}
}

// RecordCycle accounts one completed cycle for per-section iteration counts
// and aggregate cost.
func (l *Ledger) RecordCycle(sectionID string, elapsed time.Duration, tokens int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if sectionID != "" {
		l.cycles[sectionID]++
	}
	l.elapsed += elapsed
	l.tokens += tokens
}

// Len returns the number of unique findings recorded so far.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byKey)
}

// FindingsFor returns copies of all findings recorded for a section, in
// insertion order.
func (l *Ledger) FindingsFor(sectionID string) []Finding {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Finding
	for _, key := range l.order {
		if f := l.byKey[key]; f.SectionID == sectionID {
			out = append(out, *f)
		}
	}
	return out
}

// Export is the full historical record handed to the report generator.
type Export struct {
	Total       int              `json:"total"`
	Open        int              `json:"open"`
	Resolved    int              `json:"resolved"`
	Disputed    int              `json:"disputed"`
	ByCategory  map[Category]int `json:"by_category"`
	Iterations  map[string]int   `json:"iterations_by_section"`
	Findings    []Finding        `json:"findings"`
	TotalTokens int              `json:"total_tokens"`
	TotalTime   time.Duration    `json:"total_time"`
}

// Export snapshots the ledger for reporting. Findings are ordered by
// section ID, then insertion order.
func (l *Ledger) Export() Export {
	l.mu.Lock()
	defer l.mu.Unlock()

	exp := Export{
		Total:       len(l.byKey),
		ByCategory:  make(map[Category]int),
		Iterations:  make(map[string]int, len(l.cycles)),
		TotalTokens: l.tokens,
		TotalTime:   l.elapsed,
	}
	for sec, n := range l.cycles {
		exp.Iterations[sec] = n
	}
	for _, key := range l.order {
		f := *l.byKey[key]
		exp.Findings = append(exp.Findings, f)
		exp.ByCategory[f.Category]++
		switch {
		case f.Disputed:
			exp.Disputed++
		case f.Resolved:
			exp.Resolved++
		default:
			exp.Open++
		}
	}
	sort.SliceStable(exp.Findings, func(i, j int) bool {
		return exp.Findings[i].SectionID < exp.Findings[j].SectionID
	})
	return exp
}
