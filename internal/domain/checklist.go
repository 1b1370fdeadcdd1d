package domain

import "fmt"

// ChecklistKind identifies one of the generated per-grant checklists.
type ChecklistKind string

const (
	// KindEligibility covers hard eligibility requirements.
	KindEligibility ChecklistKind = "eligibility"
	// KindCompetitiveness covers factors that make an application competitive.
	KindCompetitiveness ChecklistKind = "competitiveness"
	// KindExclusions covers disqualifying conditions.
	KindExclusions ChecklistKind = "exclusions"
)

// AllChecklistKinds returns every checklist kind in canonical order.
func AllChecklistKinds() []ChecklistKind {
	return []ChecklistKind{KindEligibility, KindCompetitiveness, KindExclusions}
}

// ParseChecklistKind validates a string as a checklist kind.
func ParseChecklistKind(s string) (ChecklistKind, error) {
	switch ChecklistKind(s) {
	case KindEligibility, KindCompetitiveness, KindExclusions:
		return ChecklistKind(s), nil
	default:
		return "", fmt.Errorf("unknown checklist kind %q", s)
	}
}

// KindSet is a set of requested checklist kinds.
type KindSet map[ChecklistKind]struct{}

// NewKindSet builds a set from the given kinds. With no arguments the set
// contains every kind.
func NewKindSet(kinds ...ChecklistKind) KindSet {
	if len(kinds) == 0 {
		kinds = AllChecklistKinds()
	}
	set := make(KindSet, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return set
}

// Contains reports whether kind is in the set.
func (s KindSet) Contains(kind ChecklistKind) bool {
	_, ok := s[kind]
	return ok
}

// Kinds returns the members of the set in canonical order.
func (s KindSet) Kinds() []ChecklistKind {
	kinds := make([]ChecklistKind, 0, len(s))
	for _, k := range AllChecklistKinds() {
		if s.Contains(k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Checklist is one generated checklist for a grant.
type Checklist struct {
	Kind        ChecklistKind `json:"kind"`
	Items       []string      `json:"checklist_items"`
	GeneratedAt string        `json:"generated_at,omitempty"`
	Model       string        `json:"model,omitempty"`
}

// ChecklistSet holds the generated checklists of a grant keyed by kind.
type ChecklistSet map[ChecklistKind]*Checklist

// Has reports whether a non-empty checklist exists for kind.
func (cs ChecklistSet) Has(kind ChecklistKind) bool {
	c, ok := cs[kind]
	return ok && c != nil && len(c.Items) > 0
}
