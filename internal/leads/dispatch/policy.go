// Package dispatch holds the provider selection policy. It is a pure
// decision function over the candidate pool; the orchestration (creating
// assignments, appending events) lives in the leads service.
package dispatch

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LeadInfo is the slice of a lead the policy needs.
type LeadInfo struct {
	ServiceType string
	City        string
	PostalCode  string
}

// Candidate is one provider considered for a lead.
type Candidate struct {
	ProviderID    uuid.UUID
	ServiceType   string
	City          string
	PostalCode    string
	Active        bool
	AssignedToday int
	// LastAssignedAt is derived from the assignment table; nil means the
	// provider has never been assigned a lead.
	LastAssignedAt *time.Time
	ResponseRate   float64 // fraction of assignments viewed, 0..1
	Rating         float64 // average review score, 0..5
}

// qualityScore blends responsiveness and rating. Response rate dominates:
// a provider who answers leads beats a well-rated one who ignores them.
func (c Candidate) qualityScore() float64 {
	return 0.7*c.ResponseRate + 0.3*(c.Rating/5.0)
}

// eligible reports whether the candidate may receive the lead at all.
func eligible(lead LeadInfo, c Candidate, dailyCap int) bool {
	if !c.Active {
		return false
	}
	if dailyCap > 0 && c.AssignedToday >= dailyCap {
		return false
	}
	if !strings.EqualFold(c.ServiceType, lead.ServiceType) {
		return false
	}
	return locationMatches(lead, c)
}

// locationMatches accepts providers in the same city or the same
// département (first two digits of the French postal code).
func locationMatches(lead LeadInfo, c Candidate) bool {
	if c.City != "" && strings.EqualFold(c.City, lead.City) {
		return true
	}
	leadDept := departement(lead.PostalCode)
	provDept := departement(c.PostalCode)
	return leadDept != "" && leadDept == provDept
}

func departement(postalCode string) string {
	trimmed := strings.TrimSpace(postalCode)
	if len(trimmed) < 2 {
		return ""
	}
	return trimmed[:2]
}

// SelectCandidates returns the ordered waterfall of providers for a lead:
// eligible providers sorted by ascending time since last assignment
// (never-assigned first), ties broken by descending quality score, then by
// provider ID for determinism. The caller dispatches to the head and
// advances down the list on decline or expiry.
func SelectCandidates(lead LeadInfo, pool []Candidate, dailyCap int) []uuid.UUID {
	matched := make([]Candidate, 0, len(pool))
	for _, c := range pool {
		if eligible(lead, c, dailyCap) {
			matched = append(matched, c)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]

		aNever := a.LastAssignedAt == nil
		bNever := b.LastAssignedAt == nil
		switch {
		case aNever != bNever:
			return aNever
		case !aNever && !a.LastAssignedAt.Equal(*b.LastAssignedAt):
			return a.LastAssignedAt.Before(*b.LastAssignedAt)
		}

		if a.qualityScore() != b.qualityScore() {
			return a.qualityScore() > b.qualityScore()
		}
		return a.ProviderID.String() < b.ProviderID.String()
	})

	out := make([]uuid.UUID, len(matched))
	for i, c := range matched {
		out[i] = c.ProviderID
	}
	return out
}
