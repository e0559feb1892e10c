package dispatch

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

var parisLead = LeadInfo{ServiceType: "plombier", City: "Paris", PostalCode: "75011"}

func candidate(opts ...func(*Candidate)) Candidate {
	c := Candidate{
		ProviderID:   uuid.New(),
		ServiceType:  "plombier",
		City:         "Paris",
		PostalCode:   "75015",
		Active:       true,
		ResponseRate: 0.5,
		Rating:       4.0,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func assignedAt(t time.Time) func(*Candidate) {
	return func(c *Candidate) { c.LastAssignedAt = &t }
}

func TestSelectCandidatesFairnessOldestFirst(t *testing.T) {
	now := time.Now()
	oldest := candidate(assignedAt(now.Add(-72 * time.Hour)))
	middle := candidate(assignedAt(now.Add(-24 * time.Hour)))
	newest := candidate(assignedAt(now.Add(-1 * time.Hour)))

	got := SelectCandidates(parisLead, []Candidate{newest, oldest, middle}, 10)
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	if got[0] != oldest.ProviderID || got[1] != middle.ProviderID || got[2] != newest.ProviderID {
		t.Fatalf("expected least-recently-assigned ordering, got %v", got)
	}
}

func TestSelectCandidatesNeverAssignedComesFirst(t *testing.T) {
	seasoned := candidate(assignedAt(time.Now().Add(-30 * 24 * time.Hour)))
	fresh := candidate()

	got := SelectCandidates(parisLead, []Candidate{seasoned, fresh}, 10)
	if len(got) != 2 || got[0] != fresh.ProviderID {
		t.Fatalf("never-assigned provider must lead the waterfall, got %v", got)
	}
}

func TestSelectCandidatesTieBrokenByQuality(t *testing.T) {
	ts := time.Now().Add(-24 * time.Hour)
	responsive := candidate(assignedAt(ts), func(c *Candidate) {
		c.ResponseRate = 0.9
		c.Rating = 3.0
	})
	rated := candidate(assignedAt(ts), func(c *Candidate) {
		c.ResponseRate = 0.2
		c.Rating = 5.0
	})

	got := SelectCandidates(parisLead, []Candidate{rated, responsive}, 10)
	if len(got) != 2 || got[0] != responsive.ProviderID {
		t.Fatalf("response rate should outweigh rating on ties, got %v", got)
	}
}

func TestSelectCandidatesFiltersIneligible(t *testing.T) {
	inactive := candidate(func(c *Candidate) { c.Active = false })
	wrongTrade := candidate(func(c *Candidate) { c.ServiceType = "electricien" })
	farAway := candidate(func(c *Candidate) {
		c.City = "Marseille"
		c.PostalCode = "13001"
	})
	capped := candidate(func(c *Candidate) { c.AssignedToday = 10 })
	ok := candidate()

	got := SelectCandidates(parisLead, []Candidate{inactive, wrongTrade, farAway, capped, ok}, 10)
	if len(got) != 1 || got[0] != ok.ProviderID {
		t.Fatalf("expected only the eligible candidate, got %v", got)
	}
}

func TestSelectCandidatesMatchesByDepartement(t *testing.T) {
	suburb := candidate(func(c *Candidate) {
		c.City = "Boulogne-Billancourt"
		c.PostalCode = "75020"
	})

	got := SelectCandidates(parisLead, []Candidate{suburb}, 10)
	if len(got) != 1 {
		t.Fatalf("same-departement provider must match, got %v", got)
	}
}

func TestSelectCandidatesServiceMatchIsCaseInsensitive(t *testing.T) {
	c := candidate(func(c *Candidate) { c.ServiceType = "Plombier" })
	if got := SelectCandidates(parisLead, []Candidate{c}, 10); len(got) != 1 {
		t.Fatalf("service type match must ignore case, got %v", got)
	}
}

func TestSelectCandidatesEmptyPool(t *testing.T) {
	if got := SelectCandidates(parisLead, nil, 10); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestSelectCandidatesZeroCapDisablesLimit(t *testing.T) {
	busy := candidate(func(c *Candidate) { c.AssignedToday = 500 })
	if got := SelectCandidates(parisLead, []Candidate{busy}, 0); len(got) != 1 {
		t.Fatalf("cap of 0 must disable the daily limit, got %v", got)
	}
}
