// Package service folds the event ledger into funnel and provider KPIs.
// There are no mutable counters anywhere: every number is recomputed from
// facts on each request, so stats can never drift from the ledger.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"servicesartisans_backend/internal/leads/domain"
	"servicesartisans_backend/internal/stats/repository"
)

// FunnelStages lists the happy-path stages in order. A lead counts toward a
// stage when at least one event of that type exists for it.
var FunnelStages = []domain.EventType{
	domain.EventCreated,
	domain.EventDispatched,
	domain.EventViewed,
	domain.EventQuoted,
	domain.EventAccepted,
	domain.EventCompleted,
}

// FunnelStage is one step of the conversion funnel.
type FunnelStage struct {
	Stage string  `json:"stage"`
	Count int     `json:"count"`
	Rate  float64 `json:"rate"` // fraction of created leads that reached this stage
}

// FunnelReport is the aggregate over a time window.
type FunnelReport struct {
	From           time.Time     `json:"from"`
	To             time.Time     `json:"to"`
	Stages         []FunnelStage `json:"stages"`
	DeclinedLeads  int           `json:"declinedLeads"`
	ExpiredLeads   int           `json:"expiredLeads"`
	Reassignments  int           `json:"reassignments"`
	ConversionRate float64       `json:"conversionRate"` // quoted or better / created
}

// ProviderReport holds per-provider KPIs derived from assignments.
type ProviderReport struct {
	ProviderID         uuid.UUID `json:"providerId"`
	TotalAssignments   int       `json:"totalAssignments"`
	Completed          int       `json:"completed"`
	Declined           int       `json:"declined"`
	Missed             int       `json:"missed"` // expired without action
	AvgResponseMinutes float64   `json:"avgResponseMinutes"`
	ConversionRate     float64   `json:"conversionRate"` // quoted or better / total
}

// EventSource is the ledger read model the aggregator folds.
type EventSource interface {
	ListEventsBetween(ctx context.Context, from, to time.Time) ([]repository.EventRow, error)
	ListAssignmentsByProvider(ctx context.Context, providerID uuid.UUID, since time.Time) ([]repository.AssignmentRow, error)
}

type Service struct {
	repo EventSource
}

func New(repo EventSource) *Service {
	return &Service{repo: repo}
}

// Funnel replays the ledger over [from, to) into a conversion report.
func (s *Service) Funnel(ctx context.Context, from, to time.Time) (FunnelReport, error) {
	events, err := s.repo.ListEventsBetween(ctx, from, to)
	if err != nil {
		return FunnelReport{}, err
	}
	return foldFunnel(from, to, events), nil
}

// foldFunnel is the pure aggregation over a window of ledger events.
func foldFunnel(from, to time.Time, events []repository.EventRow) FunnelReport {
	// reached[stage] holds the set of leads with at least one such event.
	reached := make(map[domain.EventType]map[uuid.UUID]struct{})
	reassignments := 0

	for _, ev := range events {
		t := domain.EventType(ev.EventType)
		if t == domain.EventReassigned {
			reassignments++
		}
		set, ok := reached[t]
		if !ok {
			set = make(map[uuid.UUID]struct{})
			reached[t] = set
		}
		set[ev.LeadID] = struct{}{}
	}

	created := len(reached[domain.EventCreated])
	report := FunnelReport{
		From:          from,
		To:            to,
		Stages:        make([]FunnelStage, 0, len(FunnelStages)),
		DeclinedLeads: len(reached[domain.EventDeclined]),
		ExpiredLeads:  len(reached[domain.EventExpired]),
		Reassignments: reassignments,
	}

	for _, stage := range FunnelStages {
		count := len(reached[stage])
		rate := 0.0
		if created > 0 {
			rate = float64(count) / float64(created)
		}
		report.Stages = append(report.Stages, FunnelStage{
			Stage: string(stage),
			Count: count,
			Rate:  rate,
		})
	}

	if created > 0 {
		report.ConversionRate = float64(len(reached[domain.EventQuoted])) / float64(created)
	}
	return report
}

// Provider folds a provider's assignment history since the given instant
// into KPIs (zero since means all history). Response time only counts
// viewed assignments: an open pending interval has no response yet and
// must not drag the average.
func (s *Service) Provider(ctx context.Context, providerID uuid.UUID, since time.Time) (ProviderReport, error) {
	assignments, err := s.repo.ListAssignmentsByProvider(ctx, providerID, since)
	if err != nil {
		return ProviderReport{}, err
	}
	return foldProvider(providerID, assignments), nil
}

func foldProvider(providerID uuid.UUID, assignments []repository.AssignmentRow) ProviderReport {
	report := ProviderReport{ProviderID: providerID, TotalAssignments: len(assignments)}

	var responded int
	var responseSum time.Duration
	var quotedOrBetter int

	for _, a := range assignments {
		switch domain.AssignmentStatus(a.Status) {
		case domain.StatusCompleted:
			report.Completed++
			quotedOrBetter++
		case domain.StatusAccepted, domain.StatusQuoted:
			quotedOrBetter++
		case domain.StatusDeclined:
			report.Declined++
		case domain.StatusExpired:
			if a.ViewedAt == nil {
				report.Missed++
			}
		}

		if a.ViewedAt != nil {
			responded++
			responseSum += a.ViewedAt.Sub(a.AssignedAt)
		}
	}

	if responded > 0 {
		report.AvgResponseMinutes = responseSum.Minutes() / float64(responded)
	}
	if len(assignments) > 0 {
		report.ConversionRate = float64(quotedOrBetter) / float64(len(assignments))
	}
	return report
}
