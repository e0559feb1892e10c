// Package service orchestrates the lead lifecycle: intake, waterfall
// dispatch, provider actions and expiry continuation. All state changes
// flow through the ledger and the CAS assignment store; the service never
// mutates lifecycle state in place.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"servicesartisans_backend/internal/events"
	"servicesartisans_backend/internal/leads/dispatch"
	"servicesartisans_backend/internal/leads/domain"
	"servicesartisans_backend/internal/leads/repository"
	"servicesartisans_backend/platform/apperr"
	"servicesartisans_backend/platform/config"
	platformevents "servicesartisans_backend/platform/events"
	"servicesartisans_backend/platform/logger"
	"servicesartisans_backend/platform/phone"
)

const defaultQuoteValidDays = 30

// CandidateSource supplies the provider pool considered for a lead.
// Implemented by the providers repository.
type CandidateSource interface {
	ListCandidates(ctx context.Context, lead dispatch.LeadInfo) ([]dispatch.Candidate, error)
}

// Service coordinates lead intake and lifecycle operations.
type Service struct {
	repo       repository.Store
	candidates CandidateSource
	bus        platformevents.Bus
	cfg        config.DispatchConfig
	log        *logger.Logger
}

// NewService creates a lead lifecycle service.
func NewService(repo repository.Store, candidates CandidateSource, bus platformevents.Bus, cfg config.DispatchConfig, log *logger.Logger) *Service {
	return &Service{
		repo:       repo,
		candidates: candidates,
		bus:        bus,
		cfg:        cfg,
		log:        log,
	}
}

// CreateLeadInput holds validated intake data.
type CreateLeadInput struct {
	ServiceType string
	City        string
	PostalCode  string
	Description string
	Urgency     string
	ClientName  string
	ClientEmail string
	ClientPhone string
}

// CreateLead persists a new lead, appends the created event and kicks off
// dispatch through the event bus. Dispatch failures never fail intake;
// OnLeadCreated is idempotent and the sweep loop retries stuck leads.
func (s *Service) CreateLead(ctx context.Context, input CreateLeadInput) (repository.Lead, error) {
	params := repository.CreateLeadParams{
		ServiceType: strings.TrimSpace(input.ServiceType),
		City:        strings.TrimSpace(input.City),
		PostalCode:  strings.TrimSpace(input.PostalCode),
		Description: strings.TrimSpace(input.Description),
		Urgency:     strings.TrimSpace(input.Urgency),
		ClientName:  strings.TrimSpace(input.ClientName),
	}
	if email := strings.TrimSpace(strings.ToLower(input.ClientEmail)); email != "" {
		params.ClientEmail = &email
	}
	if normalized := phone.NormalizeE164(input.ClientPhone); normalized != "" {
		params.ClientPhone = &normalized
	}

	lead, err := s.repo.CreateLead(ctx, params)
	if err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "could not create lead", err)
	}

	ev, err := s.repo.Append(ctx, repository.AppendEventParams{
		LeadID:    lead.ID,
		EventType: domain.EventCreated,
	})
	if err != nil {
		return repository.Lead{}, err
	}
	s.publishFact(ctx, ev, nil)

	return lead, nil
}

// GetLead returns one lead with its full event history.
func (s *Service) GetLead(ctx context.Context, id uuid.UUID) (repository.Lead, []repository.LeadEvent, error) {
	lead, err := s.repo.GetLead(ctx, id)
	if err != nil {
		return repository.Lead{}, nil, err
	}
	history, err := s.repo.ListEventsByLead(ctx, id)
	if err != nil {
		return repository.Lead{}, nil, err
	}
	return lead, history, nil
}

// OnLeadCreated reacts to a lead.created fact by dispatching the lead.
// It is safe to deliver the same fact more than once: an existing
// dispatched event or assignment makes it a no-op.
func (s *Service) OnLeadCreated(ctx context.Context, leadID uuid.UUID) error {
	dispatched, err := s.repo.HasEvent(ctx, leadID, domain.EventDispatched)
	if err != nil {
		return err
	}
	if dispatched {
		return nil
	}
	existing, err := s.repo.ListAssignmentsByLead(ctx, leadID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	_, err = s.Dispatch(ctx, leadID)
	return err
}

// Dispatch assigns the lead to the best eligible provider not yet tried.
// The first dispatch appends a dispatched event; waterfall continuations
// append reassigned with fromProviderId/toProviderId metadata. When no
// eligible provider remains the lead is expired with reason no_candidates.
func (s *Service) Dispatch(ctx context.Context, leadID uuid.UUID) (*repository.Assignment, error) {
	lead, err := s.repo.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	previous, err := s.repo.ListAssignmentsByLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	tried := make(map[uuid.UUID]struct{}, len(previous))
	var lastProvider *uuid.UUID
	for i := range previous {
		a := previous[i]
		tried[a.ProviderID] = struct{}{}
		if !domain.IsTerminal(a.Status) {
			// A provider is still working the lead; nothing to do.
			return &a, nil
		}
		pid := a.ProviderID
		lastProvider = &pid
	}

	info := dispatch.LeadInfo{
		ServiceType: lead.ServiceType,
		City:        lead.City,
		PostalCode:  lead.PostalCode,
	}
	pool, err := s.candidates.ListCandidates(ctx, info)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "could not load candidate pool", err)
	}

	ordered := dispatch.SelectCandidates(info, pool, s.cfg.GetDailyAssignmentCap())
	var next *uuid.UUID
	for _, id := range ordered {
		if _, done := tried[id]; !done {
			picked := id
			next = &picked
			break
		}
	}

	if next == nil {
		return nil, s.expireNoCandidates(ctx, lead)
	}

	eventType := domain.EventDispatched
	metadata := map[string]any(nil)
	if len(previous) > 0 {
		eventType = domain.EventReassigned
		metadata = map[string]any{domain.MetaKeyToProvider: next.String()}
		if lastProvider != nil {
			metadata[domain.MetaKeyFromProvider] = lastProvider.String()
		}
	}

	assignment, err := s.repo.CreateAssignment(ctx, leadID, *next, repository.AppendEventParams{
		LeadID:     leadID,
		ProviderID: next,
		EventType:  eventType,
		Metadata:   metadata,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateAssignment) {
			// A racing dispatch already created the pairing.
			return nil, nil
		}
		return nil, err
	}

	s.log.LeadEvent(leadID.String(), next.String(), string(eventType))
	s.publishFact(ctx, repository.LeadEvent{
		LeadID:     leadID,
		ProviderID: next,
		EventType:  eventType,
		Metadata:   metadata,
	}, &assignment.ID)

	return &assignment, nil
}

func (s *Service) expireNoCandidates(ctx context.Context, lead repository.Lead) error {
	// Re-triggered dispatch on an exhausted pool must not pile up expired
	// events or re-notify the client.
	already, err := s.repo.HasTerminalExpiry(ctx, lead.ID)
	if err != nil {
		return err
	}
	if already {
		return nil
	}

	s.log.NoCoverage(lead.ID.String(), lead.ServiceType, lead.City)

	metadata := map[string]any{domain.MetaKeyReason: domain.ReasonNoCandidates}
	ev, err := s.repo.Append(ctx, repository.AppendEventParams{
		LeadID:    lead.ID,
		EventType: domain.EventExpired,
		Metadata:  metadata,
	})
	if err != nil {
		return err
	}
	s.publishFact(ctx, ev, nil)
	return nil
}

// ViewLead records that the provider opened the lead. Viewing is only a
// transition out of pending; on an already viewed (or later) assignment it
// returns current state unchanged so repeat opens stay idempotent.
func (s *Service) ViewLead(ctx context.Context, assignmentID, providerID uuid.UUID) (repository.Assignment, error) {
	assignment, err := s.repo.GetAssignmentForProvider(ctx, assignmentID, providerID)
	if err != nil {
		return repository.Assignment{}, err
	}
	if assignment.Status != domain.StatusPending {
		return assignment, nil
	}

	updated, ev, err := s.repo.Transition(ctx, repository.TransitionParams{
		AssignmentID:    assignmentID,
		ExpectedVersion: assignment.Version,
		NewStatus:       domain.StatusViewed,
	})
	if err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			// Lost the race, likely to the sweeper or a duplicate tap;
			// surface current state instead of an error.
			return s.repo.GetAssignmentForProvider(ctx, assignmentID, providerID)
		}
		return repository.Assignment{}, err
	}

	s.log.LeadEvent(updated.LeadID.String(), providerID.String(), string(ev.EventType))
	s.publishFact(ctx, ev, &updated.ID)
	return updated, nil
}

// QuoteInput is a provider's priced offer.
type QuoteInput struct {
	AmountCents int64
	Details     string
	ValidDays   int
}

// SendQuote transitions the assignment to quoted and persists the quote in
// the same transaction. The assignment must have been viewed first.
func (s *Service) SendQuote(ctx context.Context, assignmentID, providerID uuid.UUID, input QuoteInput) (repository.Assignment, error) {
	if input.AmountCents <= 0 {
		return repository.Assignment{}, apperr.Validation("quote amount must be positive")
	}
	validDays := input.ValidDays
	if validDays <= 0 {
		validDays = defaultQuoteValidDays
	}

	assignment, err := s.repo.GetAssignmentForProvider(ctx, assignmentID, providerID)
	if err != nil {
		return repository.Assignment{}, err
	}

	quote := &repository.QuoteParams{
		AmountCents: input.AmountCents,
		ValidUntil:  time.Now().AddDate(0, 0, validDays),
	}
	if details := strings.TrimSpace(input.Details); details != "" {
		quote.Details = &details
	}

	updated, ev, err := s.repo.Transition(ctx, repository.TransitionParams{
		AssignmentID:    assignmentID,
		ExpectedVersion: assignment.Version,
		NewStatus:       domain.StatusQuoted,
		Metadata: map[string]any{
			domain.MetaKeyAmountCents: input.AmountCents,
			domain.MetaKeyValidDays:   validDays,
		},
		Quote: quote,
	})
	if err != nil {
		return repository.Assignment{}, err
	}

	s.log.LeadEvent(updated.LeadID.String(), providerID.String(), string(ev.EventType))
	s.publishFact(ctx, ev, &updated.ID)
	return updated, nil
}

// DeclineLead marks the assignment declined and advances the waterfall to
// the next candidate.
func (s *Service) DeclineLead(ctx context.Context, assignmentID, providerID uuid.UUID, reason string) (repository.Assignment, error) {
	assignment, err := s.repo.GetAssignmentForProvider(ctx, assignmentID, providerID)
	if err != nil {
		return repository.Assignment{}, err
	}

	var metadata map[string]any
	if reason = strings.TrimSpace(reason); reason != "" {
		metadata = map[string]any{domain.MetaKeyReason: reason}
	}

	updated, ev, err := s.repo.Transition(ctx, repository.TransitionParams{
		AssignmentID:    assignmentID,
		ExpectedVersion: assignment.Version,
		NewStatus:       domain.StatusDeclined,
		Metadata:        metadata,
	})
	if err != nil {
		return repository.Assignment{}, err
	}

	s.log.LeadEvent(updated.LeadID.String(), providerID.String(), string(ev.EventType))
	s.publishFact(ctx, ev, &updated.ID)

	if _, err := s.Dispatch(ctx, updated.LeadID); err != nil {
		// The decline itself committed; a failed continuation is retried
		// by the periodic sweep.
		s.log.DatabaseError("dispatch continuation", err)
	}

	return updated, nil
}

// AcceptQuote transitions a quoted assignment to accepted. A quote past its
// validity window can no longer be accepted; the sweeper expires such
// assignments and moves the lead down the waterfall.
func (s *Service) AcceptQuote(ctx context.Context, assignmentID, providerID uuid.UUID) (repository.Assignment, error) {
	assignment, err := s.repo.GetAssignmentForProvider(ctx, assignmentID, providerID)
	if err != nil {
		return repository.Assignment{}, err
	}
	if assignment.Status == domain.StatusQuoted {
		quote, err := s.repo.GetQuoteByAssignment(ctx, assignmentID)
		if err != nil {
			return repository.Assignment{}, err
		}
		if time.Now().After(quote.ValidUntil) {
			return repository.Assignment{}, domain.ErrQuoteExpired
		}
	}
	return s.transitionFor(ctx, assignmentID, providerID, domain.StatusAccepted, nil)
}

// CompleteJob transitions an accepted assignment to completed, the happy
// end of the funnel.
func (s *Service) CompleteJob(ctx context.Context, assignmentID, providerID uuid.UUID) (repository.Assignment, error) {
	return s.transitionFor(ctx, assignmentID, providerID, domain.StatusCompleted, nil)
}

// ListActiveAssignments returns the provider's open work queue.
func (s *Service) ListActiveAssignments(ctx context.Context, providerID uuid.UUID) ([]repository.Assignment, error) {
	return s.repo.ListActiveByProvider(ctx, providerID)
}

func (s *Service) transitionFor(ctx context.Context, assignmentID, providerID uuid.UUID, status domain.AssignmentStatus, metadata map[string]any) (repository.Assignment, error) {
	assignment, err := s.repo.GetAssignmentForProvider(ctx, assignmentID, providerID)
	if err != nil {
		return repository.Assignment{}, err
	}

	updated, ev, err := s.repo.Transition(ctx, repository.TransitionParams{
		AssignmentID:    assignmentID,
		ExpectedVersion: assignment.Version,
		NewStatus:       status,
		Metadata:        metadata,
	})
	if err != nil {
		return repository.Assignment{}, err
	}

	s.log.LeadEvent(updated.LeadID.String(), providerID.String(), string(ev.EventType))
	s.publishFact(ctx, ev, &updated.ID)
	return updated, nil
}

// Expire force-expires one assignment with the given reason. Used by the
// sweeper; a version conflict means a provider acted between the snapshot
// and the expiry attempt and is reported as such for the caller to skip.
func (s *Service) Expire(ctx context.Context, assignment repository.Assignment, reason string) error {
	updated, ev, err := s.repo.Transition(ctx, repository.TransitionParams{
		AssignmentID:    assignment.ID,
		ExpectedVersion: assignment.Version,
		NewStatus:       domain.StatusExpired,
		Metadata:        map[string]any{domain.MetaKeyReason: reason},
	})
	if err != nil {
		return err
	}

	s.log.LeadEvent(updated.LeadID.String(), updated.ProviderID.String(), string(ev.EventType))
	s.publishFact(ctx, ev, &updated.ID)

	if _, err := s.Dispatch(ctx, updated.LeadID); err != nil {
		s.log.DatabaseError("dispatch continuation", err)
	}
	return nil
}

func (s *Service) publishFact(ctx context.Context, ev repository.LeadEvent, assignmentID *uuid.UUID) {
	if s.bus == nil {
		return
	}
	name := events.FactNameFor(string(ev.EventType))
	if name == "" {
		return
	}
	s.bus.Publish(ctx, events.NewLeadFact(name, ev.LeadID, ev.ProviderID, assignmentID, string(ev.EventType), ev.Metadata))
}
