package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"servicesartisans_backend/internal/events"
	"servicesartisans_backend/internal/leads/dispatch"
	"servicesartisans_backend/internal/leads/domain"
	"servicesartisans_backend/internal/leads/repository"
	platformevents "servicesartisans_backend/platform/events"
	"servicesartisans_backend/platform/logger"
)

// fakeStore is an in-memory repository.Store with the same CAS and
// append-only semantics as the Postgres implementation.
type fakeStore struct {
	mu          sync.Mutex
	leads       map[uuid.UUID]repository.Lead
	events      []repository.LeadEvent
	assignments map[uuid.UUID]repository.Assignment
	order       []uuid.UUID // assignment insertion order
	quotes      []repository.Quote
	seq         int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		leads:       make(map[uuid.UUID]repository.Lead),
		assignments: make(map[uuid.UUID]repository.Assignment),
	}
}

func (f *fakeStore) CreateLead(_ context.Context, params repository.CreateLeadParams) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead := repository.Lead{
		ID:          uuid.New(),
		ServiceType: params.ServiceType,
		City:        params.City,
		PostalCode:  params.PostalCode,
		Description: params.Description,
		Urgency:     params.Urgency,
		ClientName:  params.ClientName,
		ClientEmail: params.ClientEmail,
		ClientPhone: params.ClientPhone,
		Status:      string(domain.EventCreated),
		CreatedAt:   time.Now(),
	}
	f.leads[lead.ID] = lead
	return lead, nil
}

func (f *fakeStore) GetLead(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, domain.ErrLeadNotFound
	}
	return lead, nil
}

func (f *fakeStore) appendLocked(params repository.AppendEventParams) (repository.LeadEvent, error) {
	if !domain.IsValidEventType(params.EventType) {
		return repository.LeadEvent{}, domain.ErrInvalidEventType
	}
	lead, ok := f.leads[params.LeadID]
	if !ok {
		return repository.LeadEvent{}, domain.ErrUnknownLead
	}
	f.seq++
	ev := repository.LeadEvent{
		ID:         uuid.New(),
		LeadID:     params.LeadID,
		ProviderID: params.ProviderID,
		EventType:  params.EventType,
		Metadata:   params.Metadata,
		Seq:        f.seq,
		CreatedAt:  time.Now(),
	}
	f.events = append(f.events, ev)
	lead.Status = string(params.EventType)
	f.leads[params.LeadID] = lead
	return ev, nil
}

func (f *fakeStore) Append(_ context.Context, params repository.AppendEventParams) (repository.LeadEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appendLocked(params)
}

func (f *fakeStore) ListEventsByLead(_ context.Context, leadID uuid.UUID) ([]repository.LeadEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.LeadEvent
	for _, ev := range f.events {
		if ev.LeadID == leadID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeStore) HasEvent(_ context.Context, leadID uuid.UUID, eventType domain.EventType) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range f.events {
		if ev.LeadID == leadID && ev.EventType == eventType {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) HasTerminalExpiry(_ context.Context, leadID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range f.events {
		if ev.LeadID == leadID && ev.EventType == domain.EventExpired && ev.ProviderID == nil {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateAssignment(_ context.Context, leadID, providerID uuid.UUID, event repository.AppendEventParams) (repository.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assignments {
		if a.LeadID == leadID && a.ProviderID == providerID {
			return repository.Assignment{}, domain.ErrDuplicateAssignment
		}
	}
	assignment := repository.Assignment{
		ID:         uuid.New(),
		LeadID:     leadID,
		ProviderID: providerID,
		Status:     domain.StatusPending,
		Version:    1,
		AssignedAt: time.Now(),
	}
	if _, err := f.appendLocked(event); err != nil {
		return repository.Assignment{}, err
	}
	f.assignments[assignment.ID] = assignment
	f.order = append(f.order, assignment.ID)
	return assignment, nil
}

func (f *fakeStore) GetAssignment(_ context.Context, id uuid.UUID) (repository.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assignments[id]
	if !ok {
		return repository.Assignment{}, domain.ErrAssignmentNotFound
	}
	return a, nil
}

func (f *fakeStore) GetAssignmentForProvider(_ context.Context, id, providerID uuid.UUID) (repository.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assignments[id]
	if !ok || a.ProviderID != providerID {
		return repository.Assignment{}, domain.ErrAssignmentNotFound
	}
	return a, nil
}

func (f *fakeStore) ListAssignmentsByLead(_ context.Context, leadID uuid.UUID) ([]repository.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Assignment
	for _, id := range f.order {
		if a := f.assignments[id]; a.LeadID == leadID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) ListActiveByProvider(_ context.Context, providerID uuid.UUID) ([]repository.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Assignment
	for _, id := range f.order {
		if a := f.assignments[id]; a.ProviderID == providerID && !domain.IsTerminal(a.Status) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) ListExpirable(_ context.Context, filter repository.ExpirableFilter) ([]repository.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Assignment
	for _, id := range f.order {
		a := f.assignments[id]
		switch {
		case a.Status == domain.StatusPending && a.AssignedAt.Before(filter.PendingBefore):
			out = append(out, a)
		case a.Status == domain.StatusViewed && a.ViewedAt != nil && a.ViewedAt.Before(filter.ViewedBefore):
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) GetQuoteByAssignment(_ context.Context, assignmentID uuid.UUID) (repository.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range f.quotes {
		if q.AssignmentID == assignmentID {
			return q, nil
		}
	}
	return repository.Quote{}, domain.ErrQuoteNotFound
}

func (f *fakeStore) Transition(_ context.Context, params repository.TransitionParams) (repository.Assignment, repository.LeadEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !domain.IsKnownStatus(params.NewStatus) || params.NewStatus == domain.StatusPending {
		return repository.Assignment{}, repository.LeadEvent{}, domain.ErrInvalidTransitionRequest
	}
	current, ok := f.assignments[params.AssignmentID]
	if !ok {
		return repository.Assignment{}, repository.LeadEvent{}, domain.ErrAssignmentNotFound
	}
	if current.Version != params.ExpectedVersion {
		return repository.Assignment{}, repository.LeadEvent{}, domain.ErrVersionConflict
	}
	if !domain.CanTransition(current.Status, params.NewStatus) {
		return repository.Assignment{}, repository.LeadEvent{}, domain.ErrIllegalTransition
	}

	current.Status = params.NewStatus
	current.Version++
	if params.NewStatus == domain.StatusViewed {
		now := time.Now()
		current.ViewedAt = &now
	}
	f.assignments[params.AssignmentID] = current

	ev, err := f.appendLocked(repository.AppendEventParams{
		LeadID:     current.LeadID,
		ProviderID: &current.ProviderID,
		EventType:  domain.EventTypeFor(params.NewStatus),
		Metadata:   params.Metadata,
	})
	if err != nil {
		return repository.Assignment{}, repository.LeadEvent{}, err
	}

	if params.Quote != nil {
		f.quotes = append(f.quotes, repository.Quote{
			ID:           uuid.New(),
			LeadID:       current.LeadID,
			ProviderID:   current.ProviderID,
			AssignmentID: current.ID,
			AmountCents:  params.Quote.AmountCents,
			Details:      params.Quote.Details,
			ValidUntil:   params.Quote.ValidUntil,
			CreatedAt:    time.Now(),
		})
	}
	return current, ev, nil
}

// fakePool returns a fixed candidate pool.
type fakePool struct {
	candidates []dispatch.Candidate
	err        error
}

func (f *fakePool) ListCandidates(context.Context, dispatch.LeadInfo) ([]dispatch.Candidate, error) {
	return f.candidates, f.err
}

// recordingBus captures published facts synchronously.
type recordingBus struct {
	mu    sync.Mutex
	facts []platformevents.Event
}

func (b *recordingBus) Publish(_ context.Context, event platformevents.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.facts = append(b.facts, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event platformevents.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, platformevents.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.facts))
	for i, f := range b.facts {
		out[i] = f.EventName()
	}
	return out
}

type testDispatchConfig struct {
	fanout   int
	dailyCap int
}

func (c testDispatchConfig) GetDispatchFanout() int         { return c.fanout }
func (c testDispatchConfig) GetDailyAssignmentCap() int     { return c.dailyCap }
func (c testDispatchConfig) GetPendingTTL() time.Duration   { return 48 * time.Hour }
func (c testDispatchConfig) GetViewedTTL() time.Duration    { return 72 * time.Hour }
func (c testDispatchConfig) GetSweepInterval() time.Duration { return time.Minute }

func newTestService(store *fakeStore, pool *fakePool, bus *recordingBus) *Service {
	return NewService(store, pool, bus, testDispatchConfig{fanout: 1, dailyCap: 10}, logger.New("development"))
}

func providerCandidate(id uuid.UUID, lastAssigned *time.Time) dispatch.Candidate {
	return dispatch.Candidate{
		ProviderID:     id,
		ServiceType:    "plombier",
		City:           "Paris",
		PostalCode:     "75011",
		Active:         true,
		LastAssignedAt: lastAssigned,
		ResponseRate:   0.8,
		Rating:         4.0,
	}
}

func mustCreateLead(t *testing.T, svc *Service) repository.Lead {
	t.Helper()
	lead, err := svc.CreateLead(context.Background(), CreateLeadInput{
		ServiceType: "plombier",
		City:        "Paris",
		PostalCode:  "75011",
		Description: "fuite sous l'évier",
		Urgency:     "urgent",
		ClientName:  "Marie Dupont",
		ClientEmail: "Marie.Dupont@example.com",
	})
	if err != nil {
		t.Fatalf("CreateLead: %v", err)
	}
	return lead
}

func TestCreateLeadAppendsCreatedEvent(t *testing.T) {
	store := newFakeStore()
	bus := &recordingBus{}
	svc := newTestService(store, &fakePool{}, bus)

	lead := mustCreateLead(t, svc)

	events, err := store.ListEventsByLead(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("ListEventsByLead: %v", err)
	}
	if len(events) != 1 || events[0].EventType != domain.EventCreated {
		t.Fatalf("expected one created event, got %v", events)
	}
	if got := bus.names(); len(got) != 1 || got[0] != "lead.created" {
		t.Fatalf("expected lead.created fact, got %v", got)
	}
	if lead.ClientEmail == nil || *lead.ClientEmail != "marie.dupont@example.com" {
		t.Errorf("expected lowercased email, got %v", lead.ClientEmail)
	}
}

func TestOnLeadCreatedDispatchesHeadCandidate(t *testing.T) {
	store := newFakeStore()
	older := time.Now().Add(-48 * time.Hour)
	newer := time.Now().Add(-1 * time.Hour)
	fair := uuid.New()
	busy := uuid.New()
	pool := &fakePool{candidates: []dispatch.Candidate{
		providerCandidate(busy, &newer),
		providerCandidate(fair, &older),
	}}
	svc := newTestService(store, pool, &recordingBus{})

	lead := mustCreateLead(t, svc)
	if err := svc.OnLeadCreated(context.Background(), lead.ID); err != nil {
		t.Fatalf("OnLeadCreated: %v", err)
	}

	assignments, _ := store.ListAssignmentsByLead(context.Background(), lead.ID)
	if len(assignments) != 1 {
		t.Fatalf("expected exactly one assignment, got %d", len(assignments))
	}
	if assignments[0].ProviderID != fair {
		t.Errorf("expected least recently assigned provider to win, got %s", assignments[0].ProviderID)
	}
	if assignments[0].Status != domain.StatusPending {
		t.Errorf("expected pending assignment, got %s", assignments[0].Status)
	}
	if ok, _ := store.HasEvent(context.Background(), lead.ID, domain.EventDispatched); !ok {
		t.Error("expected dispatched event in ledger")
	}
}

func TestOnLeadCreatedIsIdempotent(t *testing.T) {
	store := newFakeStore()
	pool := &fakePool{candidates: []dispatch.Candidate{providerCandidate(uuid.New(), nil)}}
	svc := newTestService(store, pool, &recordingBus{})

	lead := mustCreateLead(t, svc)
	for i := 0; i < 3; i++ {
		if err := svc.OnLeadCreated(context.Background(), lead.ID); err != nil {
			t.Fatalf("OnLeadCreated #%d: %v", i, err)
		}
	}

	assignments, _ := store.ListAssignmentsByLead(context.Background(), lead.ID)
	if len(assignments) != 1 {
		t.Fatalf("expected one assignment after redelivery, got %d", len(assignments))
	}
	dispatchedCount := 0
	events, _ := store.ListEventsByLead(context.Background(), lead.ID)
	for _, ev := range events {
		if ev.EventType == domain.EventDispatched {
			dispatchedCount++
		}
	}
	if dispatchedCount != 1 {
		t.Errorf("expected one dispatched event, got %d", dispatchedCount)
	}
}

func TestDispatchWithoutCandidatesExpiresLead(t *testing.T) {
	store := newFakeStore()
	bus := &recordingBus{}
	svc := newTestService(store, &fakePool{}, bus)

	lead := mustCreateLead(t, svc)
	assignment, err := svc.Dispatch(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if assignment != nil {
		t.Fatalf("expected no assignment, got %+v", assignment)
	}

	events, _ := store.ListEventsByLead(context.Background(), lead.ID)
	last := events[len(events)-1]
	if last.EventType != domain.EventExpired {
		t.Fatalf("expected expired event, got %s", last.EventType)
	}
	if last.Metadata[domain.MetaKeyReason] != domain.ReasonNoCandidates {
		t.Errorf("expected no_candidates reason, got %v", last.Metadata)
	}
}

func TestDispatchOnExhaustedPoolIsIdempotent(t *testing.T) {
	store := newFakeStore()
	bus := &recordingBus{}
	svc := newTestService(store, &fakePool{}, bus)

	lead := mustCreateLead(t, svc)
	for i := 0; i < 3; i++ {
		if _, err := svc.Dispatch(context.Background(), lead.ID); err != nil {
			t.Fatalf("Dispatch #%d: %v", i, err)
		}
	}

	expiredCount := 0
	history, _ := store.ListEventsByLead(context.Background(), lead.ID)
	for _, ev := range history {
		if ev.EventType == domain.EventExpired {
			expiredCount++
		}
	}
	if expiredCount != 1 {
		t.Errorf("expected one expired event after repeated dispatch, got %d", expiredCount)
	}

	expiredFacts := 0
	for _, name := range bus.names() {
		if name == events.LeadExpiredEvent {
			expiredFacts++
		}
	}
	if expiredFacts != 1 {
		t.Errorf("expected one lead.expired fact, got %d", expiredFacts)
	}
}

func TestDeclineAdvancesWaterfall(t *testing.T) {
	store := newFakeStore()
	first := uuid.New()
	second := uuid.New()
	older := time.Now().Add(-72 * time.Hour)
	newer := time.Now().Add(-1 * time.Hour)
	pool := &fakePool{candidates: []dispatch.Candidate{
		providerCandidate(first, &older),
		providerCandidate(second, &newer),
	}}
	svc := newTestService(store, pool, &recordingBus{})

	lead := mustCreateLead(t, svc)
	head, err := svc.Dispatch(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if head.ProviderID != first {
		t.Fatalf("expected first provider to get the lead, got %s", head.ProviderID)
	}

	if _, err := svc.DeclineLead(context.Background(), head.ID, first, "trop loin"); err != nil {
		t.Fatalf("DeclineLead: %v", err)
	}

	assignments, _ := store.ListAssignmentsByLead(context.Background(), lead.ID)
	if len(assignments) != 2 {
		t.Fatalf("expected waterfall to create a second assignment, got %d", len(assignments))
	}
	if assignments[1].ProviderID != second {
		t.Errorf("expected second provider next, got %s", assignments[1].ProviderID)
	}

	events, _ := store.ListEventsByLead(context.Background(), lead.ID)
	var reassigned *repository.LeadEvent
	for i := range events {
		if events[i].EventType == domain.EventReassigned {
			reassigned = &events[i]
		}
	}
	if reassigned == nil {
		t.Fatal("expected reassigned event")
	}
	if reassigned.Metadata[domain.MetaKeyFromProvider] != first.String() {
		t.Errorf("expected fromProviderId %s, got %v", first, reassigned.Metadata)
	}
	if reassigned.Metadata[domain.MetaKeyToProvider] != second.String() {
		t.Errorf("expected toProviderId %s, got %v", second, reassigned.Metadata)
	}
}

func TestDeclineLastCandidateExpiresLead(t *testing.T) {
	store := newFakeStore()
	only := uuid.New()
	pool := &fakePool{candidates: []dispatch.Candidate{providerCandidate(only, nil)}}
	svc := newTestService(store, pool, &recordingBus{})

	lead := mustCreateLead(t, svc)
	head, _ := svc.Dispatch(context.Background(), lead.ID)
	if _, err := svc.DeclineLead(context.Background(), head.ID, only, ""); err != nil {
		t.Fatalf("DeclineLead: %v", err)
	}

	events, _ := store.ListEventsByLead(context.Background(), lead.ID)
	last := events[len(events)-1]
	if last.EventType != domain.EventExpired || last.Metadata[domain.MetaKeyReason] != domain.ReasonNoCandidates {
		t.Fatalf("expected terminal expired(no_candidates), got %s %v", last.EventType, last.Metadata)
	}
}

func TestViewLeadIsIdempotent(t *testing.T) {
	store := newFakeStore()
	provider := uuid.New()
	pool := &fakePool{candidates: []dispatch.Candidate{providerCandidate(provider, nil)}}
	svc := newTestService(store, pool, &recordingBus{})

	lead := mustCreateLead(t, svc)
	head, _ := svc.Dispatch(context.Background(), lead.ID)

	viewed, err := svc.ViewLead(context.Background(), head.ID, provider)
	if err != nil {
		t.Fatalf("ViewLead: %v", err)
	}
	if viewed.Status != domain.StatusViewed || viewed.ViewedAt == nil {
		t.Fatalf("expected viewed status with timestamp, got %+v", viewed)
	}

	again, err := svc.ViewLead(context.Background(), head.ID, provider)
	if err != nil {
		t.Fatalf("second ViewLead: %v", err)
	}
	if again.Version != viewed.Version {
		t.Errorf("repeat view must not bump version: %d vs %d", again.Version, viewed.Version)
	}

	viewedCount := 0
	events, _ := store.ListEventsByLead(context.Background(), lead.ID)
	for _, ev := range events {
		if ev.EventType == domain.EventViewed {
			viewedCount++
		}
	}
	if viewedCount != 1 {
		t.Errorf("expected exactly one viewed event, got %d", viewedCount)
	}
}

func TestSendQuoteRequiresViewedFirst(t *testing.T) {
	store := newFakeStore()
	provider := uuid.New()
	pool := &fakePool{candidates: []dispatch.Candidate{providerCandidate(provider, nil)}}
	svc := newTestService(store, pool, &recordingBus{})

	lead := mustCreateLead(t, svc)
	head, _ := svc.Dispatch(context.Background(), lead.ID)

	_, err := svc.SendQuote(context.Background(), head.ID, provider, QuoteInput{AmountCents: 15000})
	if !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition before view, got %v", err)
	}

	if _, err := svc.ViewLead(context.Background(), head.ID, provider); err != nil {
		t.Fatalf("ViewLead: %v", err)
	}
	quoted, err := svc.SendQuote(context.Background(), head.ID, provider, QuoteInput{AmountCents: 15000, Details: "remplacement siphon"})
	if err != nil {
		t.Fatalf("SendQuote: %v", err)
	}
	if quoted.Status != domain.StatusQuoted {
		t.Errorf("expected quoted status, got %s", quoted.Status)
	}

	if len(store.quotes) != 1 {
		t.Fatalf("expected one persisted quote, got %d", len(store.quotes))
	}
	q := store.quotes[0]
	if q.AmountCents != 15000 {
		t.Errorf("amount mismatch: %d", q.AmountCents)
	}
	wantValid := time.Now().AddDate(0, 0, defaultQuoteValidDays)
	if q.ValidUntil.Before(wantValid.Add(-time.Minute)) || q.ValidUntil.After(wantValid.Add(time.Minute)) {
		t.Errorf("expected default %d-day validity, got %v", defaultQuoteValidDays, q.ValidUntil)
	}
}

func TestSendQuoteRejectsNonPositiveAmount(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakePool{}, &recordingBus{})
	if _, err := svc.SendQuote(context.Background(), uuid.New(), uuid.New(), QuoteInput{AmountCents: 0}); err == nil {
		t.Fatal("expected validation error for zero amount")
	}
}

func TestAcceptThenCompleteWalksTheFunnel(t *testing.T) {
	store := newFakeStore()
	provider := uuid.New()
	pool := &fakePool{candidates: []dispatch.Candidate{providerCandidate(provider, nil)}}
	bus := &recordingBus{}
	svc := newTestService(store, pool, bus)

	lead := mustCreateLead(t, svc)
	head, _ := svc.Dispatch(context.Background(), lead.ID)
	if _, err := svc.ViewLead(context.Background(), head.ID, provider); err != nil {
		t.Fatalf("ViewLead: %v", err)
	}
	if _, err := svc.SendQuote(context.Background(), head.ID, provider, QuoteInput{AmountCents: 9900}); err != nil {
		t.Fatalf("SendQuote: %v", err)
	}
	if _, err := svc.AcceptQuote(context.Background(), head.ID, provider); err != nil {
		t.Fatalf("AcceptQuote: %v", err)
	}
	done, err := svc.CompleteJob(context.Background(), head.ID, provider)
	if err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	if done.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}

	var got []domain.EventType
	events, _ := store.ListEventsByLead(context.Background(), lead.ID)
	for _, ev := range events {
		got = append(got, ev.EventType)
	}
	want := []domain.EventType{
		domain.EventCreated, domain.EventDispatched, domain.EventViewed,
		domain.EventQuoted, domain.EventAccepted, domain.EventCompleted,
	}
	if len(got) != len(want) {
		t.Fatalf("event history mismatch: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event history mismatch at %d: got %v want %v", i, got, want)
		}
	}
}

func TestAcceptRejectsExpiredQuote(t *testing.T) {
	store := newFakeStore()
	provider := uuid.New()
	pool := &fakePool{candidates: []dispatch.Candidate{providerCandidate(provider, nil)}}
	svc := newTestService(store, pool, &recordingBus{})

	lead := mustCreateLead(t, svc)
	head, _ := svc.Dispatch(context.Background(), lead.ID)
	if _, err := svc.ViewLead(context.Background(), head.ID, provider); err != nil {
		t.Fatalf("ViewLead: %v", err)
	}
	if _, err := svc.SendQuote(context.Background(), head.ID, provider, QuoteInput{AmountCents: 9900}); err != nil {
		t.Fatalf("SendQuote: %v", err)
	}

	// Age the quote past its validity window.
	store.mu.Lock()
	store.quotes[0].ValidUntil = time.Now().Add(-time.Hour)
	store.mu.Unlock()

	_, err := svc.AcceptQuote(context.Background(), head.ID, provider)
	if !errors.Is(err, domain.ErrQuoteExpired) {
		t.Fatalf("expected ErrQuoteExpired, got %v", err)
	}

	current, _ := store.GetAssignment(context.Background(), head.ID)
	if current.Status != domain.StatusQuoted {
		t.Errorf("assignment must stay quoted, got %s", current.Status)
	}
}

func TestStaleVersionLosesTheRace(t *testing.T) {
	store := newFakeStore()
	provider := uuid.New()
	pool := &fakePool{candidates: []dispatch.Candidate{providerCandidate(provider, nil)}}
	svc := newTestService(store, pool, &recordingBus{})

	lead := mustCreateLead(t, svc)
	head, _ := svc.Dispatch(context.Background(), lead.ID)

	// Snapshot the pending assignment, then let the provider act.
	snapshot := *head
	if _, err := svc.ViewLead(context.Background(), head.ID, provider); err != nil {
		t.Fatalf("ViewLead: %v", err)
	}

	// An expiry attempt against the stale snapshot must lose.
	err := svc.Expire(context.Background(), snapshot, domain.ReasonTTLExceeded)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict for stale expire, got %v", err)
	}

	current, _ := store.GetAssignment(context.Background(), head.ID)
	if current.Status != domain.StatusViewed {
		t.Errorf("provider's view must survive the race, got %s", current.Status)
	}
}

func TestConcurrentAcceptAndDeclineHaveOneWinner(t *testing.T) {
	store := newFakeStore()
	provider := uuid.New()
	pool := &fakePool{candidates: []dispatch.Candidate{providerCandidate(provider, nil)}}
	svc := newTestService(store, pool, &recordingBus{})

	lead := mustCreateLead(t, svc)
	head, _ := svc.Dispatch(context.Background(), lead.ID)
	if _, err := svc.ViewLead(context.Background(), head.ID, provider); err != nil {
		t.Fatalf("ViewLead: %v", err)
	}
	if _, err := svc.SendQuote(context.Background(), head.ID, provider, QuoteInput{AmountCents: 9900}); err != nil {
		t.Fatalf("SendQuote: %v", err)
	}

	var wg sync.WaitGroup
	var acceptErr, declineErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, acceptErr = svc.AcceptQuote(context.Background(), head.ID, provider)
	}()
	go func() {
		defer wg.Done()
		_, declineErr = svc.DeclineLead(context.Background(), head.ID, provider, "trop loin")
	}()
	wg.Wait()

	winners := 0
	for _, err := range []error{acceptErr, declineErr} {
		if err == nil {
			winners++
			continue
		}
		if !errors.Is(err, domain.ErrVersionConflict) && !errors.Is(err, domain.ErrIllegalTransition) {
			t.Fatalf("loser must fail the compare-and-swap, got %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d (accept=%v decline=%v)", winners, acceptErr, declineErr)
	}

	current, _ := store.GetAssignment(context.Background(), head.ID)
	switch {
	case acceptErr == nil && current.Status != domain.StatusAccepted:
		t.Errorf("accept won but status is %s", current.Status)
	case declineErr == nil && current.Status != domain.StatusDeclined:
		t.Errorf("decline won but status is %s", current.Status)
	}

	accepted := 0
	declined := 0
	history, _ := store.ListEventsByLead(context.Background(), lead.ID)
	for _, ev := range history {
		switch ev.EventType {
		case domain.EventAccepted:
			accepted++
		case domain.EventDeclined:
			declined++
		}
	}
	if accepted+declined != 1 {
		t.Errorf("expected a single terminal decision in the ledger, got %d accepted and %d declined", accepted, declined)
	}
}

func TestExpireContinuesWaterfall(t *testing.T) {
	store := newFakeStore()
	first := uuid.New()
	second := uuid.New()
	older := time.Now().Add(-72 * time.Hour)
	newer := time.Now().Add(-1 * time.Hour)
	pool := &fakePool{candidates: []dispatch.Candidate{
		providerCandidate(first, &older),
		providerCandidate(second, &newer),
	}}
	svc := newTestService(store, pool, &recordingBus{})

	lead := mustCreateLead(t, svc)
	head, _ := svc.Dispatch(context.Background(), lead.ID)

	if err := svc.Expire(context.Background(), *head, domain.ReasonTTLExceeded); err != nil {
		t.Fatalf("Expire: %v", err)
	}

	assignments, _ := store.ListAssignmentsByLead(context.Background(), lead.ID)
	if len(assignments) != 2 {
		t.Fatalf("expected reassignment after expiry, got %d assignments", len(assignments))
	}
	if assignments[0].Status != domain.StatusExpired {
		t.Errorf("expected first assignment expired, got %s", assignments[0].Status)
	}
	if assignments[1].ProviderID != second || assignments[1].Status != domain.StatusPending {
		t.Errorf("expected fresh pending assignment for %s, got %+v", second, assignments[1])
	}

	events, _ := store.ListEventsByLead(context.Background(), lead.ID)
	var expired *repository.LeadEvent
	for i := range events {
		if events[i].EventType == domain.EventExpired {
			expired = &events[i]
		}
	}
	if expired == nil || expired.Metadata[domain.MetaKeyReason] != domain.ReasonTTLExceeded {
		t.Fatalf("expected expired event with ttl_exceeded reason, got %v", expired)
	}
}
