package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"servicesartisans_backend/internal/events"
	leadrepo "servicesartisans_backend/internal/leads/repository"
	"servicesartisans_backend/internal/notification/outbox"
	providerrepo "servicesartisans_backend/internal/providers/repository"
	"servicesartisans_backend/platform/logger"
)

type fakeOutbox struct {
	inserted []outbox.InsertParams
	err      error
}

func (f *fakeOutbox) Insert(_ context.Context, p outbox.InsertParams) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.inserted = append(f.inserted, p)
	return uuid.New(), nil
}

type fakeLeadReader struct {
	lead leadrepo.Lead
}

func (f *fakeLeadReader) GetLead(context.Context, uuid.UUID) (leadrepo.Lead, error) {
	return f.lead, nil
}

type fakeProviderReader struct {
	provider providerrepo.Provider
}

func (f *fakeProviderReader) GetProvider(context.Context, uuid.UUID) (providerrepo.Provider, error) {
	return f.provider, nil
}

func testService(ob Outbox, lead leadrepo.Lead, provider providerrepo.Provider) *Service {
	return NewService(
		ob,
		&fakeLeadReader{lead: lead},
		&fakeProviderReader{provider: provider},
		"https://www.servicesartisans.fr",
		logger.New("development"),
	)
}

func testLead() leadrepo.Lead {
	email := "client@example.com"
	return leadrepo.Lead{
		ID:          uuid.New(),
		ServiceType: "plombier",
		City:        "Paris",
		ClientName:  "Marie Dupont",
		ClientEmail: &email,
	}
}

func testProvider() providerrepo.Provider {
	return providerrepo.Provider{
		ID:          uuid.New(),
		CompanyName: "Plomberie Martin",
		Email:       "contact@plomberie-martin.fr",
	}
}

func TestDispatchedFactQueuesNewLeadEmailForProvider(t *testing.T) {
	ob := &fakeOutbox{}
	lead := testLead()
	provider := testProvider()
	svc := testService(ob, lead, provider)

	fact := events.NewLeadFact(events.LeadDispatchedEvent, lead.ID, &provider.ID, nil, "dispatched", nil)
	if err := svc.HandleLeadFact(context.Background(), fact); err != nil {
		t.Fatalf("HandleLeadFact: %v", err)
	}

	if len(ob.inserted) != 1 {
		t.Fatalf("expected one outbox row, got %d", len(ob.inserted))
	}
	row := ob.inserted[0]
	if row.Channel != ChannelEmail || row.Template != TemplateNewLead {
		t.Errorf("wrong channel/template: %s/%s", row.Channel, row.Template)
	}
	payload := row.Payload.(EmailPayload)
	if payload.To != provider.Email {
		t.Errorf("expected provider email, got %s", payload.To)
	}
	if payload.ServiceType != "plombier" || payload.City != "Paris" {
		t.Errorf("lead details missing: %+v", payload)
	}
}

func TestQuotedFactQueuesClientEmailWithFormattedAmount(t *testing.T) {
	ob := &fakeOutbox{}
	lead := testLead()
	provider := testProvider()
	svc := testService(ob, lead, provider)

	fact := events.NewLeadFact(events.QuoteSubmittedEvent, lead.ID, &provider.ID, nil, "quoted",
		map[string]any{"amountCents": float64(15050)})
	if err := svc.HandleLeadFact(context.Background(), fact); err != nil {
		t.Fatalf("HandleLeadFact: %v", err)
	}

	if len(ob.inserted) != 1 {
		t.Fatalf("expected one outbox row, got %d", len(ob.inserted))
	}
	payload := ob.inserted[0].Payload.(EmailPayload)
	if payload.To != "client@example.com" {
		t.Errorf("expected client email, got %s", payload.To)
	}
	if payload.AmountFormatted != "150,50 €" {
		t.Errorf("amount formatting: got %q", payload.AmountFormatted)
	}
	if payload.CompanyName != provider.CompanyName {
		t.Errorf("expected company name, got %q", payload.CompanyName)
	}
}

func TestAssignmentExpiryDoesNotEmailClient(t *testing.T) {
	ob := &fakeOutbox{}
	lead := testLead()
	provider := testProvider()
	svc := testService(ob, lead, provider)

	// Expiry with a provider attached means the waterfall continues.
	fact := events.NewLeadFact(events.LeadExpiredEvent, lead.ID, &provider.ID, nil, "expired",
		map[string]any{"reason": "ttl_exceeded"})
	if err := svc.HandleLeadFact(context.Background(), fact); err != nil {
		t.Fatalf("HandleLeadFact: %v", err)
	}
	if len(ob.inserted) != 0 {
		t.Fatalf("assignment expiry must not notify, got %d rows", len(ob.inserted))
	}

	// Terminal lead-level expiry has no provider and reaches the client.
	terminal := events.NewLeadFact(events.LeadExpiredEvent, lead.ID, nil, nil, "expired",
		map[string]any{"reason": "no_candidates"})
	if err := svc.HandleLeadFact(context.Background(), terminal); err != nil {
		t.Fatalf("HandleLeadFact: %v", err)
	}
	if len(ob.inserted) != 1 || ob.inserted[0].Template != TemplateLeadExpired {
		t.Fatalf("expected lead_expired row, got %+v", ob.inserted)
	}
}

func TestLeadWithoutEmailIsSkipped(t *testing.T) {
	ob := &fakeOutbox{}
	lead := testLead()
	lead.ClientEmail = nil
	svc := testService(ob, lead, testProvider())

	fact := events.NewLeadFact(events.LeadExpiredEvent, lead.ID, nil, nil, "expired", nil)
	if err := svc.HandleLeadFact(context.Background(), fact); err != nil {
		t.Fatalf("HandleLeadFact: %v", err)
	}
	if len(ob.inserted) != 0 {
		t.Fatalf("no email address means no outbox row, got %d", len(ob.inserted))
	}
}

// recordingSender captures delivered emails by template.
type recordingSender struct {
	calls []string
	err   error
}

func (r *recordingSender) SendNewLeadEmail(_ context.Context, to, _, _, _, _ string) error {
	r.calls = append(r.calls, "new_lead:"+to)
	return r.err
}
func (r *recordingSender) SendQuoteReceivedEmail(_ context.Context, to, _, _, _ string) error {
	r.calls = append(r.calls, "quote_received:"+to)
	return r.err
}
func (r *recordingSender) SendQuoteAcceptedEmail(_ context.Context, to, _, _, _ string) error {
	r.calls = append(r.calls, "quote_accepted:"+to)
	return r.err
}
func (r *recordingSender) SendLeadExpiredEmail(_ context.Context, to, _, _ string) error {
	r.calls = append(r.calls, "lead_expired:"+to)
	return r.err
}

func outboxRecord(t *testing.T, template string, payload EmailPayload) outbox.Record {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return outbox.Record{ID: uuid.New(), Channel: ChannelEmail, Template: template, Payload: raw}
}

func TestDeliverRoutesByTemplate(t *testing.T) {
	sender := &recordingSender{}
	rec := outboxRecord(t, TemplateQuoteAccepted, EmailPayload{To: "contact@plomberie-martin.fr"})

	if err := Deliver(context.Background(), rec, sender); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(sender.calls) != 1 || sender.calls[0] != "quote_accepted:contact@plomberie-martin.fr" {
		t.Fatalf("unexpected calls: %v", sender.calls)
	}
}

func TestDeliverUnknownTemplateFails(t *testing.T) {
	err := Deliver(context.Background(), outboxRecord(t, "newsletter", EmailPayload{}), &recordingSender{})
	if err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestDeliverPropagatesSenderError(t *testing.T) {
	sendErr := errors.New("smtp down")
	rec := outboxRecord(t, TemplateNewLead, EmailPayload{To: "x@example.com"})
	if err := Deliver(context.Background(), rec, &recordingSender{err: sendErr}); !errors.Is(err, sendErr) {
		t.Fatalf("expected smtp error to surface for retry, got %v", err)
	}
}
