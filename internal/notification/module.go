package notification

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"servicesartisans_backend/internal/events"
	leadrepo "servicesartisans_backend/internal/leads/repository"
	"servicesartisans_backend/internal/notification/outbox"
	providerrepo "servicesartisans_backend/internal/providers/repository"
	platformevents "servicesartisans_backend/platform/events"
	"servicesartisans_backend/platform/logger"
)

// Module wires the notification subscriber to the event bus.
type Module struct {
	service *Service
	outbox  *outbox.Repository
}

// subscribedFacts lists the bus events that produce an email.
var subscribedFacts = []string{
	events.LeadDispatchedEvent,
	events.LeadReassignedEvent,
	events.QuoteSubmittedEvent,
	events.QuoteAcceptedEvent,
	events.LeadExpiredEvent,
}

// NewModule creates the notification module and registers its handlers.
func NewModule(pool *pgxpool.Pool, bus platformevents.Bus, appBaseURL string, log *logger.Logger) *Module {
	ob := outbox.New(pool)
	svc := NewService(ob, leadrepo.New(pool), providerrepo.New(pool), appBaseURL, log)

	handler := platformevents.HandlerFunc(func(ctx context.Context, event platformevents.Event) error {
		fact, ok := event.(events.LeadFact)
		if !ok {
			return nil
		}
		// Queueing failures are logged, never propagated: notifications
		// are strictly fire-and-forget from the lifecycle's point of view.
		if err := svc.HandleLeadFact(ctx, fact); err != nil {
			log.Error("notification queue failed", "event", fact.EventName(), "leadId", fact.LeadID, "error", err)
		}
		return nil
	})
	for _, name := range subscribedFacts {
		bus.Subscribe(name, handler)
	}

	return &Module{service: svc, outbox: ob}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "notification"
}

// Outbox returns the queue repository, drained by cmd/scheduler.
func (m *Module) Outbox() *outbox.Repository {
	return m.outbox
}
