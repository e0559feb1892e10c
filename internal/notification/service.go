// Package notification turns ledger facts into queued outbox emails and
// delivers them. It subscribes to the event bus so the lead lifecycle never
// depends on email providers or templates; a failing notification never
// affects the operation that produced the fact.
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"servicesartisans_backend/internal/email"
	"servicesartisans_backend/internal/events"
	leadrepo "servicesartisans_backend/internal/leads/repository"
	"servicesartisans_backend/internal/notification/outbox"
	providerrepo "servicesartisans_backend/internal/providers/repository"
	"servicesartisans_backend/platform/logger"
)

const (
	ChannelEmail = "email"

	TemplateNewLead       = "new_lead"
	TemplateQuoteReceived = "quote_received"
	TemplateQuoteAccepted = "quote_accepted"
	TemplateLeadExpired   = "lead_expired"
)

// EmailPayload is stored in the outbox row with the recipient fully
// resolved, so the drain loop needs no further lookups.
type EmailPayload struct {
	To              string `json:"to"`
	CompanyName     string `json:"companyName,omitempty"`
	ClientName      string `json:"clientName,omitempty"`
	ServiceType     string `json:"serviceType,omitempty"`
	City            string `json:"city,omitempty"`
	AmountFormatted string `json:"amountFormatted,omitempty"`
	LeadURL         string `json:"leadUrl,omitempty"`
}

// LeadReader provides the lead details notifications need.
type LeadReader interface {
	GetLead(ctx context.Context, id uuid.UUID) (leadrepo.Lead, error)
}

// ProviderReader provides the provider details notifications need.
type ProviderReader interface {
	GetProvider(ctx context.Context, id uuid.UUID) (providerrepo.Provider, error)
}

// Outbox is the queue notifications are written to.
type Outbox interface {
	Insert(ctx context.Context, p outbox.InsertParams) (uuid.UUID, error)
}

type Service struct {
	outbox    Outbox
	leads     LeadReader
	providers ProviderReader
	baseURL   string
	log       *logger.Logger
}

func NewService(ob Outbox, leads LeadReader, providers ProviderReader, baseURL string, log *logger.Logger) *Service {
	return &Service{outbox: ob, leads: leads, providers: providers, baseURL: baseURL, log: log}
}

// HandleLeadFact queues the email matching a ledger fact. Facts with no
// notification mapping are ignored.
func (s *Service) HandleLeadFact(ctx context.Context, fact events.LeadFact) error {
	switch fact.EventType {
	case "dispatched", "reassigned":
		return s.queueNewLead(ctx, fact)
	case "quoted":
		return s.queueQuoteReceived(ctx, fact)
	case "accepted":
		return s.queueQuoteAccepted(ctx, fact)
	case "expired":
		// Only lead-level expiry (no provider attached) reaches the
		// client; an assignment expiry just continues the waterfall.
		if fact.ProviderID == nil {
			return s.queueLeadExpired(ctx, fact)
		}
		return nil
	default:
		return nil
	}
}

func (s *Service) queueNewLead(ctx context.Context, fact events.LeadFact) error {
	if fact.ProviderID == nil {
		return nil
	}
	provider, err := s.providers.GetProvider(ctx, *fact.ProviderID)
	if err != nil {
		return err
	}
	lead, err := s.leads.GetLead(ctx, fact.LeadID)
	if err != nil {
		return err
	}

	_, err = s.outbox.Insert(ctx, outbox.InsertParams{
		Channel:  ChannelEmail,
		Template: TemplateNewLead,
		Payload: EmailPayload{
			To:          provider.Email,
			CompanyName: provider.CompanyName,
			ServiceType: lead.ServiceType,
			City:        lead.City,
			LeadURL:     fmt.Sprintf("%s/espace-artisan/demandes/%s", s.baseURL, lead.ID),
		},
	})
	return err
}

func (s *Service) queueQuoteReceived(ctx context.Context, fact events.LeadFact) error {
	lead, err := s.leads.GetLead(ctx, fact.LeadID)
	if err != nil {
		return err
	}
	if lead.ClientEmail == nil {
		return nil
	}
	companyName := ""
	if fact.ProviderID != nil {
		if provider, err := s.providers.GetProvider(ctx, *fact.ProviderID); err == nil {
			companyName = provider.CompanyName
		}
	}

	_, err = s.outbox.Insert(ctx, outbox.InsertParams{
		Channel:  ChannelEmail,
		Template: TemplateQuoteReceived,
		Payload: EmailPayload{
			To:              *lead.ClientEmail,
			ClientName:      lead.ClientName,
			CompanyName:     companyName,
			AmountFormatted: formatAmount(fact.Metadata),
		},
	})
	return err
}

func (s *Service) queueQuoteAccepted(ctx context.Context, fact events.LeadFact) error {
	if fact.ProviderID == nil {
		return nil
	}
	provider, err := s.providers.GetProvider(ctx, *fact.ProviderID)
	if err != nil {
		return err
	}
	lead, err := s.leads.GetLead(ctx, fact.LeadID)
	if err != nil {
		return err
	}

	_, err = s.outbox.Insert(ctx, outbox.InsertParams{
		Channel:  ChannelEmail,
		Template: TemplateQuoteAccepted,
		Payload: EmailPayload{
			To:          provider.Email,
			CompanyName: provider.CompanyName,
			ClientName:  lead.ClientName,
			City:        lead.City,
		},
	})
	return err
}

func (s *Service) queueLeadExpired(ctx context.Context, fact events.LeadFact) error {
	lead, err := s.leads.GetLead(ctx, fact.LeadID)
	if err != nil {
		return err
	}
	if lead.ClientEmail == nil {
		return nil
	}

	_, err = s.outbox.Insert(ctx, outbox.InsertParams{
		Channel:  ChannelEmail,
		Template: TemplateLeadExpired,
		Payload: EmailPayload{
			To:          *lead.ClientEmail,
			ClientName:  lead.ClientName,
			ServiceType: lead.ServiceType,
		},
	})
	return err
}

// formatAmount renders the quote amount from event metadata. Metadata that
// travelled through JSON arrives as float64.
func formatAmount(metadata map[string]any) string {
	raw, ok := metadata["amountCents"]
	if !ok {
		return ""
	}
	var cents int64
	switch v := raw.(type) {
	case int64:
		cents = v
	case int:
		cents = int64(v)
	case float64:
		cents = int64(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			cents = n
		}
	default:
		return ""
	}
	return fmt.Sprintf("%d,%02d €", cents/100, cents%100)
}

// Deliver sends one claimed outbox record through the sender. Unknown
// templates fail permanently rather than retrying forever.
func Deliver(ctx context.Context, rec outbox.Record, sender email.Sender) error {
	var payload EmailPayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		return fmt.Errorf("outbox payload: %w", err)
	}

	switch rec.Template {
	case TemplateNewLead:
		return sender.SendNewLeadEmail(ctx, payload.To, payload.CompanyName, payload.ServiceType, payload.City, payload.LeadURL)
	case TemplateQuoteReceived:
		return sender.SendQuoteReceivedEmail(ctx, payload.To, payload.ClientName, payload.CompanyName, payload.AmountFormatted)
	case TemplateQuoteAccepted:
		return sender.SendQuoteAcceptedEmail(ctx, payload.To, payload.CompanyName, payload.ClientName, payload.City)
	case TemplateLeadExpired:
		return sender.SendLeadExpiredEmail(ctx, payload.To, payload.ClientName, payload.ServiceType)
	default:
		return fmt.Errorf("unknown notification template %q", rec.Template)
	}
}
