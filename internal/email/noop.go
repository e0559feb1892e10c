package email

import (
	"context"

	"servicesartisans_backend/platform/logger"
)

// NoopSender logs instead of sending. Used in development or when email
// delivery is disabled.
type NoopSender struct {
	log *logger.Logger
}

func NewNoopSender(log *logger.Logger) *NoopSender {
	return &NoopSender{log: log}
}

func (s *NoopSender) SendNewLeadEmail(_ context.Context, toEmail, companyName, serviceType, city, _ string) error {
	s.log.Info("email skipped (disabled)", "template", "new_lead", "to", toEmail, "company", companyName, "serviceType", serviceType, "city", city)
	return nil
}

func (s *NoopSender) SendQuoteReceivedEmail(_ context.Context, toEmail, clientName, companyName, amountFormatted string) error {
	s.log.Info("email skipped (disabled)", "template", "quote_received", "to", toEmail, "client", clientName, "company", companyName, "amount", amountFormatted)
	return nil
}

func (s *NoopSender) SendQuoteAcceptedEmail(_ context.Context, toEmail, companyName, clientName, city string) error {
	s.log.Info("email skipped (disabled)", "template", "quote_accepted", "to", toEmail, "company", companyName, "client", clientName, "city", city)
	return nil
}

func (s *NoopSender) SendLeadExpiredEmail(_ context.Context, toEmail, clientName, serviceType string) error {
	s.log.Info("email skipped (disabled)", "template", "lead_expired", "to", toEmail, "client", clientName, "serviceType", serviceType)
	return nil
}

var _ Sender = (*NoopSender)(nil)
