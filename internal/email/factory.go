package email

import (
	"servicesartisans_backend/platform/config"
	"servicesartisans_backend/platform/logger"
)

// NewSender picks the delivery implementation from configuration. Without
// SMTP settings, emails are logged and dropped.
func NewSender(cfg config.EmailConfig, log *logger.Logger) Sender {
	if !cfg.GetEmailEnabled() || cfg.GetSMTPHost() == "" {
		log.Warn("email delivery disabled; notifications will be logged only")
		return NewNoopSender(log)
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	)
}
