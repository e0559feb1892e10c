// Package email renders and delivers transactional emails for the lead
// lifecycle.
package email

import "context"

// Sender delivers lifecycle emails. Implementations must be safe for
// concurrent use.
type Sender interface {
	// SendNewLeadEmail tells a provider a lead is waiting in their workspace.
	SendNewLeadEmail(ctx context.Context, toEmail, companyName, serviceType, city, leadURL string) error
	// SendQuoteReceivedEmail tells the client a provider sent a quote.
	SendQuoteReceivedEmail(ctx context.Context, toEmail, clientName, companyName, amountFormatted string) error
	// SendQuoteAcceptedEmail tells the provider their quote was accepted.
	SendQuoteAcceptedEmail(ctx context.Context, toEmail, companyName, clientName, city string) error
	// SendLeadExpiredEmail tells the client no artisan was found in time.
	SendLeadExpiredEmail(ctx context.Context, toEmail, clientName, serviceType string) error
}
