package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements Sender over a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendNewLeadEmail(ctx context.Context, toEmail, companyName, serviceType, city, leadURL string) error {
	content, err := renderEmailTemplate("new_lead.html", newLeadEmailData{
		baseEmailData: baseEmailData{
			Title:    "Nouvelle demande",
			Heading:  "Une nouvelle demande vous attend",
			CTALabel: "Voir la demande",
			CTAURL:   leadURL,
		},
		CompanyName: companyName,
		ServiceType: serviceType,
		City:        city,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectNewLead, content)
}

func (s *SMTPSender) SendQuoteReceivedEmail(ctx context.Context, toEmail, clientName, companyName, amountFormatted string) error {
	content, err := renderEmailTemplate("quote_received.html", quoteReceivedEmailData{
		baseEmailData: baseEmailData{
			Title:   "Devis reçu",
			Heading: "Vous avez reçu un devis",
		},
		ClientName:      clientName,
		CompanyName:     companyName,
		AmountFormatted: amountFormatted,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectQuoteReceived, content)
}

func (s *SMTPSender) SendQuoteAcceptedEmail(ctx context.Context, toEmail, companyName, clientName, city string) error {
	content, err := renderEmailTemplate("quote_accepted.html", quoteAcceptedEmailData{
		baseEmailData: baseEmailData{
			Title:   "Devis accepté",
			Heading: "Votre devis a été accepté",
		},
		CompanyName: companyName,
		ClientName:  clientName,
		City:        city,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectQuoteAccepted, content)
}

func (s *SMTPSender) SendLeadExpiredEmail(ctx context.Context, toEmail, clientName, serviceType string) error {
	content, err := renderEmailTemplate("lead_expired.html", leadExpiredEmailData{
		baseEmailData: baseEmailData{
			Title:   "Demande expirée",
			Heading: "Votre demande a expiré",
		},
		ClientName:  clientName,
		ServiceType: serviceType,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectLeadExpired, content)
}

// Compile-time check.
var _ Sender = (*SMTPSender)(nil)
