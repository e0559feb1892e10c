package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title    string
	Heading  string
	CTALabel string
	CTAURL   string
}

type newLeadEmailData struct {
	baseEmailData
	CompanyName string
	ServiceType string
	City        string
}

type quoteReceivedEmailData struct {
	baseEmailData
	ClientName      string
	CompanyName     string
	AmountFormatted string
}

type quoteAcceptedEmailData struct {
	baseEmailData
	CompanyName string
	ClientName  string
	City        string
}

type leadExpiredEmailData struct {
	baseEmailData
	ClientName  string
	ServiceType string
}

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

func renderEmailTemplate(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
