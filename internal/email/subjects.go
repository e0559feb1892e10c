package email

const (
	subjectNewLead       = "Nouvelle demande de chantier pour vous"
	subjectQuoteReceived = "Vous avez reçu un devis"
	subjectQuoteAccepted = "Votre devis a été accepté"
	subjectLeadExpired   = "Votre demande a expiré"
)
