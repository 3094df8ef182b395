package inquiry

import "github.com/redmonkez12/nonprofit-portal/internal/verification"

const (
	TemplateCode     = "inquiry_code"
	TemplateReceived = "inquiry_received"
)

// Flow creates the sender on first contact. Every new submission replaces the
// previous message and has to be confirmed again.
func Flow() verification.Flow[Payload] {
	return verification.Flow[Payload]{
		Name:                 "inquiry",
		CreateOnDemand:       true,
		ReplacePayload:       true,
		ResetVerified:        true,
		MarkVerified:         true,
		CodeTemplate:         TemplateCode,
		ConfirmationTemplate: TemplateReceived,
		Compose: func(s *verification.Subject[Payload]) verification.Message {
			return verification.Message{
				To:      s.Email,
				Name:    s.Payload.Name,
				Subject: s.Payload.Subject,
				Body:    s.Payload.Message,
			}
		},
	}
}
