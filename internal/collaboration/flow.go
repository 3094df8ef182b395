package collaboration

import "github.com/redmonkez12/nonprofit-portal/internal/verification"

const (
	TemplateCode     = "collaboration_code"
	TemplateReceived = "collaboration_received"
)

// Flow mirrors the inquiry flow: requesters are created on first contact and
// every resubmission has to be confirmed again.
func Flow() verification.Flow[Payload] {
	return verification.Flow[Payload]{
		Name:                 "collaboration",
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
				Subject: s.Payload.Organization,
				Body:    s.Payload.Proposal,
			}
		},
	}
}
