package auth

import (
	"github.com/redmonkez12/nonprofit-portal/internal/user"
	"github.com/redmonkez12/nonprofit-portal/internal/verification"
)

const (
	TemplateSignupCode = "signup_code"
	TemplateWelcome    = "welcome"
	TemplateLoginCode  = "login_code"
)

// SignupFlow verifies the email address of a registered account. The account
// must exist and must not be verified yet.
func SignupFlow() verification.Flow[user.Account] {
	return verification.Flow[user.Account]{
		Name:                 "signup",
		MarkVerified:         true,
		CodeTemplate:         TemplateSignupCode,
		ConfirmationTemplate: TemplateWelcome,
		Guard: func(s *verification.Subject[user.Account]) error {
			if s.Verified {
				return ErrEmailAlreadyVerified
			}
			return nil
		},
	}
}

// LoginFlow is a one-time-code gate in front of session issuance. It never
// changes the account's verified flag.
func LoginFlow() verification.Flow[user.Account] {
	return verification.Flow[user.Account]{
		Name:         "login",
		CodeTemplate: TemplateLoginCode,
		Guard: func(s *verification.Subject[user.Account]) error {
			if !s.Verified {
				return ErrEmailNotVerified
			}
			return nil
		},
	}
}
