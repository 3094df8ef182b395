package inquiry

import (
	"context"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/redmonkez12/nonprofit-portal/internal/verification"
)

const (
	maxNameLen    = 120
	maxSubjectLen = 200
	maxMessageLen = 5000

	DefaultPageSize = 50
	MaxPageSize     = 200
)

var (
	ErrEmailRequired   = verification.InvalidInput("email is required")
	ErrInvalidEmail    = verification.InvalidInput("invalid email format")
	ErrNameTooLong     = verification.InvalidInput("name must be at most 120 characters")
	ErrSubjectRequired = verification.InvalidInput("subject is required")
	ErrSubjectTooLong  = verification.InvalidInput("subject must be at most 200 characters")
	ErrMessageRequired = verification.InvalidInput("message is required")
	ErrMessageTooLong  = verification.InvalidInput("message must be at most 5000 characters")
)

// Lister reads confirmed inquiries for the dashboard.
type Lister interface {
	ListVerified(ctx context.Context, limit, offset int) ([]Inquiry, error)
}

// SubmitInput is a contact form submission.
type SubmitInput struct {
	Email   string
	Name    string
	Subject string
	Message string
}

type Service struct {
	machine *verification.Machine[Payload]
	lister  Lister
}

func NewService(machine *verification.Machine[Payload], lister Lister) *Service {
	return &Service{machine: machine, lister: lister}
}

// Submit stores the message unconfirmed and emails the sender a code.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*verification.Receipt, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}

	return s.machine.StartCycle(ctx, in.Email, Payload{
		Name:    in.Name,
		Subject: in.Subject,
		Message: in.Message,
	})
}

// Confirm accepts the code and returns the confirmed inquiry.
func (s *Service) Confirm(ctx context.Context, email, code string) (*Inquiry, error) {
	subj, err := s.machine.SubmitCode(ctx, email, code)
	if err != nil {
		return nil, err
	}

	return &Inquiry{
		ID:        subj.ID,
		Email:     subj.Email,
		Name:      subj.Payload.Name,
		Subject:   subj.Payload.Subject,
		Message:   subj.Payload.Message,
		Verified:  subj.Verified,
		CreatedAt: subj.CreatedAt,
		UpdatedAt: subj.UpdatedAt,
	}, nil
}

// List pages through confirmed inquiries. limit is clamped to MaxPageSize.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Inquiry, error) {
	limit, offset = clampPage(limit, offset)
	return s.lister.ListVerified(ctx, limit, offset)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func validate(in *SubmitInput) error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)

	if in.Email == "" {
		return ErrEmailRequired
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return ErrInvalidEmail
	}
	if utf8.RuneCountInString(in.Name) > maxNameLen {
		return ErrNameTooLong
	}
	if in.Subject == "" {
		return ErrSubjectRequired
	}
	if utf8.RuneCountInString(in.Subject) > maxSubjectLen {
		return ErrSubjectTooLong
	}
	if in.Message == "" {
		return ErrMessageRequired
	}
	if utf8.RuneCountInString(in.Message) > maxMessageLen {
		return ErrMessageTooLong
	}
	return nil
}
