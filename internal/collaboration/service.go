package collaboration

import (
	"context"
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/redmonkez12/nonprofit-portal/internal/verification"
)

const (
	maxNameLen         = 120
	maxOrganizationLen = 200
	maxWebsiteLen      = 500
	maxProposalLen     = 5000

	DefaultPageSize = 50
	MaxPageSize     = 200
)

var (
	ErrEmailRequired       = verification.InvalidInput("email is required")
	ErrInvalidEmail        = verification.InvalidInput("invalid email format")
	ErrNameRequired        = verification.InvalidInput("name is required")
	ErrNameTooLong         = verification.InvalidInput("name must be at most 120 characters")
	ErrOrganizationTooLong = verification.InvalidInput("organization must be at most 200 characters")
	ErrInvalidWebsite      = verification.InvalidInput("website must be an http or https URL")
	ErrProposalRequired    = verification.InvalidInput("proposal is required")
	ErrProposalTooLong     = verification.InvalidInput("proposal must be at most 5000 characters")
)

type Lister interface {
	ListVerified(ctx context.Context, limit, offset int) ([]Request, error)
}

// SubmitInput is a collaboration form submission.
type SubmitInput struct {
	Email        string
	Name         string
	Organization string
	Website      string
	Proposal     string
}

type Service struct {
	machine *verification.Machine[Payload]
	lister  Lister
}

func NewService(machine *verification.Machine[Payload], lister Lister) *Service {
	return &Service{machine: machine, lister: lister}
}

func (s *Service) Submit(ctx context.Context, in SubmitInput) (*verification.Receipt, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}

	return s.machine.StartCycle(ctx, in.Email, Payload{
		Name:         in.Name,
		Organization: in.Organization,
		Website:      in.Website,
		Proposal:     in.Proposal,
	})
}

func (s *Service) Confirm(ctx context.Context, email, code string) (*Request, error) {
	subj, err := s.machine.SubmitCode(ctx, email, code)
	if err != nil {
		return nil, err
	}

	return &Request{
		ID:           subj.ID,
		Email:        subj.Email,
		Name:         subj.Payload.Name,
		Organization: subj.Payload.Organization,
		Website:      subj.Payload.Website,
		Proposal:     subj.Payload.Proposal,
		Verified:     subj.Verified,
		CreatedAt:    subj.CreatedAt,
		UpdatedAt:    subj.UpdatedAt,
	}, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]Request, error) {
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
	in.Organization = strings.TrimSpace(in.Organization)
	in.Website = strings.TrimSpace(in.Website)
	in.Proposal = strings.TrimSpace(in.Proposal)

	if in.Email == "" {
		return ErrEmailRequired
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return ErrInvalidEmail
	}
	if in.Name == "" {
		return ErrNameRequired
	}
	if utf8.RuneCountInString(in.Name) > maxNameLen {
		return ErrNameTooLong
	}
	if utf8.RuneCountInString(in.Organization) > maxOrganizationLen {
		return ErrOrganizationTooLong
	}
	if in.Website != "" && !validWebsite(in.Website) {
		return ErrInvalidWebsite
	}
	if in.Proposal == "" {
		return ErrProposalRequired
	}
	if utf8.RuneCountInString(in.Proposal) > maxProposalLen {
		return ErrProposalTooLong
	}
	return nil
}

func validWebsite(raw string) bool {
	if len(raw) > maxWebsiteLen {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
