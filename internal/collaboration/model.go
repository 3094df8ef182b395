package collaboration

import (
	"time"

	"github.com/google/uuid"
)

// Payload is a partnership proposal.
type Payload struct {
	Name         string
	Organization string
	Website      string
	Proposal     string
}

// Request is a proposal whose sender has confirmed their address.
type Request struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Organization string    `json:"organization"`
	Website      string    `json:"website,omitempty"`
	Proposal     string    `json:"proposal"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
