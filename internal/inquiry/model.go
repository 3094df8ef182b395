package inquiry

import (
	"time"

	"github.com/google/uuid"
)

// Payload is what a visitor submits with the contact form.
type Payload struct {
	Name    string
	Subject string
	Message string
}

// Inquiry is a message whose sender has confirmed their address.
type Inquiry struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
