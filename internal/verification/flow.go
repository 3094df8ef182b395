package verification

// Flow configures what a Machine does at each step of a cycle for one kind of
// subject.
type Flow[P any] struct {
	// Name labels logs, spans and metrics ("signup", "inquiry", ...).
	Name string

	// CreateOnDemand makes StartCycle create a subject when none exists for the
	// identity. Without it a missing subject is ErrNotFound.
	CreateOnDemand bool
	// ReplacePayload overwrites an existing subject's payload with the new one.
	ReplacePayload bool
	// ResetVerified clears the verified flag when a new cycle starts.
	ResetVerified bool
	// MarkVerified sets the verified flag when a code is accepted.
	MarkVerified bool

	// CodeTemplate carries the code to the subject. Required.
	CodeTemplate string
	// ConfirmationTemplate is sent after a successful verification. Empty
	// means no confirmation.
	ConfirmationTemplate string

	// Guard runs against an existing subject before a cycle starts. A non-nil
	// error aborts the cycle and is returned as is.
	Guard func(s *Subject[P]) error

	// Compose builds the message for both templates. Code is filled in by the
	// Machine. Defaults to the subject's email and name.
	Compose func(s *Subject[P]) Message
}

func (f Flow[P]) message(s *Subject[P]) Message {
	if f.Compose != nil {
		return f.Compose(s)
	}
	return Message{To: s.Email, Name: s.Name}
}
