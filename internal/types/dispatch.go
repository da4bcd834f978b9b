package types

import "time"

// EmailAddress is a sender or recipient with an optional display name.
type EmailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// OutboundEmail is the provider-neutral message handed to an email adapter.
// HTML is the final, layout-wrapped body.
type OutboundEmail struct {
	To          EmailAddress
	From        EmailAddress
	Subject     string
	HTML        string
	ReferenceID string // correlation id echoed to providers that support it
}

// DispatchMode selects the recipient set of a batch run.
type DispatchMode string

const (
	// DispatchModeAll sends to every eligible recipient.
	DispatchModeAll DispatchMode = "all"
	// DispatchModeSingle sends to one representative recipient.
	DispatchModeSingle DispatchMode = "single"
)

// Valid reports whether m is a known dispatch mode.
func (m DispatchMode) Valid() bool {
	return m == DispatchModeAll || m == DispatchModeSingle
}

// DispatchJob is the SQS message body for an asynchronous batch run.
// It deliberately carries no credential material: the worker re-reads the
// credential from the store when the job is processed.
type DispatchJob struct {
	JobID       string       `json:"job_id"`
	UserID      string       `json:"user_id"`
	Mode        DispatchMode `json:"mode"`
	RequestedAt time.Time    `json:"requested_at"`
	TraceID     string       `json:"trace_id,omitempty"`
}
