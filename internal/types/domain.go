package types

import (
	"strings"
	"time"
)

// EmailProvider identifies a transactional email backend. The stored
// credential's provider tag selects the adapter used for every send.
type EmailProvider string

const (
	// ProviderSendGrid is the simple sender: to/from/subject/html.
	ProviderSendGrid EmailProvider = "sendgrid"
	// ProviderMailerSend requires a sender object and a recipients array.
	ProviderMailerSend EmailProvider = "mailersend"
	// ProviderResend is a simple sender reached through the Resend SDK.
	ProviderResend EmailProvider = "resend"
)

// AllEmailProviders lists every supported provider tag.
var AllEmailProviders = []EmailProvider{
	ProviderSendGrid,
	ProviderMailerSend,
	ProviderResend,
}

// Valid reports whether p is a known provider tag.
func (p EmailProvider) Valid() bool {
	for _, known := range AllEmailProviders {
		if p == known {
			return true
		}
	}
	return false
}

// ParseEmailProvider normalizes a user-supplied provider tag.
func ParseEmailProvider(s string) (EmailProvider, bool) {
	p := EmailProvider(strings.ToLower(strings.TrimSpace(s)))
	return p, p.Valid()
}

// EmailCredential is a user's saved provider choice and API key. It is owned
// by the user's settings record and changed only through an explicit save.
type EmailCredential struct {
	UserID    string        `json:"user_id"`
	Provider  EmailProvider `json:"provider"`
	APIKey    SecretString  `json:"-"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// HasKey reports whether a usable API key is configured.
func (c *EmailCredential) HasKey() bool {
	return c != nil && strings.TrimSpace(c.APIKey.Unmask()) != ""
}

// Template is a stored subject/body pair with {variable} placeholders.
// Templates are ordered by Stage; the lowest stage is the first follow-up.
type Template struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Stage     int       `json:"stage"`
	CreatedAt time.Time `json:"created_at"`
}

// Recipient is a prospect that can receive a follow-up email.
type Recipient struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id,omitempty"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Project string `json:"project,omitempty"`
	Company string `json:"company,omitempty"`
	Status  string `json:"status,omitempty"`
}

// Eligible reports whether the recipient has the fields required for
// dispatch: a non-empty email and name.
func (r Recipient) Eligible() bool {
	return strings.TrimSpace(r.Email) != "" && strings.TrimSpace(r.Name) != ""
}

// HasProject reports whether the optional project field is set.
func (r Recipient) HasProject() bool {
	return strings.TrimSpace(r.Project) != ""
}

// RenderedMessage is the result of substituting one Recipient into one
// Template. It is never persisted.
type RenderedMessage struct {
	Subject  string
	HTMLBody string
}

// HistoryStatus is the lifecycle state of a history record. Dispatch only
// ever writes HistoryStatusSent; other states are set by collaborators.
type HistoryStatus string

const (
	HistoryStatusPending   HistoryStatus = "Pending"
	HistoryStatusSent      HistoryStatus = "Sent"
	HistoryStatusResponded HistoryStatus = "Responded"
)

// HistoryEntry is the append-only audit record of one confirmed send.
type HistoryEntry struct {
	ID         string        `json:"id,omitempty"`
	ProspectID string        `json:"prospect_id"`
	TemplateID string        `json:"template_id,omitempty"`
	UserID     string        `json:"user_id"`
	Status     HistoryStatus `json:"status"`
	SentAt     time.Time     `json:"sent_at"`
}
