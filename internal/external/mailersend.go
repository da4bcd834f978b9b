package external

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"relaunch/internal/types"
)

const mailerSendAPIBase = "https://api.mailersend.com"

// MailerSendClient sends through the MailerSend v1 email API. It is the
// structured-recipient variant: the sender is an object and recipients are
// always an array of {email, name}, even for a single address.
type MailerSendClient struct {
	base    *BaseClient
	baseURL string
}

// NewMailerSendClient creates a MailerSendClient that routes through base.
func NewMailerSendClient(base *BaseClient, baseURL string) *MailerSendClient {
	if baseURL == "" {
		baseURL = mailerSendAPIBase
	}
	return &MailerSendClient{
		base:    base,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Provider implements EmailSender.
func (m *MailerSendClient) Provider() types.EmailProvider {
	return types.ProviderMailerSend
}

type mailerSendAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailerSendPayload struct {
	From    mailerSendAddress   `json:"from"`
	To      []mailerSendAddress `json:"to"`
	Subject string              `json:"subject"`
	HTML    string              `json:"html"`
	Tags    []string            `json:"tags,omitempty"`
}

func buildMailerSendPayload(msg types.OutboundEmail) mailerSendPayload {
	name := strings.TrimSpace(msg.To.Name)
	if name == "" {
		name = localPart(msg.To.Address)
	}
	payload := mailerSendPayload{
		From:    mailerSendAddress{Email: msg.From.Address, Name: msg.From.Name},
		To:      []mailerSendAddress{{Email: msg.To.Address, Name: name}},
		Subject: msg.Subject,
		HTML:    msg.HTML,
	}
	if msg.ReferenceID != "" {
		payload.Tags = []string{msg.ReferenceID}
	}
	return payload
}

// Send implements EmailSender. MailerSend answers 202 Accepted with the
// message id in X-Message-Id.
func (m *MailerSendClient) Send(ctx context.Context, apiKey types.SecretString, msg types.OutboundEmail) (string, error) {
	body, err := json.Marshal(buildMailerSendPayload(msg))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal MailerSend payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/v1/email", bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create MailerSend request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Authorization", "Bearer "+apiKey.Unmask())

	resp, err := m.base.Do(req)
	if err != nil {
		return "", wrapTransportError("MailerSend", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		return resp.Header.Get("X-Message-Id"), nil
	}
	return "", mapProviderStatus("MailerSend", resp.StatusCode, readProviderMessage(resp.Body))
}

// localPart returns the part of address before the last "@".
func localPart(address string) string {
	if i := strings.LastIndex(address, "@"); i >= 0 {
		return address[:i]
	}
	return address
}

var _ EmailSender = (*MailerSendClient)(nil)
