package external

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"relaunch/internal/types"
)

// sendGridAPIBase is the default SendGrid API base URL.
const sendGridAPIBase = "https://api.sendgrid.com"

// SendGridClient sends through the SendGrid v3 Mail Send API. It is the
// simple provider variant: one recipient address, inline HTML content.
type SendGridClient struct {
	base    *BaseClient
	baseURL string
}

// NewSendGridClient creates a SendGridClient that routes through base. An
// empty baseURL selects the public API.
func NewSendGridClient(base *BaseClient, baseURL string) *SendGridClient {
	if baseURL == "" {
		baseURL = sendGridAPIBase
	}
	return &SendGridClient{
		base:    base,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Provider implements EmailSender.
func (s *SendGridClient) Provider() types.EmailProvider {
	return types.ProviderSendGrid
}

// Send implements EmailSender. SendGrid answers 202 Accepted and returns the
// message id in the X-Message-Id header.
func (s *SendGridClient) Send(ctx context.Context, apiKey types.SecretString, msg types.OutboundEmail) (string, error) {
	body, err := json.Marshal(buildSendGridPayload(msg))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal SendGrid mail payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create SendGrid request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey.Unmask())

	resp, err := s.base.Do(req)
	if err != nil {
		return "", wrapTransportError("SendGrid", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		return resp.Header.Get("X-Message-Id"), nil
	}
	return "", mapProviderStatus("SendGrid", resp.StatusCode, readProviderMessage(resp.Body))
}

type sendGridMailPayload struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
	CustomArgs       map[string]string         `json:"custom_args,omitempty"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func buildSendGridPayload(msg types.OutboundEmail) sendGridMailPayload {
	payload := sendGridMailPayload{
		Personalizations: []sendGridPersonalization{{
			To: []sendGridAddress{{Email: msg.To.Address}},
		}},
		From:    sendGridAddress{Email: msg.From.Address, Name: msg.From.Name},
		Subject: msg.Subject,
		Content: []sendGridContent{{Type: "text/html", Value: msg.HTML}},
	}
	if msg.ReferenceID != "" {
		payload.CustomArgs = map[string]string{"reference_id": msg.ReferenceID}
	}
	return payload
}

var _ EmailSender = (*SendGridClient)(nil)
