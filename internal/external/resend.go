package external

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"relaunch/internal/types"

	"github.com/resend/resend-go/v3"
)

// ResendClient sends through the Resend SDK. The SDK client is bound to one
// API key, so a client is constructed per call over a shared http.Client.
type ResendClient struct {
	httpClient *http.Client
	baseURL    *url.URL
}

// NewResendClient creates a ResendClient. An empty baseURL keeps the SDK
// default endpoint.
func NewResendClient(httpClient *http.Client, baseURL string) (*ResendClient, error) {
	c := &ResendClient{httpClient: httpClient}
	if baseURL != "" {
		u, err := url.Parse(baseURL + "/")
		if err != nil {
			return nil, fmt.Errorf("parsing resend base url: %w", err)
		}
		c.baseURL = u
	}
	return c, nil
}

// Provider implements EmailSender.
func (r *ResendClient) Provider() types.EmailProvider {
	return types.ProviderResend
}

// Send implements EmailSender.
func (r *ResendClient) Send(ctx context.Context, apiKey types.SecretString, msg types.OutboundEmail) (string, error) {
	client := resend.NewCustomClient(r.httpClient, apiKey.Unmask())
	if r.baseURL != nil {
		client.BaseURL = r.baseURL
	}

	from := msg.From.Address
	if msg.From.Name != "" {
		from = fmt.Sprintf("%s <%s>", msg.From.Name, msg.From.Address)
	}

	req := &resend.SendEmailRequest{
		From:    from,
		To:      []string{msg.To.Address},
		Subject: msg.Subject,
		Html:    msg.HTML,
	}
	if msg.ReferenceID != "" {
		req.Tags = []resend.Tag{{Name: "reference_id", Value: msg.ReferenceID}}
	}

	sent, err := client.Emails.SendWithContext(ctx, req)
	if err != nil {
		if isTimeout(ctx, err) {
			return "", types.NewAppError(types.ErrCodeUpstreamTimeout, "Resend request timed out", err)
		}
		return "", types.NewAppError(types.ErrCodeUpstreamEmailProvider, fmt.Sprintf("Resend error: %v", err), err)
	}
	return sent.Id, nil
}

var _ EmailSender = (*ResendClient)(nil)
