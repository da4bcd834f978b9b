package types

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEmailProvider(t *testing.T) {
	tests := []struct {
		in     string
		want   EmailProvider
		wantOK bool
	}{
		{"sendgrid", ProviderSendGrid, true},
		{" MailerSend ", ProviderMailerSend, true},
		{"RESEND", ProviderResend, true},
		{"smtp", EmailProvider("smtp"), false},
		{"", EmailProvider(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseEmailProvider(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestRecipient_Eligible(t *testing.T) {
	assert.True(t, Recipient{Email: "a@gmail.com", Name: "Alice"}.Eligible())
	assert.False(t, Recipient{Email: "a@gmail.com"}.Eligible(), "missing name")
	assert.False(t, Recipient{Name: "Alice"}.Eligible(), "missing email")
	assert.False(t, Recipient{Email: "  ", Name: "Alice"}.Eligible(), "whitespace email")
}

func TestRecipient_HasProject(t *testing.T) {
	assert.True(t, Recipient{Project: "Apollo"}.HasProject())
	assert.False(t, Recipient{Project: " "}.HasProject())
	assert.False(t, Recipient{}.HasProject())
}

func TestEmailCredential_HasKey(t *testing.T) {
	var nilCred *EmailCredential
	assert.False(t, nilCred.HasKey())
	assert.False(t, (&EmailCredential{Provider: ProviderSendGrid}).HasKey())
	assert.False(t, (&EmailCredential{APIKey: "   "}).HasKey())
	assert.True(t, (&EmailCredential{APIKey: "SG.key"}).HasKey())
}

func TestDispatchMode_Valid(t *testing.T) {
	assert.True(t, DispatchModeAll.Valid())
	assert.True(t, DispatchModeSingle.Valid())
	assert.False(t, DispatchMode("some").Valid())
}

func TestContextRequestIDAndLogger(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Nil(t, LoggerFromContext(ctx))

	ctx = WithRequestID(ctx, "req_123")
	logger := NewSlogAdapter(nil)
	ctx = WithLogger(ctx, logger)

	assert.Equal(t, "req_123", GetRequestID(ctx))
	assert.Same(t, logger, LoggerFromContext(ctx))
}
