package notify

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// Mailer delivers one message and returns the provider's message id.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) (string, error)
}

// ResendMailer delivers mail through the Resend API.
type ResendMailer struct {
	client *resend.Client
	from   string
}

func NewResendMailer(apiKey, fromAddress string) *ResendMailer {
	return &ResendMailer{
		client: resend.NewClient(apiKey),
		from:   fromAddress,
	}
}

func (m *ResendMailer) Send(ctx context.Context, to, subject, body string) (string, error) {
	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	}

	sent, err := m.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return "", fmt.Errorf("send email to %s: %w", to, err)
	}
	return sent.Id, nil
}
