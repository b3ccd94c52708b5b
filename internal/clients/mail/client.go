package mail

import (
	"context"
	"fmt"

	"crm-server/internal/observability"

	"github.com/resendlabs/resend-go"
)

// SendParams carries a single outbound message
type SendParams struct {
	From    string
	To      []string
	Subject string
	HTML    string
	Cc      []string
	Bcc     []string
	ReplyTo string
}

type ResendClient struct {
	client *resend.Client
	logger *observability.Logger
}

func NewResendClient(apiKey string, logger *observability.Logger) (*ResendClient, error) {
	client := resend.NewClient(apiKey)
	if client == nil {
		return nil, fmt.Errorf("failed to create Resend client")
	}

	return &ResendClient{
		client: client,
		logger: logger,
	}, nil
}

// SendEmail dispatches one message and returns the provider message id.
func (c *ResendClient) SendEmail(ctx context.Context, params SendParams) (string, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "email_to", Value: params.To},
		observability.Field{Key: "email_subject", Value: params.Subject},
	)

	req := &resend.SendEmailRequest{
		From:    params.From,
		To:      params.To,
		Subject: params.Subject,
		Html:    params.HTML,
		Cc:      params.Cc,
		Bcc:     params.Bcc,
		ReplyTo: params.ReplyTo,
	}

	res, err := c.client.Emails.Send(req)
	if err != nil {
		c.logger.Error(ctx, "failed to send email", err)
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	c.logger.Info(ctx, "email sent successfully")
	return res.Id, nil
}
