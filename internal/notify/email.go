package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"towerwatch/internal/model"
)

// EmailChannel delivers messages via the SendGrid Web API.
type EmailChannel struct {
	apiKey string
	from   string
}

// NewEmailChannel creates an EmailChannel sending from the given address.
func NewEmailChannel(apiKey, from string) *EmailChannel {
	return &EmailChannel{apiKey: apiKey, from: from}
}

const mailSubjectPrefix = "[Tower Watch] "

// Send implements Channel.
func (c *EmailChannel) Send(ctx context.Context, r model.Recipient, msg Message) error {
	if r.Email == "" {
		return errors.New("recipient has no email address")
	}

	from := mail.NewEmail("Tower Watch", c.from)
	to := mail.NewEmail("", r.Email)
	body := msg.Body
	message := mail.NewSingleEmail(from, mailSubjectPrefix+msg.Title, to, body, body)

	client := sendgrid.NewSendClient(c.apiKey)
	resp, err := client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
