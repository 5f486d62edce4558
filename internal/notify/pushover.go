package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/gregdel/pushover"

	"towerwatch/internal/model"
)

// PushoverChannel delivers messages through the Pushover API using each
// recipient's own token pair.
type PushoverChannel struct{}

// Send implements Channel.
func (PushoverChannel) Send(ctx context.Context, r model.Recipient, msg Message) error {
	if r.PushoverToken == "" || r.PushoverUserKey == "" {
		return errors.New("pushover credentials not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	app := pushover.New(r.PushoverToken)
	message := &pushover.Message{
		Title:    msg.Title,
		Message:  msg.Body,
		Priority: msg.Priority,
		Sound:    msg.Sound,
	}
	if _, err := app.SendMessage(message, pushover.NewRecipient(r.PushoverUserKey)); err != nil {
		return fmt.Errorf("pushover send: %w", err)
	}
	return nil
}
