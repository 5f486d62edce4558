// Package notify fans status-change events out to notification recipients.
package notify

import (
	"context"

	"towerwatch/internal/model"
)

// Channel delivers a rendered message to one recipient. Implementations
// must treat every failure as returnable, never fatal; the dispatcher
// isolates failures per recipient.
type Channel interface {
	Send(ctx context.Context, r model.Recipient, msg Message) error
}
