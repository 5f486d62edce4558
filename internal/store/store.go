// Package store persists notification recipients. It is the storage
// side of the external account layer; the watcher core only ever reads
// from it via ListEnabledRecipients.
package store

import (
	"context"

	"towerwatch/internal/model"
)

// Store is the interface for all recipient persistence operations.
type Store interface {
	CreateRecipient(ctx context.Context, r *model.Recipient) error
	GetRecipient(ctx context.Context, id int64) (*model.Recipient, error)
	ListRecipients(ctx context.Context) ([]model.Recipient, error)
	ListEnabledRecipients(ctx context.Context) ([]model.Recipient, error)
	UpdateRecipient(ctx context.Context, r *model.Recipient) error
	DeleteRecipient(ctx context.Context, id int64) error

	Close() error
}
