package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite" // SQLite driver registration.

	"towerwatch/internal/model"
	"towerwatch/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Store backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateRecipient inserts a new recipient and populates its ID and CreatedAt.
func (s *SQLite) CreateRecipient(ctx context.Context, r *model.Recipient) error {
	patterns, err := marshalPatterns(r.Patterns)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO recipients (email, channel, pushover_token, pushover_user_key, telegram_chat_id, patterns, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Email, string(r.Channel), r.PushoverToken, r.PushoverUserKey, r.TelegramChatID,
		patterns, boolToInt(r.Enabled), now,
	)
	if err != nil {
		return fmt.Errorf("insert recipient: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	r.ID = id
	r.Kind = model.RecipientAccount
	r.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetRecipient returns a single recipient by its ID.
func (s *SQLite) GetRecipient(ctx context.Context, id int64) (*model.Recipient, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, channel, pushover_token, pushover_user_key, telegram_chat_id, patterns, enabled, created_at
		 FROM recipients WHERE id = ?`, id,
	)
	return scanRecipient(row)
}

// ListRecipients returns every recipient, enabled or not.
func (s *SQLite) ListRecipients(ctx context.Context) ([]model.Recipient, error) {
	return s.list(ctx,
		`SELECT id, email, channel, pushover_token, pushover_user_key, telegram_chat_id, patterns, enabled, created_at
		 FROM recipients ORDER BY id`)
}

// ListEnabledRecipients returns the recipients eligible for the current
// dispatch cycle.
func (s *SQLite) ListEnabledRecipients(ctx context.Context) ([]model.Recipient, error) {
	return s.list(ctx,
		`SELECT id, email, channel, pushover_token, pushover_user_key, telegram_chat_id, patterns, enabled, created_at
		 FROM recipients WHERE enabled = 1 ORDER BY id`)
}

func (s *SQLite) list(ctx context.Context, query string) ([]model.Recipient, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query recipients: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recipients []model.Recipient
	for rows.Next() {
		r, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, *r)
	}
	return recipients, rows.Err()
}

// UpdateRecipient persists changes to an existing recipient.
func (s *SQLite) UpdateRecipient(ctx context.Context, r *model.Recipient) error {
	patterns, err := marshalPatterns(r.Patterns)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE recipients SET email = ?, channel = ?, pushover_token = ?, pushover_user_key = ?,
		        telegram_chat_id = ?, patterns = ?, enabled = ?
		 WHERE id = ?`,
		r.Email, string(r.Channel), r.PushoverToken, r.PushoverUserKey,
		r.TelegramChatID, patterns, boolToInt(r.Enabled), r.ID,
	)
	if err != nil {
		return fmt.Errorf("update recipient: %w", err)
	}
	return nil
}

// DeleteRecipient removes a recipient by its ID.
func (s *SQLite) DeleteRecipient(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM recipients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete recipient: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func marshalPatterns(ps *model.PatternSet) (sql.NullString, error) {
	if ps == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(ps)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal patterns: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecipient(row scannable) (*model.Recipient, error) {
	var r model.Recipient
	var channel, created string
	var patterns sql.NullString
	var enabled int
	err := row.Scan(&r.ID, &r.Email, &channel, &r.PushoverToken, &r.PushoverUserKey,
		&r.TelegramChatID, &patterns, &enabled, &created)
	if err != nil {
		return nil, fmt.Errorf("scan recipient: %w", err)
	}
	r.Kind = model.RecipientAccount
	r.Channel = model.ChannelKind(channel)
	r.Enabled = enabled == 1
	if patterns.Valid {
		var ps model.PatternSet
		if err := json.Unmarshal([]byte(patterns.String), &ps); err != nil {
			return nil, fmt.Errorf("unmarshal patterns for recipient %d: %w", r.ID, err)
		}
		r.Patterns = &ps
	}
	r.CreatedAt, _ = time.Parse(timeLayout, created)
	return &r, nil
}
