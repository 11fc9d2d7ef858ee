package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// SQLiteOutboundStore implements OutboundEventStore backed by SQLite.
type SQLiteOutboundStore struct {
	db *sql.DB
}

// NewSQLiteOutboundStore returns a new SQLiteOutboundStore.
func NewSQLiteOutboundStore(db *sql.DB) *SQLiteOutboundStore {
	return &SQLiteOutboundStore{db: db}
}

// LogOutbound inserts an outbound event record into the database.
func (s *SQLiteOutboundStore) LogOutbound(ctx context.Context, entry OutboundEventEntry) error {
	props, err := json.Marshal(entry.Properties)
	if err != nil {
		return fmt.Errorf("encoding outbound properties: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO outbound_events (event_id, event_name, properties, status, error_msg, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.EventID, entry.EventName, string(props),
		entry.Status, entry.ErrorMsg, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting outbound event: %w", err)
	}
	return nil
}

// ListOutbound returns the most recent entries, newest first.
func (s *SQLiteOutboundStore) ListOutbound(ctx context.Context, limit int) (entries []OutboundEventEntry, err error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, event_name, properties, status, error_msg, created_at
		FROM outbound_events
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying outbound events: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cerr)
		}
	}()

	for rows.Next() {
		var (
			e     OutboundEventEntry
			props string
		)
		if err := rows.Scan(&e.ID, &e.EventID, &e.EventName, &props,
			&e.Status, &e.ErrorMsg, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning outbound event row: %w", err)
		}
		if err := json.Unmarshal([]byte(props), &e.Properties); err != nil {
			return nil, fmt.Errorf("decoding outbound properties for %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating outbound event rows: %w", err)
	}
	return entries, nil
}
