// internal/repository/journal_repository.go

// Package repository implements the provisioning journal: an append-only
// Postgres record of every connect/disconnect delta the monitor loop saw.
// Journal failures are logged and swallowed; the audit trail must never
// affect engine behavior.
package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"board-service/internal/database"
	"board-service/internal/model"
)

// ScanEvent is one journal row.
type ScanEvent struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	UniqueID  string          `json:"unique_id"`
	Port      string          `json:"port"`
	BoardKind string          `json:"board_kind"`
	UID       string          `json:"uid,omitempty"`
	Detail    json.RawMessage `json:"detail,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// JournalRepository persists change events to Postgres.
type JournalRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewJournalRepository creates a journal backed by the given connection.
func NewJournalRepository(db *database.DB, logger *zap.Logger) *JournalRepository {
	return &JournalRepository{
		db:     db,
		logger: logger.With(zap.String("component", "journal")),
	}
}

// Record appends one change event. Errors are logged, never returned: the
// monitor loop must not stall on a slow or absent database.
func (r *JournalRepository) Record(ctx context.Context, event model.ChangeEvent) {
	row := ScanEvent{
		ID:        uuid.New().String(),
		Kind:      string(event.Kind),
		UniqueID:  event.UniqueID,
		CreatedAt: event.Timestamp,
	}
	if event.Device != nil {
		row.Port = event.Device.Port
		row.BoardKind = string(event.Device.BoardKind)
		row.UID = event.Device.UID
		if detail, err := json.Marshal(event.Device); err == nil {
			row.Detail = detail
		}
	}

	const query = `
		INSERT INTO scan_events (id, kind, unique_id, port, board_kind, uid, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if _, err := r.db.ExecContext(ctx, query,
		row.ID, row.Kind, row.UniqueID, row.Port,
		row.BoardKind, nullable(row.UID), nullableJSON(row.Detail), row.CreatedAt,
	); err != nil {
		r.logger.Warn("Failed to journal scan event",
			zap.String("kind", row.Kind),
			zap.String("unique_id", row.UniqueID),
			zap.Error(err),
		)
	}
}

// Recent returns the newest events, newest first.
func (r *JournalRepository) Recent(ctx context.Context, limit int) ([]ScanEvent, error) {
	const query = `
		SELECT id, kind, unique_id, port, board_kind, COALESCE(uid, ''), detail, created_at
		FROM scan_events
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []ScanEvent
	for rows.Next() {
		var ev ScanEvent
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.UniqueID, &ev.Port,
			&ev.BoardKind, &ev.UID, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// History returns every journaled event for one device, oldest first.
func (r *JournalRepository) History(ctx context.Context, uniqueID string) ([]ScanEvent, error) {
	const query = `
		SELECT id, kind, unique_id, port, board_kind, COALESCE(uid, ''), detail, created_at
		FROM scan_events
		WHERE unique_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, uniqueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []ScanEvent
	for rows.Next() {
		var ev ScanEvent
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.UniqueID, &ev.Port,
			&ev.BoardKind, &ev.UID, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// NoopJournal satisfies the journal interface when journaling is disabled.
type NoopJournal struct{}

// Record discards the event.
func (NoopJournal) Record(context.Context, model.ChangeEvent) {}
