package sqlite

import (
	"database/sql"
	"fmt"
	"time"
)

// CommandRecord is a journaled command
type CommandRecord struct {
	ID        int64     `json:"id"`
	Cycle     int64     `json:"cycle"`
	Seq       int       `json:"seq"`
	CreatedAt time.Time `json:"timestamp"`
	Callsign  string    `json:"callsign"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
}

// EventRecord is a journaled engine event
type EventRecord struct {
	ID        int64     `json:"id"`
	Cycle     int64     `json:"cycle"`
	CreatedAt time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Callsign  string    `json:"callsign"`
	Detail    string    `json:"detail,omitempty"`
}

// GetCycles returns the most recent cycles first
func (j *Journal) GetCycles(limit, offset int) ([]*CycleRecord, error) {
	rows, err := j.db.Query(
		`SELECT id, cycle, started_at, duration_ms, aircraft, command_count
		FROM cycles
		ORDER BY id DESC
		LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	records := make([]*CycleRecord, 0)
	for rows.Next() {
		var record CycleRecord
		var startedAt string
		if err := rows.Scan(
			&record.ID,
			&record.Cycle,
			&startedAt,
			&record.DurationMs,
			&record.Aircraft,
			&record.CommandCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		if record.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("failed to parse started_at: %w", err)
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

// GetCommands returns the most recent commands first, optionally for one
// callsign
func (j *Journal) GetCommands(callsign string, limit, offset int) ([]*CommandRecord, error) {
	query := `SELECT id, cycle, seq, created_at, callsign, kind, text FROM commands`
	args := []any{}
	if callsign != "" {
		query += ` WHERE callsign = ?`
		args = append(args, callsign)
	}
	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query commands: %w", err)
	}
	defer rows.Close()

	records := make([]*CommandRecord, 0)
	for rows.Next() {
		var record CommandRecord
		var createdAt string
		if err := rows.Scan(
			&record.ID,
			&record.Cycle,
			&record.Seq,
			&createdAt,
			&record.Callsign,
			&record.Kind,
			&record.Text,
		); err != nil {
			return nil, fmt.Errorf("failed to scan command: %w", err)
		}
		if record.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

// GetEvents returns the most recent events first, optionally of one kind
func (j *Journal) GetEvents(kind string, limit, offset int) ([]*EventRecord, error) {
	query := `SELECT id, cycle, created_at, kind, callsign, detail FROM events`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	records := make([]*EventRecord, 0)
	for rows.Next() {
		var record EventRecord
		var createdAt string
		var detail sql.NullString
		if err := rows.Scan(
			&record.ID,
			&record.Cycle,
			&createdAt,
			&record.Kind,
			&record.Callsign,
			&detail,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if record.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		if detail.Valid {
			record.Detail = detail.String
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}
