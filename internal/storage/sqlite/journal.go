package sqlite

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/yegors/atc-autopilot/internal/engine"
	"github.com/yegors/atc-autopilot/pkg/logger"
	_ "modernc.org/sqlite"
)

// CycleRecord is the journal entry for one decision cycle
type CycleRecord struct {
	ID           int64            `json:"id"`
	Cycle        int64            `json:"cycle"`
	StartedAt    time.Time        `json:"started_at"`
	DurationMs   float64          `json:"duration_ms"`
	Aircraft     int              `json:"aircraft"`
	CommandCount int              `json:"command_count"`
	Commands     []engine.Command `json:"-"` // stored in the commands table
	Events       []engine.Event   `json:"-"` // stored in the events table
}

// Journal is a SQLite-based journal of cycles, commands and engine events
type Journal struct {
	db     *sql.DB
	logger *logger.Logger
}

// DailyPath returns the journal file for a day, e.g. data/autopilot-2026-01-02.db
func DailyPath(baseDir string, day time.Time) string {
	return filepath.Join(baseDir, fmt.Sprintf("autopilot-%s.db", day.Format("2006-01-02")))
}

// NewJournal opens (or creates) the journal database
func NewJournal(dbPath string, log *logger.Logger) (*Journal, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite journal",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool limits
	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := initDatabase(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db, logger: storageLogger}, nil
}

// Close closes the database connection
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// GetDB returns the database connection
func (j *Journal) GetDB() *sql.DB {
	return j.db
}

// initDatabase initializes the database schema
func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Info("Initializing database schema")

	statements := []struct {
		name  string
		query string
	}{
		{"cycles table", `
			CREATE TABLE IF NOT EXISTS cycles (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				cycle INTEGER NOT NULL,
				started_at TEXT NOT NULL,
				duration_ms REAL NOT NULL,
				aircraft INTEGER NOT NULL,
				command_count INTEGER NOT NULL
			)
		`},
		{"commands table", `
			CREATE TABLE IF NOT EXISTS commands (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				cycle_id INTEGER NOT NULL REFERENCES cycles(id),
				cycle INTEGER NOT NULL,
				seq INTEGER NOT NULL,
				created_at TEXT NOT NULL,
				callsign TEXT NOT NULL,
				kind TEXT NOT NULL,
				text TEXT NOT NULL
			)
		`},
		{"events table", `
			CREATE TABLE IF NOT EXISTS events (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				cycle_id INTEGER NOT NULL REFERENCES cycles(id),
				cycle INTEGER NOT NULL,
				created_at TEXT NOT NULL,
				kind TEXT NOT NULL,
				callsign TEXT NOT NULL,
				detail TEXT
			)
		`},
		{"commands callsign index", `CREATE INDEX IF NOT EXISTS idx_commands_callsign ON commands(callsign)`},
		{"commands cycle index", `CREATE INDEX IF NOT EXISTS idx_commands_cycle_id ON commands(cycle_id)`},
		{"events kind index", `CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind)`},
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt.query); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.name, err)
		}
	}

	return nil
}

// RecordCycle stores a cycle with its commands and events in one transaction
func (j *Journal) RecordCycle(rec *CycleRecord) (int64, error) {
	tx, err := j.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	startedAt := rec.StartedAt.UTC().Format(time.RFC3339Nano)

	result, err := tx.Exec(
		`INSERT INTO cycles (cycle, started_at, duration_ms, aircraft, command_count)
		VALUES (?, ?, ?, ?, ?)`,
		rec.Cycle, startedAt, rec.DurationMs, rec.Aircraft, len(rec.Commands),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert cycle: %w", err)
	}
	cycleID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	for seq, c := range rec.Commands {
		if _, err := tx.Exec(
			`INSERT INTO commands (cycle_id, cycle, seq, created_at, callsign, kind, text)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			cycleID, rec.Cycle, seq, startedAt, c.Callsign, string(c.Kind), c.Text,
		); err != nil {
			return 0, fmt.Errorf("failed to insert command: %w", err)
		}
	}

	for _, ev := range rec.Events {
		if _, err := tx.Exec(
			`INSERT INTO events (cycle_id, cycle, created_at, kind, callsign, detail)
			VALUES (?, ?, ?, ?, ?, ?)`,
			cycleID, rec.Cycle, startedAt, string(ev.Kind), ev.Callsign, ev.Detail,
		); err != nil {
			return 0, fmt.Errorf("failed to insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cycle: %w", err)
	}

	rec.ID = cycleID
	rec.CommandCount = len(rec.Commands)
	return cycleID, nil
}
