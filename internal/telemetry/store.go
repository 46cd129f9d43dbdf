package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

// Store persists events in an in-memory DuckDB table and, when an output path is set,
// re-exports the table to a parquet file after every write.
type Store struct {
	db         *sql.DB
	sq         squirrel.StatementBuilderType
	outputPath string
	mu         sync.Mutex
}

// NewStore creates a store. outputPath may be empty for a purely in-memory store.
func NewStore(outputPath string) *Store {
	return &Store{
		db:         nil,
		sq:         squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		outputPath: outputPath,
		mu:         sync.Mutex{},
	}
}

// Initialize opens DuckDB, creates the events table and loads an existing parquet file.
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outputPath != "" {
		if err := os.MkdirAll(filepath.Dir(s.outputPath), 0755); err != nil {
			return errors.Wrap(errors.ErrCodeTelemetryFailed, "failed to create telemetry directory", err)
		}
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return errors.Wrap(errors.ErrCodeTelemetryFailed, "failed to open DuckDB connection", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id TEXT,
			event TEXT,
			timestamp TIMESTAMP,
			algo TEXT,
			symbol TEXT,
			action TEXT,
			quantity INTEGER,
			price DOUBLE,
			reason TEXT,
			pnl DOUBLE,
			history TEXT
		)
	`)
	if err != nil {
		db.Close()

		return errors.Wrap(errors.ErrCodeTelemetryFailed, "failed to create events table", err)
	}

	s.db = db

	if s.outputPath == "" {
		return nil
	}

	if _, err := os.Stat(s.outputPath); err == nil {
		// A corrupt or foreign file is ignored and the store starts empty.
		_, _ = s.db.Exec(fmt.Sprintf(`INSERT INTO events SELECT * FROM read_parquet('%s')`, s.outputPath))
	}

	return nil
}

// Emit inserts the event and exports the table.
func (s *Store) Emit(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return errors.New(errors.ErrCodeTelemetryFailed, "store not initialized")
	}

	history := ""

	if len(event.History) > 0 {
		raw, err := json.Marshal(event.History)
		if err != nil {
			return errors.Wrap(errors.ErrCodeTelemetryFailed, "failed to encode history", err)
		}

		history = string(raw)
	}

	_, err := s.sq.
		Insert("events").
		Columns("id", "event", "timestamp", "algo", "symbol", "action", "quantity", "price", "reason", "pnl", "history").
		Values(event.ID, string(event.Kind), event.Time, event.Algo, event.Symbol, string(event.Action),
			event.Quantity, event.Price, string(event.Reason), event.PnL, history).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeTelemetryFailed, "failed to insert event", err)
	}

	return s.exportLocked()
}

// Flush forces an export to parquet.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return errors.New(errors.ErrCodeTelemetryFailed, "store not initialized")
	}

	return s.exportLocked()
}

// Close releases database resources.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil

	if err != nil {
		return errors.Wrap(errors.ErrCodeTelemetryFailed, "failed to close database", err)
	}

	return nil
}

// OutputPath returns the parquet file path, empty for an in-memory store.
func (s *Store) OutputPath() string {
	return s.outputPath
}

// Count returns the number of stored events of kind; an empty kind counts all.
func (s *Store) Count(kind EventKind) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return 0, errors.New(errors.ErrCodeTelemetryFailed, "store not initialized")
	}

	query := s.sq.Select("COUNT(*)").From("events")
	if kind != "" {
		query = query.Where(squirrel.Eq{"event": string(kind)})
	}

	var count int
	if err := query.RunWith(s.db).QueryRow().Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeTelemetryFailed, "failed to count events", err)
	}

	return count, nil
}

// EventsByReason returns the exit events with the given reason, oldest first.
func (s *Store) EventsByReason(reason types.ExitReason) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, errors.New(errors.ErrCodeTelemetryFailed, "store not initialized")
	}

	rows, err := s.sq.
		Select("id", "event", "timestamp", "algo", "symbol", "action", "quantity", "price", "reason", "pnl").
		From("events").
		Where(squirrel.Eq{"event": string(EventExit), "reason": string(reason)}).
		OrderBy("timestamp ASC").
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTelemetryFailed, "failed to query events", err)
	}
	defer rows.Close()

	var events []Event

	for rows.Next() {
		var (
			e            Event
			kind, action string
			reasonText   string
			ts           time.Time
		)

		if err := rows.Scan(&e.ID, &kind, &ts, &e.Algo, &e.Symbol, &action, &e.Quantity, &e.Price, &reasonText, &e.PnL); err != nil {
			return nil, errors.Wrap(errors.ErrCodeTelemetryFailed, "failed to scan event", err)
		}

		e.Kind = EventKind(kind)
		e.Time = ts
		e.Action = types.PurchaseType(action)
		e.Reason = types.ExitReason(reasonText)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeTelemetryFailed, "failed to read events", err)
	}

	return events, nil
}

// RealizedPnL sums the P&L of exit events for algo; an empty algo sums every strategy.
func (s *Store) RealizedPnL(algo string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return 0, errors.New(errors.ErrCodeTelemetryFailed, "store not initialized")
	}

	query := s.sq.Select("SUM(pnl)").From("events").Where(squirrel.Eq{"event": string(EventExit)})
	if algo != "" {
		query = query.Where(squirrel.Eq{"algo": algo})
	}

	var total sql.NullFloat64
	if err := query.RunWith(s.db).QueryRow().Scan(&total); err != nil {
		return 0, errors.Wrap(errors.ErrCodeTelemetryFailed, "failed to sum pnl", err)
	}

	if !total.Valid {
		return 0, nil
	}

	return total.Float64, nil
}

func (s *Store) exportLocked() error {
	if s.outputPath == "" {
		return nil
	}

	_, err := s.db.Exec(fmt.Sprintf(`
		COPY (SELECT * FROM events ORDER BY timestamp ASC)
		TO '%s' (FORMAT PARQUET)
	`, s.outputPath))
	if err != nil {
		return errors.Wrap(errors.ErrCodeTelemetryFailed, "failed to export to parquet", err)
	}

	return nil
}

var _ Sink = (*Store)(nil)
