package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/simshield/simshield-server/internal/models"
)

// PostgresStore implements Store against PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store and ensures the schema
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

func (s *PostgresStore) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS simulation_events (
			id UUID PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			device_id TEXT,
			device_name TEXT,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			message TEXT NOT NULL,
			details JSONB
		);
		CREATE INDEX IF NOT EXISTS simulation_events_timestamp_idx
			ON simulation_events (timestamp DESC);`)
	return err
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// InsertEvent inserts an event into the archive
func (s *PostgresStore) InsertEvent(ctx context.Context, event *models.SimulationEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	query := `
		INSERT INTO simulation_events (
			id, timestamp, device_id, device_name, type, severity, message, details
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query,
		event.ID, event.Timestamp, event.DeviceID, event.DeviceName,
		event.Type, event.Severity, event.Message, event.Details,
	)

	return err
}

// ListEvents lists archived events, newest first
func (s *PostgresStore) ListEvents(ctx context.Context, limit, offset int) ([]*models.SimulationEvent, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM simulation_events").Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, timestamp, device_id, device_name, type, severity, message, details
		FROM simulation_events
		ORDER BY timestamp DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events := make([]*models.SimulationEvent, 0, limit)
	for rows.Next() {
		var event models.SimulationEvent
		var deviceID, deviceName sql.NullString

		if err := rows.Scan(
			&event.ID, &event.Timestamp, &deviceID, &deviceName,
			&event.Type, &event.Severity, &event.Message, &event.Details,
		); err != nil {
			return nil, 0, err
		}

		event.DeviceID = deviceID.String
		event.DeviceName = deviceName.String
		events = append(events, &event)
	}

	return events, total, rows.Err()
}
