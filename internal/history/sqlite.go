package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/speedwagon-io/sensorwatch/internal/lib/logger/sl"
	"github.com/speedwagon-io/sensorwatch/internal/model"
)

// Fixed-width UTC layout so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Record is one stored reading.
type Record struct {
	ID        string          `json:"id"`
	BatchID   string          `json:"batch_id"`
	ReadingID string          `json:"reading_id,omitempty"`
	RHError   *float64        `json:"rh_error,omitempty"`
	Raw       json.RawMessage `json:"reading"`
	FetchedAt time.Time       `json:"fetched_at"`
}

type SQLiteStore struct {
	log *slog.Logger
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(log *slog.Logger, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{
		log: log,
		db:  db,
		now: time.Now,
	}

	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
		CREATE TABLE IF NOT EXISTS readings (
			id TEXT PRIMARY KEY,
			batch_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			reading_id TEXT,
			rh_error REAL,
			raw_json TEXT NOT NULL,
			fetched_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_readings_fetched_at ON readings(fetched_at);
		CREATE INDEX IF NOT EXISTS idx_readings_batch_id ON readings(batch_id);

		CREATE TABLE IF NOT EXISTS predictions (
			id TEXT PRIMARY KEY,
			value REAL,
			raw_json TEXT NOT NULL,
			fetched_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_predictions_fetched_at ON predictions(fetched_at);
	`
	_, err := s.db.Exec(query)
	return err
}

// StoreReadings writes one batch atomically.
func (s *SQLiteStore) StoreReadings(ctx context.Context, readings []model.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO readings (id, batch_id, position, reading_id, rh_error, raw_json, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	batchID := uuid.New().String()
	fetchedAt := s.now().UTC().Format(timeLayout)

	for i, r := range readings {
		_, err := stmt.ExecContext(ctx,
			uuid.New().String(),
			batchID,
			i,
			nullString(r.ID),
			nullFloat(r.RHErrorPred),
			string(r.Raw),
			fetchedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to store reading %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Debug("readings stored", slog.String("batch_id", batchID), slog.Int("count", len(readings)))
	return nil
}

func (s *SQLiteStore) StorePrediction(ctx context.Context, p model.Prediction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO predictions (id, value, raw_json, fetched_at) VALUES (?, ?, ?, ?)`,
		uuid.New().String(),
		nullFloat(p.Value),
		string(p.Raw),
		s.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to store prediction: %w", err)
	}
	return nil
}

// RecentReadings returns up to limit rows, newest batch first, each batch in
// the order it was received.
func (s *SQLiteStore) RecentReadings(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, reading_id, rh_error, raw_json, fetched_at
		FROM readings
		ORDER BY fetched_at DESC, batch_id, position ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	return s.scanRecords(rows)
}

// LatestReadings returns the most recent stored batch, or nil when empty.
func (s *SQLiteStore) LatestReadings(ctx context.Context) ([]model.Reading, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, reading_id, rh_error, raw_json, fetched_at
		FROM readings
		WHERE batch_id = (
			SELECT batch_id FROM readings ORDER BY fetched_at DESC LIMIT 1
		)
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest batch: %w", err)
	}
	defer rows.Close()

	records, err := s.scanRecords(rows)
	if err != nil {
		return nil, err
	}

	readings := make([]model.Reading, 0, len(records))
	for _, rec := range records {
		r, err := model.ParseReading(rec.Raw)
		if err != nil {
			s.log.Error("failed to parse stored reading", slog.String("id", rec.ID), sl.Err(err))
			continue
		}
		readings = append(readings, r)
	}
	if len(readings) == 0 {
		return nil, nil
	}
	return readings, nil
}

func (s *SQLiteStore) scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var (
			rec            Record
			readingID      sql.NullString
			rhError        sql.NullFloat64
			raw, fetchedAt string
		)

		if err := rows.Scan(&rec.ID, &rec.BatchID, &readingID, &rhError, &raw, &fetchedAt); err != nil {
			s.log.Error("failed to scan row", sl.Err(err))
			continue
		}

		ts, err := time.Parse(timeLayout, fetchedAt)
		if err != nil {
			s.log.Error("failed to parse timestamp", slog.String("id", rec.ID), sl.Err(err))
			continue
		}

		rec.FetchedAt = ts
		rec.ReadingID = readingID.String
		if rhError.Valid {
			v := rhError.Float64
			rec.RHError = &v
		}
		rec.Raw = json.RawMessage(raw)
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (s *SQLiteStore) Cleanup(ctx context.Context, maxAge time.Duration) error {
	cutoff := s.now().UTC().Add(-maxAge).Format(timeLayout)

	var deleted int64
	for _, table := range []string{"readings", "predictions"} {
		result, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE fetched_at < ?", cutoff)
		if err != nil {
			return fmt.Errorf("failed to cleanup %s: %w", table, err)
		}
		n, _ := result.RowsAffected()
		deleted += n
	}

	if deleted > 0 {
		s.log.Info("cleaned up old history entries", slog.Int64("deleted", deleted))
	}
	return nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM readings").Scan(&count)
	return count, err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
