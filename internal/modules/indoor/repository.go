package indoor

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/get-readings-since.sql
var getReadingsSinceSQL string

//go:embed sql/get-latest-reading.sql
var getLatestReadingSQL string

//go:embed sql/delete-readings-before.sql
var deleteReadingsBeforeSQL string

// ErrNoReadings is returned by GetLatestReading on an empty log.
var ErrNoReadings = errors.New("no sensor readings logged")

// tsLayout is fixed width so stored timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000Z"

type Repository interface {
	InsertReading(ctx context.Context, r Reading) error
	GetReadingsSince(ctx context.Context, since time.Time) ([]Reading, error)
	GetReadingsForHours(ctx context.Context, hours int) ([]Reading, error)
	GetLatestReading(ctx context.Context) (Reading, error)
	DeleteReadingsBefore(ctx context.Context, before time.Time) (int64, error)
}

type repositoryImpl struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) Repository {
	return &repositoryImpl{db: db, now: time.Now}
}

func formatTS(t time.Time) string { return t.UTC().Format(tsLayout) }

func (r *repositoryImpl) InsertReading(ctx context.Context, rd Reading) error {
	ts := rd.Timestamp
	if ts.IsZero() {
		ts = r.now()
	}
	var gas any
	if rd.GasResistance != nil {
		gas = *rd.GasResistance
	}
	_, err := r.db.ExecContext(ctx, insertReadingSQL,
		formatTS(ts), rd.Temperature, rd.Humidity, rd.Pressure, gas, rd.PM1, rd.PM25, rd.PM10,
	)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

func (r *repositoryImpl) GetReadingsSince(ctx context.Context, since time.Time) ([]Reading, error) {
	rows, err := r.db.QueryContext(ctx, getReadingsSinceSQL, formatTS(since))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close readings rows", "error", err)
		}
	}()

	var out []Reading
	for rows.Next() {
		rd, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rd)
	}
	return out, rows.Err()
}

// GetReadingsForHours returns readings from the last hours hours, oldest first.
func (r *repositoryImpl) GetReadingsForHours(ctx context.Context, hours int) ([]Reading, error) {
	if hours <= 0 {
		return nil, fmt.Errorf("hours must be positive, got %d", hours)
	}
	return r.GetReadingsSince(ctx, r.now().Add(-time.Duration(hours)*time.Hour))
}

func (r *repositoryImpl) GetLatestReading(ctx context.Context) (Reading, error) {
	rd, err := scanReading(r.db.QueryRowContext(ctx, getLatestReadingSQL))
	if errors.Is(err, sql.ErrNoRows) {
		return Reading{}, ErrNoReadings
	}
	return rd, err
}

func (r *repositoryImpl) DeleteReadingsBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteReadingsBeforeSQL, formatTS(before))
	if err != nil {
		return 0, fmt.Errorf("delete readings: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(s rowScanner) (Reading, error) {
	var (
		rd  Reading
		ts  string
		gas sql.NullFloat64
	)
	if err := s.Scan(&ts, &rd.Temperature, &rd.Humidity, &rd.Pressure, &gas, &rd.PM1, &rd.PM25, &rd.PM10); err != nil {
		return Reading{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Reading{}, fmt.Errorf("parse timestamp %q: %w", ts, err)
	}
	rd.Timestamp = t
	if gas.Valid {
		rd.GasResistance = &gas.Float64
	}
	return rd, nil
}
