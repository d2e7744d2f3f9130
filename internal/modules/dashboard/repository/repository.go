package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"riverdash/internal/config"
)

//go:embed sql/get-setting.sql
var getSettingSQL string

//go:embed sql/upsert-setting.sql
var upsertSettingSQL string

//go:embed sql/delete-setting.sql
var deleteSettingSQL string

const (
	pinnedRiverKey        = "pinned_river"
	apiPollIntervalKey    = "api_poll_interval"
	sensorReadIntervalKey = "sensor_read_interval"
	sensorLogIntervalKey  = "sensor_log_interval"
)

// SettingsRepository persists user choices made on the dashboard.
type SettingsRepository interface {
	// GetPinnedRiver returns "" when nothing is pinned.
	GetPinnedRiver(ctx context.Context) (string, error)
	SetPinnedRiver(ctx context.Context, siteID string) error
	ClearPinnedRiver(ctx context.Context) error
	// GetIntervals returns the stored overrides; unset fields are zero.
	GetIntervals(ctx context.Context) (config.Intervals, error)
	// SetIntervals stores every non-zero field of iv.
	SetIntervals(ctx context.Context, iv config.Intervals) error
	ClearIntervals(ctx context.Context) error
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) SettingsRepository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) GetPinnedRiver(ctx context.Context) (string, error) {
	var v string
	err := r.db.QueryRowContext(ctx, getSettingSQL, pinnedRiverKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get pinned river: %w", err)
	}
	return v, nil
}

func (r *repositoryImpl) SetPinnedRiver(ctx context.Context, siteID string) error {
	if siteID == "" {
		return r.ClearPinnedRiver(ctx)
	}
	if _, err := r.db.ExecContext(ctx, upsertSettingSQL, pinnedRiverKey, siteID); err != nil {
		return fmt.Errorf("set pinned river: %w", err)
	}
	return nil
}

func (r *repositoryImpl) ClearPinnedRiver(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, deleteSettingSQL, pinnedRiverKey); err != nil {
		return fmt.Errorf("clear pinned river: %w", err)
	}
	return nil
}

type intervalField struct {
	key string
	d   *time.Duration
}

func intervalFields(iv *config.Intervals) []intervalField {
	return []intervalField{
		{apiPollIntervalKey, &iv.APIPoll},
		{sensorReadIntervalKey, &iv.SensorRead},
		{sensorLogIntervalKey, &iv.SensorLog},
	}
}

func (r *repositoryImpl) GetIntervals(ctx context.Context) (config.Intervals, error) {
	var iv config.Intervals
	for _, f := range intervalFields(&iv) {
		var v string
		err := r.db.QueryRowContext(ctx, getSettingSQL, f.key).Scan(&v)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return config.Intervals{}, fmt.Errorf("get %s: %w", f.key, err)
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return config.Intervals{}, fmt.Errorf("parse %s %q: %w", f.key, v, err)
		}
		*f.d = d
	}
	return iv, nil
}

func (r *repositoryImpl) SetIntervals(ctx context.Context, iv config.Intervals) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set intervals: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, f := range intervalFields(&iv) {
		if *f.d <= 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, upsertSettingSQL, f.key, f.d.String()); err != nil {
			return fmt.Errorf("set %s: %w", f.key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("set intervals: %w", err)
	}
	return nil
}

func (r *repositoryImpl) ClearIntervals(ctx context.Context) error {
	for _, key := range []string{apiPollIntervalKey, sensorReadIntervalKey, sensorLogIntervalKey} {
		if _, err := r.db.ExecContext(ctx, deleteSettingSQL, key); err != nil {
			return fmt.Errorf("clear %s: %w", key, err)
		}
	}
	return nil
}
