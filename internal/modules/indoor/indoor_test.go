package indoor

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"riverdash/internal/migrate"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	if err := migrate.Run(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestRepo(t *testing.T, now time.Time) *repositoryImpl {
	t.Helper()
	return &repositoryImpl{db: setupTestDB(t), now: func() time.Time { return now }}
}

func reading(ts time.Time, pm25 float64) Reading {
	gas := 120000.0
	return Reading{
		Timestamp:     ts,
		Temperature:   71.3,
		Humidity:      40.2,
		Pressure:      30.01,
		GasResistance: &gas,
		PM1:           4,
		PM25:          pm25,
		PM10:          11,
	}
}

func TestGetLatestReading_Empty(t *testing.T) {
	repo := newTestRepo(t, time.Now())
	if _, err := repo.GetLatestReading(context.Background()); !errors.Is(err, ErrNoReadings) {
		t.Fatalf("err = %v, want ErrNoReadings", err)
	}
}

func TestInsertAndWindow(t *testing.T) {
	now := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
	repo := newTestRepo(t, now)
	ctx := context.Background()

	inserts := []Reading{
		reading(now.Add(-30*time.Hour), 50),
		reading(now.Add(-2*time.Hour), 8),
		reading(now.Add(-90*time.Minute).Add(500*time.Millisecond), 9),
		reading(now.Add(-time.Minute), 10),
	}
	inserts[2].GasResistance = nil
	// Insert out of order; reads must come back by timestamp.
	for _, i := range []int{3, 0, 2, 1} {
		if err := repo.InsertReading(ctx, inserts[i]); err != nil {
			t.Fatalf("InsertReading: %v", err)
		}
	}

	got, err := repo.GetReadingsForHours(ctx, 24)
	if err != nil {
		t.Fatalf("GetReadingsForHours: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []float64{8, 9, 10} {
		if got[i].PM25 != want {
			t.Errorf("got[%d].PM25 = %v, want %v", i, got[i].PM25, want)
		}
	}
	if got[1].GasResistance != nil {
		t.Error("nil gas resistance should stay nil")
	}
	if got[0].GasResistance == nil || *got[0].GasResistance != 120000 {
		t.Errorf("gas = %v", got[0].GasResistance)
	}
	if !got[1].Timestamp.Equal(inserts[2].Timestamp) {
		t.Errorf("timestamp = %v, want %v", got[1].Timestamp, inserts[2].Timestamp)
	}

	latest, err := repo.GetLatestReading(ctx)
	if err != nil {
		t.Fatalf("GetLatestReading: %v", err)
	}
	if latest.PM25 != 10 {
		t.Errorf("latest PM25 = %v, want 10", latest.PM25)
	}

	all, err := repo.GetReadingsForHours(ctx, 72)
	if err != nil {
		t.Fatalf("GetReadingsForHours(72): %v", err)
	}
	if len(all) != 4 {
		t.Errorf("72h window = %d readings, want 4", len(all))
	}

	if _, err := repo.GetReadingsForHours(ctx, 0); err == nil {
		t.Error("hours=0: error = nil")
	}

	n, err := repo.DeleteReadingsBefore(ctx, now.Add(-24*time.Hour))
	if err != nil || n != 1 {
		t.Errorf("DeleteReadingsBefore = %d, %v; want 1", n, err)
	}
}

func TestInsertReading_DefaultsTimestamp(t *testing.T) {
	now := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
	repo := newTestRepo(t, now)
	ctx := context.Background()

	if err := repo.InsertReading(ctx, Reading{PM25: 3}); err != nil {
		t.Fatalf("InsertReading: %v", err)
	}
	latest, err := repo.GetLatestReading(ctx)
	if err != nil {
		t.Fatalf("GetLatestReading: %v", err)
	}
	if !latest.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v", latest.Timestamp, now)
	}
}

func TestAirQuality(t *testing.T) {
	tests := []struct {
		pm25   float64
		status string
		color  string
	}{
		{0, "Good", "#44ff44"},
		{12, "Good", "#44ff44"},
		{12.1, "Moderate", "#ffa500"},
		{35, "Moderate", "#ffa500"},
		{55, "Unhealthy for Sensitive", "#ff8c00"},
		{150, "Unhealthy", "#ff4444"},
		{150.1, "Very Unhealthy", "#8b0000"},
	}
	for _, tt := range tests {
		got := AirQuality(tt.pm25)
		if got.Status != tt.status || got.Color != tt.color {
			t.Errorf("AirQuality(%v) = %+v, want %s %s", tt.pm25, got, tt.status, tt.color)
		}
	}
}

func TestSeries(t *testing.T) {
	base := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	rs := []Reading{reading(base, 5), reading(base.Add(time.Minute), 6)}
	rs[1].GasResistance = nil

	if pts := Series(rs, MetricPM25); len(pts) != 2 || pts[1].Value != 6 {
		t.Errorf("pm25 series = %+v", pts)
	}
	if pts := Series(rs, MetricGasResistance); len(pts) != 1 {
		t.Errorf("gas series len = %d, want 1 (nil skipped)", len(pts))
	}

	m, err := ParseMetric(" PM25 ")
	if err != nil || m != MetricPM25 || m.Label() != "PM2.5" {
		t.Errorf("ParseMetric = %q, %v", m, err)
	}
	if _, err := ParseMetric("pm1"); err == nil {
		t.Error("ParseMetric(pm1): error = nil")
	}
}
