package db

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"testing"
)

// captureHandler records log records for assertion in tests.
type captureHandler struct {
	mu      sync.Mutex
	records []capturedRecord
}

type capturedRecord struct {
	level slog.Level
	msg   string
	attrs map[string]slog.Value
}

func (h *captureHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec := capturedRecord{level: r.Level, msg: r.Message, attrs: make(map[string]slog.Value)}
	r.Attrs(func(a slog.Attr) bool {
		rec.attrs[a.Key] = a.Value
		return true
	})
	h.records = append(h.records, rec)
	return nil
}

func (h *captureHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }

func (h *captureHandler) WithGroup(_ string) slog.Handler { return h }

func (h *captureHandler) last(t *testing.T, msg string) capturedRecord {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.records) - 1; i >= 0; i-- {
		if h.records[i].msg == msg {
			return h.records[i]
		}
	}
	t.Fatalf("no %q log record captured", msg)
	return capturedRecord{}
}

func openLogged(t *testing.T) (*sql.DB, *captureHandler) {
	t.Helper()
	handler := &captureHandler{}
	connector, err := NewLoggingConnector(":memory:", slog.New(handler))
	if err != nil {
		t.Fatalf("NewLoggingConnector: %v", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db, handler
}

func TestNewLoggingConnector_Validation(t *testing.T) {
	if _, err := NewLoggingConnector("", nil); err == nil {
		t.Error("empty dsn: error = nil, want non-nil")
	}
	conn, err := NewLoggingConnector(":memory:", nil)
	if err != nil {
		t.Fatalf("NewLoggingConnector: %v", err)
	}
	if conn.(*loggingConnector).logger != slog.Default() {
		t.Error("nil logger should fall back to slog.Default()")
	}
}

func TestLoggingConnector_ExecAndQuery(t *testing.T) {
	db, handler := openLogged(t)

	if _, err := db.Exec(`CREATE TABLE sensor_readings (id INTEGER PRIMARY KEY, pm25 REAL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	got := handler.last(t, "sql")
	if got.attrs["op"].String() != "exec" {
		t.Errorf("op = %q, want exec", got.attrs["op"].String())
	}

	if _, err := db.Exec(`INSERT INTO sensor_readings (pm25) VALUES (?)`, 12.5); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got = handler.last(t, "sql")
	if got.attrs["sql"].String() != `INSERT INTO sensor_readings (pm25) VALUES (?)` {
		t.Errorf("sql = %q", got.attrs["sql"].String())
	}
	if _, ok := got.attrs["args"]; !ok {
		t.Error("expected args attribute")
	}
	if _, ok := got.attrs["duration_ms"]; !ok {
		t.Error("expected duration_ms attribute")
	}

	var pm float64
	if err := db.QueryRow(`SELECT pm25 FROM sensor_readings`).Scan(&pm); err != nil {
		t.Fatalf("query: %v", err)
	}
	if pm != 12.5 {
		t.Errorf("pm25 = %v, want 12.5", pm)
	}
	got = handler.last(t, "sql")
	if got.attrs["op"].String() != "query" {
		t.Errorf("op = %q, want query", got.attrs["op"].String())
	}
}

func TestLoggingConnector_FailuresLoggedAtWarn(t *testing.T) {
	db, handler := openLogged(t)

	if _, err := db.Exec(`INSERT INTO missing_table VALUES (1)`); err == nil {
		t.Fatal("insert into missing table: error = nil")
	}
	got := handler.last(t, "sql failed")
	if got.level != slog.LevelWarn {
		t.Errorf("level = %v, want warn", got.level)
	}

	if _, err := db.Query(`SELECT * FROM missing_table`); err == nil {
		t.Fatal("select from missing table: error = nil")
	}
	got = handler.last(t, "sql prepare failed")
	if got.level != slog.LevelWarn {
		t.Errorf("level = %v, want warn", got.level)
	}
}

func TestLoggingConnector_MultiStatementExec(t *testing.T) {
	db, _ := openLogged(t)
	if _, err := db.Exec(`CREATE TABLE a (id INTEGER); CREATE TABLE b (id INTEGER);`); err != nil {
		t.Fatalf("exec script: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO b VALUES (1)`); err != nil {
		t.Errorf("second statement of script did not run: %v", err)
	}
}

func TestLoggingConnector_Transaction(t *testing.T) {
	db, _ := openLogged(t)
	if _, err := db.Exec(`CREATE TABLE t (id INTEGER)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.Exec(`INSERT INTO t VALUES (1)`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}
