package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"riverdash/internal/config"
)

type captureHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *captureHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	h.records = append(h.records, r)
	h.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(_ string) slog.Handler      { return h }

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestServer(t *testing.T, db *sql.DB, logger *slog.Logger) *httptest.Server {
	t.Helper()
	srv := NewServer(config.Config{HTTPAddr: ":0"}, NewMux(db), logger)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, openDB(t), slog.New(slog.DiscardHandler))

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("body.status=%q want=ok", body["status"])
	}
}

func TestHealthz_DatabaseClosed(t *testing.T) {
	db := openDB(t)
	ts := newTestServer(t, db, slog.New(slog.DiscardHandler))
	_ = db.Close()

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestRouting(t *testing.T) {
	ts := newTestServer(t, openDB(t), slog.New(slog.DiscardHandler))

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/does-not-exist", http.StatusNotFound},
		{http.MethodPost, "/healthz", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		req, err := http.NewRequest(tt.method, ts.URL+tt.path, nil)
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		resp, err := ts.Client().Do(req)
		if err != nil {
			t.Fatalf("do: %v", err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Errorf("%s %s: status=%d want=%d", tt.method, tt.path, resp.StatusCode, tt.want)
		}
	}
}

func TestRequestLogger(t *testing.T) {
	h := &captureHandler{}
	handler := requestLogger(slog.New(h), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/snapshot", nil))
	if id := rec.Header().Get("X-Request-ID"); len(id) != 36 {
		t.Errorf("generated request id = %q", id)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if id := rec.Header().Get("X-Request-ID"); id != "req-1" {
		t.Errorf("request id = %q, want caller's", id)
	}

	if len(h.records) != 2 {
		t.Fatalf("records = %d, want 2", len(h.records))
	}
	first := h.records[0]
	if first.Level != slog.LevelInfo || first.Message != "http request" {
		t.Errorf("first = %v %q", first.Level, first.Message)
	}
	var status int64
	first.Attrs(func(a slog.Attr) bool {
		if a.Key == "status" {
			status = a.Value.Int64()
		}
		return true
	})
	if status != http.StatusTeapot {
		t.Errorf("status attr = %d, want %d", status, http.StatusTeapot)
	}
	if h.records[1].Level != slog.LevelDebug {
		t.Errorf("healthz level = %v, want DEBUG", h.records[1].Level)
	}
}
