package admin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/service"
)

type stubBackend struct {
	ready bool
	info  service.SnapshotInfo
	err   error
}

func (s *stubBackend) Ready() bool { return s.ready }

func (s *stubBackend) Snapshot() (service.SnapshotInfo, bool) { return s.info, s.ready }

func (s *stubBackend) Retrain(context.Context) (service.RetrainReport, error) {
	if s.err != nil {
		return service.RetrainReport{}, s.err
	}
	return service.RetrainReport{Version: s.info.Version + 1}, nil
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouter(t *testing.T) {
	ready := &stubBackend{ready: true, info: service.SnapshotInfo{ID: "abc", Version: 3, BuiltAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}}
	tests := []struct {
		name    string
		backend *stubBackend
		method  string
		path    string
		status  int
	}{
		{"healthz", &stubBackend{}, http.MethodGet, "/healthz", http.StatusOK},
		{"readyz without snapshot", &stubBackend{}, http.MethodGet, "/readyz", http.StatusServiceUnavailable},
		{"readyz", ready, http.MethodGet, "/readyz", http.StatusOK},
		{"snapshot missing", &stubBackend{}, http.MethodGet, "/snapshot", http.StatusNotFound},
		{"snapshot", ready, http.MethodGet, "/snapshot", http.StatusOK},
		{"retrain", ready, http.MethodPost, "/retrain", http.StatusOK},
		{"retrain conflict", &stubBackend{err: core.NewDomainError(core.ModuleService, core.ErrorCodeConflict, "busy")}, http.MethodPost, "/retrain", http.StatusConflict},
		{"retrain store down", &stubBackend{err: core.NewDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "down")}, http.MethodPost, "/retrain", http.StatusServiceUnavailable},
		{"retrain bad catalog", &stubBackend{err: core.NewDomainError(core.ModuleFeature, core.ErrorCodeFeatureBuild, "bad")}, http.MethodPost, "/retrain", http.StatusUnprocessableEntity},
		{"retrain unknown error", &stubBackend{err: errors.New("boom")}, http.MethodPost, "/retrain", http.StatusInternalServerError},
		{"retrain needs post", ready, http.MethodGet, "/retrain", http.StatusMethodNotAllowed},
		{"metrics", &stubBackend{}, http.MethodGet, "/metrics", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, NewRouter(tt.backend, zerolog.Nop()), tt.method, tt.path)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRouter_Bodies(t *testing.T) {
	b := &stubBackend{ready: true, info: service.SnapshotInfo{ID: "abc", Version: 3}}
	h := NewRouter(b, zerolog.Nop())

	var info service.SnapshotInfo
	require.NoError(t, json.Unmarshal(do(t, h, http.MethodGet, "/snapshot").Body.Bytes(), &info))
	assert.Equal(t, "abc", info.ID)
	assert.Equal(t, int64(3), info.Version)

	var report service.RetrainReport
	require.NoError(t, json.Unmarshal(do(t, h, http.MethodPost, "/retrain").Body.Bytes(), &report))
	assert.Equal(t, int64(4), report.Version)

	b.err = core.NewDomainError(core.ModuleService, core.ErrorCodeConflict, "retrain: already in progress")
	var body map[string]string
	require.NoError(t, json.Unmarshal(do(t, h, http.MethodPost, "/retrain").Body.Bytes(), &body))
	assert.Contains(t, body["error"], "already in progress")
}

func TestServer_Shutdown(t *testing.T) {
	s := NewServer("127.0.0.1:0", NewRouter(&stubBackend{}, zerolog.Nop()), time.Second)
	assert.Equal(t, "admin-http", s.String())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
