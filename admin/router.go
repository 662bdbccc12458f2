// Package admin 提供运维用的 HTTP 接口：健康检查、指标、手动重训与快照信息。
// 对外的推荐读接口不在这里。
package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/service"
)

// Backend 是管理接口依赖的服务能力，service.Service 实现此接口。
type Backend interface {
	Ready() bool
	Snapshot() (service.SnapshotInfo, bool)
	Retrain(ctx context.Context) (service.RetrainReport, error)
}

type handler struct {
	backend Backend
	logger  zerolog.Logger
}

// NewRouter 创建管理路由：
//   - GET  /healthz   进程存活
//   - GET  /readyz    已有快照时 200，否则 503
//   - GET  /metrics   Prometheus 指标
//   - GET  /snapshot  当前快照概要，没有快照时 404
//   - POST /retrain   同步重训，已有重训进行中时 409
func NewRouter(b Backend, logger zerolog.Logger) http.Handler {
	h := &handler{backend: b, logger: logger.With().Str("component", "admin").Logger()}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/snapshot", h.snapshot)
	r.Post("/retrain", h.retrain)
	return r
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) readyz(w http.ResponseWriter, _ *http.Request) {
	if !h.backend.Ready() {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no snapshot"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *handler) snapshot(w http.ResponseWriter, _ *http.Request) {
	info, ok := h.backend.Snapshot()
	if !ok {
		h.writeError(w, http.StatusNotFound, "no snapshot")
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

func (h *handler) retrain(w http.ResponseWriter, r *http.Request) {
	report, err := h.backend.Retrain(r.Context())
	if err != nil {
		h.writeError(w, statusOf(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// statusOf 把领域错误映射为 HTTP 状态码。
func statusOf(err error) int {
	switch {
	case core.IsConflict(err):
		return http.StatusConflict
	case core.IsInvalidInput(err), core.IsFeatureBuild(err):
		return http.StatusUnprocessableEntity
	case core.IsNotFound(err):
		return http.StatusNotFound
	case core.IsUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn().Err(err).Msg("write response")
	}
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debug().
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("admin request")
	})
}
