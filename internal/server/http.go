package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/oggyb/edublin-connect/internal/gateway"
	"github.com/oggyb/edublin-connect/internal/metrics"
)

// NewOpsRouter serves health, breaker status and metrics for operators.
func NewOpsRouter(gw *gateway.Gateway, m *metrics.Metrics, log *slog.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "mode": gw.Status().Mode})
	}).Methods(http.MethodGet)

	r.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, gw.Status())
	}).Methods(http.MethodGet)

	r.HandleFunc("/connection", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, gw.TestConnection(r.Context()))
	}).Methods(http.MethodGet)

	r.HandleFunc("/breaker/reset", func(w http.ResponseWriter, r *http.Request) {
		gw.ResetBreaker(r.Context())
		writeJSON(w, http.StatusOK, gw.Status())
	}).Methods(http.MethodPost)

	r.HandleFunc("/breaker/force", func(w http.ResponseWriter, r *http.Request) {
		reason := r.URL.Query().Get("reason")
		if reason == "" {
			reason = "forced by operator"
		}
		gw.ForceFallback(r.Context(), reason)
		writeJSON(w, http.StatusOK, gw.Status())
	}).Methods(http.MethodPost)

	if m != nil {
		r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, req)
			log.Debug("ops request", "method", req.Method, "path", req.URL.Path, "elapsed", time.Since(start))
		})
	})

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(r)
}

// StartOpsServer serves h on addr until ctx ends.
func StartOpsServer(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
