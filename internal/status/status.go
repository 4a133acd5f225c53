// Package status serves the bridge's diagnostic HTTP endpoints: health,
// state, client enumeration, and prometheus metrics.
package status

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/host"

	"github.com/isuzu-shiranui/UnityMCP/core/logx"
	"github.com/isuzu-shiranui/UnityMCP/internal/hub"
)

// Options configures the status server. A non-empty Token gates every
// endpoint except /healthz behind a bearer token.
type Options struct {
	Addr           string
	AllowedOrigins []string
	Token          string
	Version        string
	Hub            *hub.Hub
	Registry       *prometheus.Registry
}

type hostInfo struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platformVersion"`
	KernelArch      string `json:"kernelArch"`
	UptimeSeconds   uint64 `json:"uptimeSeconds"`
}

// New constructs the HTTP handler for the status server.
func New(opts Options) http.Handler {
	r := chi.NewRouter()
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		if opts.Token != "" {
			r.Use(requireToken(opts.Token))
		}

		r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
			activeID, _ := opts.Hub.ActiveID()
			payload := map[string]any{
				"version":      opts.Version,
				"clientCount":  opts.Hub.ClientCount(),
				"activeClient": activeID,
			}
			if hi, err := host.Info(); err == nil {
				payload["host"] = hostInfo{
					Hostname:        hi.Hostname,
					OS:              hi.OS,
					Platform:        hi.Platform,
					PlatformVersion: hi.PlatformVersion,
					KernelArch:      hi.KernelArch,
					UptimeSeconds:   hi.Uptime,
				}
			}
			writeJSON(w, payload)
		})

		r.Get("/clients", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, opts.Hub.Snapshot())
		})

		if opts.Registry != nil {
			r.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
		}
	})
	return r
}

// requireToken rejects requests that do not carry the configured bearer
// token.
func requireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("Authorization") != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// Serve runs the status server until ctx is canceled. It returns once the
// server has shut down.
func Serve(ctx context.Context, opts Options) {
	srv := &http.Server{Addr: opts.Addr, Handler: New(opts)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logx.Log.Info().Str("addr", opts.Addr).Msg("status server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logx.Log.Error().Err(err).Msg("status server failed")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Log.Warn().Err(err).Msg("encode status response")
	}
}
