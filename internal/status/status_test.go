package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/isuzu-shiranui/UnityMCP/internal/hub"
	"github.com/isuzu-shiranui/UnityMCP/internal/metrics"
)

func newTestHandler(t *testing.T, token string) http.Handler {
	t.Helper()
	preg := prometheus.NewRegistry()
	metrics.Register(preg)
	h := hub.New(hub.Config{Host: "127.0.0.1", Port: 0}, hub.Events{})
	return New(Options{
		Token:    token,
		Version:  "test",
		Hub:      h,
		Registry: preg,
	})
}

func TestStatusEndpoints(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(t, ""))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz: %v %d", err, resp.StatusCode)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/status")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("/status: %v %d", err, resp.StatusCode)
	}
	var v struct {
		Version     string `json:"version"`
		ClientCount int    `json:"clientCount"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if v.Version != "test" || v.ClientCount != 0 {
		t.Fatalf("status body %+v", v)
	}

	resp, err = http.Get(srv.URL + "/clients")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("/clients: %v %d", err, resp.StatusCode)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("/metrics: %v %d", err, resp.StatusCode)
	}
	resp.Body.Close()
}

func TestStatusTokenGate(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(t, "hunter2-hunter2"))
	defer srv.Close()

	// Health stays open for probes.
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz: %v %d", err, resp.StatusCode)
	}
	resp.Body.Close()

	resp, _ = http.Get(srv.URL + "/status")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/status", nil)
	req.Header.Set("Authorization", "Bearer hunter2-hunter2")
	resp, err = http.DefaultClient.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("authorized /status: %v %d", err, resp.StatusCode)
	}
	resp.Body.Close()
}
