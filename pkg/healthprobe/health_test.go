package healthprobe

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func probe(t *testing.T, handler http.HandlerFunc) (int, HealthResponse) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %s, want application/json", ct)
	}

	var body HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	return resp.StatusCode, body
}

func TestHealth_AlwaysOK(t *testing.T) {
	t.Parallel()

	hc := New()

	for _, ready := range []bool{false, true} {
		hc.SetReady(ready)

		code, body := probe(t, hc.Health())
		if code != http.StatusOK {
			t.Fatalf("health status = %d with ready=%v, want 200", code, ready)
		}

		if body.Status != "healthy" || body.Uptime == "" {
			t.Fatalf("health body = %+v", body)
		}
	}
}

func TestReady_GatedOnFlag(t *testing.T) {
	t.Parallel()

	hc := New()

	code, body := probe(t, hc.Ready())
	if code != http.StatusServiceUnavailable || body.Status != "not_ready" {
		t.Fatalf("initial ready = %d/%s, want 503/not_ready", code, body.Status)
	}

	hc.SetReady(true)

	code, body = probe(t, hc.Ready())
	if code != http.StatusOK || body.Status != "ready" {
		t.Fatalf("ready after flag = %d/%s, want 200/ready", code, body.Status)
	}

	hc.SetReady(false)

	if code, _ := probe(t, hc.Ready()); code != http.StatusServiceUnavailable {
		t.Fatalf("ready after unset = %d, want 503", code)
	}
}

func TestReady_GatedOnComponents(t *testing.T) {
	t.Parallel()

	hc := New()
	hc.SetReady(true)

	hc.SetComponent("venue", true)
	hc.SetComponent("sink", false)

	code, body := probe(t, hc.Ready())
	if code != http.StatusServiceUnavailable || body.Status != "degraded" {
		t.Fatalf("degraded ready = %d/%s, want 503/degraded", code, body.Status)
	}

	if body.Components["venue"] != true || body.Components["sink"] != false {
		t.Fatalf("components = %v", body.Components)
	}

	hc.SetComponent("sink", true)

	code, body = probe(t, hc.Ready())
	if code != http.StatusOK {
		t.Fatalf("ready after recovery = %d, want 200", code)
	}

	if len(body.Components) != 2 {
		t.Fatalf("components = %v, want both reported", body.Components)
	}
}

func TestHealthChecker_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	hc := New()
	handler := hc.Ready()
	done := make(chan bool)

	go func() {
		for i := 0; i < 100; i++ {
			hc.SetReady(i%2 == 0)
			hc.SetComponent("venue", i%3 == 0)
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 100; i++ {
			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			w := httptest.NewRecorder()
			handler(w, req)
		}
		done <- true
	}()

	<-done
	<-done
}
