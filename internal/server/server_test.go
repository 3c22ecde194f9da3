package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
	"github.com/Mschirtzinger/hardlinks/internal/catalog/db"
	"github.com/Mschirtzinger/hardlinks/internal/host"
	"github.com/Mschirtzinger/hardlinks/internal/metrics"
	"github.com/Mschirtzinger/hardlinks/internal/plugin"
	"github.com/Mschirtzinger/hardlinks/internal/vault"
	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	pathA = catalog.MustParsePath("/z/home/rods/a.txt")
	pathB = catalog.MustParsePath("/z/home/rods/b.txt")
)

const makeLinkRule = `@external rule { {"operation": "hard_links_make_link", "logical_path": "/z/home/rods/a.txt", "link_name": "/z/home/rods/b.txt"} }`

// setupServer wires a server to a fresh host. The server is not started.
func setupServer(t *testing.T) (*Server, *host.Host) {
	t.Helper()

	cat, err := db.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Failed to open catalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })

	reg := prometheus.NewRegistry()
	srv := NewServer(&Config{Port: 0, Gatherer: reg})
	h := host.Assemble(cat, vault.NewMem("/vault"), host.Options{
		Metrics: metrics.New(reg),
		OnEvent: srv.Events().OnHookEvent,
	})
	srv.SetHost(h)

	if _, err := h.Put(context.Background(), catalog.NewSession("rods"), pathA, []byte("data")); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}
	return srv, h
}

func decode(t *testing.T, r io.Reader, v any) {
	t.Helper()
	if err := json.NewDecoder(r).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(&Config{Port: 0})

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	if addr := server.GetAddr(); addr == "" || strings.HasSuffix(addr, ":0") {
		t.Fatalf("unexpected address %q", addr)
	}

	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestRulesEndpoint(t *testing.T) {
	srv, h := setupServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/rules", "text/plain", strings.NewReader(makeLinkRule))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out RuleResponse
	decode(t, resp.Body, &out)
	if out.Code != plugin.CodeSuccess.String() || out.StatusName != "OK" {
		t.Errorf("unexpected response: %+v", out)
	}

	info, err := h.Stat(context.Background(), pathB)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if len(info.Siblings) != 1 || info.Siblings[0] != pathA {
		t.Errorf("Siblings = %v", info.Siblings)
	}
}

func TestRulesEndpoint_Errors(t *testing.T) {
	srv, _ := setupServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	tests := []struct {
		name       string
		body       string
		wantCode   int
		wantStatus string
		reported   bool
	}{
		{"unknown operation", `{"operation": "hard_links_nope"}`, http.StatusBadRequest, "INVALID_OPERATION", true},
		{"not yet supported", `{"operation": "hard_links_count_links"}`, http.StatusNotImplemented, "NOT_YET_SUPPORTED", true},
		{"bad json", `@external rule { nope }`, http.StatusBadRequest, "USER_INPUT_FORMAT_ERR", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/rules", "text/plain", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, resp.StatusCode)
			}
			var out RuleResponse
			decode(t, resp.Body, &out)
			if out.StatusName != tt.wantStatus {
				t.Errorf("StatusName = %q, want %q", out.StatusName, tt.wantStatus)
			}
			if tt.reported != (len(out.Errors) > 0) {
				t.Errorf("session errors = %v, reported %v", out.Errors, tt.reported)
			}
		})
	}
}

func TestRulesEndpoint_MethodNotAllowed(t *testing.T) {
	srv, _ := setupServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rules", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestObjectsEndpoint(t *testing.T) {
	srv, h := setupServer(t)
	sess := catalog.NewSession("rods")
	if _, err := h.ExecRuleText(context.Background(), sess, makeLinkRule); err != nil {
		t.Fatalf("make link failed: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/objects?path="+pathA.String(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var info host.ObjectInfo
	decode(t, rec.Body, &info)
	if info.GroupID == "" || len(info.Siblings) != 1 || info.Siblings[0] != pathB {
		t.Errorf("unexpected info: %+v", info)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/objects?path=/z/home/rods/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/objects?path=relative", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestStatsAndMetricsEndpoints(t *testing.T) {
	srv, h := setupServer(t)
	sess := catalog.NewSession("rods")
	if _, err := h.ExecRuleText(context.Background(), sess, makeLinkRule); err != nil {
		t.Fatalf("make link failed: %v", err)
	}
	if _, err := h.Unlink(context.Background(), sess, pathB); err != nil {
		t.Fatalf("unlink failed: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	var stats struct {
		Objects int       `json:"objects"`
		Groups  int       `json:"groups"`
		Hooks   StatsData `json:"hooks"`
	}
	decode(t, rec.Body, &stats)
	if stats.Objects != 1 {
		t.Errorf("Objects = %d, want 1", stats.Objects)
	}
	if stats.Hooks.ByOutcome[plugin.EventUnlinkPre]["skip"] != 1 {
		t.Errorf("unexpected hook stats: %+v", stats.Hooks)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{"hardlinks_links_created_total 1", `hardlinks_detaches_total{action="skip"} 1`} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestWebSocketHookEvents(t *testing.T) {
	srv, h := setupServer(t)
	if err := srv.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer srv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+srv.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	var msg Message
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read welcome message: %v", err)
	}
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != MessageTypeWelcome {
		t.Fatalf("expected welcome, got %s (%v)", data, err)
	}

	sess := catalog.NewSession("rods")
	if _, err := h.ExecRuleText(ctx, sess, makeLinkRule); err != nil {
		t.Fatalf("make link failed: %v", err)
	}
	if _, err := h.Unlink(ctx, sess, pathA); err != nil {
		t.Fatalf("unlink failed: %v", err)
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("Failed to read hook event: %v", err)
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		if msg.Type != MessageTypeHookEvent {
			continue
		}

		var ev plugin.HookEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			t.Fatalf("Failed to unmarshal hook event: %v", err)
		}
		if ev.Event != plugin.EventUnlinkPre || ev.Path != pathA || ev.Outcome != "skip" {
			t.Errorf("unexpected event: %+v", ev)
		}
		return
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := NewServer(nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var health map[string]interface{}
	decode(t, rec.Body, &health)
	if health["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", health["status"])
	}
}
