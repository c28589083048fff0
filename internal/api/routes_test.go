package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"stopwatch-widget/backend/internal/clock"
	"stopwatch-widget/backend/internal/stopwatch"
)

// newTestServer builds a server with a manual clock and an hour-long
// tick so only operations push snapshots.
func newTestServer(t *testing.T) (*Server, *gin.Engine, *clock.Manual) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clk := clock.NewManual(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	server, err := NewServer(Config{TickInterval: time.Hour, Clock: clk})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(server.Close)

	router, err := server.Router()
	if err != nil {
		t.Fatalf("configure router: %v", err)
	}
	return server, router, clk
}

func doRequest(t *testing.T, router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) stopwatch.State {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var state stopwatch.State
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return state
}

func TestHealthEndpoint(t *testing.T) {
	_, router, _ := newTestServer(t)

	rec := doRequest(t, router, http.MethodGet, "/api/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health body: %s", rec.Body.String())
	}
}

func TestConfigEndpoint(t *testing.T) {
	server, router, _ := newTestServer(t)

	rec := doRequest(t, router, http.MethodGet, "/api/config")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var cfg ConfigResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if cfg.SessionID != server.current().ID() {
		t.Fatalf("expected session %q got %q", server.current().ID(), cfg.SessionID)
	}
	if cfg.TickMs != time.Hour.Milliseconds() {
		t.Fatalf("unexpected tick ms %d", cfg.TickMs)
	}
	if cfg.EmptyLapText == "" {
		t.Fatal("expected empty-lap placeholder text")
	}
}

func TestIndexServesWebShell(t *testing.T) {
	_, router, _ := newTestServer(t)

	rec := doRequest(t, router, http.MethodGet, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected html content type, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "/api/stopwatch/stream") {
		t.Fatal("expected web shell to reference the display stream")
	}
}

func TestOperationEndpoints(t *testing.T) {
	_, router, clk := newTestServer(t)

	state := decodeState(t, doRequest(t, router, http.MethodPost, "/api/stopwatch/start"))
	if !state.Running {
		t.Fatalf("expected running after start, got %+v", state)
	}

	clk.Advance(1500 * time.Millisecond)
	state = decodeState(t, doRequest(t, router, http.MethodPost, "/api/stopwatch/pause"))
	if state.Running {
		t.Fatal("expected stopped after pause")
	}
	if !strings.HasPrefix(state.FormattedTime, "00:01:5") {
		t.Fatalf("expected formatted time to begin 00:01:5, got %q", state.FormattedTime)
	}

	// Lap while stopped is accepted but changes nothing.
	state = decodeState(t, doRequest(t, router, http.MethodPost, "/api/stopwatch/lap"))
	if state.LapCount != 0 {
		t.Fatalf("expected lap no-op while stopped, got %d laps", state.LapCount)
	}

	state = decodeState(t, doRequest(t, router, http.MethodPost, "/api/stopwatch/reset"))
	if state.FormattedTime != "00:00:00" || state.LapCount != 0 || state.Running {
		t.Fatalf("expected zeroed state after reset, got %+v", state)
	}
}

func TestLapEndpointWhileRunning(t *testing.T) {
	_, router, clk := newTestServer(t)

	decodeState(t, doRequest(t, router, http.MethodPost, "/api/stopwatch/start"))
	clk.Advance(500 * time.Millisecond)
	decodeState(t, doRequest(t, router, http.MethodPost, "/api/stopwatch/lap"))
	clk.Advance(700 * time.Millisecond)
	state := decodeState(t, doRequest(t, router, http.MethodPost, "/api/stopwatch/lap"))

	if state.LapCount != 2 {
		t.Fatalf("expected 2 laps, got %d", state.LapCount)
	}
	if state.Laps[0].FormattedTime != "00:00:50" || state.Laps[1].FormattedTime != "00:01:20" {
		t.Fatalf("unexpected lap times: %+v", state.Laps)
	}
}

func TestStateEndpoint(t *testing.T) {
	_, router, clk := newTestServer(t)

	decodeState(t, doRequest(t, router, http.MethodPost, "/api/stopwatch/start"))
	clk.Advance(61010 * time.Millisecond)

	state := decodeState(t, doRequest(t, router, http.MethodGet, "/api/stopwatch/state"))
	if state.FormattedTime != "01:01:01" {
		t.Fatalf("expected 01:01:01 got %q", state.FormattedTime)
	}
	if state.ElapsedMs != 61010 {
		t.Fatalf("expected 61010ms got %v", state.ElapsedMs)
	}
}

func TestNewSessionReplacesController(t *testing.T) {
	server, router, clk := newTestServer(t)

	previous := server.current()
	previous.Start()
	clk.Advance(time.Second)

	rec := doRequest(t, router, http.MethodPost, "/api/session")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var session SessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.SessionID == previous.ID() {
		t.Fatal("expected a fresh session id")
	}

	current := server.current()
	if current.ID() != session.SessionID {
		t.Fatalf("expected active controller %q got %q", session.SessionID, current.ID())
	}
	if current.State().Running {
		t.Fatal("expected fresh controller to start stopped")
	}

	// The replaced controller is torn down; operations on it are no-ops.
	previous.Start()
	if previous.State().Running {
		t.Fatal("expected closed controller to ignore operations")
	}
}

func TestNotifierLastSnapshotReplay(t *testing.T) {
	notifier := NewDisplayNotifier()
	if notifier.LastSnapshot() != nil {
		t.Fatal("expected no snapshot before first push")
	}

	if err := notifier.Push(stopwatch.DisplaySnapshot{FormattedTime: "00:00:50", Running: true}); err != nil {
		t.Fatalf("push: %v", err)
	}
	last := notifier.LastSnapshot()
	if last == nil {
		t.Fatal("expected snapshot recorded")
	}
	if last.Type != "display" || last.Snapshot.FormattedTime != "00:00:50" {
		t.Fatalf("unexpected last event: %+v", last)
	}
	if last.Timestamp.IsZero() {
		t.Fatal("expected broadcast timestamp set")
	}
}

func TestDisplayStreamWebsocket(t *testing.T) {
	_, router, clk := newTestServer(t)

	ts := httptest.NewServer(router)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stopwatch/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	// Construction pushed an initial snapshot which replays on connect.
	var replay DisplayEvent
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&replay); err != nil {
		t.Fatalf("read replayed snapshot: %v", err)
	}
	if replay.Type != "display" || replay.Snapshot.Running {
		t.Fatalf("unexpected replayed event: %+v", replay)
	}

	resp, err := http.Post(ts.URL+"/api/stopwatch/start", "application/json", nil)
	if err != nil {
		t.Fatalf("start request: %v", err)
	}
	resp.Body.Close()
	clk.Advance(250 * time.Millisecond)

	var started DisplayEvent
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&started); err != nil {
		t.Fatalf("read start snapshot: %v", err)
	}
	if !started.Snapshot.Running || !started.Snapshot.Controls.Pause {
		t.Fatalf("unexpected start event: %+v", started)
	}
}
