package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/guidoenr/vaporwave/internal/analyzer"
	"github.com/guidoenr/vaporwave/internal/params"
)

type fakeController struct {
	mu       sync.Mutex
	state    string
	startErr error
	starts   int
	stops    int
}

func (f *fakeController) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := Status{State: f.state, Features: analyzer.FeatureVector{Bass: 0.25}}
	if f.startErr != nil {
		st.Error = f.startErr.Error()
	}
	return st
}

func (f *fakeController) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.state = "capturing"
	return nil
}

func (f *fakeController) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.state = "idle"
	return nil
}

func newTestServer(t *testing.T) (*Server, *fakeController, *params.Store, *httptest.Server) {
	t.Helper()
	ctrl := &fakeController{state: "idle"}
	store := params.NewStore(params.Defaults())
	s := NewServer(store, ctrl, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ctrl, store, ts
}

func TestStatusEndpoint(t *testing.T) {
	_, _, _, ts := newTestServer(t)
	res, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer res.Body.Close()
	var st Status
	if err := json.NewDecoder(res.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.State != "idle" || st.Features.Bass != 0.25 {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.Params != params.Defaults() {
		t.Fatalf("status params %+v", st.Params)
	}
}

func TestUpdateParamsClamps(t *testing.T) {
	_, _, store, ts := newTestServer(t)
	body := strings.NewReader(`{"bassBoost": 150, "Scanlines": -4}`)
	res, err := http.Post(ts.URL+"/api/params", "application/json", body)
	if err != nil {
		t.Fatalf("post params: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d", res.StatusCode)
	}
	var got params.Parameters
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.BassBoost != 100 || got.Scanlines != 0 {
		t.Fatalf("values not clamped: %+v", got)
	}
	if store.Snapshot() != got {
		t.Fatalf("store not updated")
	}
}

func TestUpdateParamsRejectsUnknown(t *testing.T) {
	_, _, store, ts := newTestServer(t)
	body := strings.NewReader(`{"bassBoost": 10, "reverb": 5}`)
	res, err := http.Post(ts.URL+"/api/params", "application/json", body)
	if err != nil {
		t.Fatalf("post params: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.StatusCode)
	}
	if store.Snapshot() != params.Defaults() {
		t.Fatalf("partial update applied: %+v", store.Snapshot())
	}

	res, err = http.Post(ts.URL+"/api/params", "application/json", strings.NewReader(`{"bassBoost": "loud"}`))
	if err != nil {
		t.Fatalf("post params: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-integer, got %d", res.StatusCode)
	}
}

func TestStartStop(t *testing.T) {
	_, ctrl, _, ts := newTestServer(t)
	res, err := http.Post(ts.URL+"/api/start", "application/json", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK || ctrl.starts != 1 {
		t.Fatalf("start status %d, starts %d", res.StatusCode, ctrl.starts)
	}

	res, err = http.Post(ts.URL+"/api/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	var st Status
	_ = json.NewDecoder(res.Body).Decode(&st)
	res.Body.Close()
	if st.State != "idle" || ctrl.stops != 1 {
		t.Fatalf("stop returned %+v", st)
	}
}

func TestStartFailureReported(t *testing.T) {
	_, ctrl, _, ts := newTestServer(t)
	ctrl.startErr = errors.New("audio capture unavailable: denied")
	res, err := http.Post(ts.URL+"/api/start", "application/json", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.StatusCode)
	}
	var body errorResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(body.Error, "denied") || body.Status.State != "idle" {
		t.Fatalf("unexpected error body %+v", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, _, _, ts := newTestServer(t)
	res, err := http.Get(ts.URL + "/api/start")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.StatusCode)
	}
}

func TestIndexServed(t *testing.T) {
	_, _, _, ts := newTestServer(t)
	res, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get index: %v", err)
	}
	defer res.Body.Close()
	if !strings.HasPrefix(res.Header.Get("Content-Type"), "text/html") {
		t.Fatalf("content type %q", res.Header.Get("Content-Type"))
	}
	res2, err := http.Get(ts.URL + "/missing")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	res2.Body.Close()
	if res2.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res2.StatusCode)
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	s, ctrl, _, ts := newTestServer(t)
	s.interval = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartBroadcast(ctx)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() Status {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var st Status
		if err := json.Unmarshal(data, &st); err != nil {
			t.Fatalf("decode %q: %v", data, err)
		}
		return st
	}

	if st := read(); st.State != "idle" {
		t.Fatalf("initial status %+v", st)
	}
	_ = ctrl.Start()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if read().State == "capturing" {
			return
		}
	}
	t.Fatalf("broadcast never reported capturing")
}

func TestWebSocketRefusedAfterShutdown(t *testing.T) {
	s, _, _, ts := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	s.StartBroadcast(ctx)
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for !s.shuttingDown() {
		if time.Now().After(deadline) {
			t.Fatalf("broadcast loop did not stop")
		}
		time.Sleep(time.Millisecond)
	}

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, res, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		conn.Close()
		t.Fatalf("upgrade accepted during shutdown")
	}
	if res == nil || res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %v", res)
	}
	s.mu.Lock()
	n := len(s.clients)
	s.mu.Unlock()
	if n != 0 {
		t.Fatalf("%d clients registered after shutdown", n)
	}
}
