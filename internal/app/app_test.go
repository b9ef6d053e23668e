package app

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eiannone/keyboard"
	"github.com/guidoenr/vaporwave/internal/params"
	"go.uber.org/zap"
)

func TestTickerSchedulerStopsBeforeFirstFrame(t *testing.T) {
	stop := make(chan struct{})
	close(stop)
	calls := 0
	err := TickerScheduler{FPS: 1000}.Run(stop, func() error {
		calls++
		return nil
	})
	if err != nil || calls != 0 {
		t.Fatalf("expected no frames, got %d (err %v)", calls, err)
	}
}

func TestTickerSchedulerReturnsFrameError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := TickerScheduler{FPS: 1000}.Run(make(chan struct{}), func() error {
		calls++
		if calls == 3 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) || calls != 3 {
		t.Fatalf("got %v after %d frames", err, calls)
	}
}

func TestTickerSchedulerStopsPromptly(t *testing.T) {
	stop := make(chan struct{})
	var calls atomic.Int32
	done := make(chan error)
	go func() {
		done <- TickerScheduler{FPS: 200}.Run(stop, func() error {
			if calls.Add(1) == 5 {
				close(stop)
			}
			return nil
		})
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler did not stop")
	}
	if calls.Load() != 5 {
		t.Fatalf("frame ran after stop: %d calls", calls.Load())
	}
}

func TestTickerSchedulerInterval(t *testing.T) {
	if got := (TickerScheduler{FPS: 50}).Interval(); got != 20*time.Millisecond {
		t.Fatalf("interval %v", got)
	}
	if got := (TickerScheduler{}).Interval(); got != time.Second/defaultFPS {
		t.Fatalf("default interval %v", got)
	}
}

func TestTerminalViewportFallback(t *testing.T) {
	v := NewTerminalViewport(-1, 1, 100, 30)
	if w, h := v.Size(); w != 100 || h != 29 {
		t.Fatalf("fallback size %dx%d", w, h)
	}
	tiny := NewTerminalViewport(-1, 3, 10, 2)
	if _, h := tiny.Size(); h != 1 {
		t.Fatalf("height should not drop below 1, got %d", h)
	}
	select {
	case <-v.Changes():
		t.Fatalf("no change expected without a terminal")
	default:
	}
}

func TestViewportFunc(t *testing.T) {
	var v Viewport = ViewportFunc(func() (int, int) { return 640, 480 })
	if w, h := v.Size(); w != 640 || h != 480 {
		t.Fatalf("size %dx%d", w, h)
	}
}

func TestMapKey(t *testing.T) {
	cases := []struct {
		char rune
		key  keyboard.Key
		want keyEvent
		ok   bool
	}{
		{0, keyboard.KeySpace, keyEvent{action: keyToggle}, true},
		{'1', 0, keyEvent{action: keySelect, index: 0}, true},
		{'8', 0, keyEvent{action: keySelect, index: 7}, true},
		{'9', 0, keyEvent{}, false},
		{'+', 0, keyEvent{action: keyAdjust, delta: 5}, true},
		{0, keyboard.KeyArrowUp, keyEvent{action: keyAdjust, delta: 5}, true},
		{'-', 0, keyEvent{action: keyAdjust, delta: -5}, true},
		{0, keyboard.KeyArrowLeft, keyEvent{action: keyAdjust, delta: -5}, true},
		{'d', 0, keyEvent{action: keyReset}, true},
		{'q', 0, keyEvent{action: keyQuit}, true},
		{0, keyboard.KeyEsc, keyEvent{action: keyQuit}, true},
		{'x', 0, keyEvent{}, false},
	}
	for _, tc := range cases {
		got, ok := mapKey(tc.char, tc.key)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("mapKey(%q, %v) = %+v %v, want %+v %v", tc.char, tc.key, got, ok, tc.want, tc.ok)
		}
	}
}

func TestStatusBar(t *testing.T) {
	if got := statusBar("abc", 6); got != "abc   " {
		t.Fatalf("padded %q", got)
	}
	if got := statusBar("abcdef", 4); got != "abcd" {
		t.Fatalf("truncated %q", got)
	}
	if got := statusBar("abc", 0); got != "abc" {
		t.Fatalf("unbounded %q", got)
	}
}

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	a, err := New(Config{
		DisableAudio:  true,
		ShowStatusBar: true,
		UseANSI:       true,
		PixelsPerCell: 2,
		Width:         40,
		Height:        6,
		Output:        &out,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a, &out
}

func TestAppKeysAdjustStore(t *testing.T) {
	a, out := newTestApp(t)
	a.handleKey(keyEvent{action: keySelect, index: 6})
	a.handleKey(keyEvent{action: keyAdjust, delta: 5})
	a.handleKey(keyEvent{action: keyAdjust, delta: 5})
	if got, _ := a.store.Get(params.BassBoost); got != 60 {
		t.Fatalf("bassBoost %d, want 60", got)
	}
	if !strings.Contains(out.String(), "7:bassBoost=60") {
		t.Fatalf("status bar not redrawn with the new value")
	}
	a.handleKey(keyEvent{action: keyReset})
	if a.store.Snapshot() != params.Defaults() {
		t.Fatalf("reset did not restore defaults")
	}
	if !a.handleKey(keyEvent{action: keyQuit}) {
		t.Fatalf("quit key should end the run loop")
	}
}

func TestAppToggleCapture(t *testing.T) {
	a, out := newTestApp(t)
	a.handleKey(keyEvent{action: keyToggle})
	if a.driver.State() != Capturing {
		t.Fatalf("toggle did not start capture: %v", a.driver.Err())
	}
	waitFor(t, func() bool { return a.driver.FPS() > 0 })
	a.handleKey(keyEvent{action: keyToggle})
	if a.driver.State() != Idle {
		t.Fatalf("toggle did not stop capture")
	}
	lines := strings.Split(out.String(), "\x1b[H")
	frame := lines[len(lines)-1]
	if !strings.Contains(frame, "[idle]") || strings.Count(frame, "\n") != 5 {
		t.Fatalf("last frame should be an idle frame with a status row: %q", frame)
	}
}

func TestPanelController(t *testing.T) {
	a, _ := newTestApp(t)
	ctrl := panelController{app: a}
	if st := ctrl.Status(); st.State != "idle" || st.FPS != 0 {
		t.Fatalf("idle status %+v", st)
	}
	if err := ctrl.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if st := ctrl.Status(); st.State != "capturing" {
		t.Fatalf("status after start %+v", st)
	}
	if err := ctrl.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if a.driver.State() != Idle {
		t.Fatalf("panel stop left driver %v", a.driver.State())
	}
}

func TestProfilerWritesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.csv")
	p := newProfiler(path, zap.NewNop())
	if p == nil {
		t.Fatalf("profiler not created")
	}
	p.beginFrame()
	p.markSection(sectionExtract)
	p.markSection(sectionRender)
	p.markSection(sectionPresent)
	p.endFrame()
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 5 || lines[0] != "timestamp,frame,section,delta_ms" {
		t.Fatalf("unexpected csv:\n%s", data)
	}
	for i, section := range []string{"extract", "render", "present", "frame_total"} {
		if !strings.Contains(lines[i+1], ",1,"+section+",") {
			t.Fatalf("line %d = %q, want section %s", i+1, lines[i+1], section)
		}
	}
}

func TestNilProfilerIsNoop(t *testing.T) {
	var p *profiler
	p.beginFrame()
	p.markSection(sectionExtract)
	p.endFrame()
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if newProfiler("", zap.NewNop()) != nil {
		t.Fatalf("empty path should disable profiling")
	}
}
