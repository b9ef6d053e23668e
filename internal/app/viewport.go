package app

import (
	"context"
	"sync"
	"time"

	"golang.org/x/term"
)

// Viewport reports the current drawing area. It is read once per frame.
type Viewport interface {
	Size() (width, height int)
}

// ViewportFunc adapts a function to Viewport.
type ViewportFunc func() (int, int)

// Size implements Viewport.
func (f ViewportFunc) Size() (int, int) { return f() }

// TerminalViewport measures the terminal in cells, minus rows reserved for the status bar.
type TerminalViewport struct {
	fd       int
	reserved int

	mu      sync.Mutex
	width   int
	height  int
	changes chan struct{}
}

// NewTerminalViewport measures the terminal attached to fd. The fallback size is
// used until the terminal reports a usable one.
func NewTerminalViewport(fd, reservedRows, fallbackWidth, fallbackHeight int) *TerminalViewport {
	if fallbackWidth <= 0 {
		fallbackWidth = 80
	}
	if fallbackHeight <= 0 {
		fallbackHeight = 24
	}
	v := &TerminalViewport{
		fd:       fd,
		reserved: reservedRows,
		width:    fallbackWidth,
		height:   fallbackHeight,
		changes:  make(chan struct{}, 1),
	}
	v.refresh()
	return v
}

// Size implements Viewport.
func (v *TerminalViewport) Size() (int, int) {
	v.refresh()
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.drawable()
}

// Changes delivers a notification after the terminal size changed. Notifications
// coalesce; read Size for the current value.
func (v *TerminalViewport) Changes() <-chan struct{} {
	return v.changes
}

// Watch polls the terminal size until ctx is done.
func (v *TerminalViewport) Watch(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.refresh()
		}
	}
}

func (v *TerminalViewport) refresh() {
	if v.fd < 0 {
		return
	}
	w, h, err := term.GetSize(v.fd)
	if err != nil || w <= 0 || h <= 0 {
		return
	}
	v.mu.Lock()
	changed := w != v.width || h != v.height
	v.width, v.height = w, h
	v.mu.Unlock()
	if changed {
		select {
		case v.changes <- struct{}{}:
		default:
		}
	}
}

func (v *TerminalViewport) drawable() (int, int) {
	h := v.height - v.reserved
	if h < 1 {
		h = 1
	}
	return v.width, h
}
