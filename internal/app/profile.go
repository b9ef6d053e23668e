package app

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Profiler sections, in the order a frame passes through them.
const (
	sectionExtract = "extract"
	sectionRender  = "render"
	sectionPresent = "present"
)

// profiler appends per-frame section timings to a CSV file. A nil profiler is a no-op.
type profiler struct {
	mu    sync.Mutex
	file  *os.File
	w     *bufio.Writer
	now   func() time.Time
	start time.Time
	last  time.Time
	frame int
}

func newProfiler(path string, logger *zap.Logger) *profiler {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.Warn("profiler disabled", zap.String("path", path), zap.Error(err))
		return nil
	}
	p := &profiler{
		file: f,
		w:    bufio.NewWriter(f),
		now:  time.Now,
	}
	fmt.Fprintln(p.w, "timestamp,frame,section,delta_ms")
	logger.Info("profiling frames", zap.String("path", path))
	return p
}

func (p *profiler) beginFrame() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	p.frame++
	p.start = now
	p.last = now
}

func (p *profiler) markSection(name string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	p.write(now, name, now.Sub(p.last))
	p.last = now
}

func (p *profiler) endFrame() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	p.write(now, "frame_total", now.Sub(p.start))
}

func (p *profiler) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.w.Flush(); err != nil {
		_ = p.file.Close()
		return err
	}
	return p.file.Close()
}

func (p *profiler) write(at time.Time, section string, d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	fmt.Fprintf(p.w, "%s,%d,%s,%.3f\n", at.Format(time.RFC3339Nano), p.frame, section, ms)
}
