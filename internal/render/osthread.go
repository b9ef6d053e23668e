//go:build sdl

package render

import (
	"errors"
	"runtime"
	"sync"
)

var errThreadClosed = errors.New("render thread closed")

// osThread runs submitted functions one at a time on a single locked OS thread.
// SDL windows and renderers must only be touched from the thread that made them.
type osThread struct {
	calls chan func()
	done  chan struct{}
	once  sync.Once
}

func newOSThread() *osThread {
	t := &osThread{
		calls: make(chan func()),
		done:  make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *osThread) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	for {
		select {
		case fn := <-t.calls:
			fn()
		case <-t.done:
			return
		}
	}
}

// do runs fn on the locked thread and waits for its result.
func (t *osThread) do(fn func() error) error {
	result := make(chan error, 1)
	select {
	case t.calls <- func() { result <- fn() }:
	case <-t.done:
		return errThreadClosed
	}
	return <-result
}

func (t *osThread) close() {
	t.once.Do(func() { close(t.done) })
}
