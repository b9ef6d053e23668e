//go:build sdl && linux

package render

import (
	"errors"
	"sync"
	"testing"

	"golang.org/x/sys/unix"
)

func TestOSThreadRunsEverythingOnOneThread(t *testing.T) {
	th := newOSThread()
	defer th.close()

	var mu sync.Mutex
	tids := map[int]bool{}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = th.do(func() error {
				mu.Lock()
				tids[unix.Gettid()] = true
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if len(tids) != 1 {
		t.Fatalf("calls ran on %d threads", len(tids))
	}
}

func TestOSThreadReturnsErrorsAndCloses(t *testing.T) {
	th := newOSThread()
	boom := errors.New("boom")
	if err := th.do(func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	th.close()
	th.close()
	ran := false
	if err := th.do(func() error { ran = true; return nil }); !errors.Is(err, errThreadClosed) || ran {
		t.Fatalf("closed thread ran a call: %v", err)
	}
}
