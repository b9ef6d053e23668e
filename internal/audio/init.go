package audio

import (
	"sync"

	"github.com/gordonklaus/portaudio"
)

var (
	initMu      sync.Mutex
	initialized bool
)

// Initialize brings up PortAudio once. A failed attempt is not cached, so a
// later start request can retry after the user fixes their device.
func Initialize() error {
	initMu.Lock()
	defer initMu.Unlock()
	if initialized {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	initialized = true
	return nil
}

// Terminate balances a successful Initialize. Safe to call when never initialized.
func Terminate() {
	initMu.Lock()
	defer initMu.Unlock()
	if !initialized {
		return
	}
	_ = portaudio.Terminate()
	initialized = false
}
