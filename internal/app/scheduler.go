package app

import (
	"time"
)

// Scheduler paces the frame loop. Run calls frame repeatedly until stop is closed
// or frame returns an error, which Run then returns. Frames never overlap and no
// frame starts once stop is closed.
type Scheduler interface {
	Run(stop <-chan struct{}, frame func() error) error
}

// TickerScheduler runs frames at a target rate. A frame that overruns its slot is
// followed immediately by the next one; missed slots are not made up.
type TickerScheduler struct {
	FPS float64
}

const defaultFPS = 60

// Interval returns the target time between frame starts.
func (s TickerScheduler) Interval() time.Duration {
	fps := s.FPS
	if fps <= 0 {
		fps = defaultFPS
	}
	return time.Duration(float64(time.Second) / fps)
}

// Run implements Scheduler.
func (s TickerScheduler) Run(stop <-chan struct{}, frame func() error) error {
	interval := s.Interval()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return nil
		case <-timer.C:
		}
		select {
		case <-stop:
			return nil
		default:
		}

		started := time.Now()
		if err := frame(); err != nil {
			return err
		}
		wait := interval - time.Since(started)
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)
	}
}
