package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/guidoenr/vaporwave/internal/analyzer"
	"github.com/guidoenr/vaporwave/internal/audio"
	"github.com/guidoenr/vaporwave/internal/params"
	"go.uber.org/zap"
)

// Sink receives one frame's inputs and draws them.
type Sink interface {
	Draw(f analyzer.FeatureVector, p params.Parameters, t float64, width, height int) error
}

// DriverConfig wires a Driver to its collaborators. Source, Params, Viewport and
// Sink are required.
type DriverConfig struct {
	Source    audio.Source
	Params    *params.Store
	Viewport  Viewport
	Sink      Sink
	Scheduler Scheduler
	Log       *zap.Logger
	// Now is the monotonic clock frames are timed with.
	Now func() time.Time
}

// Driver owns the capture lifecycle and the frame loop.
type Driver struct {
	source    audio.Source
	params    *params.Store
	viewport  Viewport
	sink      Sink
	scheduler Scheduler
	log       *zap.Logger
	now       func() time.Time
	epoch     time.Time
	profile   *profiler

	// transition serialises Start and Stop.
	transition sync.Mutex

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error

	// drawMu keeps idle draws and capture frames from reaching the sink together.
	drawMu sync.Mutex

	featMu    sync.RWMutex
	features  analyzer.FeatureVector
	fps       float64
	lastFrame time.Time
}

// NewDriver validates cfg and returns an idle driver.
func NewDriver(cfg DriverConfig) (*Driver, error) {
	switch {
	case cfg.Source == nil:
		return nil, errors.New("driver: audio source is required")
	case cfg.Params == nil:
		return nil, errors.New("driver: parameter store is required")
	case cfg.Viewport == nil:
		return nil, errors.New("driver: viewport is required")
	case cfg.Sink == nil:
		return nil, errors.New("driver: sink is required")
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = TickerScheduler{FPS: defaultFPS}
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Driver{
		source:    cfg.Source,
		params:    cfg.Params,
		viewport:  cfg.Viewport,
		sink:      cfg.Sink,
		scheduler: cfg.Scheduler,
		log:       cfg.Log,
		now:       cfg.Now,
		epoch:     cfg.Now(),
	}, nil
}

// Start acquires a stream and an analysis session and begins producing frames.
// It is a no-op while capturing. On failure the driver stays idle, anything
// already acquired is released and the error (wrapping audio.ErrPermission) is
// both recorded and returned. ctx bounds the lifetime of the capture session.
func (d *Driver) Start(ctx context.Context) error {
	d.transition.Lock()
	defer d.transition.Unlock()

	if d.State() == Capturing {
		return nil
	}

	stream, err := d.source.RequestStream(ctx, audio.RawConstraints)
	if err != nil {
		return d.fail(permissionError(err))
	}
	session, err := d.source.OpenAnalysisSession(stream, audio.FFTSize, audio.SmoothingTimeConstant)
	if err != nil {
		if relErr := stream.Release(); relErr != nil {
			d.log.Warn("release stream", zap.Error(relErr))
		}
		return d.fail(permissionError(err))
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	d.mu.Lock()
	d.state = Capturing
	d.cancel = cancel
	d.done = done
	d.lastErr = nil
	d.mu.Unlock()

	d.featMu.Lock()
	d.fps = 0
	d.lastFrame = time.Time{}
	d.featMu.Unlock()

	d.log.Info("capture started", zap.Int("bins", session.BinCount()), zap.Float64("sample_rate", stream.SampleRate()))
	go d.loop(runCtx, cancel, stream, session, done)
	return nil
}

// Stop cancels the frame loop and waits until the session and stream are
// released. It is a no-op while idle.
func (d *Driver) Stop() {
	d.transition.Lock()
	defer d.transition.Unlock()

	if done := d.requestStop(); done != nil {
		<-done
	}
}

// requestStop cancels the running session and returns the channel closed once it
// has been torn down, or nil while idle. The scheduler sees the cancellation
// before requestStop returns.
func (d *Driver) requestStop() <-chan struct{} {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel = nil
	d.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	return done
}

// Wait blocks until the current capture session, if any, has ended.
func (d *Driver) Wait() {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()
	if done != nil {
		<-done
	}
}

// State returns the lifecycle state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Err returns the error that ended or prevented the last capture, if any.
func (d *Driver) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// Features returns the current smoothed feature vector.
func (d *Driver) Features() analyzer.FeatureVector {
	d.featMu.RLock()
	defer d.featMu.RUnlock()
	return d.features
}

// FPS returns the measured frame rate of the running capture, 0 when idle.
func (d *Driver) FPS() float64 {
	if d.State() != Capturing {
		return 0
	}
	d.featMu.RLock()
	defer d.featMu.RUnlock()
	return d.fps
}

// DrawIdle renders one frame with an all-zero feature vector. The smoothing state
// is left untouched. Nothing is drawn while capturing.
func (d *Driver) DrawIdle() error {
	d.drawMu.Lock()
	defer d.drawMu.Unlock()
	if d.State() == Capturing {
		return nil
	}
	w, h := d.viewport.Size()
	return d.sink.Draw(analyzer.FeatureVector{}, d.params.Snapshot(), d.elapsed(), w, h)
}

func (d *Driver) loop(ctx context.Context, cancel context.CancelFunc, stream audio.Stream, session audio.Session, done chan struct{}) {
	defer close(done)
	defer cancel()

	var buf []uint8
	err := d.scheduler.Run(ctx.Done(), func() error {
		return d.frame(session, &buf)
	})

	if closeErr := session.Close(); closeErr != nil {
		d.log.Warn("close analysis session", zap.Error(closeErr))
	}
	if relErr := stream.Release(); relErr != nil {
		d.log.Warn("release stream", zap.Error(relErr))
	}

	d.mu.Lock()
	d.state = Idle
	if d.done == done {
		d.cancel = nil
		d.done = nil
	}
	if err != nil {
		d.lastErr = err
	}
	d.mu.Unlock()

	if err != nil {
		d.log.Error("capture ended", zap.Error(err))
		return
	}
	d.log.Info("capture stopped")
}

func (d *Driver) frame(session audio.Session, buf *[]uint8) error {
	p := d.params.Snapshot()
	d.profile.beginFrame()

	sample, err := session.FrequencySample(*buf)
	if err != nil {
		if !errors.Is(err, audio.ErrDevice) {
			err = fmt.Errorf("%w: %v", audio.ErrDevice, err)
		}
		return err
	}
	*buf = sample

	now := d.now()
	d.featMu.Lock()
	f := analyzer.Extract(sample, p, d.features)
	d.features = f
	d.measure(now)
	d.featMu.Unlock()
	d.profile.markSection(sectionExtract)

	w, h := d.viewport.Size()
	d.drawMu.Lock()
	err = d.sink.Draw(f, p, now.Sub(d.epoch).Seconds(), w, h)
	d.drawMu.Unlock()
	d.profile.endFrame()
	return err
}

// measure updates the frame rate estimate; callers hold featMu.
func (d *Driver) measure(now time.Time) {
	if !d.lastFrame.IsZero() {
		if dt := now.Sub(d.lastFrame).Seconds(); dt > 0 {
			inst := 1 / dt
			if d.fps == 0 {
				d.fps = inst
			} else {
				d.fps = d.fps*0.9 + inst*0.1
			}
		}
	}
	d.lastFrame = now
}

func (d *Driver) elapsed() float64 {
	return d.now().Sub(d.epoch).Seconds()
}

func (d *Driver) fail(err error) error {
	d.mu.Lock()
	d.lastErr = err
	d.mu.Unlock()
	d.log.Warn("capture not started", zap.Error(err))
	return err
}

func permissionError(err error) error {
	if errors.Is(err, audio.ErrPermission) {
		return err
	}
	return fmt.Errorf("%w: %v", audio.ErrPermission, err)
}
