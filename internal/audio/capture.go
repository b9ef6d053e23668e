package audio

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"
)

// stallTimeout is how long the stream may go without a callback before it counts as failed.
const stallTimeout = 2 * time.Second

// Capture wraps a PortAudio input stream and exposes thread-safe access to the latest samples.
type Capture struct {
	stream     *portaudio.Stream
	sampleRate float64
	channels   int
	device     *portaudio.DeviceInfo
	now        func() time.Time

	mu       sync.RWMutex
	buffer   []float32
	index    int
	lastFill time.Time
	released bool
}

// Config controls how a Capture instance is created.
type Config struct {
	DeviceName string
	BufferSize int
	Channels   int
}

const defaultBufferSize = 4096

// NewCapture opens and starts a PortAudio stream using the provided configuration.
func NewCapture(cfg Config) (*Capture, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}

	device, err := findDevice(cfg.DeviceName)
	if err != nil {
		return nil, err
	}
	channels := cfg.Channels
	if device.MaxInputChannels < channels {
		channels = device.MaxInputChannels
	}

	inParams := portaudio.StreamDeviceParameters{
		Device:   device,
		Channels: channels,
		Latency:  device.DefaultLowInputLatency,
	}

	sampleRate := device.DefaultSampleRate

	capture := &Capture{
		sampleRate: sampleRate,
		buffer:     make([]float32, cfg.BufferSize),
		channels:   channels,
		device:     device,
		now:        time.Now,
	}
	capture.lastFill = capture.now()

	framesPerBuffer := len(capture.buffer) / channels
	if framesPerBuffer < 64 {
		framesPerBuffer = portaudio.FramesPerBufferUnspecified
	}

	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input:           inParams,
		Output:          portaudio.StreamDeviceParameters{},
		SampleRate:      sampleRate,
		FramesPerBuffer: framesPerBuffer,
	}, capture.process)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}

	capture.stream = stream

	if err := capture.stream.Start(); err != nil {
		_ = capture.stream.Close()
		return nil, fmt.Errorf("start stream: %w", err)
	}

	return capture, nil
}

// Release stops and closes the underlying PortAudio stream. Later calls are no-ops.
func (c *Capture) Release() error {
	c.mu.Lock()
	if c.released || c.stream == nil {
		c.released = true
		c.mu.Unlock()
		return nil
	}
	c.released = true
	c.mu.Unlock()

	if err := c.stream.Stop(); err != nil && !errorsIsInvalidStreamState(err) {
		_ = c.stream.Close()
		return err
	}
	return c.stream.Close()
}

// SampleRate returns the stream sample rate.
func (c *Capture) SampleRate() float64 {
	return c.sampleRate
}

// Device returns the PortAudio device associated with the capture stream.
func (c *Capture) Device() *portaudio.DeviceInfo {
	return c.device
}

// Err reports ErrDevice once callbacks have stopped arriving.
func (c *Capture) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.released {
		return fmt.Errorf("%w: stream released", ErrDevice)
	}
	if idle := c.now().Sub(c.lastFill); idle > stallTimeout {
		return fmt.Errorf("%w: no input for %s", ErrDevice, idle.Truncate(time.Millisecond))
	}
	return nil
}

// Samples returns the most recent samples copied out of the internal ring buffer.
func (c *Capture) Samples() []float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cp := make([]float32, len(c.buffer))
	copy(cp, c.buffer[c.index:])
	copy(cp[len(c.buffer)-c.index:], c.buffer[:c.index])
	return cp
}

func (c *Capture) process(in []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastFill = c.now()
	if c.channels > 1 {
		mono := make([]float32, len(in)/c.channels)
		for i := range mono {
			sum := float32(0)
			base := i * c.channels
			for ch := 0; ch < c.channels; ch++ {
				sum += in[base+ch]
			}
			mono[i] = sum / float32(c.channels)
		}
		c.mixIntoBuffer(mono)
		return
	}

	c.mixIntoBuffer(in)
}

func (c *Capture) mixIntoBuffer(in []float32) {
	if len(in) == 0 {
		return
	}

	if len(in) >= len(c.buffer) {
		copy(c.buffer, in[len(in)-len(c.buffer):])
		c.index = 0
		return
	}

	if c.index+len(in) <= len(c.buffer) {
		copy(c.buffer[c.index:], in)
		c.index += len(in)
		if c.index == len(c.buffer) {
			c.index = 0
		}
		return
	}

	remaining := len(c.buffer) - c.index
	copy(c.buffer[c.index:], in[:remaining])
	copy(c.buffer, in[remaining:])
	c.index = len(in) - remaining
}

// PortAudioSource acquires microphone/loopback input through PortAudio.
type PortAudioSource struct {
	DeviceName string
	Channels   int
	Log        *zap.Logger
}

// RequestStream implements Source. Any failure is reported as ErrPermission.
func (s *PortAudioSource) RequestStream(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c != RawConstraints {
		return nil, fmt.Errorf("%w: input processing %+v is not supported", ErrPermission, c)
	}
	if err := Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermission, err)
	}
	capture, err := NewCapture(Config{
		DeviceName: s.DeviceName,
		BufferSize: FFTSize,
		Channels:   s.Channels,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermission, err)
	}
	if s.Log != nil {
		s.Log.Info("audio capture started",
			zap.String("device", capture.Device().Name),
			zap.Float64("sample_rate", capture.SampleRate()),
			zap.Int("channels", capture.channels))
	}
	return capture, nil
}

// OpenAnalysisSession implements Source.
func (s *PortAudioSource) OpenAnalysisSession(stream Stream, fftSize int, smoothing float64) (Session, error) {
	return NewAnalyser(stream, fftSize, smoothing)
}

func findDevice(name string) (*portaudio.DeviceInfo, error) {
	if name != "" {
		return findDeviceByName(name)
	}

	if dev, err := portaudio.DefaultInputDevice(); err == nil && dev != nil && dev.MaxInputChannels > 0 {
		return dev, nil
	}

	if host, err := portaudio.DefaultHostApi(); err == nil {
		if host != nil && host.DefaultInputDevice != nil && host.DefaultInputDevice.MaxInputChannels > 0 {
			return host.DefaultInputDevice, nil
		}
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}

	candidate := pickBestDevice(devices)
	if candidate != nil {
		return candidate, nil
	}

	return nil, fmt.Errorf("no suitable audio input device found")
}

func findDeviceByName(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}

	name = strings.ToLower(name)
	for _, device := range devices {
		if device.MaxInputChannels == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(device.Name), name) {
			return device, nil
		}
	}

	return nil, fmt.Errorf("audio device %q not found", name)
}

// deviceScore ranks input devices: defaults first, then loopback-style names, then channel count.
func deviceScore(d *portaudio.DeviceInfo, defaultInput, defaultHost int) int {
	score := d.MaxInputChannels
	if d.Index == defaultInput {
		score += 50
	}
	if d.Index == defaultHost {
		score += 40
	}
	lower := strings.ToLower(d.Name)
	for _, kw := range []string{"monitor", "loopback", "mix", "stereo mix", "what u hear"} {
		if strings.Contains(lower, kw) {
			score += 20
			break
		}
	}
	if strings.Contains(lower, "default") {
		score += 10
	}
	return score
}

func pickBestDevice(devices []*portaudio.DeviceInfo) *portaudio.DeviceInfo {
	defaultInput := -1
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultInput = def.Index
	}
	defaultHost := -1
	if host, err := portaudio.DefaultHostApi(); err == nil && host != nil && host.DefaultInputDevice != nil {
		defaultHost = host.DefaultInputDevice.Index
	}

	type scored struct {
		dev   *portaudio.DeviceInfo
		score int
	}
	var results []scored
	for _, d := range devices {
		if d == nil || d.MaxInputChannels <= 0 {
			continue
		}
		results = append(results, scored{dev: d, score: deviceScore(d, defaultInput, defaultHost)})
	}
	if len(results) == 0 {
		return nil
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score == results[j].score {
			return strings.ToLower(results[i].dev.Name) < strings.ToLower(results[j].dev.Name)
		}
		return results[i].score > results[j].score
	})
	return results[0].dev
}

// errorsIsInvalidStreamState checks if the provided error stems from stopping an already stopped stream.
func errorsIsInvalidStreamState(err error) bool {
	if err == nil {
		return false
	}
	const invalidStateMsg = "PaErrorCode -9986"
	return strings.Contains(err.Error(), invalidStateMsg)
}

// AutoDetectDevice returns the best available input device PortAudio can find.
func AutoDetectDevice() (*portaudio.DeviceInfo, error) {
	return findDevice("")
}
