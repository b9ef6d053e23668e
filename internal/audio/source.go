package audio

import (
	"context"
	"errors"
)

var (
	// ErrPermission reports that an input stream could not be acquired
	// (no device, access denied, host API failure).
	ErrPermission = errors.New("audio capture unavailable")
	// ErrDevice reports that a running capture session failed.
	ErrDevice = errors.New("audio device failed")
)

const (
	// FFTSize is the transform size of every analysis session.
	FFTSize = 2048
	// SmoothingTimeConstant is the session's built-in magnitude smoothing, applied
	// before (and independently of) the feature extractor's own smoothing.
	SmoothingTimeConstant = 0.8
)

// Constraints describes the processing requested from the capture device.
// Everything that would alter the raw signal stays disabled.
type Constraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// RawConstraints is the only configuration the visualizer ever requests.
var RawConstraints = Constraints{}

// Stream is an acquired audio input.
type Stream interface {
	// Samples returns the most recent mono samples, oldest first.
	Samples() []float32
	SampleRate() float64
	// Err reports a failure of the underlying device, nil while healthy.
	Err() error
	// Release stops the input and frees the device.
	Release() error
}

// Session turns a stream into per-frame frequency samples.
type Session interface {
	// FrequencySample writes one byte magnitude per bin into dst (grown as needed)
	// and returns it.
	FrequencySample(dst []uint8) ([]uint8, error)
	BinCount() int
	Close() error
}

// Source acquires streams and opens analysis sessions over them.
type Source interface {
	RequestStream(ctx context.Context, c Constraints) (Stream, error)
	OpenAnalysisSession(stream Stream, fftSize int, smoothing float64) (Session, error)
}
