package audio

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
)

// Decibel range mapped onto the 0-255 byte scale.
const (
	minDecibels = -100.0
	maxDecibels = -30.0
)

var errSessionClosed = errors.New("analysis session closed")

// Analyser produces byte frequency magnitudes from a stream, the way a browser
// analyser node does: Blackman window, FFT, per-bin smoothing, decibel mapping.
type Analyser struct {
	stream    Stream
	fftSize   int
	smoothing float64

	window   []float64
	frame    []float64
	mags     []float64
	smoothed []float64
	closed   bool
}

// NewAnalyser opens an analysis session over stream.
func NewAnalyser(stream Stream, fftSize int, smoothing float64) (*Analyser, error) {
	if stream == nil {
		return nil, fmt.Errorf("analyser: nil stream")
	}
	if fftSize < 32 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("analyser: fft size %d must be a power of two >= 32", fftSize)
	}
	if smoothing < 0 || smoothing > 1 {
		return nil, fmt.Errorf("analyser: smoothing %.2f outside [0,1]", smoothing)
	}
	return &Analyser{
		stream:    stream,
		fftSize:   fftSize,
		smoothing: smoothing,
		window:    window.Blackman(fftSize),
		frame:     make([]float64, fftSize),
		mags:      make([]float64, fftSize/2),
		smoothed:  make([]float64, fftSize/2),
	}, nil
}

// BinCount is half the transform size.
func (a *Analyser) BinCount() int {
	return a.fftSize / 2
}

// FrequencySample implements Session.
func (a *Analyser) FrequencySample(dst []uint8) ([]uint8, error) {
	if a.closed {
		return dst, errSessionClosed
	}
	if err := a.stream.Err(); err != nil {
		return dst, err
	}

	a.loadFrame(a.stream.Samples())
	floats.Mul(a.frame, a.window)

	spectrum := fft.FFTReal(a.frame)
	scale := 1.0 / float64(a.fftSize)
	for k := range a.mags {
		a.mags[k] = cmplx.Abs(spectrum[k]) * scale
	}

	// smoothed = τ·smoothed + (1-τ)·mags
	floats.Scale(a.smoothing, a.smoothed)
	floats.AddScaled(a.smoothed, 1-a.smoothing, a.mags)

	if cap(dst) < len(a.smoothed) {
		dst = make([]uint8, len(a.smoothed))
	}
	dst = dst[:len(a.smoothed)]
	for k, v := range a.smoothed {
		dst[k] = toByte(v)
	}
	return dst, nil
}

// Close implements Session. The stream is owned by the caller and is not released.
func (a *Analyser) Close() error {
	if a.closed {
		return errSessionClosed
	}
	a.closed = true
	return nil
}

// loadFrame copies the newest fftSize samples, zero-padding at the front when short.
func (a *Analyser) loadFrame(samples []float32) {
	n := len(samples)
	if n > a.fftSize {
		samples = samples[n-a.fftSize:]
		n = a.fftSize
	}
	pad := a.fftSize - n
	for i := 0; i < pad; i++ {
		a.frame[i] = 0
	}
	for i, s := range samples {
		a.frame[pad+i] = float64(s)
	}
}

func toByte(magnitude float64) uint8 {
	if magnitude <= 0 {
		return 0
	}
	db := 20 * math.Log10(magnitude)
	scaled := math.Floor(255 * (db - minDecibels) / (maxDecibels - minDecibels))
	if scaled < 0 {
		return 0
	}
	if scaled > 255 {
		return 255
	}
	return uint8(scaled)
}
