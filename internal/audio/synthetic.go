package audio

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

const syntheticSampleRate = 44_100

// SyntheticSource fakes a microphone with slowly pulsing bass, mid and treble tones.
// It backs --no-audio runs and exercises the real analysis path.
type SyntheticSource struct {
	Seed int64
	Now  func() time.Time
}

// RequestStream implements Source.
func (s *SyntheticSource) RequestStream(ctx context.Context, _ Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.Now
	if now == nil {
		now = time.Now
	}
	seed := s.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &syntheticStream{
		rng:   rand.New(rand.NewSource(seed)),
		now:   now,
		start: now(),
		size:  FFTSize,
	}, nil
}

// OpenAnalysisSession implements Source.
func (s *SyntheticSource) OpenAnalysisSession(stream Stream, fftSize int, smoothing float64) (Session, error) {
	return NewAnalyser(stream, fftSize, smoothing)
}

type syntheticStream struct {
	mu       sync.Mutex
	rng      *rand.Rand
	now      func() time.Time
	start    time.Time
	size     int
	released bool
}

func (s *syntheticStream) SampleRate() float64 { return syntheticSampleRate }

func (s *syntheticStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return fmt.Errorf("%w: stream released", ErrDevice)
	}
	return nil
}

func (s *syntheticStream) Release() error {
	s.mu.Lock()
	s.released = true
	s.mu.Unlock()
	return nil
}

// Samples renders the window of audio ending at the current clock reading.
func (s *syntheticStream) Samples() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := s.now().Sub(s.start).Seconds()
	bass := 0.5 + 0.5*math.Sin(elapsed*0.7)
	mid := 0.4 + 0.4*math.Sin(elapsed*1.2+0.5)
	treble := 0.3 + 0.3*math.Sin(elapsed*2.1+1.0)
	if math.Sin(elapsed*1.4) > 0.9 {
		bass = 1.0
	}

	out := make([]float32, s.size)
	dt := 1.0 / syntheticSampleRate
	for i := range out {
		t := elapsed - float64(s.size-i)*dt
		v := bass*math.Sin(2*math.Pi*60*t) +
			0.5*mid*math.Sin(2*math.Pi*800*t) +
			0.3*treble*math.Sin(2*math.Pi*5000*t) +
			0.02*(s.rng.Float64()*2-1)
		out[i] = float32(v * 0.5)
	}
	return out
}
