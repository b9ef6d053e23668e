package audio

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

type fakeStream struct {
	samples []float32
	err     error
}

func (f *fakeStream) Samples() []float32  { return f.samples }
func (f *fakeStream) SampleRate() float64 { return 44_100 }
func (f *fakeStream) Err() error          { return f.err }
func (f *fakeStream) Release() error      { return nil }

func sine(n, bin int, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*float64(bin)*float64(i)/float64(n)))
	}
	return out
}

func TestAnalyserRejectsBadConfig(t *testing.T) {
	s := &fakeStream{}
	if _, err := NewAnalyser(s, 1000, 0.8); err == nil {
		t.Fatalf("expected error for non power of two")
	}
	if _, err := NewAnalyser(s, 2048, 1.5); err == nil {
		t.Fatalf("expected error for smoothing > 1")
	}
	if _, err := NewAnalyser(nil, 2048, 0.8); err == nil {
		t.Fatalf("expected error for nil stream")
	}
}

func TestAnalyserBinCount(t *testing.T) {
	a, err := NewAnalyser(&fakeStream{}, FFTSize, SmoothingTimeConstant)
	if err != nil {
		t.Fatalf("new analyser: %v", err)
	}
	if a.BinCount() != 1024 {
		t.Fatalf("BinCount=%d want=1024", a.BinCount())
	}
	out, err := a.FrequencySample(nil)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if len(out) != 1024 {
		t.Fatalf("len=%d want=1024", len(out))
	}
	for i, v := range out {
		if v != 0 {
			t.Fatalf("silence produced %d at bin %d", v, i)
		}
	}
}

func TestAnalyserFindsTone(t *testing.T) {
	const bin = 64
	a, _ := NewAnalyser(&fakeStream{samples: sine(FFTSize, bin, 1)}, FFTSize, SmoothingTimeConstant)
	out, err := a.FrequencySample(make([]uint8, 0, 1024))
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if out[bin] != 255 {
		t.Fatalf("tone bin=%d want=255", out[bin])
	}
	if out[bin+200] > 50 {
		t.Fatalf("far bin leaked: %d", out[bin+200])
	}
}

func TestAnalyserSmoothsAcrossCalls(t *testing.T) {
	const bin = 100
	stream := &fakeStream{samples: sine(FFTSize, bin, 0.024)}
	a, _ := NewAnalyser(stream, FFTSize, SmoothingTimeConstant)
	first, _ := a.FrequencySample(nil)
	loud := first[bin]
	if loud == 0 || loud == 255 {
		t.Fatalf("expected mid-range magnitude, got %d", loud)
	}

	stream.samples = make([]float32, FFTSize)
	second, _ := a.FrequencySample(nil)
	if second[bin] >= loud || second[bin] == 0 {
		t.Fatalf("expected decayed magnitude below %d, got %d", loud, second[bin])
	}
}

func TestAnalyserShortInputIsPadded(t *testing.T) {
	a, _ := NewAnalyser(&fakeStream{samples: sine(100, 3, 1)}, FFTSize, 0)
	if _, err := a.FrequencySample(nil); err != nil {
		t.Fatalf("short input: %v", err)
	}
}

func TestAnalyserSurfacesDeviceError(t *testing.T) {
	stream := &fakeStream{err: ErrDevice}
	a, _ := NewAnalyser(stream, FFTSize, SmoothingTimeConstant)
	if _, err := a.FrequencySample(nil); !errors.Is(err, ErrDevice) {
		t.Fatalf("expected ErrDevice, got %v", err)
	}
}

func TestAnalyserClosed(t *testing.T) {
	a, _ := NewAnalyser(&fakeStream{}, FFTSize, SmoothingTimeConstant)
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := a.FrequencySample(nil); err == nil {
		t.Fatalf("expected error after close")
	}
	if err := a.Close(); err == nil {
		t.Fatalf("expected error on double close")
	}
}

func TestToByteRange(t *testing.T) {
	cases := map[float64]uint8{
		0:    0,
		1e-6: 0,   // -120 dB
		1e-5: 0,   // -100 dB
		1e-3: 145, // -60 dB
		0.05: 255, // above -30 dB
		1:    255,
	}
	for in, want := range cases {
		if got := toByte(in); got != want {
			t.Fatalf("toByte(%g)=%d want=%d", in, got, want)
		}
	}
}

func newTestCapture(size, channels int, now func() time.Time) *Capture {
	return &Capture{
		buffer:   make([]float32, size),
		channels: channels,
		now:      now,
		lastFill: now(),
	}
}

func TestCaptureRingBufferOrder(t *testing.T) {
	c := newTestCapture(4, 1, time.Now)
	c.process([]float32{1, 2, 3})
	c.process([]float32{4, 5})
	got := c.Samples()
	want := []float32{2, 3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("samples=%v want=%v", got, want)
		}
	}
}

func TestCaptureDownmixesStereo(t *testing.T) {
	c := newTestCapture(2, 2, time.Now)
	c.process([]float32{1, 3, -1, 1})
	got := c.Samples()
	if got[0] != 2 || got[1] != 0 {
		t.Fatalf("downmix=%v want=[2 0]", got)
	}
}

func TestCaptureStallIsDeviceError(t *testing.T) {
	clock := time.Unix(100, 0)
	c := newTestCapture(8, 1, func() time.Time { return clock })
	if err := c.Err(); err != nil {
		t.Fatalf("fresh capture: %v", err)
	}
	clock = clock.Add(stallTimeout + time.Second)
	if err := c.Err(); !errors.Is(err, ErrDevice) {
		t.Fatalf("expected ErrDevice after stall, got %v", err)
	}
	c.process([]float32{0.5})
	if err := c.Err(); err != nil {
		t.Fatalf("callback should clear stall, got %v", err)
	}
}

func TestCaptureReleaseWithoutStream(t *testing.T) {
	c := newTestCapture(8, 1, time.Now)
	if err := c.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := c.Release(); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if !errors.Is(c.Err(), ErrDevice) {
		t.Fatalf("released capture should report ErrDevice")
	}
}

func TestSyntheticSourceProducesBass(t *testing.T) {
	clock := time.Unix(0, 0)
	src := &SyntheticSource{Seed: 7, Now: func() time.Time { return clock }}
	stream, err := src.RequestStream(context.Background(), RawConstraints)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	clock = clock.Add(2 * time.Second)
	session, err := src.OpenAnalysisSession(stream, FFTSize, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sample, err := session.FrequencySample(nil)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	// 60 Hz lands around bin 2-3 at 44.1 kHz / 2048.
	if sample[3] == 0 && sample[2] == 0 {
		t.Fatalf("expected bass energy, got %v", sample[:8])
	}
	if err := stream.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := session.FrequencySample(nil); !errors.Is(err, ErrDevice) {
		t.Fatalf("released stream should fail sampling, got %v", err)
	}
}

func TestSyntheticSourceHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (&SyntheticSource{}).RequestStream(ctx, RawConstraints); err == nil {
		t.Fatalf("expected context error")
	}
}
