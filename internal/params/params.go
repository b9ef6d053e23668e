package params

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Name identifies one of the user-facing knobs.
type Name string

const (
	WavePropagation     Name = "wavePropagation"
	ColorIntensity      Name = "colorIntensity"
	MountainSensitivity Name = "mountainSensitivity"
	GridDistortion      Name = "gridDistortion"
	GlowEffect          Name = "glowEffect"
	SpeedSmoothing      Name = "speedSmoothing"
	BassBoost           Name = "bassBoost"
	Scanlines           Name = "scanlines"
)

const (
	// Min and Max bound every parameter value (percent).
	Min = 0
	Max = 100
)

// order is the stable listing used by the keyboard controller (keys 1-8) and the web panel.
var order = []Name{
	WavePropagation,
	ColorIntensity,
	MountainSensitivity,
	GridDistortion,
	GlowEffect,
	SpeedSmoothing,
	BassBoost,
	Scanlines,
}

// Parameters holds the eight percentage knobs read by the extractor and renderer every frame.
type Parameters struct {
	WavePropagation     int `json:"wavePropagation"`
	ColorIntensity      int `json:"colorIntensity"`
	MountainSensitivity int `json:"mountainSensitivity"`
	GridDistortion      int `json:"gridDistortion"`
	GlowEffect          int `json:"glowEffect"`
	SpeedSmoothing      int `json:"speedSmoothing"`
	BassBoost           int `json:"bassBoost"`
	Scanlines           int `json:"scanlines"`
}

// Defaults returns the values the visualizer starts with.
func Defaults() Parameters {
	return Parameters{
		WavePropagation:     50,
		ColorIntensity:      70,
		MountainSensitivity: 60,
		GridDistortion:      40,
		GlowEffect:          50,
		SpeedSmoothing:      30,
		BassBoost:           50,
		Scanlines:           30,
	}
}

// Names returns every parameter name in display order.
func Names() []Name {
	out := make([]Name, len(order))
	copy(out, order)
	return out
}

// ParseName resolves a parameter name case-insensitively.
func ParseName(s string) (Name, error) {
	for _, n := range order {
		if strings.EqualFold(string(n), s) {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown parameter %q", s)
}

// Fraction maps a percentage to [0,1].
func Fraction(v int) float64 {
	return float64(v) / 100
}

// Get returns the value of the named parameter.
func (p Parameters) Get(name Name) (int, error) {
	ptr := p.field(name)
	if ptr == nil {
		return 0, fmt.Errorf("unknown parameter %q", name)
	}
	return *ptr, nil
}

// Set assigns the named parameter, clamping to [Min, Max]. The stored value is returned.
func (p *Parameters) Set(name Name, value int) (int, error) {
	ptr := p.field(name)
	if ptr == nil {
		return 0, fmt.Errorf("unknown parameter %q", name)
	}
	*ptr = clampInt(value, Min, Max)
	return *ptr, nil
}

// Map returns the parameters keyed by name.
func (p Parameters) Map() map[Name]int {
	out := make(map[Name]int, len(order))
	for _, n := range order {
		out[n] = *p.field(n)
	}
	return out
}

func (p *Parameters) field(name Name) *int {
	switch name {
	case WavePropagation:
		return &p.WavePropagation
	case ColorIntensity:
		return &p.ColorIntensity
	case MountainSensitivity:
		return &p.MountainSensitivity
	case GridDistortion:
		return &p.GridDistortion
	case GlowEffect:
		return &p.GlowEffect
	case SpeedSmoothing:
		return &p.SpeedSmoothing
	case BassBoost:
		return &p.BassBoost
	case Scanlines:
		return &p.Scanlines
	}
	return nil
}

// Store is the externally mutable parameter set. Controllers write, the frame loop
// reads a snapshot once per frame.
type Store struct {
	mu sync.RWMutex
	p  Parameters
}

// NewStore creates a store seeded with p (values are clamped).
func NewStore(p Parameters) *Store {
	s := &Store{}
	for name, v := range p.Map() {
		_, _ = s.p.Set(name, v)
	}
	return s
}

// Snapshot returns a copy of the current values.
func (s *Store) Snapshot() Parameters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.p
}

// Get returns a single value.
func (s *Store) Get(name Name) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.p.Get(name)
}

// Set clamps and stores value, returning what was stored.
func (s *Store) Set(name Name, value int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Set(name, value)
}

// Adjust adds delta to the named parameter, clamping the result.
func (s *Store) Adjust(name Name, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.p.Get(name)
	if err != nil {
		return 0, err
	}
	return s.p.Set(name, cur+delta)
}

// Update applies several values at once. Unknown names abort the whole update.
func (s *Store) Update(values map[string]int) (Parameters, error) {
	resolved := make(map[Name]int, len(values))
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		name, err := ParseName(k)
		if err != nil {
			return s.Snapshot(), err
		}
		resolved[name] = values[k]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, v := range resolved {
		_, _ = s.p.Set(name, v)
	}
	return s.p, nil
}

// Reset restores Defaults.
func (s *Store) Reset() {
	s.mu.Lock()
	s.p = Defaults()
	s.mu.Unlock()
}

func clampInt(v, minVal, maxVal int) int {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
