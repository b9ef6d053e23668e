package analyzer

// FeatureVector is the smoothed four-channel energy summary that drives the scene.
// Values are nominally in [0,1]; Bass (and therefore Overall) may exceed 1 after boost.
type FeatureVector struct {
	Bass    float64 `json:"bass"`
	Mid     float64 `json:"mid"`
	High    float64 `json:"high"`
	Overall float64 `json:"overall"`
}

func (f FeatureVector) blend(raw FeatureVector, alpha float64) FeatureVector {
	return FeatureVector{
		Bass:    lerp(raw.Bass, f.Bass, alpha),
		Mid:     lerp(raw.Mid, f.Mid, alpha),
		High:    lerp(raw.High, f.High, alpha),
		Overall: lerp(raw.Overall, f.Overall, alpha),
	}
}

// lerp weights b by t: a*(1-t) + b*t.
func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}
