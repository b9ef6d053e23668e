package analyzer

import (
	"github.com/guidoenr/vaporwave/internal/params"
)

// maxMagnitude is the largest value a frequency bin can hold.
const maxMagnitude = 255.0

// Band proportions of the bin range, in tenths.
const (
	bassTenths = 1
	midTenths  = 4
)

// Bands returns the exclusive end indices of the bass and mid bands for n bins.
// bass = [0,bassEnd), mid = [bassEnd,midEnd), high = [midEnd,n).
func Bands(n int) (bassEnd, midEnd int) {
	if n <= 0 {
		return 0, 0
	}
	return n * bassTenths / 10, n * midTenths / 10
}

// Raw computes the unsmoothed, bass-boosted feature vector of a frequency sample.
func Raw(sample []uint8, bassBoost int) FeatureVector {
	bassEnd, midEnd := Bands(len(sample))

	bass := bandMean(sample[:bassEnd])
	mid := bandMean(sample[bassEnd:midEnd])
	high := bandMean(sample[midEnd:])

	bass *= 1 + params.Fraction(bassBoost)

	return FeatureVector{
		Bass:    bass,
		Mid:     mid,
		High:    high,
		Overall: (bass + mid + high) / 3,
	}
}

// Smooth blends raw into prev. speedSmoothing is the share of prev retained:
// 0 follows raw immediately, 100 freezes the output.
func Smooth(prev, raw FeatureVector, speedSmoothing int) FeatureVector {
	retention := params.Fraction(speedSmoothing)
	return prev.blend(raw, retention)
}

// Extract turns one frequency sample into the next smoothed feature vector.
// An empty sample leaves prev untouched.
func Extract(sample []uint8, p params.Parameters, prev FeatureVector) FeatureVector {
	if len(sample) == 0 {
		return prev
	}
	return Smooth(prev, Raw(sample, p.BassBoost), p.SpeedSmoothing)
}

// bandMean is the mean magnitude normalised to [0,1]; an empty band is silent.
func bandMean(band []uint8) float64 {
	if len(band) == 0 {
		return 0
	}
	sum := 0
	for _, v := range band {
		sum += int(v)
	}
	return float64(sum) / float64(len(band)) / maxMagnitude
}
