package render

import (
	"github.com/guidoenr/vaporwave/internal/analyzer"
	"github.com/guidoenr/vaporwave/internal/params"
)

// frameParams carries everything a draw pass may read. It is rebuilt every
// frame from the inputs of Render and never outlives it.
type frameParams struct {
	width  float64
	height float64
	time   float64
	feat   analyzer.FeatureVector

	intensity   float64
	glow        float64
	sensitivity float64
	distortion  float64
	wave        float64
	scanlines   float64
}

func buildFrameParams(width, height int, f analyzer.FeatureVector, p params.Parameters, t float64) frameParams {
	return frameParams{
		width:       float64(width),
		height:      float64(height),
		time:        t,
		feat:        f,
		intensity:   params.Fraction(p.ColorIntensity),
		glow:        params.Fraction(p.GlowEffect),
		sensitivity: params.Fraction(p.MountainSensitivity),
		distortion:  params.Fraction(p.GridDistortion),
		wave:        params.Fraction(p.WavePropagation),
		scanlines:   params.Fraction(p.Scanlines),
	}
}

type pass struct {
	name string
	draw func(Surface, frameParams)
}

// passes run in this order; later passes paint over earlier ones.
var passes = []pass{
	{"sky", drawSky},
	{"sun", drawSun},
	{"mountains", drawMountains},
	{"grid", drawGrid},
	{"scanlines", drawScanlines},
	{"particles", drawParticles},
}

// Render draws one complete frame of the scene onto s. The output depends only on
// the arguments: identical inputs always produce identical drawing calls.
func Render(s Surface, width, height int, f analyzer.FeatureVector, p params.Parameters, t float64) {
	if width <= 0 || height <= 0 {
		return
	}
	fp := buildFrameParams(width, height, f, p, t)
	for _, ps := range passes {
		ps.draw(s, fp)
	}
}
