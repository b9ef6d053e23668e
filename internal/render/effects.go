package render

import "math"

const (
	scanlineSpacing = 4
	scanlineHeight  = 2
	particleCount   = 50
)

// drawScanlines darkens every fourth row pair. Disabled scanlines cost nothing.
func drawScanlines(s Surface, fp frameParams) {
	if fp.scanlines <= 0 {
		return
	}
	shade := cssRGBA(0, 0, 0, 0.1*fp.scanlines)
	for y := 0.0; y < fp.height; y += scanlineSpacing {
		s.FillRect(0, y, fp.width, scanlineHeight, shade)
	}
}

// particlePosition is a fixed trajectory per index, confined to the upper half.
func particlePosition(i int, fp frameParams) Point {
	idx := float64(i)
	return Point{
		X: (math.Sin(idx*123.456+fp.time*0.3)*0.5 + 0.5) * fp.width,
		Y: (math.Cos(idx*789.012+fp.time*0.2)*0.5 + 0.5) * fp.height * 0.5,
	}
}

func drawParticles(s Surface, fp frameParams) {
	high := fp.feat.High
	color := cssRGBA(255, 255, 255, 0.6+high*0.4)
	for i := 0; i < particleCount; i++ {
		size := 1 + math.Sin(fp.time*2+float64(i))*1.5 + high*2
		if size <= 0 {
			continue
		}
		s.FillCircle(particlePosition(i, fp), size, color, Glow{})
	}
}
