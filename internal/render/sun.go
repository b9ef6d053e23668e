package render

import "math"

const (
	sunRings     = 3
	sunRingWidth = 3
)

func sunGlow(fp frameParams) Glow {
	if fp.glow <= 0 {
		return Glow{}
	}
	f := fp.feat
	return Glow{
		Blur:  40 * fp.glow,
		Color: cssRGBA(255, 100+f.Bass*155, 200+f.High*55, 0.6*fp.glow),
	}
}

// drawSun draws the disc and its rings. The glow is handed to these calls only.
func drawSun(s Surface, fp frameParams) {
	f := fp.feat
	center := Point{X: fp.width / 2, Y: fp.height*0.25 + math.Sin(fp.time*0.5)*20}
	radius := 80 + f.Overall*40
	glow := sunGlow(fp)

	s.FillCircle(center, radius, cssRGBA(255, 150+f.Mid*105, 220-f.Bass*100, 0.9), glow)

	ring := cssRGBA(255, 100+f.High*155, 200+f.Bass*55, 0.5)
	spacing := 20 + f.Mid*20
	for i := 1; i <= sunRings; i++ {
		s.StrokeCircle(center, radius+float64(i)*spacing, sunRingWidth, ring, glow)
	}
}
