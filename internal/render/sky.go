package render

import "math"

// drawSky fills the background with a three-stop gradient. ColorIntensity only
// scales the top stop.
func drawSky(s Surface, fp frameParams) {
	f := fp.feat
	top := cssRGB(
		math.Floor(20+f.High*100*fp.intensity),
		math.Floor(10+f.Mid*50*fp.intensity),
		math.Floor(40+f.Bass*100*fp.intensity),
	)
	middle := cssRGB(80+f.Mid*100, 30+f.Bass*80, 120+f.High*135)
	bottom := cssRGB(255-f.Bass*100, 100+f.Mid*100, 200+f.High*55)

	s.FillVerticalGradient(0, 0, fp.width, fp.height, []GradientStop{
		{Offset: 0, Color: top},
		{Offset: 0.4, Color: middle},
		{Offset: 1, Color: bottom},
	})
}
