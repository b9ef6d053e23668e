package render

import "math"

const (
	gridHorizontalLines = 20
	gridVerticalLines   = 30
	gridSampleStep      = 5
	gridLineWidth       = 2
)

// drawGrid strokes the perspective floor over the lower 40% of the scene.
func drawGrid(s Surface, fp frameParams) {
	f := fp.feat
	color := cssRGBA(255, 100+f.Mid*155, 200+f.High*55, 0.3)
	for i := 0; i < gridHorizontalLines; i++ {
		s.StrokePolyline(horizontalGridLine(i, fp), gridLineWidth, color)
	}
	for i := 0; i < gridVerticalLines; i++ {
		s.StrokePolyline(verticalGridLine(i, fp), gridLineWidth, color)
	}
}

func gridTop(fp frameParams) float64 {
	return fp.height * 0.6
}

// horizontalGridLine bulges the whole line with bass and ripples it with mid.
func horizontalGridLine(i int, fp frameParams) []Point {
	f := fp.feat
	idx := float64(i)
	y := gridTop(fp) + idx*fp.height*0.02
	offset := math.Sin(fp.time*2+idx*0.3) * 20 * f.Bass * fp.distortion

	pts := make([]Point, 0, int(fp.width)/gridSampleStep+2)
	for x := 0.0; x <= fp.width; x += gridSampleStep {
		ripple := math.Sin(x*0.02+fp.time*3+idx*0.1) * 10 * f.Mid * fp.wave
		pts = append(pts, Point{X: x, Y: y + offset + ripple})
	}
	return pts
}

// verticalGridLine converges on the horizontal centre at the horizon and fans out
// quadratically towards the bottom edge.
func verticalGridLine(i int, fp frameParams) []Point {
	f := fp.feat
	idx := float64(i)
	top := gridTop(fp)
	x := idx / gridVerticalLines * fp.width
	centre := fp.width / 2

	pts := make([]Point, 0, int(fp.height-top)/gridSampleStep+2)
	for y := top; y < fp.height; y += gridSampleStep {
		progress := (y - top) / (fp.height - top)
		perspective := progress * progress
		wobble := math.Sin(fp.time*2+idx*0.2+y*0.02) * 15 * f.High * fp.distortion
		propagation := math.Sin(y*0.05+fp.time*4) * 20 * f.Bass * fp.wave
		pts = append(pts, Point{X: centre + (x-centre)*perspective + wobble + propagation, Y: y})
	}
	return pts
}
