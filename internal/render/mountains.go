package render

import "math"

const (
	mountainLayers   = 3
	mountainSegments = 50
)

// mountainRidge samples the ridge line of one layer, left to right.
func mountainRidge(layer int, fp frameParams) []Point {
	depth := float64(layer) / mountainLayers
	baseY := fp.height*0.5 + float64(layer)*30
	freq := 0.003 + float64(layer)*0.001
	amp := (50 + float64(layer)*30) * (1 + fp.feat.Bass*fp.sensitivity*3)

	ridge := make([]Point, 0, mountainSegments+1)
	for i := 0; i <= mountainSegments; i++ {
		x := float64(i) / mountainSegments * fp.width
		y := baseY + math.Sin(x*freq+fp.time*(1-depth))*amp
		ridge = append(ridge, Point{X: x, Y: y})
	}
	return ridge
}

// drawMountains paints the layers back to front so nearer layers occlude farther ones.
func drawMountains(s Surface, fp frameParams) {
	for layer := 0; layer < mountainLayers; layer++ {
		depth := float64(layer) / mountainLayers
		l := float64(layer)

		poly := make([]Point, 0, mountainSegments+3)
		poly = append(poly, Point{X: 0, Y: fp.height})
		poly = append(poly, mountainRidge(layer, fp)...)
		poly = append(poly, Point{X: fp.width, Y: fp.height})

		s.FillPolygon(poly, cssRGBA(100-l*30, 20+l*40, 80+l*50, 0.6-depth*0.3))
	}
}
