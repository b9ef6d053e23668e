package render

import (
	"image/color"
	"math"
)

// Point is a position in surface pixels, origin top-left, y down.
type Point struct {
	X, Y float64
}

// GradientStop places a colour at Offset (0 top, 1 bottom) of a vertical gradient.
type GradientStop struct {
	Offset float64
	Color  color.NRGBA
}

// Glow is a soft halo drawn beneath a shape. It applies only to the call it is
// passed to; the zero value draws no halo.
type Glow struct {
	Blur  float64
	Color color.NRGBA
}

// Active reports whether the glow paints anything.
func (g Glow) Active() bool {
	return g.Blur > 0 && g.Color.A > 0
}

// Surface is the set of drawing primitives the scene passes need.
// Later calls paint over earlier ones using source-over blending.
type Surface interface {
	FillRect(x, y, w, h float64, c color.NRGBA)
	FillVerticalGradient(x, y, w, h float64, stops []GradientStop)
	FillCircle(center Point, radius float64, c color.NRGBA, glow Glow)
	StrokeCircle(center Point, radius, width float64, c color.NRGBA, glow Glow)
	FillPolygon(points []Point, c color.NRGBA)
	StrokePolyline(points []Point, width float64, c color.NRGBA)
}

// cssRGB builds an opaque colour from unclamped channel values, rounding like a
// browser parsing rgb().
func cssRGB(r, g, b float64) color.NRGBA {
	return color.NRGBA{R: channel(r), G: channel(g), B: channel(b), A: 255}
}

// cssRGBA is cssRGB with an alpha in [0,1] (clamped).
func cssRGBA(r, g, b, a float64) color.NRGBA {
	c := cssRGB(r, g, b)
	c.A = uint8(math.Round(clamp01(a) * 255))
	return c
}

func channel(v float64) uint8 {
	return uint8(clampFloat(math.Round(v), 0, 255))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
