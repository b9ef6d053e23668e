package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/vector"
)

// strokeChunk is the number of polyline segments rasterised per coverage mask.
// Small chunks keep the mask close to the stroke.
const strokeChunk = 8

// Canvas is a Surface backed by an RGBA image. Polygons are anti-aliased by
// rasterising their coverage inside each shape's bounding box only; circles and
// their glow are shaded from pixel distance in a single pass.
type Canvas struct {
	img *image.RGBA
	ras *vector.Rasterizer
}

// NewCanvas allocates a width x height canvas.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{
		img: image.NewRGBA(image.Rect(0, 0, max(width, 0), max(height, 0))),
		ras: vector.NewRasterizer(1, 1),
	}
}

// Resize reallocates the pixel buffer when the dimensions change.
func (c *Canvas) Resize(width, height int) {
	b := c.img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return
	}
	c.img = image.NewRGBA(image.Rect(0, 0, max(width, 0), max(height, 0)))
}

// Image exposes the pixel buffer. It is overwritten by the next frame.
func (c *Canvas) Image() *image.RGBA {
	return c.img
}

// Size returns the pixel dimensions.
func (c *Canvas) Size() (int, int) {
	b := c.img.Bounds()
	return b.Dx(), b.Dy()
}

// FillRect implements Surface.
func (c *Canvas) FillRect(x, y, w, h float64, col color.NRGBA) {
	if col.A == 0 || w <= 0 || h <= 0 {
		return
	}
	r := image.Rect(
		int(math.Round(x)), int(math.Round(y)),
		int(math.Round(x+w)), int(math.Round(y+h)),
	).Intersect(c.img.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(c.img, r, image.NewUniform(col), image.Point{}, draw.Over)
}

// FillVerticalGradient implements Surface. Colours between stops are blended in sRGB.
func (c *Canvas) FillVerticalGradient(x, y, w, h float64, stops []GradientStop) {
	if len(stops) == 0 || w <= 0 || h <= 0 {
		return
	}
	area := image.Rect(
		int(math.Round(x)), int(math.Round(y)),
		int(math.Round(x+w)), int(math.Round(y+h)),
	).Intersect(c.img.Bounds())

	for row := area.Min.Y; row < area.Max.Y; row++ {
		pos := (float64(row) + 0.5 - y) / h
		col := gradientAt(stops, pos)
		line := image.Rect(area.Min.X, row, area.Max.X, row+1)
		draw.Draw(c.img, line, image.NewUniform(col), image.Point{}, draw.Over)
	}
}

// FillCircle implements Surface.
func (c *Canvas) FillCircle(center Point, radius float64, col color.NRGBA, glow Glow) {
	if radius <= 0 {
		return
	}
	// A disc is a band of half width radius/2 around radius/2.
	c.fillBand(center, radius/2, radius/2, col, glow)
}

// StrokeCircle implements Surface.
func (c *Canvas) StrokeCircle(center Point, radius, width float64, col color.NRGBA, glow Glow) {
	if radius <= 0 || width <= 0 {
		return
	}
	c.fillBand(center, radius, width/2, col, glow)
}

// FillPolygon implements Surface.
func (c *Canvas) FillPolygon(points []Point, col color.NRGBA) {
	if len(points) < 3 {
		return
	}
	c.fillPath([][]Point{points}, col)
}

// StrokePolyline implements Surface. Each segment becomes a quad; quads within a
// chunk share one coverage mask so their joints are not blended twice.
func (c *Canvas) StrokePolyline(points []Point, width float64, col color.NRGBA) {
	if len(points) < 2 || width <= 0 {
		return
	}
	for start := 0; start < len(points)-1; start += strokeChunk {
		end := min(start+strokeChunk+1, len(points))
		c.strokeChunk(points[start:end], width/2, col)
	}
}

func (c *Canvas) strokeChunk(points []Point, half float64, col color.NRGBA) {
	quads := make([][]Point, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		dx, dy := b.X-a.X, b.Y-a.Y
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		nx, ny := -dy/length*half, dx/length*half
		quads = append(quads, []Point{
			{a.X + nx, a.Y + ny},
			{b.X + nx, b.Y + ny},
			{b.X - nx, b.Y - ny},
			{a.X - nx, a.Y - ny},
		})
	}
	c.fillPath(quads, col)
}

// fillBand paints the ring of points within half of radius around center, plus
// its glow. Coverage and glow come from each pixel centre's distance to the ring,
// so only rows and spans that can be touched are visited.
func (c *Canvas) fillBand(center Point, radius, half float64, col color.NRGBA, g Glow) {
	reach := half + 1
	if g.Active() {
		reach = half + g.Blur
	}
	outer := radius + reach
	inner := math.Max(0, radius-reach)
	bounds := c.img.Bounds()

	y0 := max(bounds.Min.Y, int(math.Floor(center.Y-outer)))
	y1 := min(bounds.Max.Y, int(math.Ceil(center.Y+outer)))
	for y := y0; y < y1; y++ {
		dy := float64(y) + 0.5 - center.Y
		if math.Abs(dy) >= outer {
			continue
		}
		xo := math.Sqrt(outer*outer - dy*dy)
		if math.Abs(dy) < inner {
			xi := math.Sqrt(inner*inner - dy*dy)
			c.bandSpan(center, dy, y, center.X-xo, center.X-xi, radius, half, col, g)
			c.bandSpan(center, dy, y, center.X+xi, center.X+xo, radius, half, col, g)
			continue
		}
		c.bandSpan(center, dy, y, center.X-xo, center.X+xo, radius, half, col, g)
	}
}

func (c *Canvas) bandSpan(center Point, dy float64, y int, from, to, radius, half float64, col color.NRGBA, g Glow) {
	bounds := c.img.Bounds()
	x0 := max(bounds.Min.X, int(math.Floor(from)))
	x1 := min(bounds.Max.X, int(math.Ceil(to)))
	solid := radius <= half
	for x := x0; x < x1; x++ {
		dist := math.Hypot(float64(x)+0.5-center.X, dy)
		// edge is the signed distance outside the band; negative inside.
		edge := math.Abs(dist-radius) - half
		if solid {
			edge = dist - radius - half
		}
		if g.Active() && edge < g.Blur {
			c.blend(x, y, g.Color, glowFalloff(edge/g.Blur))
		}
		if cov := clamp01(0.5 - edge); cov > 0 {
			c.blend(x, y, col, cov)
		}
	}
}

// glowFalloff maps a distance in blur radii to halo strength.
func glowFalloff(t float64) float64 {
	if t <= 0 {
		return 1
	}
	if t >= 1 {
		return 0
	}
	return (1 - t) * (1 - t)
}

// blend composites col over the pixel at (x, y) with the given coverage.
func (c *Canvas) blend(x, y int, col color.NRGBA, coverage float64) {
	a := float64(col.A) / 255 * coverage
	if a <= 0 {
		return
	}
	i := c.img.PixOffset(x, y)
	pix := c.img.Pix[i : i+4 : i+4]
	keep := 1 - a
	pix[0] = uint8(float64(col.R)*a + float64(pix[0])*keep + 0.5)
	pix[1] = uint8(float64(col.G)*a + float64(pix[1])*keep + 0.5)
	pix[2] = uint8(float64(col.B)*a + float64(pix[2])*keep + 0.5)
	pix[3] = uint8(255*a + float64(pix[3])*keep + 0.5)
}

// fillPath paints the union of contours with col.
func (c *Canvas) fillPath(contours [][]Point, col color.NRGBA) {
	if col.A == 0 || len(contours) == 0 {
		return
	}
	bounds := c.img.Bounds()
	box, ok := boundingBox(contours)
	if !ok {
		return
	}
	box = box.Intersect(bounds)
	if box.Empty() {
		return
	}

	c.ras.Reset(box.Dx(), box.Dy())
	c.ras.DrawOp = draw.Over
	ox, oy := float64(box.Min.X), float64(box.Min.Y)
	clip := rect{0, 0, float64(box.Dx()), float64(box.Dy())}
	for _, contour := range contours {
		local := make([]Point, len(contour))
		for i, p := range contour {
			local[i] = Point{p.X - ox, p.Y - oy}
		}
		local = clipPolygon(local, clip)
		if len(local) < 3 {
			continue
		}
		c.ras.MoveTo(float32(local[0].X), float32(local[0].Y))
		for _, p := range local[1:] {
			c.ras.LineTo(float32(p.X), float32(p.Y))
		}
		c.ras.ClosePath()
	}
	c.ras.Draw(c.img, box, image.NewUniform(col), image.Point{})
}

func gradientAt(stops []GradientStop, pos float64) color.NRGBA {
	if pos <= stops[0].Offset {
		return stops[0].Color
	}
	last := stops[len(stops)-1]
	if pos >= last.Offset {
		return last.Color
	}
	for i := 1; i < len(stops); i++ {
		lo, hi := stops[i-1], stops[i]
		if pos > hi.Offset {
			continue
		}
		span := hi.Offset - lo.Offset
		if span <= 0 {
			return hi.Color
		}
		t := (pos - lo.Offset) / span
		a, _ := colorful.MakeColor(opaque(lo.Color))
		b, _ := colorful.MakeColor(opaque(hi.Color))
		r, g, bl := a.BlendRgb(b, t).Clamped().RGB255()
		alpha := float64(lo.Color.A)*(1-t) + float64(hi.Color.A)*t
		return color.NRGBA{R: r, G: g, B: bl, A: uint8(math.Round(alpha))}
	}
	return last.Color
}

func opaque(c color.NRGBA) color.NRGBA {
	c.A = 255
	return c
}

func boundingBox(contours [][]Point) (image.Rectangle, bool) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, contour := range contours {
		for _, p := range contour {
			minX = math.Min(minX, p.X)
			minY = math.Min(minY, p.Y)
			maxX = math.Max(maxX, p.X)
			maxY = math.Max(maxY, p.Y)
		}
	}
	if math.IsInf(minX, 0) || math.IsNaN(minX+minY+maxX+maxY) {
		return image.Rectangle{}, false
	}
	return image.Rect(
		int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Ceil(maxX))+1, int(math.Ceil(maxY))+1,
	), true
}

type rect struct {
	minX, minY, maxX, maxY float64
}

// clipPolygon clips a closed polygon to r (Sutherland-Hodgman).
func clipPolygon(pts []Point, r rect) []Point {
	edges := []struct {
		inside func(Point) bool
		cross  func(a, b Point) Point
	}{
		{func(p Point) bool { return p.X >= r.minX }, func(a, b Point) Point { return atX(a, b, r.minX) }},
		{func(p Point) bool { return p.X <= r.maxX }, func(a, b Point) Point { return atX(a, b, r.maxX) }},
		{func(p Point) bool { return p.Y >= r.minY }, func(a, b Point) Point { return atY(a, b, r.minY) }},
		{func(p Point) bool { return p.Y <= r.maxY }, func(a, b Point) Point { return atY(a, b, r.maxY) }},
	}
	out := pts
	for _, e := range edges {
		if len(out) == 0 {
			return nil
		}
		in := out
		out = make([]Point, 0, len(in)+4)
		prev := in[len(in)-1]
		for _, cur := range in {
			curIn, prevIn := e.inside(cur), e.inside(prev)
			switch {
			case curIn && prevIn:
				out = append(out, cur)
			case curIn && !prevIn:
				out = append(out, e.cross(prev, cur), cur)
			case !curIn && prevIn:
				out = append(out, e.cross(prev, cur))
			}
			prev = cur
		}
	}
	return out
}

func atX(a, b Point, x float64) Point {
	t := (x - a.X) / (b.X - a.X)
	return Point{x, a.Y + (b.Y-a.Y)*t}
}

func atY(a, b Point, y float64) Point {
	t := (y - a.Y) / (b.Y - a.Y)
	return Point{a.X + (b.X-a.X)*t, y}
}
