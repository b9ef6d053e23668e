package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/guidoenr/vaporwave/internal/analyzer"
	"github.com/guidoenr/vaporwave/internal/params"
	"github.com/lucasb-eyer/go-colorful"
	xdraw "golang.org/x/image/draw"
)

type backend string

const (
	backendANSI backend = "ansi"
	backendSDL  backend = "sdl"
)

const defaultPixelsPerCell = 8

// ErrRendererQuit is returned by Frame.Present when the user closed the window.
var ErrRendererQuit = errors.New("renderer closed")

// Options configures a Renderer.
type Options struct {
	// PixelsPerCell is the supersampling factor: the scene is drawn at
	// cols*PixelsPerCell x rows*2*PixelsPerCell and scaled down to the terminal.
	PixelsPerCell int
	Palette       string
	UseANSI       bool
	// SDL opens a window instead of writing ANSI lines (needs the sdl build tag).
	SDL bool
}

// Renderer draws the scene and turns it into something presentable: ANSI
// half-block lines for the terminal or a texture upload for the SDL window.
type Renderer struct {
	width         int
	height        int
	pixelsPerCell int
	palette       []rune
	paletteName   string
	useANSI       bool
	mode          backend
	sdl           *sdlState

	canvas        *Canvas
	cells         *image.RGBA
	statusBuilder strings.Builder
}

// Frame contains the rendered ASCII lines and optional status text.
type Frame struct {
	Lines  []string
	Status string
	// Present is set by windowed backends; terminal frames are written by the caller.
	Present func(status string) error
}

var (
	resetANSI     = "\x1b[0m"
	halfBlock     = "▀"
	precomputedFG [256]string
	precomputedBG [256]string
)

func init() {
	for i := range precomputedFG {
		precomputedFG[i] = "\x1b[38;5;" + strconv.Itoa(i) + "m"
		precomputedBG[i] = "\x1b[48;5;" + strconv.Itoa(i) + "m"
	}
}

// New creates a Renderer for a width x height viewport. Terminal viewports are
// measured in cells, SDL viewports in pixels.
func New(width, height int, opts Options) (*Renderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: width=%d height=%d", width, height)
	}
	if opts.PixelsPerCell <= 0 {
		opts.PixelsPerCell = defaultPixelsPerCell
	}

	r := &Renderer{
		width:         width,
		height:        height,
		pixelsPerCell: opts.PixelsPerCell,
		useANSI:       opts.UseANSI,
		mode:          backendANSI,
		canvas:        NewCanvas(1, 1),
	}
	r.SetPalette(opts.Palette)
	if opts.SDL {
		if err := r.initSDL(width, height); err != nil {
			return nil, fmt.Errorf("sdl: %w", err)
		}
	}
	return r, nil
}

// SetPalette selects the glyph ramp used when colour output is off.
func (r *Renderer) SetPalette(name string) {
	if name == "" {
		name = "default"
	}
	r.palette = Palette(name)
	r.paletteName = name
}

// PaletteName returns the active glyph ramp.
func (r *Renderer) PaletteName() string { return r.paletteName }

// Windowed reports whether frames are presented in an SDL window.
func (r *Renderer) Windowed() bool { return r.mode == backendSDL }

// Resize updates the viewport dimensions.
func (r *Renderer) Resize(width, height int) {
	changed := false
	if width > 0 && r.width != width {
		r.width = width
		changed = true
	}
	if height > 0 && r.height != height {
		r.height = height
		changed = true
	}
	if changed && r.mode == backendSDL {
		r.resizeSDL()
	}
}

// Size returns the current viewport dimensions.
func (r *Renderer) Size() (int, int) {
	return r.width, r.height
}

// SceneSize is the pixel size the scene is drawn at.
func (r *Renderer) SceneSize() (int, int) {
	if r.mode == backendSDL {
		return r.width, r.height
	}
	return r.width * r.pixelsPerCell, r.height * 2 * r.pixelsPerCell
}

// Canvas exposes the surface the last frame was drawn on.
func (r *Renderer) Canvas() *Canvas {
	return r.canvas
}

// Render draws one frame of the scene for the given features, parameters and time.
func (r *Renderer) Render(f analyzer.FeatureVector, p params.Parameters, t, fps float64) Frame {
	if r.width <= 0 || r.height <= 0 {
		return Frame{}
	}

	sw, sh := r.SceneSize()
	r.canvas.Resize(sw, sh)
	Render(r.canvas, sw, sh, f, p, t)

	status := r.buildStatus(f, fps)
	if r.mode == backendSDL {
		return r.renderSDL(status)
	}

	return Frame{
		Lines:  r.encodeCells(),
		Status: status,
	}
}

// Close releases windowed resources.
func (r *Renderer) Close() error {
	if r.mode == backendSDL {
		return r.closeSDL()
	}
	return nil
}

// encodeCells scales the scene down to two pixels per terminal cell and encodes
// each cell as an upper half block (top pixel foreground, bottom pixel background).
func (r *Renderer) encodeCells() []string {
	width, height := r.width, r.height
	target := image.Rect(0, 0, width, height*2)
	if r.cells == nil || r.cells.Bounds() != target {
		r.cells = image.NewRGBA(target)
	}
	src := r.canvas.Image()
	xdraw.BiLinear.Scale(r.cells, target, src, src.Bounds(), xdraw.Src, nil)

	lines := make([]string, height)
	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > height {
		numWorkers = height
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	var wg sync.WaitGroup
	rowJobs := make(chan int, numWorkers)
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rowJobs {
				lines[y] = r.encodeRow(y)
			}
		}()
	}
	for y := 0; y < height; y++ {
		rowJobs <- y
	}
	close(rowJobs)
	wg.Wait()

	return lines
}

func (r *Renderer) encodeRow(y int) string {
	var builder strings.Builder
	builder.Grow(r.width * 12)
	lastFG, lastBG := -1, -1
	for x := 0; x < r.width; x++ {
		top := r.cells.RGBAAt(x, 2*y)
		bottom := r.cells.RGBAAt(x, 2*y+1)
		if !r.useANSI {
			builder.WriteRune(r.glyph(top, bottom))
			continue
		}
		fg := rgbToANSI(unit(top.R), unit(top.G), unit(top.B))
		bg := rgbToANSI(unit(bottom.R), unit(bottom.G), unit(bottom.B))
		if fg != lastFG {
			builder.WriteString(precomputedFG[fg])
			lastFG = fg
		}
		if bg != lastBG {
			builder.WriteString(precomputedBG[bg])
			lastBG = bg
		}
		builder.WriteString(halfBlock)
	}
	if r.useANSI {
		builder.WriteString(resetANSI)
	}
	return builder.String()
}

// glyph maps the perceptual lightness of a cell onto the palette ramp.
func (r *Renderer) glyph(top, bottom color.RGBA) rune {
	a, _ := colorful.MakeColor(top)
	b, _ := colorful.MakeColor(bottom)
	l1, _, _ := a.Lab()
	l2, _, _ := b.Lab()
	lightness := clamp01((l1 + l2) / 2)
	index := clampInt(int(lightness*float64(len(r.palette)-1)+0.5), 0, len(r.palette)-1)
	return r.palette[index]
}

func unit(v uint8) float64 {
	return float64(v) / 255
}

func rgbToANSI(r, g, b float64) int {
	r = clamp01(r)
	g = clamp01(g)
	b = clamp01(b)

	if diff(r, g) < 0.02 && diff(g, b) < 0.02 {
		gray := int(clampFloat(r*23+0.5, 0, 23))
		return 232 + gray
	}

	ri := int(clampFloat(r*5+0.5, 0, 5))
	gi := int(clampFloat(g*5+0.5, 0, 5))
	bi := int(clampFloat(b*5+0.5, 0, 5))

	return 16 + 36*ri + 6*gi + bi
}

func diff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

func (r *Renderer) buildStatus(feat analyzer.FeatureVector, fps float64) string {
	builder := &r.statusBuilder
	builder.Reset()
	builder.Grow(96)
	builder.WriteString("bass ")
	appendFloat(builder, feat.Bass, 2)
	builder.WriteString(" mid ")
	appendFloat(builder, feat.Mid, 2)
	builder.WriteString(" high ")
	appendFloat(builder, feat.High, 2)
	builder.WriteString(" overall ")
	appendFloat(builder, feat.Overall, 2)
	builder.WriteString(" | fps ")
	appendFloat(builder, fps, 1)
	return builder.String()
}

func appendFloat(builder *strings.Builder, value float64, precision int) {
	var buf [32]byte
	b := strconv.AppendFloat(buf[:0], value, 'f', precision, 64)
	builder.Write(b)
}
