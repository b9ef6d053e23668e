package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/guidoenr/vaporwave/internal/analyzer"
	"github.com/guidoenr/vaporwave/internal/audio"
	"github.com/guidoenr/vaporwave/internal/params"
	"github.com/guidoenr/vaporwave/internal/render"
	"github.com/guidoenr/vaporwave/internal/web"
	"go.uber.org/zap"
)

const (
	windowWidth   = 960
	windowHeight  = 540
	watchInterval = 250 * time.Millisecond
	idleInterval  = 200 * time.Millisecond
)

// Config configures the application runtime.
type Config struct {
	DeviceName    string
	TargetFPS     float64
	DisableAudio  bool
	ShowStatusBar bool
	Palette       string
	UseANSI       bool
	PixelsPerCell int
	SDL           bool
	// Width and Height are the fallback terminal size in cells.
	Width  int
	Height int
	// WebAddr enables the control panel when set, e.g. ":8080".
	WebAddr     string
	ProfilePath string
	AutoStart   bool
	Log         *zap.Logger
	Output      io.Writer
}

// App ties together the parameter store, the frame driver and its controllers.
type App struct {
	cfg      Config
	log      *zap.Logger
	out      io.Writer
	store    *params.Store
	renderer *render.Renderer
	driver   *Driver
	terminal *TerminalViewport
	panel    *web.Server
	prof     *profiler

	runCtx    context.Context
	quit      chan struct{}
	quitOnce  sync.Once
	selMu     sync.Mutex
	selected  int
	lastState State
}

// New constructs the application using the provided configuration.
func New(cfg Config) (*App, error) {
	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = defaultFPS
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	a := &App{
		cfg:    cfg,
		log:    cfg.Log,
		out:    cfg.Output,
		store:  params.NewStore(params.Defaults()),
		quit:   make(chan struct{}),
		runCtx: context.Background(),
	}

	var viewport Viewport
	width, height := windowWidth, windowHeight
	if !cfg.SDL {
		reserved := 0
		if cfg.ShowStatusBar {
			reserved = 1
		}
		fd := -1
		if f, ok := cfg.Output.(*os.File); ok {
			fd = int(f.Fd())
		}
		a.terminal = NewTerminalViewport(fd, reserved, cfg.Width, cfg.Height)
		viewport = a.terminal
		width, height = a.terminal.Size()
	}

	renderer, err := render.New(width, height, render.Options{
		PixelsPerCell: cfg.PixelsPerCell,
		Palette:       cfg.Palette,
		UseANSI:       cfg.UseANSI,
		SDL:           cfg.SDL,
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}
	a.renderer = renderer
	if cfg.SDL {
		viewport = ViewportFunc(renderer.WindowSize)
	}

	var source audio.Source
	if cfg.DisableAudio {
		source = &audio.SyntheticSource{}
		a.log.Info("audio disabled, using synthetic generator")
	} else {
		source = &audio.PortAudioSource{DeviceName: cfg.DeviceName, Channels: 2, Log: a.log}
	}

	a.prof = newProfiler(cfg.ProfilePath, a.log)
	driver, err := NewDriver(DriverConfig{
		Source:    source,
		Params:    a.store,
		Viewport:  viewport,
		Sink:      &rendererSink{app: a},
		Scheduler: TickerScheduler{FPS: cfg.TargetFPS},
		Log:       a.log,
	})
	if err != nil {
		_ = renderer.Close()
		return nil, err
	}
	driver.profile = a.prof
	a.driver = driver

	if cfg.WebAddr != "" {
		a.panel = web.NewServer(a.store, panelController{app: a}, a.log.Named("web"))
	}
	return a, nil
}

// Run draws the idle scene and serves controllers until ctx is done or the user quits.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.runCtx = ctx

	if !a.renderer.Windowed() {
		enterAltScreen(a.out)
		clearScreen(a.out)
		hideCursor(a.out)
		defer func() {
			showCursor(a.out)
			exitAltScreen(a.out)
		}()
	}

	keys := startInputListener(ctx, a.log)
	var resized <-chan struct{}
	if a.terminal != nil {
		go a.terminal.Watch(ctx, watchInterval)
		resized = a.terminal.Changes()
	}
	if a.panel != nil {
		go func() {
			if err := a.panel.Run(ctx, a.cfg.WebAddr); err != nil {
				a.log.Error("web panel stopped", zap.Error(err))
			}
		}()
	}

	a.redrawIdle()
	if a.cfg.AutoStart {
		_ = a.startCapture()
	}

	idle := time.NewTicker(idleInterval)
	defer idle.Stop()
	defer a.driver.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.quit:
			return nil
		case ev, ok := <-keys:
			if !ok {
				keys = nil
				continue
			}
			if a.handleKey(ev) {
				return nil
			}
		case <-resized:
			if a.driver.State() == Idle {
				a.redrawIdle()
			}
		case <-idle.C:
			state := a.driver.State()
			if state == Idle && (a.lastState == Capturing || a.renderer.Windowed()) {
				a.redrawIdle()
			}
			a.lastState = state
		}
	}
}

// Close releases held resources.
func (a *App) Close() error {
	a.driver.Stop()
	return errors.Join(a.renderer.Close(), a.prof.Close())
}

// handleKey applies one keyboard action and reports whether the app should quit.
func (a *App) handleKey(ev keyEvent) bool {
	names := params.Names()
	switch ev.action {
	case keyQuit:
		return true
	case keyToggle:
		if a.driver.State() == Capturing {
			a.stopCapture()
		} else {
			_ = a.startCapture()
		}
		return false
	case keySelect:
		if ev.index >= 0 && ev.index < len(names) {
			a.selMu.Lock()
			a.selected = ev.index
			a.selMu.Unlock()
		}
	case keyAdjust:
		name := names[a.selectedIndex()]
		value, err := a.store.Adjust(name, ev.delta)
		if err != nil {
			a.log.Warn("adjust parameter", zap.Error(err))
		} else {
			a.log.Debug("parameter adjusted", zap.String("name", string(name)), zap.Int("value", value))
		}
	case keyReset:
		a.store.Reset()
		a.log.Debug("parameters reset")
	}
	if a.driver.State() == Idle {
		a.redrawIdle()
	}
	return false
}

func (a *App) startCapture() error {
	err := a.driver.Start(a.runCtx)
	if err != nil {
		a.redrawIdle()
	}
	return err
}

func (a *App) stopCapture() {
	a.driver.Stop()
	a.redrawIdle()
}

func (a *App) redrawIdle() {
	if err := a.driver.DrawIdle(); err != nil && !errors.Is(err, render.ErrRendererQuit) {
		a.log.Warn("idle frame", zap.Error(err))
	}
}

func (a *App) requestQuit() {
	a.quitOnce.Do(func() { close(a.quit) })
}

func (a *App) selectedIndex() int {
	a.selMu.Lock()
	defer a.selMu.Unlock()
	return a.selected
}

// statusText prefixes the renderer's feature readout with the controller state.
func (a *App) statusText(features string) string {
	name := params.Names()[a.selectedIndex()]
	value, _ := a.store.Get(name)
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %d:%s=%d | %s", a.driver.State(), a.selectedIndex()+1, name, value, features)
	if err := a.driver.Err(); err != nil {
		fmt.Fprintf(&b, " | error: %v", err)
	}
	return b.String()
}

func (a *App) writeFrame(lines []string, status string) error {
	var b strings.Builder
	width, _ := a.renderer.Size()
	b.WriteString("\x1b[H")
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	if a.cfg.ShowStatusBar {
		b.WriteByte('\n')
		b.WriteString(statusBar(status, width))
	}
	_, err := io.WriteString(a.out, b.String())
	return err
}

// rendererSink draws frames with the renderer and presents them.
type rendererSink struct {
	app *App
}

func (s *rendererSink) Draw(f analyzer.FeatureVector, p params.Parameters, t float64, width, height int) error {
	a := s.app
	profiling := a.driver.State() == Capturing

	a.renderer.Resize(width, height)
	frame := a.renderer.Render(f, p, t, a.driver.FPS())
	if profiling {
		a.prof.markSection(sectionRender)
	}

	status := a.statusText(frame.Status)
	var err error
	if frame.Present != nil {
		err = frame.Present(status)
	} else {
		err = a.writeFrame(frame.Lines, status)
	}
	if profiling {
		a.prof.markSection(sectionPresent)
	}
	if errors.Is(err, render.ErrRendererQuit) {
		a.requestQuit()
	}
	return err
}

// panelController exposes the driver to the web panel.
type panelController struct {
	app *App
}

func (c panelController) Status() web.Status {
	d := c.app.driver
	st := web.Status{
		State:    d.State().String(),
		Features: d.Features(),
		FPS:      d.FPS(),
	}
	if err := d.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

func (c panelController) Start() error {
	return c.app.startCapture()
}

func (c panelController) Stop() error {
	c.app.stopCapture()
	return nil
}

func statusBar(text string, width int) string {
	if width <= 0 {
		return text
	}
	if len(text) >= width {
		return text[:width]
	}
	return text + strings.Repeat(" ", width-len(text))
}

func clearScreen(w io.Writer) {
	fmt.Fprint(w, "\x1b[2J")
	fmt.Fprint(w, "\x1b[H")
}

func hideCursor(w io.Writer) {
	fmt.Fprint(w, "\x1b[?25l")
}

func showCursor(w io.Writer) {
	fmt.Fprint(w, "\x1b[?25h")
}

func enterAltScreen(w io.Writer) {
	fmt.Fprint(w, "\x1b[?1049h")
}

func exitAltScreen(w io.Writer) {
	fmt.Fprint(w, "\x1b[?1049l\x1b[0m")
}
