package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/guidoenr/vaporwave/internal/app"
	"github.com/guidoenr/vaporwave/internal/audio"
	"github.com/guidoenr/vaporwave/internal/render"
	"go.uber.org/zap"
	"golang.org/x/term"
)

func main() {
	var (
		deviceName    = flag.String("audio-device", "", "Optional PortAudio device name (substring match)")
		width         = flag.Int("width", 80, "Fallback frame width in cells when the terminal size is unknown")
		height        = flag.Int("height", 24, "Fallback frame height in cells when the terminal size is unknown")
		targetFPS     = flag.Float64("fps", 60, "Target frames per second")
		noAudio       = flag.Bool("no-audio", false, "Run with synthetic audio (for testing)")
		debug         = flag.Bool("debug", false, "Enable verbose logging")
		showStatus    = flag.Bool("status", true, "Display status bar")
		palette       = flag.String("palette", "default", "Glyph palette when colour is off (default|box|lines|spark)")
		listDevs      = flag.Bool("list-audio-devices", false, "List available audio input devices and exit")
		noColor       = flag.Bool("no-color", false, "Disable ANSI color output")
		pixelsPerCell = flag.Int("pixels-per-cell", 8, "Supersampling factor per terminal column")
		useSDL        = flag.Bool("sdl", false, "Render into an SDL window (requires -tags sdl)")
		webPort       = flag.Int("web-port", 0, "Serve the control panel on this port (0 disables)")
		profilePath   = flag.String("profile", "", "Append per-frame section timings to this CSV file")
		autoStart     = flag.Bool("autostart", false, "Start capturing immediately")
	)

	flag.Parse()

	logger, err := newLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if *width <= 0 || *height <= 0 {
		logger.Fatal("invalid dimensions", zap.Int("width", *width), zap.Int("height", *height))
	}
	if *targetFPS <= 0 {
		logger.Fatal("fps must be positive", zap.Float64("fps", *targetFPS))
	}
	if *pixelsPerCell <= 0 {
		logger.Fatal("pixels-per-cell must be positive", zap.Int("pixels_per_cell", *pixelsPerCell))
	}
	if *webPort < 0 || *webPort > 65535 {
		logger.Fatal("invalid web port", zap.Int("port", *webPort))
	}
	if *useSDL && !render.SupportsSDL() {
		logger.Fatal("this binary was built without SDL support; rebuild with -tags sdl")
	}

	if fd := int(os.Stdout.Fd()); fd >= 0 {
		if w, h, err := term.GetSize(fd); err == nil {
			if w > 0 {
				*width = w
			}
			if h > 0 {
				*height = h
			}
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	needAudio := !*noAudio || *listDevs
	if needAudio {
		if err := audio.Initialize(); err != nil {
			if *listDevs {
				logger.Fatal("failed to initialize PortAudio", zap.Error(err))
			}
			logger.Warn("PortAudio unavailable; capture will retry on start", zap.Error(err))
		}
		defer audio.Terminate()
	}

	if *listDevs {
		devices, err := audio.ListDevices()
		if err != nil {
			logger.Fatal("list devices", zap.Error(err))
		}
		if err := audio.WriteDevices(os.Stdout, devices); err != nil {
			logger.Fatal("write devices", zap.Error(err))
		}
		if dev, err := audio.AutoDetectDevice(); err == nil && dev != nil {
			fmt.Printf("\nAuto-detected input: %s (%.0f Hz, %d channels)\n", dev.Name, dev.DefaultSampleRate, dev.MaxInputChannels)
		}
		return
	}

	webAddr := ""
	if *webPort > 0 {
		webAddr = fmt.Sprintf(":%d", *webPort)
	}

	a, err := app.New(app.Config{
		DeviceName:    *deviceName,
		TargetFPS:     *targetFPS,
		DisableAudio:  *noAudio,
		ShowStatusBar: *showStatus,
		Palette:       *palette,
		UseANSI:       !*noColor,
		PixelsPerCell: *pixelsPerCell,
		SDL:           *useSDL,
		Width:         *width,
		Height:        *height,
		WebAddr:       webAddr,
		ProfilePath:   *profilePath,
		AutoStart:     *autoStart,
		Log:           logger,
		Output:        os.Stdout,
	})
	if err != nil {
		logger.Fatal("failed to create app", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("cleanup", zap.Error(err))
		}
	}()

	if err := a.Run(ctx); err != nil {
		if ctx.Err() != nil {
			fmt.Println("\nExiting...")
			return
		}
		logger.Error("runtime error", zap.Error(err))
	}
}

// newLogger writes JSON to stderr, or a human readable debug log with --debug.
func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		cfg := zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stderr"}
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}
