//go:build !sdl

package render

import "errors"

type sdlState struct{}

func (r *Renderer) initSDL(width, height int) error {
	return errors.New("SDL backend not enabled; rebuild with -tags sdl")
}

func (r *Renderer) renderSDL(status string) Frame {
	return Frame{
		Status: status,
		Present: func(string) error {
			return ErrRendererQuit
		},
	}
}

func (r *Renderer) resizeSDL() {}

func (r *Renderer) closeSDL() error { return nil }

// WindowSize reports the SDL window size; without SDL there is no window.
func (r *Renderer) WindowSize() (int, int) { return 0, 0 }

// SupportsSDL reports whether the binary was built with the SDL backend.
func SupportsSDL() bool { return false }
