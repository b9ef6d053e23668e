//go:build sdl

package render

import (
	"fmt"
	"sync/atomic"

	"github.com/veandco/go-sdl2/sdl"
)

// sdlState is only touched from its thread; the window size is the exception.
type sdlState struct {
	thread      *osThread
	initialized bool
	window      *sdl.Window
	renderer    *sdl.Renderer
	texture     *sdl.Texture
	width       int
	height      int
	windowTitle string

	// last size reported by the window manager, read by the viewport
	windowW atomic.Int32
	windowH atomic.Int32
}

func (r *Renderer) initSDL(width, height int) error {
	if r.sdl != nil {
		r.mode = backendSDL
		return nil
	}
	thread := newOSThread()
	if err := thread.do(func() error { return sdl.InitSubSystem(sdl.INIT_VIDEO) }); err != nil {
		thread.close()
		return err
	}
	r.sdl = &sdlState{thread: thread, initialized: true}
	r.sdl.windowW.Store(int32(width))
	r.sdl.windowH.Store(int32(height))
	r.mode = backendSDL
	r.useANSI = false
	return nil
}

func (r *Renderer) ensureSDLResources() error {
	if r.sdl == nil {
		return fmt.Errorf("SDL backend not initialized")
	}
	state := r.sdl
	if state.window == nil {
		window, err := sdl.CreateWindow(
			"vaporwave",
			sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
			int32(r.width), int32(r.height),
			sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE,
		)
		if err != nil {
			return err
		}
		state.window = window
	}
	if state.renderer == nil {
		renderer, err := sdl.CreateRenderer(state.window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
		if err != nil {
			return err
		}
		state.renderer = renderer
	}
	if state.texture == nil || state.width != r.width || state.height != r.height {
		if state.texture != nil {
			state.texture.Destroy()
			state.texture = nil
		}
		tex, err := state.renderer.CreateTexture(
			sdl.PIXELFORMAT_ABGR8888,
			sdl.TEXTUREACCESS_STREAMING,
			int32(r.width), int32(r.height),
		)
		if err != nil {
			return err
		}
		state.texture = tex
		state.width = r.width
		state.height = r.height
	}
	return nil
}

func (r *Renderer) renderSDL(status string) Frame {
	state := r.sdl
	err := fmt.Errorf("SDL backend not initialized")
	if state != nil {
		err = state.thread.do(r.ensureSDLResources)
	}
	if err != nil {
		return Frame{
			Status: fmt.Sprintf("SDL init error: %v", err),
			Present: func(string) error {
				return err
			},
		}
	}
	img := r.canvas.Image()

	return Frame{
		Status: status,
		Present: func(status string) error {
			return state.thread.do(func() error {
				return state.present(img.Pix, img.Stride, status)
			})
		},
	}
}

func (state *sdlState) present(pix []byte, stride int, status string) error {
	if status != "" && status != state.windowTitle && state.window != nil {
		state.window.SetTitle(status)
		state.windowTitle = status
	}
	if len(pix) > 0 {
		if err := state.texture.Update(nil, pix, stride); err != nil {
			return err
		}
	}
	if err := state.renderer.Clear(); err != nil {
		return err
	}
	if err := state.renderer.Copy(state.texture, nil, nil); err != nil {
		return err
	}
	state.renderer.Present()
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch ev := event.(type) {
		case *sdl.QuitEvent:
			return ErrRendererQuit
		case *sdl.WindowEvent:
			if ev.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
				state.windowW.Store(ev.Data1)
				state.windowH.Store(ev.Data2)
			}
		}
	}
	return nil
}

func (r *Renderer) resizeSDL() {
	if r.sdl == nil {
		return
	}
	state := r.sdl
	_ = state.thread.do(func() error {
		state.width = 0
		state.height = 0
		return nil
	})
}

// WindowSize reports the SDL window size in pixels.
func (r *Renderer) WindowSize() (int, int) {
	if r.sdl == nil {
		return 0, 0
	}
	return int(r.sdl.windowW.Load()), int(r.sdl.windowH.Load())
}

func (r *Renderer) closeSDL() error {
	if r.sdl == nil {
		return nil
	}
	state := r.sdl
	err := state.thread.do(func() error {
		if state.texture != nil {
			state.texture.Destroy()
			state.texture = nil
		}
		if state.renderer != nil {
			state.renderer.Destroy()
			state.renderer = nil
		}
		if state.window != nil {
			state.window.Destroy()
			state.window = nil
		}
		if state.initialized {
			sdl.QuitSubSystem(sdl.INIT_VIDEO)
			state.initialized = false
		}
		return nil
	})
	state.thread.close()
	r.sdl = nil
	return err
}

// SupportsSDL reports whether the binary was built with the SDL backend.
func SupportsSDL() bool { return true }
