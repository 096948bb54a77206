package hal

import (
	"errors"
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/kapitanov/chip8emu/internal/vm"
	"github.com/veandco/go-sdl2/sdl"
)

var ErrUnknownKey = errors.New("unknown key name")

type Options struct {
	Scale      int
	Foreground uint32
	Background uint32

	// Keys maps SDL key names (case-insensitive) to virtual keys.
	Keys map[string]vm.Key

	PauseKey string
	StepKey  string
	ResetKey string
	QuitKey  string
}

// screen and streamTexture are the parts of *sdl.Renderer and *sdl.Texture
// that Present drives.
type screen interface {
	Clear() error
	Copy(texture *sdl.Texture, src, dst *sdl.Rect) error
	Present()
}

type streamTexture interface {
	Update(rect *sdl.Rect, pixels unsafe.Pointer, pitch int) error
}

type HAL struct {
	window          *sdl.Window
	renderer        *sdl.Renderer
	texture         *sdl.Texture
	screen          screen
	upload          streamTexture
	backBuffer      []uint32
	backBufferPitch int

	fgColor, bgColor uint32
	keys             map[sdl.Scancode]vm.Key
	controls         map[sdl.Scancode]vm.EventKind

	presented    uint64
	hasPresented bool
}

func New(opts Options) (*HAL, error) {
	keys, controls, err := scancodes(opts)
	if err != nil {
		return nil, err
	}

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, fmt.Errorf("failed to init sdl: %w", err)
	}

	width := int32(vm.ScreenWidth * opts.Scale)
	height := int32(vm.ScreenHeight * opts.Scale)

	window, err := sdl.CreateWindow("CHIP-8", sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, width, height, sdl.WINDOW_SHOWN)
	if err != nil {
		sdl.Quit()
		return nil, fmt.Errorf("failed to create sdl window: %w", err)
	}
	slog.Debug("hal: create window", "width", width, "height", height)

	hal := &HAL{
		window:          window,
		backBuffer:      make([]uint32, vm.ScreenWidth*vm.ScreenHeight),
		backBufferPitch: int(vm.ScreenWidth) * int(unsafe.Sizeof(uint32(0))),
		fgColor:         opts.Foreground,
		bgColor:         opts.Background,
		keys:            keys,
		controls:        controls,
	}

	hal.renderer, err = sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		hal.Shutdown()
		return nil, fmt.Errorf("failed to create sdl renderer: %w", err)
	}
	if err := hal.renderer.SetLogicalSize(width, height); err != nil {
		hal.Shutdown()
		return nil, fmt.Errorf("failed to resize sdl renderer: %w", err)
	}
	slog.Debug("hal: create renderer")

	hal.texture, err = hal.renderer.CreateTexture(sdl.PIXELFORMAT_ARGB8888, sdl.TEXTUREACCESS_STREAMING, vm.ScreenWidth, vm.ScreenHeight)
	if err != nil {
		hal.Shutdown()
		return nil, fmt.Errorf("failed to create sdl texture: %w", err)
	}
	slog.Debug("hal: create texture")

	hal.screen = hal.renderer
	hal.upload = hal.texture
	return hal, nil
}

// scancodes resolves configured key names before any SDL resource exists,
// so a typo fails fast.
func scancodes(opts Options) (map[sdl.Scancode]vm.Key, map[sdl.Scancode]vm.EventKind, error) {
	lookup := func(name string) (sdl.Scancode, error) {
		code := sdl.GetScancodeFromName(name)
		if code == sdl.SCANCODE_UNKNOWN {
			return 0, fmt.Errorf("%w: %q", ErrUnknownKey, name)
		}
		return code, nil
	}

	keys := make(map[sdl.Scancode]vm.Key, len(opts.Keys))
	for name, key := range opts.Keys {
		code, err := lookup(name)
		if err != nil {
			return nil, nil, err
		}
		keys[code] = key
	}

	controls := make(map[sdl.Scancode]vm.EventKind, 4)
	for _, control := range []struct {
		name string
		kind vm.EventKind
	}{
		{opts.PauseKey, vm.EventTogglePause},
		{opts.StepKey, vm.EventStep},
		{opts.ResetKey, vm.EventReset},
		{opts.QuitKey, vm.EventQuit},
	} {
		if control.name == "" {
			continue
		}
		code, err := lookup(control.name)
		if err != nil {
			return nil, nil, err
		}
		if _, taken := keys[code]; taken {
			return nil, nil, fmt.Errorf("control key %q is also mapped to the keypad", control.name)
		}
		if _, taken := controls[code]; taken {
			return nil, nil, fmt.Errorf("control key %q is bound to more than one control", control.name)
		}
		controls[code] = control.kind
	}

	return keys, controls, nil
}

func (hal *HAL) Shutdown() {
	if hal.texture != nil {
		if err := hal.texture.Destroy(); err != nil {
			slog.Error("failed to destroy sdl texture", "err", err)
		}
	}

	if hal.renderer != nil {
		if err := hal.renderer.Destroy(); err != nil {
			slog.Error("failed to destroy sdl renderer", "err", err)
		}
	}

	if hal.window != nil {
		if err := hal.window.Destroy(); err != nil {
			slog.Error("failed to destroy sdl window", "err", err)
		}
	}

	sdl.Quit()
}

// PollEvents drains the SDL queue, translating window and keyboard events.
func (hal *HAL) PollEvents(handle func(vm.Event)) error {
	for e := sdl.PollEvent(); e != nil; e = sdl.PollEvent() {
		switch e := e.(type) {
		case *sdl.QuitEvent:
			slog.Debug("hal: exit requested")
			handle(vm.Event{Kind: vm.EventQuit})

		case *sdl.KeyboardEvent:
			hal.processKey(e, handle)
		}
	}

	return nil
}

func (hal *HAL) processKey(e *sdl.KeyboardEvent, handle func(vm.Event)) {
	code := e.Keysym.Scancode

	if key, ok := hal.keys[code]; ok {
		kind := vm.EventKeyUp
		if e.Type == sdl.KEYDOWN {
			kind = vm.EventKeyDown
		}
		handle(vm.Event{Kind: kind, Key: key})
		return
	}

	// Controls fire once per press, ignoring auto-repeat.
	if kind, ok := hal.controls[code]; ok && e.Type == sdl.KEYDOWN && e.Repeat == 0 {
		handle(vm.Event{Kind: kind})
	}
}

// Present redraws the window every frame. The texture is re-uploaded only
// when the framebuffer changed since the last upload; the renderer back
// buffer is undefined after each present, so clear, copy and present always
// run.
func (hal *HAL) Present(d *vm.Display) error {
	if !hal.hasPresented || d.Version() != hal.presented {
		if err := hal.refresh(d); err != nil {
			return err
		}
	}

	if err := hal.screen.Clear(); err != nil {
		return fmt.Errorf("failed to clear sdl renderer: %w", err)
	}

	if err := hal.screen.Copy(hal.texture, nil, nil); err != nil {
		return fmt.Errorf("failed to copy sdl texture to renderer: %w", err)
	}

	hal.screen.Present()
	return nil
}

func (hal *HAL) refresh(d *vm.Display) error {
	fillBackBuffer(hal.backBuffer, d.Pixels(), hal.fgColor, hal.bgColor)

	backBufferPtr := unsafe.Pointer(&hal.backBuffer[0])
	if err := hal.upload.Update(nil, backBufferPtr, hal.backBufferPitch); err != nil {
		return fmt.Errorf("failed to update sdl texture: %w", err)
	}

	hal.presented = d.Version()
	hal.hasPresented = true
	return nil
}

func fillBackBuffer(dst []uint32, pixels []uint8, fg, bg uint32) {
	for i, px := range pixels {
		color := bg
		if px != 0 {
			color = fg
		}

		dst[i] = color
	}
}
