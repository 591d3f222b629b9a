// Package window provides platform windowing for the control window and
// every physical output, and keeps the set of open windows synchronized
// with the output configuration.
package window

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// Window provides platform windowing and the surface descriptor WebGPU
// needs. Wraps the platform-specific implementation with a common
// interface.
type Window interface {
	// SetResizeCallback sets the function called when the framebuffer is
	// resized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetKeyDownCallback sets the callback for key press events, used by
	// the shortcut trigger frontend.
	//
	// Parameters:
	//   - callback: function receiving the virtual key code
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetCloseCallback sets the function called when the user closes the
	// window.
	SetCloseCallback(callback func())

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for creating a WebGPU surface.
	// The descriptor is platform-appropriate (Windows HWND, X11 Xlib, Wayland, macOS Metal, etc.)
	// and is created by the wgpuglfw bridge from the underlying GLFW window.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor, or nil if window is not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning returns true if the window is still active.
	IsRunning() bool

	// Close destroys the window and releases its platform resources.
	//
	// Returns:
	//   - error: error if close operation fails
	Close() error

	// Width returns the current framebuffer width in pixels.
	Width() int

	// Height returns the current framebuffer height in pixels.
	Height() int

	// Title returns the window title.
	Title() string

	// SetFullscreen moves the window into (or out of) borderless
	// fullscreen on the named monitor. An empty monitor name selects the
	// primary monitor. Re-applying an unchanged state is cheap and does
	// not recreate the surface.
	//
	// Parameters:
	//   - fullscreen: target state
	//   - monitorName: monitor to occupy, empty for the primary one
	//
	// Returns:
	//   - error: unknown monitor
	SetFullscreen(fullscreen bool, monitorName string) error

	// IsFullscreen reports the current fullscreen state.
	IsFullscreen() bool

	// MonitorName returns the name of the monitor the window occupies in
	// fullscreen, or empty when windowed.
	MonitorName() string
}

// engineWindow is the implementation of the Window interface.
type engineWindow struct {
	title  string
	width  int
	height int

	fullscreen  bool
	monitorName string
	decorated   bool

	onResize  func(width, height int)
	onKeyDown func(keyCode uint32)
	onClose   func()

	internalWindow any
}

var _ Window = &engineWindow{}

// NewWindow creates a platform window with the provided options.
//
// Parameters:
//   - options: functional options for window configuration
//
// Returns:
//   - Window: the created window
//   - error: platform window creation failure
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		title:     "MapFlow",
		width:     1280,
		height:    720,
		decorated: true,
	}
	for _, opt := range options {
		opt(w)
	}

	if err := newPlatformWindow(w); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *engineWindow) SetCloseCallback(callback func()) {
	w.onClose = callback
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) Width() int { return w.width }

func (w *engineWindow) Height() int { return w.height }

func (w *engineWindow) Title() string { return w.title }

func (w *engineWindow) SetFullscreen(fullscreen bool, monitorName string) error {
	return platformSetFullscreen(w, fullscreen, monitorName)
}

func (w *engineWindow) IsFullscreen() bool { return w.fullscreen }

func (w *engineWindow) MonitorName() string {
	if !w.fullscreen {
		return ""
	}
	return w.monitorName
}

// PollEvents pumps the platform event loop for every open window. Called
// once per frame on the main thread.
func PollEvents() {
	platformPollEvents()
}

// MonitorNames lists the connected monitors by name, primary first.
func MonitorNames() []string {
	return platformMonitorNames()
}
