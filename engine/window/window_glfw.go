package window

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// glfwInitOnce initializes GLFW exactly once; with multiple output windows
// alive at a time, init and terminate cannot be tied to a single window's
// lifetime.
var (
	glfwInitOnce sync.Once
	glfwInitErr  error
	openWindows  int
	openMu       sync.Mutex
)

// glfwWindow holds the GLFW-specific window state.
type glfwWindow struct {
	parent  *engineWindow
	window  *glfw.Window
	running bool

	// windowed geometry restored when leaving fullscreen.
	restoreX, restoreY, restoreW, restoreH int
}

// newPlatformWindow creates the GLFW window and registers its callbacks.
//
// GLFW reference: https://www.glfw.org/docs/latest/window_guide.html
// go-gl/glfw: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw
func newPlatformWindow(w *engineWindow) error {
	runtime.LockOSThread()

	glfwInitOnce.Do(func() {
		glfwInitErr = glfw.Init()
	})
	if glfwInitErr != nil {
		return fmt.Errorf("failed to initialize GLFW: %v", glfwInitErr)
	}

	// WebGPU provides its own graphics API, so disable OpenGL context creation.
	// Reference: https://www.glfw.org/docs/latest/window_guide.html#window_hints_ctx
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	if w.decorated {
		glfw.WindowHint(glfw.Decorated, glfw.True)
	} else {
		glfw.WindowHint(glfw.Decorated, glfw.False)
	}

	var monitor *glfw.Monitor
	if w.fullscreen {
		monitor = findMonitor(w.monitorName)
		if monitor == nil {
			monitor = glfw.GetPrimaryMonitor()
		}
		if mode := monitor.GetVideoMode(); mode != nil {
			w.width = mode.Width
			w.height = mode.Height
		}
	}

	win, err := glfw.CreateWindow(w.width, w.height, w.title, monitor, nil)
	if err != nil {
		return fmt.Errorf("failed to create GLFW window: %v", err)
	}

	gw := &glfwWindow{
		parent:  w,
		window:  win,
		running: true,
	}
	w.internalWindow = gw

	openMu.Lock()
	openWindows++
	openMu.Unlock()

	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action == glfw.Press || action == glfw.Repeat {
			if w.onKeyDown != nil {
				w.onKeyDown(uint32(key))
			}
		}
	})

	win.SetCloseCallback(func(_ *glfw.Window) {
		gw.running = false
		if w.onClose != nil {
			w.onClose()
		}
	})

	// Use framebuffer size callback for pixel-accurate resize events.
	// On high-DPI displays the framebuffer size differs from window size
	// and the surface configuration needs pixel dimensions.
	// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Window.SetFramebufferSizeCallback
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.width = width
		w.height = height
		if w.onResize != nil {
			w.onResize(width, height)
		}
	})

	fbWidth, fbHeight := win.GetFramebufferSize()
	w.width = fbWidth
	w.height = fbHeight

	return nil
}

// findMonitor resolves a monitor by name, nil when absent.
func findMonitor(name string) *glfw.Monitor {
	if name == "" {
		return nil
	}
	for _, monitor := range glfw.GetMonitors() {
		if monitor.GetName() == name {
			return monitor
		}
	}
	return nil
}

// platformMonitorNames lists connected monitor names, primary first.
func platformMonitorNames() []string {
	glfwInitOnce.Do(func() {
		glfwInitErr = glfw.Init()
	})
	if glfwInitErr != nil {
		return nil
	}
	var names []string
	if primary := glfw.GetPrimaryMonitor(); primary != nil {
		names = append(names, primary.GetName())
	}
	for _, monitor := range glfw.GetMonitors() {
		name := monitor.GetName()
		if len(names) > 0 && names[0] == name {
			continue
		}
		names = append(names, name)
	}
	return names
}

// platformSetFullscreen applies the fullscreen state in place. The GLFW
// window object survives the transition, so the WebGPU surface stays valid
// and only needs reconfiguration for the new size.
func platformSetFullscreen(w *engineWindow, fullscreen bool, monitorName string) error {
	if w.internalWindow == nil {
		return fmt.Errorf("window is not initialized")
	}
	gw := w.internalWindow.(*glfwWindow)

	if fullscreen {
		monitor := findMonitor(monitorName)
		if monitor == nil && monitorName != "" {
			return fmt.Errorf("monitor %q not found", monitorName)
		}
		if monitor == nil {
			monitor = glfw.GetPrimaryMonitor()
		}
		if w.fullscreen && w.monitorName == monitor.GetName() {
			return nil // unchanged
		}
		if !w.fullscreen {
			gw.restoreX, gw.restoreY = gw.window.GetPos()
			gw.restoreW, gw.restoreH = gw.window.GetSize()
		}
		mode := monitor.GetVideoMode()
		gw.window.SetMonitor(monitor, 0, 0, mode.Width, mode.Height, mode.RefreshRate)
		w.fullscreen = true
		w.monitorName = monitor.GetName()
		return nil
	}

	if !w.fullscreen {
		return nil
	}
	width, height := gw.restoreW, gw.restoreH
	if width == 0 || height == 0 {
		width, height = 1280, 720
	}
	gw.window.SetMonitor(nil, gw.restoreX, gw.restoreY, width, height, 0)
	w.fullscreen = false
	w.monitorName = ""
	return nil
}

// platformGetSurfaceDescriptor creates a platform-appropriate wgpu.SurfaceDescriptor from the GLFW window.
// Uses the wgpuglfw bridge package which has per-platform implementations (Windows, X11, Wayland, macOS).
//
// Reference: https://pkg.go.dev/github.com/cogentcore/webgpu/wgpuglfw#GetSurfaceDescriptor
func platformGetSurfaceDescriptor(w *engineWindow) *wgpu.SurfaceDescriptor {
	if w.internalWindow == nil {
		return nil
	}
	gw := w.internalWindow.(*glfwWindow)
	return wgpuglfw.GetSurfaceDescriptor(gw.window)
}

// platformIsRunningCheck returns whether the GLFW window is still active.
func platformIsRunningCheck(w *engineWindow) bool {
	if w.internalWindow == nil {
		return false
	}
	gw := w.internalWindow.(*glfwWindow)
	return gw.running && !gw.window.ShouldClose()
}

// platformCloseWindow destroys the GLFW window. GLFW stays initialized; only
// the open-window count is updated.
func platformCloseWindow(w *engineWindow) error {
	if w.internalWindow == nil {
		return fmt.Errorf("window is not initialized")
	}
	gw := w.internalWindow.(*glfwWindow)
	gw.running = false
	gw.window.SetShouldClose(true)
	gw.window.Destroy()
	w.internalWindow = nil

	openMu.Lock()
	openWindows--
	openMu.Unlock()
	return nil
}

// platformPollEvents polls GLFW for pending events across every window
// without blocking.
//
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#PollEvents
func platformPollEvents() {
	glfw.PollEvents()
}
