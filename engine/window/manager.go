package window

import (
	"fmt"
	"log"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/MrLongNight/mapflow-go/engine/output"
	"github.com/MrLongNight/mapflow-go/engine/renderer"
)

// ControlWindowID is the reserved output ID of the control window. It is
// created once and never destroyed by SyncWindows.
const ControlWindowID output.ID = 0

// Context pairs one output's window with its configured surface.
type Context struct {
	OutputID output.ID
	Window   Window
	Surface  *wgpu.Surface

	// configured tracks whether the surface matches the current size;
	// rendering onto an unconfigured surface is a hard error.
	configured    bool
	surfaceWidth  int
	surfaceHeight int
}

// Configured reports whether the surface is ready to acquire.
func (c *Context) Configured() bool { return c.configured }

// AcquireFrame returns the surface texture and view for this frame.
//
// Returns:
//   - *wgpu.Texture: the surface texture (released by Present)
//   - *wgpu.TextureView: its view
//   - error: unconfigured surface or acquisition failure
func (c *Context) AcquireFrame() (*wgpu.Texture, *wgpu.TextureView, error) {
	if !c.configured {
		return nil, nil, fmt.Errorf("surface of output %d is not configured", c.OutputID)
	}
	texture, err := c.Surface.GetCurrentTexture()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to acquire surface texture for output %d: %w", c.OutputID, err)
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return nil, nil, fmt.Errorf("failed to create surface view for output %d: %w", c.OutputID, err)
	}
	return texture, view, nil
}

// Present presents the surface and releases the frame's acquisition.
func (c *Context) Present(texture *wgpu.Texture, view *wgpu.TextureView) {
	c.Surface.Present()
	if view != nil {
		view.Release()
	}
	if texture != nil {
		texture.Release()
	}
}

// Manager owns one window per enabled output plus the control window, and
// keeps that set synchronized with the output configuration.
type Manager struct {
	backend  renderer.Backend
	contexts map[output.ID]*Context
}

// NewManager wraps an already created control window into a manager.
//
// Parameters:
//   - backend: the GPU backend surfaces are created on
//   - controlWindow: the UI window (never destroyed by SyncWindows)
//
// Returns:
//   - *Manager: the manager with the control context registered
func NewManager(backend renderer.Backend, controlWindow Window) *Manager {
	m := &Manager{
		backend:  backend,
		contexts: make(map[output.ID]*Context),
	}
	m.register(ControlWindowID, controlWindow)
	return m
}

// register creates and configures the surface for a window.
func (m *Manager) register(id output.ID, w Window) *Context {
	ctx := &Context{
		OutputID: id,
		Window:   w,
		Surface:  m.backend.CreateSurface(w.SurfaceDescriptor()),
	}
	m.configure(ctx, w.Width(), w.Height())

	w.SetResizeCallback(func(width, height int) {
		m.configure(ctx, width, height)
	})

	m.contexts[id] = ctx
	return ctx
}

func (m *Manager) configure(ctx *Context, width, height int) {
	if width <= 0 || height <= 0 {
		ctx.configured = false
		return
	}
	m.backend.ConfigureSurface(ctx.Surface, width, height)
	ctx.configured = true
	ctx.surfaceWidth = width
	ctx.surfaceHeight = height
}

// Context returns the context for an output ID, or nil.
func (m *Manager) Context(id output.ID) *Context {
	return m.contexts[id]
}

// ControlContext returns the control window's context.
func (m *Manager) ControlContext() *Context {
	return m.contexts[ControlWindowID]
}

// Live returns every context whose window is still running, control window
// included.
func (m *Manager) Live() []*Context {
	contexts := make([]*Context, 0, len(m.contexts))
	for _, ctx := range m.contexts {
		if ctx.Window.IsRunning() {
			contexts = append(contexts, ctx)
		}
	}
	return contexts
}

// SyncWindows reconciles the open windows with the output configuration:
// enabled outputs get a window on their configured monitor, disabled or
// removed outputs lose theirs, and fullscreen changes re-apply without
// recreating the surface. The control window is never touched.
//
// Parameters:
//   - manager: the output configuration
//
// Returns:
//   - error: the first window creation failure; remaining outputs are
//     still processed
func (m *Manager) SyncWindows(manager *output.Manager) error {
	var firstErr error

	for i := range manager.Outputs {
		cfg := &manager.Outputs[i]
		ctx, exists := m.contexts[cfg.ID]

		if !cfg.Enabled {
			if exists {
				m.destroy(cfg.ID, ctx)
			}
			continue
		}

		if !exists {
			w, err := NewWindow(
				WithTitle(cfg.Name),
				WithSize(int(cfg.Resolution[0]), int(cfg.Resolution[1])),
				WithDecorations(false),
			)
			if err != nil {
				log.Printf("window: failed to create output window %d: %v", cfg.ID, err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			ctx = m.register(cfg.ID, w)
			log.Printf("window: created output window %d (%s)", cfg.ID, cfg.Name)
		}

		// Apply monitor binding and fullscreen in place; the surface
		// survives and is reconfigured by the resize callback.
		if err := ctx.Window.SetFullscreen(cfg.Fullscreen, cfg.MonitorName); err != nil {
			log.Printf("window: fullscreen update for output %d failed: %v", cfg.ID, err)
		}
	}

	// Remove windows whose outputs no longer exist.
	for id, ctx := range m.contexts {
		if id == ControlWindowID {
			continue
		}
		if manager.Output(id) == nil {
			m.destroy(id, ctx)
		}
	}

	return firstErr
}

func (m *Manager) destroy(id output.ID, ctx *Context) {
	if err := ctx.Window.Close(); err != nil {
		log.Printf("window: close of output %d failed: %v", id, err)
	}
	delete(m.contexts, id)
	log.Printf("window: removed output window %d", id)
}

// CloseAll destroys every window including the control window. Used at
// shutdown only.
func (m *Manager) CloseAll() {
	for id, ctx := range m.contexts {
		if err := ctx.Window.Close(); err != nil {
			log.Printf("window: close of %d failed: %v", id, err)
		}
		delete(m.contexts, id)
	}
}
