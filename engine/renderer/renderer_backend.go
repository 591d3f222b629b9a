// Package renderer owns the GPU: device acquisition, per-output surface
// configuration, and offscreen render target creation. One render thread
// owns all submission; other threads reach the GPU only through the texture
// pool's serialized upload path.
package renderer

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// DeviceError reports a failure to acquire a GPU adapter, device, or
// surface. It is fatal for startup: every backend in the preference order
// was tried.
type DeviceError struct {
	Stage string
	Err   error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("gpu %s failed: %v", e.Stage, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Backend is the device-level GPU interface shared by every output window.
type Backend interface {
	// Device returns the GPU device.
	Device() *wgpu.Device

	// Queue returns the submission queue.
	Queue() *wgpu.Queue

	// Instance returns the owning instance, used to create more surfaces.
	Instance() *wgpu.Instance

	// SurfaceFormat returns the preferred texture format of the primary
	// surface. Every render target and pipeline in the engine targets it.
	SurfaceFormat() wgpu.TextureFormat

	// CreateSurface creates a surface from a platform descriptor.
	//
	// Parameters:
	//   - descriptor: platform-specific surface descriptor from the window layer
	//
	// Returns:
	//   - *wgpu.Surface: the created surface
	CreateSurface(descriptor *wgpu.SurfaceDescriptor) *wgpu.Surface

	// ConfigureSurface (re)configures a surface for the given pixel size.
	// Must be called before the first acquire and after every resize;
	// rendering onto an unconfigured surface is a hard error.
	//
	// Parameters:
	//   - surface: the surface to configure
	//   - width, height: framebuffer size in pixels
	ConfigureSurface(surface *wgpu.Surface, width, height int)

	// CreateRenderTarget creates an offscreen color target that can also be
	// sampled (compositor intermediates, effect ping-pong buffers, output
	// canvases, preview thumbnails).
	//
	// Parameters:
	//   - label: debug label
	//   - width, height: size in pixels
	//
	// Returns:
	//   - *wgpu.Texture: the texture (caller releases)
	//   - *wgpu.TextureView: its view
	//   - error: creation failure
	CreateRenderTarget(label string, width, height uint32) (*wgpu.Texture, *wgpu.TextureView, error)

	// Release frees the device-level resources.
	Release()
}

type wgpuBackend struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	primarySurface *wgpu.Surface
	surfaceFormat  wgpu.TextureFormat
	presentMode    wgpu.PresentMode
}

var _ Backend = &wgpuBackend{}

// NewBackend acquires an adapter and device compatible with the given
// primary surface descriptor (normally the control window's). A hardware
// adapter is requested first; the fallback adapter is tried before giving
// up with a DeviceError.
//
// Parameters:
//   - surfaceDescriptor: the control window's surface descriptor
//   - options: functional options for backend configuration
//
// Returns:
//   - Backend: the backend
//   - error: *DeviceError when no adapter or device could be acquired
func NewBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, options ...BackendBuilderOption) (Backend, error) {
	b := &wgpuBackend{
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeFifo,
	}
	for _, opt := range options {
		opt(b)
	}

	b.primarySurface = b.instance.CreateSurface(surfaceDescriptor)

	adapter, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: b.primarySurface,
	})
	if err != nil {
		// Hardware adapters exhausted; try the fallback (software)
		// adapter before failing startup.
		adapter, err = b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
			CompatibleSurface:    b.primarySurface,
			ForceFallbackAdapter: true,
		})
		if err != nil {
			return nil, &DeviceError{Stage: "adapter selection", Err: err}
		}
	}
	b.adapter = adapter

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, &DeviceError{Stage: "device creation", Err: err}
	}
	b.device = device
	b.queue = device.GetQueue()

	capabilities := b.primarySurface.GetCapabilities(b.adapter)
	b.surfaceFormat = capabilities.Formats[0]

	return b, nil
}

func (b *wgpuBackend) Device() *wgpu.Device     { return b.device }
func (b *wgpuBackend) Queue() *wgpu.Queue       { return b.queue }
func (b *wgpuBackend) Instance() *wgpu.Instance { return b.instance }

func (b *wgpuBackend) SurfaceFormat() wgpu.TextureFormat { return b.surfaceFormat }

func (b *wgpuBackend) CreateSurface(descriptor *wgpu.SurfaceDescriptor) *wgpu.Surface {
	return b.instance.CreateSurface(descriptor)
}

func (b *wgpuBackend) ConfigureSurface(surface *wgpu.Surface, width, height int) {
	capabilities := surface.GetCapabilities(b.adapter)
	format := b.surfaceFormat
	if len(capabilities.Formats) > 0 {
		format = capabilities.Formats[0]
	}
	surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
}

func (b *wgpuBackend) CreateRenderTarget(label string, width, height uint32) (*wgpu.Texture, *wgpu.TextureView, error) {
	texture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        b.surfaceFormat,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create render target %q: %w", label, err)
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return nil, nil, fmt.Errorf("failed to create view for %q: %w", label, err)
	}
	return texture, view, nil
}

func (b *wgpuBackend) Release() {
	if b.device != nil {
		b.device.Release()
	}
	if b.adapter != nil {
		b.adapter.Release()
	}
	if b.instance != nil {
		b.instance.Release()
	}
}
