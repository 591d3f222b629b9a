// Package texture_pool maps stable names to GPU textures. Sources upload
// into named slots; the compositor and mesh renderer look the same slots up
// by name. Slots are created lazily, reallocated on shape change, and
// reaped two frames after they stop being referenced so in-flight GPU work
// can finish.
package texture_pool

import (
	"fmt"
	"log"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// reapDelayFrames is how many frame boundaries a resource survives after
// losing its last reference.
const reapDelayFrames = 2

// Pool is the named texture registry. Reads are safe from any thread;
// writes are serialized through the internal mutex and the GPU queue's own
// write synchronization.
type Pool interface {
	// Ensure returns the slot's texture view, creating the texture if
	// absent and reallocating it when the requested shape differs. An
	// unchanged shape returns the identical view pointer.
	//
	// Parameters:
	//   - name: slot name
	//   - width, height: texture size in pixels
	//   - format: texture format
	//   - usage: texture usage flags
	//
	// Returns:
	//   - *wgpu.TextureView: the slot's view
	//   - error: texture creation failure (fatal for this slot)
	Ensure(name string, width, height uint32, format wgpu.TextureFormat, usage wgpu.TextureUsage) (*wgpu.TextureView, error)

	// Upload writes contiguous pixel rows into an existing slot. A size or
	// format mismatch invalidates the slot: the upload is rejected and the
	// next Ensure recreates the texture.
	//
	// Parameters:
	//   - name: slot name
	//   - data: pixel rows, len == width*height*bytesPerPixel
	//   - width, height: frame size in pixels
	//   - bytesPerPixel: source format stride divisor
	//
	// Returns:
	//   - error: missing slot or shape mismatch
	Upload(name string, data []byte, width, height uint32, bytesPerPixel int) error

	// EnsureAndUpload combines Ensure and Upload for the media upload
	// worker: the slot is created or reshaped to match the frame, then
	// filled.
	EnsureAndUpload(name string, data []byte, width, height uint32, bytesPerPixel int) error

	// Has reports whether a live slot exists under the name.
	Has(name string) bool

	// View returns the slot's view, or nil when absent.
	View(name string) *wgpu.TextureView

	// Invalidate drops a slot; its GPU resources die at the usual deferred
	// boundary.
	Invalidate(name string)

	// BeginFrame advances the pool's frame counter, reaping resources
	// whose deferred destruction has matured and slots untouched for the
	// reap window. Called once per frame on the render thread.
	//
	// Parameters:
	//   - frame: the engine's monotonically increasing frame index
	BeginFrame(frame uint64)

	// Release frees every slot immediately. Only safe after the device is
	// idle.
	Release()
}

// DeviceQueue is the slice of the renderer backend the pool needs.
type DeviceQueue interface {
	Device() *wgpu.Device
	Queue() *wgpu.Queue
}

type slot struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
	width   uint32
	height  uint32
	format  wgpu.TextureFormat
	usage   wgpu.TextureUsage

	lastTouched uint64
	broken      bool
}

type grave struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
	frame   uint64
}

type pool struct {
	mu    sync.RWMutex
	slots map[string]*slot
	dead  []grave
	frame uint64

	// GPU entry points, replaceable for bookkeeping tests.
	create  func(name string, width, height uint32, format wgpu.TextureFormat, usage wgpu.TextureUsage) (*wgpu.Texture, *wgpu.TextureView, error)
	write   func(s *slot, data []byte, width, height uint32, bytesPerPixel int)
	destroy func(texture *wgpu.Texture, view *wgpu.TextureView)
}

var _ Pool = &pool{}

// NewPool creates a pool allocating on the given device and uploading
// through its queue.
//
// Parameters:
//   - gpu: the device/queue provider (the renderer backend)
//
// Returns:
//   - Pool: the pool
func NewPool(gpu DeviceQueue) Pool {
	p := newPoolCore()
	p.create = func(name string, width, height uint32, format wgpu.TextureFormat, usage wgpu.TextureUsage) (*wgpu.Texture, *wgpu.TextureView, error) {
		texture, err := gpu.Device().CreateTexture(&wgpu.TextureDescriptor{
			Label: name,
			Size: wgpu.Extent3D{
				Width:              width,
				Height:             height,
				DepthOrArrayLayers: 1,
			},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     wgpu.TextureDimension2D,
			Format:        format,
			Usage:         usage,
		})
		if err != nil {
			return nil, nil, err
		}
		view, err := texture.CreateView(nil)
		if err != nil {
			texture.Release()
			return nil, nil, err
		}
		return texture, view, nil
	}
	p.write = func(s *slot, data []byte, width, height uint32, bytesPerPixel int) {
		gpu.Queue().WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  s.texture,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{},
				Aspect:   wgpu.TextureAspectAll,
			},
			data,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  width * uint32(bytesPerPixel),
				RowsPerImage: height,
			},
			&wgpu.Extent3D{
				Width:              width,
				Height:             height,
				DepthOrArrayLayers: 1,
			},
		)
	}
	p.destroy = func(texture *wgpu.Texture, view *wgpu.TextureView) {
		if view != nil {
			view.Release()
		}
		if texture != nil {
			texture.Release()
		}
	}
	return p
}

func newPoolCore() *pool {
	return &pool{slots: make(map[string]*slot)}
}

func (p *pool) Ensure(name string, width, height uint32, format wgpu.TextureFormat, usage wgpu.TextureUsage) (*wgpu.TextureView, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.slots[name]; ok && !s.broken {
		if s.width == width && s.height == height && s.format == format && s.usage == usage {
			s.lastTouched = p.frame
			return s.view, nil
		}
		// Shape changed: retire the old resource and fall through to
		// recreate. Live references keep observing the old texture until
		// their in-flight frames retire.
		p.buryLocked(s)
		delete(p.slots, name)
	} else if ok {
		p.buryLocked(s)
		delete(p.slots, name)
	}

	texture, view, err := p.create(name, width, height, format, usage)
	if err != nil {
		return nil, fmt.Errorf("failed to create texture %q (%dx%d): %w", name, width, height, err)
	}
	p.slots[name] = &slot{
		texture:     texture,
		view:        view,
		width:       width,
		height:      height,
		format:      format,
		usage:       usage,
		lastTouched: p.frame,
	}
	return view, nil
}

func (p *pool) Upload(name string, data []byte, width, height uint32, bytesPerPixel int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.slots[name]
	if !ok {
		return fmt.Errorf("texture slot %q does not exist", name)
	}
	if s.broken {
		return fmt.Errorf("texture slot %q is invalidated", name)
	}
	if s.width != width || s.height != height {
		// Fatal for the slot: it no longer matches its producer.
		s.broken = true
		return fmt.Errorf("upload to %q mismatches slot shape: slot %dx%d, frame %dx%d",
			name, s.width, s.height, width, height)
	}
	expected := int(width) * int(height) * bytesPerPixel
	if len(data) < expected {
		s.broken = true
		return fmt.Errorf("upload to %q short by %d bytes", name, expected-len(data))
	}

	p.write(s, data, width, height, bytesPerPixel)
	s.lastTouched = p.frame
	return nil
}

func (p *pool) EnsureAndUpload(name string, data []byte, width, height uint32, bytesPerPixel int) error {
	usage := wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst
	if _, err := p.Ensure(name, width, height, wgpu.TextureFormatRGBA8Unorm, usage); err != nil {
		return err
	}
	return p.Upload(name, data, width, height, bytesPerPixel)
}

func (p *pool) Has(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.slots[name]
	return ok && !s.broken
}

func (p *pool) View(name string) *wgpu.TextureView {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.slots[name]; ok && !s.broken {
		// A lookup counts as a reference: renderers resolve their slots
		// every frame, so untouched slots really are unreferenced.
		s.lastTouched = p.frame
		return s.view
	}
	return nil
}

func (p *pool) Invalidate(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.slots[name]; ok {
		p.buryLocked(s)
		delete(p.slots, name)
	}
}

func (p *pool) BeginFrame(frame uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frame = frame

	// Reap retired resources whose grace period has passed.
	remaining := p.dead[:0]
	for _, g := range p.dead {
		if frame >= g.frame+reapDelayFrames {
			p.destroy(g.texture, g.view)
		} else {
			remaining = append(remaining, g)
		}
	}
	p.dead = remaining

	// Retire slots nobody touched for the reap window.
	for name, s := range p.slots {
		if s.broken || frame >= s.lastTouched+reapDelayFrames+1 {
			if s.broken {
				log.Printf("texture_pool: dropping invalidated slot %q", name)
			}
			p.buryLocked(s)
			delete(p.slots, name)
		}
	}
}

// buryLocked queues a slot's GPU resources for destruction at the deferred
// boundary. Caller holds the write lock.
func (p *pool) buryLocked(s *slot) {
	p.dead = append(p.dead, grave{texture: s.texture, view: s.view, frame: p.frame})
}

func (p *pool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, s := range p.slots {
		p.destroy(s.texture, s.view)
		delete(p.slots, name)
	}
	for _, g := range p.dead {
		p.destroy(g.texture, g.view)
	}
	p.dead = nil
}
