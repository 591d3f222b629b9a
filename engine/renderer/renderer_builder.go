package renderer

import "github.com/cogentcore/webgpu/wgpu"

// BackendBuilderOption is a functional option used to configure a Backend during construction.
type BackendBuilderOption func(*wgpuBackend)

// WithPresentMode sets the surface present mode used for every configured
// surface. Fifo (vsync) is the default; Immediate uncaps presentation.
//
// Parameters:
//   - mode: the wgpu present mode
//
// Returns:
//   - BackendBuilderOption: a function that sets the present mode
func WithPresentMode(mode wgpu.PresentMode) BackendBuilderOption {
	return func(b *wgpuBackend) {
		b.presentMode = mode
	}
}
