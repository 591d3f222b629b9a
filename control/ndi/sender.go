// Package ndi exposes engine outputs as NDI streams. The NDI SDK's
// frame-push API sits behind the FrameSender interface; the engine converts
// output targets to BGRA frames and hands them over.
package ndi

import (
	"fmt"
	"log"
	"sync"

	"github.com/MrLongNight/mapflow-go/engine/media"
)

// FrameSender is the boundary to the NDI library. Implementations own the
// sender instance registered on the network under a stream name.
type FrameSender interface {
	// Push submits one video frame to the stream.
	//
	// Parameters:
	//   - frame: a BGRA8 frame
	//
	// Returns:
	//   - error: submission failure
	Push(frame media.VideoFrame) error

	// Close unregisters the stream.
	Close() error
}

// SourceInfo describes a discovered NDI source on the network.
type SourceInfo struct {
	Name    string
	Address string
}

// Discovery finds NDI sources for input parts.
type Discovery interface {
	// Sources returns the currently visible NDI sources.
	Sources() ([]SourceInfo, error)
}

// Output wraps one named NDI stream fed from an engine output target.
type Output struct {
	name   string
	sender FrameSender

	mu     sync.Mutex
	frames uint64
}

// NewOutput creates an NDI output pushing through the given sender.
//
// Parameters:
//   - name: the stream name shown on the network
//   - sender: the frame-push implementation
//
// Returns:
//   - *Output: the output
func NewOutput(name string, sender FrameSender) *Output {
	log.Printf("ndi: output %q created", name)
	return &Output{name: name, sender: sender}
}

// Name returns the stream name.
func (o *Output) Name() string { return o.name }

// FrameCount returns the number of frames pushed so far.
func (o *Output) FrameCount() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.frames
}

// PushFrame validates and forwards one frame. Frames must be BGRA8, the
// layout NDI consumes without conversion.
//
// Parameters:
//   - frame: the frame to push
//
// Returns:
//   - error: validation or submission failure
func (o *Output) PushFrame(frame media.VideoFrame) error {
	if frame.Format.PixelFormat != media.PixelFormatBGRA8 {
		return fmt.Errorf("ndi output %q requires BGRA8 frames, got %s", o.name, frame.Format.PixelFormat)
	}
	if err := frame.Validate(); err != nil {
		return fmt.Errorf("ndi output %q rejected frame: %w", o.name, err)
	}
	if err := o.sender.Push(frame); err != nil {
		return fmt.Errorf("ndi output %q push failed: %w", o.name, err)
	}
	o.mu.Lock()
	o.frames++
	o.mu.Unlock()
	return nil
}

// Close unregisters the stream.
func (o *Output) Close() error {
	log.Printf("ndi: output %q closed", o.name)
	return o.sender.Close()
}

// RGBAToBGRA converts RGBA pixel bytes to BGRA in place and returns the
// slice for convenience.
func RGBAToBGRA(pixels []byte) []byte {
	for i := 0; i+3 < len(pixels); i += 4 {
		pixels[i], pixels[i+2] = pixels[i+2], pixels[i]
	}
	return pixels
}
