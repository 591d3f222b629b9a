package media

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Priority orders frames in the optional priority scheduler and names the
// relative importance of pipeline stages.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityNormal:
		return "Normal"
	case PriorityHigh:
		return "High"
	case PriorityCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// PipelineConfig tunes one decode pipeline.
type PipelineConfig struct {
	// QueueDepth is the bounded buffer size between decode and upload.
	// Three frames gives triple buffering.
	QueueDepth int
	// EnableFrameDrop makes a full queue drop the newest frame instead of
	// blocking the decode thread.
	EnableFrameDrop bool
	// DecodePriority tags frames produced by the decode stage.
	DecodePriority Priority
	// UploadPriority is the importance of the upload stage relative to
	// other pipelines sharing the upload worker.
	UploadPriority Priority
}

// DefaultPipelineConfig returns the triple-buffered, frame-dropping default.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		QueueDepth:      3,
		EnableFrameDrop: true,
		DecodePriority:  PriorityNormal,
		UploadPriority:  PriorityHigh,
	}
}

// PipelineFrame pairs a decoded frame with its pipeline bookkeeping.
type PipelineFrame struct {
	Frame    VideoFrame
	Sequence uint64
	Priority Priority
}

// PipelineStats is a snapshot of one pipeline's counters.
type PipelineStats struct {
	DecodedFrames  uint64
	UploadedFrames uint64
	DroppedFrames  uint64
	DecodeTimeMs   float64
	UploadTimeMs   float64
}

// FramePipeline owns one media source's decode thread and its bounded queue
// toward the shared upload worker. The pipeline's texture pool slot is named
// part_<module>_<part>.
type FramePipeline struct {
	slot   string
	config PipelineConfig

	frames chan PipelineFrame

	running atomic.Bool
	quit    chan struct{}
	wg      sync.WaitGroup

	decoded      atomic.Uint64
	uploaded     atomic.Uint64
	dropped      atomic.Uint64
	decodeMicros atomic.Int64
	uploadMicros atomic.Int64
}

// NewFramePipeline creates a stopped pipeline for the given module part.
//
// Parameters:
//   - moduleID: owning module
//   - partID: owning source part
//   - options: functional options for pipeline configuration
//
// Returns:
//   - *FramePipeline: the pipeline, ready for Start
func NewFramePipeline(moduleID, partID uint64, options ...PipelineBuilderOption) *FramePipeline {
	p := &FramePipeline{
		slot:   fmt.Sprintf("part_%d_%d", moduleID, partID),
		config: DefaultPipelineConfig(),
		quit:   make(chan struct{}),
	}
	for _, opt := range options {
		opt(p)
	}
	if p.config.QueueDepth <= 0 {
		p.config.QueueDepth = 1
	}
	p.frames = make(chan PipelineFrame, p.config.QueueDepth)
	return p
}

// SlotName returns the texture pool slot this pipeline fills.
func (p *FramePipeline) SlotName() string { return p.slot }

// Config returns the pipeline configuration.
func (p *FramePipeline) Config() PipelineConfig { return p.config }

// Frames exposes the bounded decode output queue to the upload worker.
func (p *FramePipeline) Frames() <-chan PipelineFrame { return p.frames }

// Start launches the decode goroutine feeding from player. The goroutine
// throttles itself to the decoder's frame rate and exits when Stop is
// called. Starting a running pipeline is a no-op.
//
// Parameters:
//   - player: the playback state driving the decoder
func (p *FramePipeline) Start(player *VideoPlayer) {
	if !p.running.CompareAndSwap(false, true) {
		log.Printf("media: decode thread for %s already running", p.slot)
		return
	}

	p.wg.Add(1)
	go p.decodeLoop(player)
	log.Printf("media: decode thread started for %s", p.slot)
}

func (p *FramePipeline) decodeLoop(player *VideoPlayer) {
	defer p.wg.Done()

	var sequence uint64
	last := time.Now()

	for p.running.Load() {
		start := time.Now()
		dt := start.Sub(last)
		last = start

		frame := player.Update(dt)
		if frame != nil {
			pf := PipelineFrame{
				Frame:    *frame,
				Sequence: sequence,
				Priority: p.config.DecodePriority,
			}

			if p.config.EnableFrameDrop {
				select {
				case p.frames <- pf:
					sequence++
					p.decoded.Add(1)
					p.decodeMicros.Store(time.Since(start).Microseconds())
				default:
					p.dropped.Add(1)
				}
			} else {
				select {
				case p.frames <- pf:
					sequence++
					p.decoded.Add(1)
					p.decodeMicros.Store(time.Since(start).Microseconds())
				case <-p.quit:
					return
				}
			}
		}

		// Throttle to approximately the source frame rate.
		frameDuration := time.Second / 30
		if fps := player.decoder.FPS(); fps > 0 {
			frameDuration = time.Duration(float64(time.Second) / fps)
		}
		if elapsed := time.Since(start); elapsed < frameDuration {
			select {
			case <-time.After(frameDuration - elapsed):
			case <-p.quit:
				return
			}
		}
	}
}

// Stop signals the decode goroutine and joins it. In-flight frames left in
// the queue are discarded by the upload worker once the pipeline is
// unregistered. Safe to call multiple times.
func (p *FramePipeline) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.quit)
	p.wg.Wait()
	log.Printf("media: decode thread stopped for %s", p.slot)
}

// Running reports whether the decode goroutine is active.
func (p *FramePipeline) Running() bool { return p.running.Load() }

// Stats returns a snapshot of the pipeline counters.
func (p *FramePipeline) Stats() PipelineStats {
	return PipelineStats{
		DecodedFrames:  p.decoded.Load(),
		UploadedFrames: p.uploaded.Load(),
		DroppedFrames:  p.dropped.Load(),
		DecodeTimeMs:   float64(p.decodeMicros.Load()) / 1000.0,
		UploadTimeMs:   float64(p.uploadMicros.Load()) / 1000.0,
	}
}

func (p *FramePipeline) markUploaded(elapsed time.Duration) {
	p.uploaded.Add(1)
	p.uploadMicros.Store(elapsed.Microseconds())
}

func (p *FramePipeline) markDropped() {
	p.dropped.Add(1)
}
