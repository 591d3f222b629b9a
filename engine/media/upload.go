package media

import (
	"log"
	"sync"
	"time"
)

// TextureUploader is the surface the upload worker needs from the GPU layer.
// The texture pool implements it on the render queue.
type TextureUploader interface {
	// EnsureAndUpload guarantees a slot of the given shape exists and
	// writes the frame's pixel rows into it.
	//
	// Parameters:
	//   - name: texture pool slot name
	//   - data: contiguous pixel rows
	//   - width, height: frame dimensions in pixels
	//   - bytesPerPixel: row stride divisor of the pixel format
	//
	// Returns:
	//   - error: slot creation or upload failure
	EnsureAndUpload(name string, data []byte, width, height uint32, bytesPerPixel int) error
}

// UploadWorker drains decoded frames from every registered pipeline and
// writes them into the texture pool. One worker goroutine is shared across
// sources; within a source, frames are uploaded strictly in sequence order
// and late arrivals are discarded.
type UploadWorker struct {
	uploader TextureUploader

	mu        sync.Mutex
	pipelines map[string]*FramePipeline
	lastSeq   map[string]uint64

	running bool
	quit    chan struct{}
	wg      sync.WaitGroup
}

// NewUploadWorker creates a stopped upload worker targeting the given uploader.
func NewUploadWorker(uploader TextureUploader) *UploadWorker {
	return &UploadWorker{
		uploader:  uploader,
		pipelines: make(map[string]*FramePipeline),
		lastSeq:   make(map[string]uint64),
	}
}

// Register adds a pipeline to the drain set.
func (w *UploadWorker) Register(p *FramePipeline) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pipelines[p.SlotName()] = p
	delete(w.lastSeq, p.SlotName())
}

// Unregister removes a pipeline; frames still queued are dropped.
func (w *UploadWorker) Unregister(p *FramePipeline) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pipelines, p.SlotName())
	delete(w.lastSeq, p.SlotName())
}

// Start launches the shared upload goroutine. No-op when already running.
func (w *UploadWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.quit = make(chan struct{})
	w.wg.Add(1)
	go w.loop()
	log.Printf("media: upload worker started")
}

// Stop signals the upload goroutine and joins it.
func (w *UploadWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.quit)
	w.mu.Unlock()

	w.wg.Wait()
	log.Printf("media: upload worker stopped")
}

func (w *UploadWorker) loop() {
	defer w.wg.Done()

	idle := time.NewTicker(2 * time.Millisecond)
	defer idle.Stop()

	for {
		select {
		case <-w.quit:
			return
		case <-idle.C:
			w.DrainAvailable()
		}
	}
}

// DrainAvailable uploads every frame currently queued across all registered
// pipelines without blocking. The render thread may call this directly at
// frame start to guarantee freshness before composing.
//
// Returns:
//   - int: number of frames uploaded
func (w *UploadWorker) DrainAvailable() int {
	w.mu.Lock()
	pipelines := make([]*FramePipeline, 0, len(w.pipelines))
	for _, p := range w.pipelines {
		pipelines = append(pipelines, p)
	}
	w.mu.Unlock()

	uploaded := 0
	for _, p := range pipelines {
	drain:
		for {
			select {
			case frame := <-p.Frames():
				if w.upload(p, frame) {
					uploaded++
				}
			default:
				break drain
			}
		}
	}
	return uploaded
}

// upload writes one frame into the pool, enforcing per-source sequence order.
func (w *UploadWorker) upload(p *FramePipeline, frame PipelineFrame) bool {
	slot := p.SlotName()

	w.mu.Lock()
	last, seen := w.lastSeq[slot]
	if seen && frame.Sequence <= last {
		w.mu.Unlock()
		p.markDropped()
		return false
	}
	w.lastSeq[slot] = frame.Sequence
	w.mu.Unlock()

	start := time.Now()
	err := w.uploader.EnsureAndUpload(
		slot,
		frame.Frame.Data,
		frame.Frame.Format.Width,
		frame.Frame.Format.Height,
		frame.Frame.Format.PixelFormat.BytesPerPixel(),
	)
	if err != nil {
		log.Printf("media: upload of %s failed: %v", slot, err)
		p.markDropped()
		return false
	}
	p.markUploaded(time.Since(start))
	return true
}
