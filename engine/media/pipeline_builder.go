package media

// PipelineBuilderOption is a functional option used to configure a FramePipeline during construction.
type PipelineBuilderOption func(*FramePipeline)

// WithQueueDepth sets the bounded queue depth between decode and upload.
//
// Parameters:
//   - depth: number of frames buffered (minimum 1)
//
// Returns:
//   - PipelineBuilderOption: a function that sets the queue depth
func WithQueueDepth(depth int) PipelineBuilderOption {
	return func(p *FramePipeline) {
		p.config.QueueDepth = depth
	}
}

// WithFrameDrop controls whether a full queue drops frames instead of
// blocking the decode thread.
//
// Parameters:
//   - enabled: true to drop, false to apply back-pressure
//
// Returns:
//   - PipelineBuilderOption: a function that sets the frame drop flag
func WithFrameDrop(enabled bool) PipelineBuilderOption {
	return func(p *FramePipeline) {
		p.config.EnableFrameDrop = enabled
	}
}

// WithDecodePriority tags frames emitted by the decode stage.
//
// Parameters:
//   - priority: the Priority assigned to decoded frames
//
// Returns:
//   - PipelineBuilderOption: a function that sets the decode priority
func WithDecodePriority(priority Priority) PipelineBuilderOption {
	return func(p *FramePipeline) {
		p.config.DecodePriority = priority
	}
}

// WithUploadPriority sets the upload stage importance relative to other
// pipelines sharing the upload worker.
//
// Parameters:
//   - priority: the Priority of this pipeline's uploads
//
// Returns:
//   - PipelineBuilderOption: a function that sets the upload priority
func WithUploadPriority(priority Priority) PipelineBuilderOption {
	return func(p *FramePipeline) {
		p.config.UploadPriority = priority
	}
}
