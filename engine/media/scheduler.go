package media

import "sort"

// FrameScheduler is a small bounded priority queue that can sit between the
// decode and upload stages. When full, the lowest-priority frame is evicted.
// The default pipeline bypasses it, and no pipeline in this package
// constructs one.
type FrameScheduler struct {
	frames    []PipelineFrame
	maxFrames int
}

// NewFrameScheduler creates a scheduler holding at most maxFrames entries.
func NewFrameScheduler(maxFrames int) *FrameScheduler {
	if maxFrames < 1 {
		maxFrames = 1
	}
	return &FrameScheduler{
		frames:    make([]PipelineFrame, 0, maxFrames),
		maxFrames: maxFrames,
	}
}

// Push adds a frame, evicting the lowest-priority entry when full.
func (s *FrameScheduler) Push(frame PipelineFrame) {
	if len(s.frames) >= s.maxFrames {
		minIdx := 0
		for i, f := range s.frames {
			if f.Priority < s.frames[minIdx].Priority {
				minIdx = i
			}
		}
		s.frames = append(s.frames[:minIdx], s.frames[minIdx+1:]...)
	}

	s.frames = append(s.frames, frame)
	sort.SliceStable(s.frames, func(i, j int) bool {
		return s.frames[i].Priority > s.frames[j].Priority
	})
}

// Pop removes and returns the highest-priority frame.
//
// Returns:
//   - PipelineFrame: the frame
//   - bool: false when the scheduler is empty
func (s *FrameScheduler) Pop() (PipelineFrame, bool) {
	if len(s.frames) == 0 {
		return PipelineFrame{}, false
	}
	frame := s.frames[0]
	s.frames = s.frames[1:]
	return frame, true
}

// Len returns the number of queued frames.
func (s *FrameScheduler) Len() int { return len(s.frames) }

// Empty reports whether no frames are queued.
func (s *FrameScheduler) Empty() bool { return len(s.frames) == 0 }
