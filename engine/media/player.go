package media

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// VideoPlayer advances a decoder according to play state, speed, and looping.
// It owns the decoder it was created with and releases it on Close.
type VideoPlayer struct {
	decoder VideoDecoder

	playing bool
	looping bool
	speed   float64

	clock   time.Duration // playback position advanced by Update
	lastPTS time.Duration // presentation timestamp of the last returned frame
	pending *VideoFrame   // decoded but not yet due
	eof     bool
}

// NewVideoPlayer creates a paused player around the given decoder.
func NewVideoPlayer(decoder VideoDecoder) *VideoPlayer {
	return &VideoPlayer{decoder: decoder, speed: 1.0}
}

// Play starts or resumes playback.
func (p *VideoPlayer) Play() { p.playing = true }

// Pause suspends playback; Update returns nil while paused.
func (p *VideoPlayer) Pause() { p.playing = false }

// Playing reports whether the player is advancing.
func (p *VideoPlayer) Playing() bool { return p.playing }

// SetLooping controls whether the player rewinds at end of stream.
func (p *VideoPlayer) SetLooping(looping bool) { p.looping = looping }

// Looping reports the looping flag.
func (p *VideoPlayer) Looping() bool { return p.looping }

// SetSpeed sets the playback rate multiplier. Values <= 0 pause advancement
// without changing the play state.
func (p *VideoPlayer) SetSpeed(speed float64) { p.speed = speed }

// Speed returns the playback rate multiplier.
func (p *VideoPlayer) Speed() float64 { return p.speed }

// LastPTS returns the presentation timestamp of the most recently
// returned frame.
func (p *VideoPlayer) LastPTS() time.Duration { return p.lastPTS }

// Update advances the playback clock by dt and returns the next frame when
// one is due, nil otherwise. At end of stream a looping player rewinds; a
// non-looping player stops and keeps returning nil.
//
// Parameters:
//   - dt: wall-clock time elapsed since the previous Update
//
// Returns:
//   - *VideoFrame: the frame due for presentation, or nil
func (p *VideoPlayer) Update(dt time.Duration) *VideoFrame {
	if !p.playing || p.speed <= 0 {
		return nil
	}
	p.clock += time.Duration(float64(dt) * p.speed)

	if p.pending == nil && !p.eof {
		frame, ok, err := p.decoder.NextFrame()
		if err != nil {
			log.Printf("media: decode error: %v", err)
			return nil
		}
		if !ok {
			if p.looping {
				if err := p.decoder.Rewind(0); err != nil {
					log.Printf("media: rewind failed: %v", err)
					p.eof = true
					return nil
				}
				p.clock = 0
				p.lastPTS = 0
				frame, ok, err = p.decoder.NextFrame()
				if err != nil || !ok {
					p.eof = true
					return nil
				}
			} else {
				p.playing = false
				p.eof = true
				return nil
			}
		}
		p.pending = frame
	}

	if p.pending != nil && p.pending.PTS <= p.clock {
		frame := p.pending
		p.pending = nil
		p.lastPTS = frame.PTS
		return frame
	}
	return nil
}

// Seek moves the playback position, dropping any pending frame.
func (p *VideoPlayer) Seek(offset time.Duration) error {
	if err := p.decoder.Rewind(offset); err != nil {
		return err
	}
	p.clock = offset
	p.pending = nil
	p.eof = false
	return nil
}

// Close releases the underlying decoder.
func (p *VideoPlayer) Close() error {
	return p.decoder.Close()
}

// PlayerKey identifies the media player owned by one module part.
type PlayerKey struct {
	ModuleID uint64
	PartID   uint64
}

// playerEntry tracks the player plus the path it was opened from so that
// replaying the same path is a no-op.
type playerEntry struct {
	player   *VideoPlayer
	pipeline *FramePipeline
	path     string
}

// PlayerRegistry owns at most one player per (module, part) key. Replacing a
// part's media path destroys the previous player and its pipeline first.
type PlayerRegistry struct {
	mu      sync.Mutex
	entries map[PlayerKey]*playerEntry
}

// NewPlayerRegistry creates an empty registry.
func NewPlayerRegistry() *PlayerRegistry {
	return &PlayerRegistry{entries: make(map[PlayerKey]*playerEntry)}
}

// Acquire returns the existing player for key when it already plays path,
// or replaces it with a freshly opened one. No pipeline is created here; the
// caller builds one, attaches it with AttachPipeline and starts it.
//
// Parameters:
//   - key: the owning module part
//   - path: media file path
//   - open: decoder constructor, usually NewFileDecoder
//
// Returns:
//   - *VideoPlayer: the player bound to key
//   - bool: true when a new player was created
//   - error: decoder open failure
func (r *PlayerRegistry) Acquire(key PlayerKey, path string, open func(string) (VideoDecoder, error)) (*VideoPlayer, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[key]; ok {
		if entry.path == path {
			return entry.player, false, nil
		}
		r.destroyLocked(key, entry)
	}

	decoder, err := open(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open source for part %d/%d: %w", key.ModuleID, key.PartID, err)
	}
	player := NewVideoPlayer(decoder)
	r.entries[key] = &playerEntry{player: player, path: path}
	return player, true, nil
}

// AttachPipeline records the pipeline feeding this key so Release can stop it.
func (r *PlayerRegistry) AttachPipeline(key PlayerKey, pipeline *FramePipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[key]; ok {
		entry.pipeline = pipeline
	}
}

// Player returns the player for key, or nil.
func (r *PlayerRegistry) Player(key PlayerKey) *VideoPlayer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[key]; ok {
		return entry.player
	}
	return nil
}

// Release destroys the player for key, if any.
func (r *PlayerRegistry) Release(key PlayerKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[key]; ok {
		r.destroyLocked(key, entry)
	}
}

// ReleaseAll destroys every registered player.
func (r *PlayerRegistry) ReleaseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, entry := range r.entries {
		r.destroyLocked(key, entry)
	}
}

func (r *PlayerRegistry) destroyLocked(key PlayerKey, entry *playerEntry) {
	if entry.pipeline != nil {
		entry.pipeline.Stop()
	}
	if err := entry.player.Close(); err != nil {
		log.Printf("media: failed to close player for part %d/%d: %v", key.ModuleID, key.PartID, err)
	}
	delete(r.entries, key)
}
