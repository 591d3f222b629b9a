package anim

import "math"

// Clip groups tracks under one name with a shared duration and loop flag.
type Clip struct {
	Name     string    `yaml:"name"`
	Tracks   []*Track  `yaml:"tracks"`
	Duration TimePoint `yaml:"duration"`
	Looping  bool      `yaml:"looping"`
}

// NewClip creates an empty clip with a 10 second default duration.
func NewClip(name string) *Clip {
	return &Clip{Name: name, Duration: 10}
}

// AddTrack appends a track.
func (c *Clip) AddTrack(track *Track) {
	c.Tracks = append(c.Tracks, track)
}

// Track returns the track with the given name, or nil.
func (c *Clip) Track(name string) *Track {
	for _, t := range c.Tracks {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Evaluate samples every track at the given time, wrapping for looping clips.
//
// Parameters:
//   - time: timeline position in seconds
//
// Returns:
//   - map[string]AnimValue: sampled value per track name
func (c *Clip) Evaluate(time TimePoint) map[string]AnimValue {
	wrapped := time
	if c.Looping && c.Duration > 0 {
		wrapped = math.Mod(time, c.Duration)
	} else if wrapped > c.Duration {
		wrapped = c.Duration
	}

	values := make(map[string]AnimValue, len(c.Tracks))
	for _, track := range c.Tracks {
		values[track.Name] = track.Evaluate(wrapped)
	}
	return values
}

// CalculateDuration extends the clip duration to cover all keyframes.
func (c *Clip) CalculateDuration() {
	maxTime := 0.0
	for _, track := range c.Tracks {
		if _, end, ok := track.TimeRange(); ok && end > maxTime {
			maxTime = end
		}
	}
	if maxTime > 0 {
		c.Duration = maxTime
	}
}

// Player advances a clip's time. Time advances only on the render thread;
// Update is called once per frame with the frame delta.
type Player struct {
	Clip        *Clip     `yaml:"clip"`
	CurrentTime TimePoint `yaml:"current_time"`
	Playing     bool      `yaml:"playing"`
	Speed       float32   `yaml:"speed"`
}

// NewPlayer creates a stopped player for the clip.
func NewPlayer(clip *Clip) *Player {
	return &Player{Clip: clip, Speed: 1}
}

// Play starts playback.
func (p *Player) Play() { p.Playing = true }

// Pause suspends playback at the current time.
func (p *Player) Pause() { p.Playing = false }

// Stop suspends playback and rewinds to zero.
func (p *Player) Stop() {
	p.Playing = false
	p.CurrentTime = 0
}

// Seek jumps to a time clamped to the clip duration.
func (p *Player) Seek(time TimePoint) {
	if time < 0 {
		time = 0
	}
	if time > p.Clip.Duration {
		time = p.Clip.Duration
	}
	p.CurrentTime = time
}

// Update advances time by dt (scaled by speed) and samples every track.
//
// Parameters:
//   - dt: seconds since the previous frame
//
// Returns:
//   - map[string]AnimValue: sampled value per track name
func (p *Player) Update(dt float64) map[string]AnimValue {
	if p.Playing {
		p.CurrentTime += dt * float64(p.Speed)
		if p.Clip.Looping {
			if p.Clip.Duration > 0 && p.CurrentTime >= p.Clip.Duration {
				p.CurrentTime = math.Mod(p.CurrentTime, p.Clip.Duration)
			}
		} else if p.CurrentTime >= p.Clip.Duration {
			p.CurrentTime = p.Clip.Duration
			p.Playing = false
		}
	}
	return p.Clip.Evaluate(p.CurrentTime)
}
