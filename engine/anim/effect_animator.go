package anim

// ParamTarget addresses one animatable effect parameter.
type ParamTarget struct {
	EffectID  uint64 `yaml:"effect_id"`
	Parameter string `yaml:"parameter"`
}

// EffectAnimator drives effect parameters from clips. Its time advances
// only on the render thread; external control (OSC playback speed) posts
// into the render thread's command queue rather than touching it directly.
type EffectAnimator struct {
	Players []*Player              `yaml:"players"`
	Targets map[string]ParamTarget `yaml:"targets"`

	Speed float32 `yaml:"speed"`
}

// NewEffectAnimator creates an empty animator at normal speed.
func NewEffectAnimator() *EffectAnimator {
	return &EffectAnimator{
		Targets: make(map[string]ParamTarget),
		Speed:   1,
	}
}

// AddClip registers a clip and returns its player.
func (a *EffectAnimator) AddClip(clip *Clip) *Player {
	player := NewPlayer(clip)
	a.Players = append(a.Players, player)
	return player
}

// Bind routes a track name to an effect parameter.
func (a *EffectAnimator) Bind(trackName string, target ParamTarget) {
	a.Targets[trackName] = target
}

// Advance steps every playing clip and returns the resolved parameter
// values for this frame, keyed by target.
//
// Parameters:
//   - dt: seconds since the previous frame
//
// Returns:
//   - map[ParamTarget]AnimValue: parameter updates to apply
func (a *EffectAnimator) Advance(dt float64) map[ParamTarget]AnimValue {
	updates := make(map[ParamTarget]AnimValue)
	scaled := dt * float64(a.Speed)
	for _, player := range a.Players {
		for name, value := range player.Update(scaled) {
			if target, ok := a.Targets[name]; ok {
				updates[target] = value
			}
		}
	}
	return updates
}
