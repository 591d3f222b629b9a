package anim

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearTrackEvaluation(t *testing.T) {
	track := NewTrack("opacity", Float(1))
	track.AddKeyframe(NewKeyframe(0, Float(0)))
	track.AddKeyframe(NewKeyframe(1, Float(1)))
	track.AddKeyframe(NewKeyframe(2, Float(0.5)))

	val := track.Evaluate(0.5)
	require.Equal(t, ValueFloat, val.Kind)
	assert.InDelta(t, 0.5, float64(val.F), 1e-6)

	val = track.Evaluate(1.5)
	assert.InDelta(t, 0.75, float64(val.F), 1e-6)
}

// Two linear Float keyframes (t0,v0), (t1,v1): evaluation at t in between
// returns the exact linear blend.
func TestLinearInterpolationFormula(t *testing.T) {
	const t0, v0 = 0.5, 2.0
	const t1, v1 = 3.5, 10.0

	track := NewTrack("x", Float(0))
	track.AddKeyframe(NewKeyframe(t0, Float(v0)))
	track.AddKeyframe(NewKeyframe(t1, Float(v1)))

	for _, tt := range []float64{0.5, 0.75, 1.0, 2.0, 3.0, 3.5} {
		expected := v0 + (v1-v0)*(tt-t0)/(t1-t0)
		got := track.Evaluate(tt)
		assert.InDelta(t, expected, float64(got.F), 1e-5, "t=%f", tt)
	}
}

func TestTrackEdgeBehavior(t *testing.T) {
	track := NewTrack("x", Float(7))

	// Empty track returns the default.
	assert.Equal(t, float32(7), track.Evaluate(1).F)

	track.AddKeyframe(NewKeyframe(1, Float(3)))
	// Before the first keyframe: first value. After the last: last value.
	assert.Equal(t, float32(3), track.Evaluate(0).F)
	assert.Equal(t, float32(3), track.Evaluate(5).F)

	// Disabled track returns the default.
	track.Enabled = false
	assert.Equal(t, float32(7), track.Evaluate(1).F)
}

func TestConstantAndSmoothInterpolation(t *testing.T) {
	track := NewTrack("x", Float(0))
	track.AddKeyframe(ConstantKeyframe(0, Float(0)))
	track.AddKeyframe(NewKeyframe(1, Float(10)))

	// Constant holds the previous value until the next keyframe.
	assert.Equal(t, float32(0), track.Evaluate(0.99).F)
	assert.Equal(t, float32(10), track.Evaluate(1).F)

	smooth := NewTrack("y", Float(0))
	smooth.AddKeyframe(SmoothKeyframe(0, Float(0)))
	smooth.AddKeyframe(NewKeyframe(1, Float(1)))
	// Smoothstep at 0.5 equals 0.5 but approaches the ends more gently.
	assert.InDelta(t, 0.5, float64(smooth.Evaluate(0.5).F), 1e-6)
	assert.Less(t, float64(smooth.Evaluate(0.25).F), 0.25)
	assert.Greater(t, float64(smooth.Evaluate(0.75).F), 0.75)
}

func TestVectorAndBoolValues(t *testing.T) {
	a := Vec3Value(0, 0, 0)
	b := Vec3Value(1, 2, 3)
	mid := a.Lerp(b, 0.5)
	assert.Equal(t, [4]float32{0.5, 1, 1.5, 0}, mid.V)

	// Kind mismatch returns the receiver.
	assert.Equal(t, a, a.Lerp(Float(1), 0.5))

	// Booleans step.
	assert.True(t, Bool(true).Lerp(Bool(false), 0.9).B)

	c1 := Color(1, 0, 0, 1)
	c2 := Color(0, 0, 1, 1)
	cm := c1.Lerp(c2, 0.5)
	assert.Equal(t, [4]float32{0.5, 0, 0.5, 1}, cm.V)
}

func TestBezierSolverInverse(t *testing.T) {
	curves := [][2]float32{
		{0.25, 0.75},
		{0.5, 1.0},
		{0.1, 0.9},
		{0.42, 0.58},
	}
	for _, c := range curves {
		x1, x2 := c[0], c[1]
		for i := 0; i <= 100; i++ {
			x := float32(i) / 100
			tt := SolveCubicBezierT(x, x1, x2)
			assert.Less(t, float64(math32.Abs(BezierX(tt, x1, x2)-x)), 1e-4,
				"curve (%f, %f) at x=%f", x1, x2, x)
		}
	}
}

func TestBezierTrackEvaluation(t *testing.T) {
	track := NewTrack("x", Float(0))

	kf1 := NewKeyframe(0, Float(0))
	kf1.Interpolation = InterpolationBezier
	kf1.OutTangent = &[2]float32{0.5, 0}

	kf2 := NewKeyframe(1, Float(100))
	kf2.InTangent = &[2]float32{-0.5, 0}

	track.AddKeyframe(kf1)
	track.AddKeyframe(kf2)

	// Symmetric ease-in-out passes through the midpoint.
	mid := track.Evaluate(0.5)
	assert.InDelta(t, 50, float64(mid.F), 1)

	// Ease-in stays below linear early on.
	early := track.Evaluate(0.25)
	assert.Less(t, float64(early.F), 25.0)
}

func TestClipEvaluationAndLooping(t *testing.T) {
	clip := NewClip("test")
	track := NewTrack("x", Float(0))
	track.AddKeyframe(NewKeyframe(0, Float(0)))
	track.AddKeyframe(NewKeyframe(2, Float(10)))
	clip.AddTrack(track)
	clip.CalculateDuration()
	assert.Equal(t, 2.0, clip.Duration)

	values := clip.Evaluate(1)
	assert.InDelta(t, 5, float64(values["x"].F), 1e-6)

	// Looping wraps the time.
	clip.Looping = true
	values = clip.Evaluate(3)
	assert.InDelta(t, 5, float64(values["x"].F), 1e-6)

	// Non-looping clamps to the end.
	clip.Looping = false
	values = clip.Evaluate(100)
	assert.InDelta(t, 10, float64(values["x"].F), 1e-6)
}

func TestPlayerLifecycle(t *testing.T) {
	clip := NewClip("test")
	track := NewTrack("x", Float(0))
	track.AddKeyframe(NewKeyframe(0, Float(0)))
	track.AddKeyframe(NewKeyframe(1, Float(1)))
	clip.AddTrack(track)
	clip.CalculateDuration()

	player := NewPlayer(clip)
	player.Play()

	values := player.Update(0.5)
	assert.InDelta(t, 0.5, float64(values["x"].F), 1e-6)

	// Running past the end of a non-looping clip stops playback.
	player.Update(1)
	assert.False(t, player.Playing)
	assert.Equal(t, 1.0, player.CurrentTime)

	player.Stop()
	assert.Equal(t, 0.0, player.CurrentTime)

	player.Seek(0.25)
	values = player.Clip.Evaluate(player.CurrentTime)
	assert.InDelta(t, 0.25, float64(values["x"].F), 1e-6)
}

func TestEffectAnimatorRouting(t *testing.T) {
	animator := NewEffectAnimator()

	clip := NewClip("pulse")
	track := NewTrack("intensity", Float(0))
	track.AddKeyframe(NewKeyframe(0, Float(0)))
	track.AddKeyframe(NewKeyframe(1, Float(1)))
	clip.AddTrack(track)
	clip.CalculateDuration()

	player := animator.AddClip(clip)
	player.Play()

	target := ParamTarget{EffectID: 3, Parameter: "intensity"}
	animator.Bind("intensity", target)

	updates := animator.Advance(0.5)
	require.Contains(t, updates, target)
	assert.InDelta(t, 0.5, float64(updates[target].F), 1e-6)

	// Unbound tracks produce no updates.
	other := NewClip("unbound")
	otherTrack := NewTrack("stray", Float(1))
	otherTrack.AddKeyframe(NewKeyframe(0, Float(1)))
	other.AddTrack(otherTrack)
	animator.AddClip(other).Play()

	updates = animator.Advance(0.1)
	assert.Len(t, updates, 1)
}
