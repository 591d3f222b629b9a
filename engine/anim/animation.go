// Package anim provides keyframe animation for animatable engine
// parameters: typed tracks of keyframes, clips grouping tracks, and a
// player advancing clip time on the render thread.
package anim

import (
	"github.com/chewxy/math32"
)

// TimePoint is a position on a clip timeline, in seconds.
type TimePoint = float64

// InterpolationMode selects how a keyframe blends toward its successor.
type InterpolationMode int

const (
	// InterpolationConstant steps to the next value with no blending.
	InterpolationConstant InterpolationMode = iota
	// InterpolationLinear blends linearly.
	InterpolationLinear
	// InterpolationSmooth applies smoothstep easing.
	InterpolationSmooth
	// InterpolationBezier uses cubic bezier timing from keyframe tangents.
	InterpolationBezier
)

// ValueKind tags an AnimValue.
type ValueKind int

const (
	ValueFloat ValueKind = iota
	ValueVec2
	ValueVec3
	ValueVec4
	ValueColor
	ValueBool
)

// AnimValue is one animatable value. Vec and Color variants use the array
// field; Bool steps rather than interpolates.
type AnimValue struct {
	Kind ValueKind  `yaml:"kind"`
	F    float32    `yaml:"f,omitempty"`
	V    [4]float32 `yaml:"v,omitempty"`
	B    bool       `yaml:"b,omitempty"`
}

// Float wraps a float value.
func Float(v float32) AnimValue { return AnimValue{Kind: ValueFloat, F: v} }

// Vec2Value wraps a 2D vector.
func Vec2Value(x, y float32) AnimValue { return AnimValue{Kind: ValueVec2, V: [4]float32{x, y}} }

// Vec3Value wraps a 3D vector.
func Vec3Value(x, y, z float32) AnimValue {
	return AnimValue{Kind: ValueVec3, V: [4]float32{x, y, z}}
}

// Vec4Value wraps a 4D vector.
func Vec4Value(x, y, z, w float32) AnimValue {
	return AnimValue{Kind: ValueVec4, V: [4]float32{x, y, z, w}}
}

// Color wraps an RGBA color.
func Color(r, g, b, a float32) AnimValue {
	return AnimValue{Kind: ValueColor, V: [4]float32{r, g, b, a}}
}

// Bool wraps a boolean; booleans step rather than blend.
func Bool(v bool) AnimValue { return AnimValue{Kind: ValueBool, B: v} }

// Lerp interpolates toward other by t. Mismatched kinds return the receiver
// unchanged; booleans step.
func (v AnimValue) Lerp(other AnimValue, t float32) AnimValue {
	if v.Kind != other.Kind {
		return v
	}
	switch v.Kind {
	case ValueFloat:
		return Float(v.F + (other.F-v.F)*t)
	case ValueBool:
		return v
	default:
		out := v
		for i := range out.V {
			out.V[i] = v.V[i] + (other.V[i]-v.V[i])*t
		}
		return out
	}
}

// SmoothLerp interpolates with smoothstep easing.
func (v AnimValue) SmoothLerp(other AnimValue, t float32) AnimValue {
	return v.Lerp(other, t*t*(3-2*t))
}

// Keyframe is a value at a point in time with its outgoing interpolation.
type Keyframe struct {
	Time          TimePoint         `yaml:"time"`
	Value         AnimValue         `yaml:"value"`
	Interpolation InterpolationMode `yaml:"interpolation"`
	// InTangent and OutTangent are bezier control offsets
	// (time offset in seconds, dimensionless value weight).
	InTangent  *[2]float32 `yaml:"in_tangent,omitempty"`
	OutTangent *[2]float32 `yaml:"out_tangent,omitempty"`
}

// NewKeyframe creates a linear keyframe.
func NewKeyframe(time TimePoint, value AnimValue) Keyframe {
	return Keyframe{Time: time, Value: value, Interpolation: InterpolationLinear}
}

// SmoothKeyframe creates a smoothstep keyframe.
func SmoothKeyframe(time TimePoint, value AnimValue) Keyframe {
	return Keyframe{Time: time, Value: value, Interpolation: InterpolationSmooth}
}

// ConstantKeyframe creates a stepped keyframe.
func ConstantKeyframe(time TimePoint, value AnimValue) Keyframe {
	return Keyframe{Time: time, Value: value, Interpolation: InterpolationConstant}
}

// Track is an ordered series of keyframes animating one named property.
type Track struct {
	Name         string     `yaml:"name"`
	Keyframes    []Keyframe `yaml:"keyframes"`
	DefaultValue AnimValue  `yaml:"default_value"`
	Enabled      bool       `yaml:"enabled"`
}

// NewTrack creates an enabled track with the given default.
func NewTrack(name string, defaultValue AnimValue) *Track {
	return &Track{Name: name, DefaultValue: defaultValue, Enabled: true}
}

// AddKeyframe inserts a keyframe, keeping keyframes ordered by time.
// A keyframe at an existing time replaces the old one.
func (t *Track) AddKeyframe(kf Keyframe) {
	for i := range t.Keyframes {
		if t.Keyframes[i].Time == kf.Time {
			t.Keyframes[i] = kf
			return
		}
		if t.Keyframes[i].Time > kf.Time {
			t.Keyframes = append(t.Keyframes[:i], append([]Keyframe{kf}, t.Keyframes[i:]...)...)
			return
		}
	}
	t.Keyframes = append(t.Keyframes, kf)
}

// RemoveKeyframe deletes the keyframe at the given time.
func (t *Track) RemoveKeyframe(time TimePoint) bool {
	for i := range t.Keyframes {
		if t.Keyframes[i].Time == time {
			t.Keyframes = append(t.Keyframes[:i], t.Keyframes[i+1:]...)
			return true
		}
	}
	return false
}

// TimeRange returns the first and last keyframe times.
func (t *Track) TimeRange() (TimePoint, TimePoint, bool) {
	if len(t.Keyframes) == 0 {
		return 0, 0, false
	}
	return t.Keyframes[0].Time, t.Keyframes[len(t.Keyframes)-1].Time, true
}

// Evaluate samples the track at the given time.
//
// Parameters:
//   - time: timeline position in seconds
//
// Returns:
//   - AnimValue: the interpolated value, or the default when disabled/empty
func (t *Track) Evaluate(time TimePoint) AnimValue {
	if !t.Enabled || len(t.Keyframes) == 0 {
		return t.DefaultValue
	}

	// Locate the keyframes bracketing time.
	var before, after *Keyframe
	for i := range t.Keyframes {
		kf := &t.Keyframes[i]
		if kf.Time <= time {
			before = kf
		}
		if kf.Time >= time && after == nil {
			after = kf
		}
	}

	switch {
	case before == nil && after == nil:
		return t.DefaultValue
	case before == nil:
		return after.Value
	case after == nil:
		return before.Value
	case before.Time == after.Time:
		return before.Value
	}

	frac := float32((time - before.Time) / (after.Time - before.Time))
	frac = clamp01(frac)

	switch before.Interpolation {
	case InterpolationConstant:
		return before.Value
	case InterpolationSmooth:
		return before.Value.SmoothLerp(after.Value, frac)
	case InterpolationBezier:
		eased := frac
		if before.OutTangent != nil && after.InTangent != nil {
			duration := float32(after.Time - before.Time)
			if duration > 0 {
				// Normalize tangents to bezier control points with
				// P0 = (0,0), P3 = (1,1). The tangent X is a time offset
				// in seconds; the tangent Y is a dimensionless weight
				// because values may be non-scalar.
				x1 := clamp01(before.OutTangent[0] / duration)
				y1 := before.OutTangent[1]
				x2 := clamp01(1 + after.InTangent[0]/duration)
				y2 := 1 + after.InTangent[1]
				eased = SolveCubicBezierY(frac, x1, y1, x2, y2)
			}
		}
		return before.Value.Lerp(after.Value, eased)
	default:
		return before.Value.Lerp(after.Value, frac)
	}
}

// SolveCubicBezierT finds t with Bx(t) = x via Newton-Raphson for the cubic
// bezier timing curve through (0,0), (x1,_), (x2,_), (1,1).
//
// Parameters:
//   - x: timeline fraction to invert, in [0, 1]
//   - x1, x2: control point X coordinates
//
// Returns:
//   - float32: the curve parameter t with Bx(t) ~= x
func SolveCubicBezierT(x, x1, x2 float32) float32 {
	t := x // initial guess
	for i := 0; i < 8; i++ {
		oneMinusT := 1 - t
		t2 := t * t
		oneMinusT2 := oneMinusT * oneMinusT

		xt := 3*oneMinusT2*t*x1 + 3*oneMinusT*t2*x2 + t*t2
		if math32.Abs(xt-x) < 1e-5 {
			break
		}

		dxdt := 3*oneMinusT2*x1 + 6*oneMinusT*t*(x2-x1) + 3*t2*(1-x2)
		if math32.Abs(dxdt) < 1e-5 {
			break
		}

		t -= (xt - x) / dxdt
		t = clamp01(t)
	}
	return t
}

// SolveCubicBezierY inverts the timing curve at x and returns By(t) for the
// cubic bezier through (0,0), (x1,y1), (x2,y2), (1,1).
//
// Parameters:
//   - x: timeline fraction to invert, in [0, 1]
//   - x1, y1: first control point
//   - x2, y2: second control point
//
// Returns:
//   - float32: the eased fraction By(t)
func SolveCubicBezierY(x, x1, y1, x2, y2 float32) float32 {
	t := SolveCubicBezierT(x, x1, x2)
	oneMinusT := 1 - t
	t2 := t * t
	oneMinusT2 := oneMinusT * oneMinusT
	return 3*oneMinusT2*t*y1 + 3*oneMinusT*t2*y2 + t*t2
}

// BezierX evaluates Bx(t) for the timing curve, used to verify the solver.
func BezierX(t, x1, x2 float32) float32 {
	oneMinusT := 1 - t
	return 3*oneMinusT*oneMinusT*t*x1 + 3*oneMinusT*t*t*x2 + t*t*t
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
