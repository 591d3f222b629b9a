// Package compositor blends the layer stack into the canvas. The stack
// resolution logic (solo, bypass, groups) is plain data flow; the GPU side
// assigns each resolved layer a blend pipeline and composites bottom to top
// onto a transparent-black canvas.
package compositor

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// BlendMode selects the blend equation of one layer.
type BlendMode int

const (
	BlendNormal BlendMode = iota
	BlendAdd
	BlendMultiply
	BlendScreen
)

func (m BlendMode) String() string {
	switch m {
	case BlendNormal:
		return "Normal"
	case BlendAdd:
		return "Add"
	case BlendMultiply:
		return "Multiply"
	case BlendScreen:
		return "Screen"
	default:
		return "Unknown"
	}
}

// BlendState returns the wgpu blend configuration used as the pipeline's
// color target blend for this mode.
func (m BlendMode) BlendState() *wgpu.BlendState {
	switch m {
	case BlendAdd:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				Operation: wgpu.BlendOperationAdd,
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOne,
			},
			Alpha: wgpu.BlendComponent{
				Operation: wgpu.BlendOperationAdd,
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOne,
			},
		}
	case BlendMultiply:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				Operation: wgpu.BlendOperationAdd,
				SrcFactor: wgpu.BlendFactorDst,
				DstFactor: wgpu.BlendFactorZero,
			},
			Alpha: wgpu.BlendComponent{
				Operation: wgpu.BlendOperationAdd,
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			},
		}
	case BlendScreen:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				Operation: wgpu.BlendOperationAdd,
				SrcFactor: wgpu.BlendFactorOneMinusDst,
				DstFactor: wgpu.BlendFactorOne,
			},
			Alpha: wgpu.BlendComponent{
				Operation: wgpu.BlendOperationAdd,
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			},
		}
	default:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				Operation: wgpu.BlendOperationAdd,
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			},
			Alpha: wgpu.BlendComponent{
				Operation: wgpu.BlendOperationAdd,
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			},
		}
	}
}

// Layer is one entry of the compositing stack, bottom to top.
type Layer struct {
	ID      uint64    `yaml:"id"`
	Name    string    `yaml:"name"`
	Opacity float32   `yaml:"opacity"`
	Visible bool      `yaml:"visible"`
	Bypass  bool      `yaml:"bypass"`
	Solo    bool      `yaml:"solo"`
	Blend   BlendMode `yaml:"blend"`
	// GroupID is 0 for ungrouped layers.
	GroupID uint64 `yaml:"group_id,omitempty"`
}

// Group collects layers under shared opacity and blending.
type Group struct {
	ID        uint64    `yaml:"id"`
	Name      string    `yaml:"name"`
	Opacity   float32   `yaml:"opacity"`
	Visible   bool      `yaml:"visible"`
	Collapsed bool      `yaml:"collapsed"`
	Blend     BlendMode `yaml:"blend"`
}

// Stack is the full layer arrangement of the canvas.
type Stack struct {
	Layers []Layer `yaml:"layers"`
	Groups []Group `yaml:"groups"`
}

// Group returns the group with the given ID, or nil.
func (s *Stack) Group(id uint64) *Group {
	for i := range s.Groups {
		if s.Groups[i].ID == id {
			return &s.Groups[i]
		}
	}
	return nil
}

// ResolvedLayer is one layer after stack resolution: effective opacity with
// group contribution applied, ready for compositing.
type ResolvedLayer struct {
	Layer            *Layer
	EffectiveOpacity float32
	// FlattenGroup is set when this layer's group has a blend mode other
	// than Normal or is collapsed.
	FlattenGroup *Group
}

// Resolve filters and weighs the stack for one frame:
//   - bypassed and invisible layers are skipped
//   - when any layer is solo, only solo layers contribute
//   - a layer in a group multiplies the group opacity into its own
//   - groups with a non-Normal blend mode, or collapsed groups, are marked
//     for flattening
//
// Returns:
//   - []ResolvedLayer: contributing layers in bottom-to-top order
func (s *Stack) Resolve() []ResolvedLayer {
	anySolo := false
	for i := range s.Layers {
		if s.Layers[i].Solo && !s.Layers[i].Bypass && s.Layers[i].Visible {
			anySolo = true
			break
		}
	}

	var resolved []ResolvedLayer
	for i := range s.Layers {
		layer := &s.Layers[i]
		if layer.Bypass || !layer.Visible {
			continue
		}
		if anySolo && !layer.Solo {
			continue
		}

		opacity := layer.Opacity
		var flatten *Group
		if layer.GroupID != 0 {
			group := s.Group(layer.GroupID)
			if group != nil {
				if !group.Visible {
					continue
				}
				opacity *= group.Opacity
				if group.Blend != BlendNormal || group.Collapsed {
					flatten = group
				}
			}
		}
		if opacity <= 0 {
			continue
		}

		resolved = append(resolved, ResolvedLayer{
			Layer:            layer,
			EffectiveOpacity: opacity,
			FlattenGroup:     flatten,
		})
	}
	return resolved
}
