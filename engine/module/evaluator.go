package module

import (
	"sort"

	"github.com/MrLongNight/mapflow-go/engine/audio"
	"github.com/MrLongNight/mapflow-go/engine/mapping"
)

// sourceActivationThreshold is the accumulated trigger level at which a
// source part emits a command.
const sourceActivationThreshold = 0.1

// SourceCommandKind tags a SourceCommand.
type SourceCommandKind int

const (
	SourceCommandPlayMedia SourceCommandKind = iota
	SourceCommandPlayShader
	SourceCommandNdiInput
	SourceCommandLiveInput
	SourceCommandSpoutInput
)

// SourceCommand instructs the media layer to engage one source.
type SourceCommand struct {
	Kind SourceCommandKind
	// Path is the media path for PlayMedia.
	Path string
	// Name is the shader name or NDI/Spout sender name.
	Name string
	// Params are shader parameters for PlayShader.
	Params []ShaderParam
	// DeviceID selects the capture device for LiveInput.
	DeviceID uint32
	// TriggerValue is the accumulated trigger level that fired the command.
	TriggerValue float32
}

// OutputBinding names the physical output a render operation targets.
type OutputBinding struct {
	Kind OutputKindTag
	// ID is the output configuration ID for projectors, the part ID otherwise.
	ID uint64
	// Monitor is the pinned monitor name for projectors, if any.
	Monitor string
	// Name is the stream name for NDI/Spout outputs.
	Name string
}

// RenderOp is one resolved draw: one source through one mesh onto one
// output. Ops with a nil source render the grid calibration pattern.
type RenderOp struct {
	OutputPartID PartID
	Output       OutputBinding
	LayerPartID  PartID
	Mesh         mapping.Mesh
	// SourcePartID is nil when no source ancestor feeds the output.
	SourcePartID *PartID
	Opacity      float32
	Props        SourceProps
	MappingMode  bool
}

// EvalResult is one frame's evaluation output.
type EvalResult struct {
	// TriggerValues holds the raw per-socket values of every trigger part.
	TriggerValues map[PartID][]float32
	// SourceCommands holds the commands for sources whose accumulated
	// trigger level cleared the activation threshold.
	SourceCommands map[PartID]SourceCommand
	// RenderOps are ordered output-part-id descending so stacking order
	// matches graph layout.
	RenderOps []RenderOp
}

// Evaluator walks module graphs each frame, propagating trigger values
// through connections and emitting render operations. Evaluation is pure
// with respect to its inputs: the same graph and analysis produce the same
// result.
type Evaluator struct {
	analysis audio.Analysis
}

// NewEvaluator creates an evaluator with silent audio state.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// UpdateAudio stores the analyzer output used by subsequent Evaluate calls.
func (e *Evaluator) UpdateAudio(analysis audio.Analysis) {
	e.analysis = analysis
}

// Evaluate computes one frame's result for a single module.
//
// Parameters:
//   - mod: the module graph to evaluate
//
// Returns:
//   - EvalResult: trigger values, source commands, and render operations
func (e *Evaluator) Evaluate(mod *Module) EvalResult {
	result := EvalResult{
		TriggerValues:  make(map[PartID][]float32),
		SourceCommands: make(map[PartID]SourceCommand),
	}
	if mod == nil {
		return result
	}

	// Step 1: evaluate every trigger part's output sockets.
	for i := range mod.Parts {
		part := &mod.Parts[i]
		if part.Type == PartTypeTrigger && part.Trigger != nil {
			result.TriggerValues[part.ID] = e.evaluateTrigger(part.Trigger)
		}
	}

	// Step 2: propagate through connections. An input sees the max over
	// its incoming values, which gives any-of semantics for booleans and
	// degrades correctly for continuous signals.
	inputs := e.accumulateTriggerInputs(mod, result.TriggerValues)

	// Step 3: emit source commands for activated sources.
	for i := range mod.Parts {
		part := &mod.Parts[i]
		if part.Type != PartTypeSource || part.Source == nil {
			continue
		}
		value := inputs[part.ID]
		if cmd, ok := e.sourceCommand(part.Source, value); ok {
			result.SourceCommands[part.ID] = cmd
		}
	}

	// Step 4: one render op per output part.
	for i := range mod.Parts {
		part := &mod.Parts[i]
		if part.Type != PartTypeOutput || part.Output == nil {
			continue
		}
		result.RenderOps = append(result.RenderOps, e.renderOp(mod, part, inputs))
	}

	sort.Slice(result.RenderOps, func(i, j int) bool {
		return result.RenderOps[i].OutputPartID > result.RenderOps[j].OutputPartID
	})

	return result
}

// EvaluateAll evaluates every module in the manager and merges render ops,
// preserving the per-module output-part ordering.
func (e *Evaluator) EvaluateAll(manager *Manager) EvalResult {
	merged := EvalResult{
		TriggerValues:  make(map[PartID][]float32),
		SourceCommands: make(map[PartID]SourceCommand),
	}
	for _, mod := range manager.Modules {
		result := e.Evaluate(mod)
		for id, values := range result.TriggerValues {
			merged.TriggerValues[id] = values
		}
		for id, cmd := range result.SourceCommands {
			merged.SourceCommands[id] = cmd
		}
		merged.RenderOps = append(merged.RenderOps, result.RenderOps...)
	}
	return merged
}

// evaluateTrigger returns the raw value at each of the trigger's sockets.
func (e *Evaluator) evaluateTrigger(spec *TriggerSpec) []float32 {
	layout := spec.SocketLayout()
	values := make([]float32, len(layout))

	switch spec.Kind {
	case TriggerAudioFFT:
		for i, kind := range layout {
			switch kind.class {
			case outputClassBand:
				values[i] = e.analysis.BandEnergies[kind.band]
			case outputClassRMS:
				values[i] = e.analysis.RMSVolume
			case outputClassPeak:
				values[i] = e.analysis.PeakVolume
			case outputClassBeat:
				if e.analysis.BeatDetected {
					values[i] = 1
				}
			case outputClassBPM:
				if e.analysis.HasBPM {
					values[i] = e.analysis.BPM / 200
				}
			}
		}
	case TriggerBeat:
		if e.analysis.BeatDetected {
			values[0] = 1
		}
	case TriggerFixed:
		// Interval timing lives in the trigger system; for evaluation the
		// socket reads as armed.
		values[0] = 1
	default:
		// Externally driven triggers read zero until an event arrives.
	}
	return values
}

func (e *Evaluator) accumulateTriggerInputs(mod *Module, triggerValues map[PartID][]float32) map[PartID]float32 {
	inputs := make(map[PartID]float32)
	for _, conn := range mod.Connections {
		values, ok := triggerValues[conn.FromPart]
		if !ok || conn.FromSocket >= len(values) {
			continue
		}
		value := values[conn.FromSocket]
		if current, exists := inputs[conn.ToPart]; !exists || value > current {
			inputs[conn.ToPart] = value
		}
	}
	return inputs
}

func (e *Evaluator) sourceCommand(spec *SourceSpec, triggerValue float32) (SourceCommand, bool) {
	if triggerValue < sourceActivationThreshold {
		return SourceCommand{}, false
	}

	switch spec.Kind {
	case SourceKindMediaFile:
		if spec.Path == "" {
			return SourceCommand{}, false
		}
		return SourceCommand{Kind: SourceCommandPlayMedia, Path: spec.Path, TriggerValue: triggerValue}, true
	case SourceKindShader:
		return SourceCommand{Kind: SourceCommandPlayShader, Name: spec.Name, Params: spec.Params, TriggerValue: triggerValue}, true
	case SourceKindNdiInput:
		return SourceCommand{Kind: SourceCommandNdiInput, Name: spec.Name, TriggerValue: triggerValue}, true
	case SourceKindLiveInput:
		return SourceCommand{Kind: SourceCommandLiveInput, DeviceID: spec.DeviceID, TriggerValue: triggerValue}, true
	case SourceKindSpoutInput:
		return SourceCommand{Kind: SourceCommandSpoutInput, Name: spec.Name, TriggerValue: triggerValue}, true
	default:
		return SourceCommand{}, false
	}
}

// renderOp resolves one output part into a draw instruction. Outputs with no
// source ancestor still produce an op; the renderer draws the calibration
// grid for them rather than failing.
func (e *Evaluator) renderOp(mod *Module, part *Part, inputs map[PartID]float32) RenderOp {
	binding := OutputBinding{Kind: part.Output.Kind, Name: part.Output.Name, Monitor: part.Output.Monitor}
	if part.Output.Kind == OutputKindProjector {
		binding.ID = part.Output.ProjectorID
	} else {
		binding.ID = part.ID
	}

	opacity := float32(1)
	if value, ok := inputs[part.ID]; ok {
		opacity = value
	}

	op := RenderOp{
		OutputPartID: part.ID,
		Output:       binding,
		LayerPartID:  part.ID,
		Mesh:         mapping.NewQuadMesh(),
		Opacity:      opacity,
		Props:        DefaultSourceProps(),
		MappingMode:  part.Output.MappingMode,
	}

	// Walk backward to the nearest source, collecting the layer and mesh
	// met along the way.
	visited := map[PartID]bool{}
	current := part.ID
	for !visited[current] {
		visited[current] = true
		conn := incomingConnection(mod, current)
		if conn == nil {
			break
		}
		upstream := mod.PartByID(conn.FromPart)
		if upstream == nil {
			break
		}
		switch upstream.Type {
		case PartTypeSource:
			id := upstream.ID
			op.SourcePartID = &id
			if upstream.Props != nil {
				op.Props = *upstream.Props
			}
			return op
		case PartTypeLayer:
			op.LayerPartID = upstream.ID
			if upstream.Mesh != nil {
				op.Mesh = *upstream.Mesh
			}
			if upstream.Layer != nil {
				op.Opacity *= upstream.Layer.Opacity
			}
		case PartTypeMesh:
			if upstream.Mesh != nil {
				op.Mesh = *upstream.Mesh
			}
		}
		current = conn.FromPart
	}
	return op
}

// incomingConnection returns the first connection feeding the given part,
// preferring non-trigger sockets so the media chain wins over opacity wires.
func incomingConnection(mod *Module, to PartID) *Connection {
	var fallback *Connection
	for i := range mod.Connections {
		conn := &mod.Connections[i]
		if conn.ToPart != to {
			continue
		}
		toPart := mod.PartByID(to)
		if toPart != nil {
			sockets := toPart.InputSockets()
			if conn.ToSocket < len(sockets) && sockets[conn.ToSocket] == SocketKindTrigger {
				if fallback == nil {
					fallback = conn
				}
				continue
			}
		}
		return conn
	}
	return fallback
}
