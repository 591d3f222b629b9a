package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrLongNight/mapflow-go/engine/audio"
	"github.com/MrLongNight/mapflow-go/engine/mapping"
)

// buildBeatChain wires AudioFFT -> Source -> Layer -> Output{Projector 1}.
func buildBeatChain(t *testing.T) (*Manager, *Module, PartID, PartID, PartID, PartID) {
	t.Helper()
	manager := NewManager()
	moduleID := manager.CreateModule("Beat Chain")
	mod := manager.Module(moduleID)

	triggerID := mod.AddPart(Part{
		Type: PartTypeTrigger,
		Trigger: &TriggerSpec{
			Kind:         TriggerAudioFFT,
			Band:         audio.BandBass,
			Threshold:    0.5,
			OutputConfig: AudioTriggerOutputConfig{BeatOutput: true},
		},
	})
	sourceID := mod.AddPart(Part{
		Type:   PartTypeSource,
		Source: &SourceSpec{Kind: SourceKindShader, Name: "particles"},
	})
	layerID := mod.AddPart(Part{
		Type:  PartTypeLayer,
		Layer: &LayerSpec{Opacity: 1},
	})
	outputID := mod.AddPart(Part{
		Type:   PartTypeOutput,
		Output: &OutputSpec{Kind: OutputKindProjector, ProjectorID: 1},
	})

	require.NoError(t, mod.Connect(Connection{FromPart: triggerID, FromSocket: 0, ToPart: sourceID, ToSocket: 0}))
	require.NoError(t, mod.Connect(Connection{FromPart: sourceID, FromSocket: 0, ToPart: layerID, ToSocket: 0}))
	require.NoError(t, mod.Connect(Connection{FromPart: layerID, FromSocket: 0, ToPart: outputID, ToSocket: 0}))

	return manager, mod, triggerID, sourceID, layerID, outputID
}

func TestEvaluateEmptyModule(t *testing.T) {
	evaluator := NewEvaluator()
	result := evaluator.Evaluate(&Module{ID: 1, Name: "Empty"})
	assert.Empty(t, result.TriggerValues)
	assert.Empty(t, result.SourceCommands)
	assert.Empty(t, result.RenderOps)
}

func TestBeatDrivenChainEmitsSourceAndOp(t *testing.T) {
	_, mod, triggerID, sourceID, layerID, _ := buildBeatChain(t)

	evaluator := NewEvaluator()
	var analysis audio.Analysis
	analysis.BandEnergies[audio.BandBass] = 0.6
	analysis.BeatDetected = true
	evaluator.UpdateAudio(analysis)

	result := evaluator.Evaluate(mod)

	require.Contains(t, result.TriggerValues, triggerID)
	assert.Equal(t, []float32{1}, result.TriggerValues[triggerID])

	require.Contains(t, result.SourceCommands, sourceID)
	cmd := result.SourceCommands[sourceID]
	assert.Equal(t, SourceCommandPlayShader, cmd.Kind)
	assert.Equal(t, "particles", cmd.Name)
	assert.Equal(t, float32(1), cmd.TriggerValue)

	require.Len(t, result.RenderOps, 1)
	op := result.RenderOps[0]
	assert.Equal(t, uint64(1), op.Output.ID)
	assert.Equal(t, OutputKindProjector, op.Output.Kind)
	require.NotNil(t, op.SourcePartID)
	assert.Equal(t, sourceID, *op.SourcePartID)
	assert.Equal(t, layerID, op.LayerPartID)
	assert.Equal(t, float32(1), op.Opacity)
}

func TestBeatReleaseKeepsOpWithoutSourceCommand(t *testing.T) {
	_, mod, _, _, _, _ := buildBeatChain(t)

	evaluator := NewEvaluator()
	evaluator.UpdateAudio(audio.Analysis{}) // silence, no beat

	result := evaluator.Evaluate(mod)

	// No command fires, but the output op still renders so the last state
	// can fade rather than vanish.
	assert.Empty(t, result.SourceCommands)
	require.Len(t, result.RenderOps, 1)
	require.NotNil(t, result.RenderOps[0].SourcePartID)
}

func TestEvaluatorIsIdempotentWithinFrame(t *testing.T) {
	_, mod, _, _, _, _ := buildBeatChain(t)

	evaluator := NewEvaluator()
	var analysis audio.Analysis
	analysis.BeatDetected = true
	analysis.BandEnergies[audio.BandBass] = 0.7
	evaluator.UpdateAudio(analysis)

	first := evaluator.Evaluate(mod)
	second := evaluator.Evaluate(mod)

	assert.Equal(t, first.TriggerValues, second.TriggerValues)
	assert.Equal(t, first.SourceCommands, second.SourceCommands)
	assert.Equal(t, first.RenderOps, second.RenderOps)
}

func TestRenderOpsOrderedByOutputPartDescending(t *testing.T) {
	manager := NewManager()
	moduleID := manager.CreateModule("Stack")
	mod := manager.Module(moduleID)

	first := mod.AddPart(Part{Type: PartTypeOutput, Output: &OutputSpec{Kind: OutputKindProjector, ProjectorID: 10}})
	second := mod.AddPart(Part{Type: PartTypeOutput, Output: &OutputSpec{Kind: OutputKindProjector, ProjectorID: 11}})
	third := mod.AddPart(Part{Type: PartTypeOutput, Output: &OutputSpec{Kind: OutputKindProjector, ProjectorID: 12}})

	result := NewEvaluator().Evaluate(mod)
	require.Len(t, result.RenderOps, 3)
	assert.Equal(t, third, result.RenderOps[0].OutputPartID)
	assert.Equal(t, second, result.RenderOps[1].OutputPartID)
	assert.Equal(t, first, result.RenderOps[2].OutputPartID)
}

func TestUnreachableOutputStillEmitsOp(t *testing.T) {
	manager := NewManager()
	moduleID := manager.CreateModule("Orphan Output")
	mod := manager.Module(moduleID)
	outputID := mod.AddPart(Part{
		Type:   PartTypeOutput,
		Output: &OutputSpec{Kind: OutputKindNdi, Name: "Stage Left"},
	})

	result := NewEvaluator().Evaluate(mod)
	require.Len(t, result.RenderOps, 1)

	op := result.RenderOps[0]
	assert.Nil(t, op.SourcePartID, "no source ancestor resolves to a grid render")
	assert.Equal(t, outputID, op.Output.ID, "non-projector outputs bind by part ID")
	assert.Equal(t, OutputKindNdi, op.Output.Kind)
	assert.False(t, op.Mesh.IsEmpty())
}

func TestLayerMeshAndOpacityPropagate(t *testing.T) {
	manager := NewManager()
	moduleID := manager.CreateModule("Warped")
	mod := manager.Module(moduleID)

	warp := mapping.NewGridMesh(2, 2)
	sourceID := mod.AddPart(Part{
		Type:   PartTypeSource,
		Source: &SourceSpec{Kind: SourceKindMediaFile, Path: "loop.mp4"},
		Props:  &SourceProps{FlipH: true, Contrast: 1.2, Saturation: 1},
	})
	layerID := mod.AddPart(Part{
		Type:  PartTypeLayer,
		Layer: &LayerSpec{Opacity: 0.5},
		Mesh:  &warp,
	})
	outputID := mod.AddPart(Part{
		Type:   PartTypeOutput,
		Output: &OutputSpec{Kind: OutputKindProjector, ProjectorID: 2},
	})
	require.NoError(t, mod.Connect(Connection{FromPart: sourceID, FromSocket: 0, ToPart: layerID, ToSocket: 0}))
	require.NoError(t, mod.Connect(Connection{FromPart: layerID, FromSocket: 0, ToPart: outputID, ToSocket: 0}))

	result := NewEvaluator().Evaluate(mod)
	require.Len(t, result.RenderOps, 1)
	op := result.RenderOps[0]

	assert.Equal(t, layerID, op.LayerPartID)
	assert.Equal(t, warp.ContentHash(), op.Mesh.ContentHash())
	assert.Equal(t, float32(0.5), op.Opacity)
	require.NotNil(t, op.SourcePartID)
	assert.True(t, op.Props.FlipH)
	assert.Equal(t, float32(1.2), op.Props.Contrast)
}

func TestMediaSourceRequiresPath(t *testing.T) {
	evaluator := NewEvaluator()
	_, ok := evaluator.sourceCommand(&SourceSpec{Kind: SourceKindMediaFile}, 1.0)
	assert.False(t, ok, "empty path must not produce a command")

	_, ok = evaluator.sourceCommand(&SourceSpec{Kind: SourceKindMediaFile, Path: "x.mp4"}, 0.05)
	assert.False(t, ok, "below activation threshold")

	cmd, ok := evaluator.sourceCommand(&SourceSpec{Kind: SourceKindMediaFile, Path: "x.mp4"}, 0.2)
	require.True(t, ok)
	assert.Equal(t, SourceCommandPlayMedia, cmd.Kind)
	assert.Equal(t, "x.mp4", cmd.Path)
}

func TestConnectValidation(t *testing.T) {
	manager := NewManager()
	moduleID := manager.CreateModule("Validation")
	mod := manager.Module(moduleID)

	triggerID := mod.AddPart(Part{
		Type:    PartTypeTrigger,
		Trigger: &TriggerSpec{Kind: TriggerBeat},
	})
	sourceID := mod.AddPart(Part{Type: PartTypeSource, Source: &SourceSpec{Kind: SourceKindShader}})
	layerID := mod.AddPart(Part{Type: PartTypeLayer, Layer: &LayerSpec{Opacity: 1}})

	// Kind mismatch: a trigger output cannot feed a media input.
	err := mod.Connect(Connection{FromPart: triggerID, FromSocket: 0, ToPart: layerID, ToSocket: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kind mismatch")

	// Valid connection.
	require.NoError(t, mod.Connect(Connection{FromPart: triggerID, FromSocket: 0, ToPart: sourceID, ToSocket: 0}))

	// Occupied input socket.
	otherTrigger := mod.AddPart(Part{Type: PartTypeTrigger, Trigger: &TriggerSpec{Kind: TriggerBeat}})
	err = mod.Connect(Connection{FromPart: otherTrigger, FromSocket: 0, ToPart: sourceID, ToSocket: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already connected")

	// Unknown part.
	err = mod.Connect(Connection{FromPart: 999, FromSocket: 0, ToPart: sourceID, ToSocket: 0})
	require.Error(t, err)

	// Socket out of range.
	err = mod.Connect(Connection{FromPart: triggerID, FromSocket: 5, ToPart: sourceID, ToSocket: 0})
	require.Error(t, err)
}

func TestConnectRejectsCycles(t *testing.T) {
	manager := NewManager()
	moduleID := manager.CreateModule("Cycles")
	mod := manager.Module(moduleID)

	a := mod.AddPart(Part{Type: PartTypeModulator})
	b := mod.AddPart(Part{Type: PartTypeModulator})

	require.NoError(t, mod.Connect(Connection{FromPart: a, FromSocket: 0, ToPart: b, ToSocket: 0}))

	err := mod.Connect(Connection{FromPart: b, FromSocket: 0, ToPart: a, ToSocket: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")

	// Self loops are cycles too.
	c := mod.AddPart(Part{Type: PartTypeModulator})
	err = mod.Connect(Connection{FromPart: c, FromSocket: 0, ToPart: c, ToSocket: 0})
	require.Error(t, err)
}
