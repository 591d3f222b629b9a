package project

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrLongNight/mapflow-go/engine/module"
	"github.com/MrLongNight/mapflow-go/engine/output"
	"github.com/MrLongNight/mapflow-go/engine/renderer/compositor"
	"github.com/MrLongNight/mapflow-go/engine/renderer/shadergraph"
)

func buildDocument(t *testing.T) *Document {
	t.Helper()
	doc := NewDocument("Show A")

	doc.OutputManager.AddOutput("Main", output.NewCanvasRegion(0, 0, 1, 1), 1920, 1080)

	moduleID := doc.ModuleManager.CreateModule("Intro")
	mod := doc.ModuleManager.Module(moduleID)
	mod.AddPart(module.Part{
		Type:   module.PartTypeSource,
		Source: &module.SourceSpec{Kind: module.SourceKindMediaFile, Path: "intro.mp4"},
	})

	doc.LayerManager = compositor.Stack{
		Layers: []compositor.Layer{{ID: 1, Name: "Base", Opacity: 1, Visible: true}},
	}

	graph := shadergraph.NewGraph(1, "grade")
	graph.AddNode(shadergraph.NodeOutput)
	doc.ShaderGraphs[1] = graph

	doc.EffectChain = []EffectEntry{{ID: 1, Name: "Blur", Enabled: true, Params: map[string]float32{"radius": 3}}}
	return doc
}

func TestYAMLRoundTrip(t *testing.T) {
	doc := buildDocument(t)

	data, err := doc.MarshalText()
	require.NoError(t, err)

	loaded, err := UnmarshalText(data)
	require.NoError(t, err)

	assert.Equal(t, "Show A", loaded.Name)
	assert.Equal(t, FormatVersion, loaded.Version)
	require.Len(t, loaded.OutputManager.Outputs, 1)
	assert.Equal(t, "Main", loaded.OutputManager.Outputs[0].Name)
	require.Len(t, loaded.ModuleManager.Modules, 1)
	assert.Equal(t, "Intro", loaded.ModuleManager.Modules[0].Name)
	require.Len(t, loaded.LayerManager.Layers, 1)
	require.Contains(t, loaded.ShaderGraphs, shadergraph.GraphID(1))
	require.Len(t, loaded.EffectChain, 1)
	assert.Equal(t, float32(3), loaded.EffectChain[0].Params["radius"])
}

func TestBinaryRoundTrip(t *testing.T) {
	doc := buildDocument(t)

	data, err := doc.MarshalBinary()
	require.NoError(t, err)

	loaded, err := UnmarshalBinary(data)
	require.NoError(t, err)
	assert.Equal(t, doc.Name, loaded.Name)
	require.Len(t, loaded.OutputManager.Outputs, 1)
	require.Len(t, loaded.ModuleManager.Modules, 1)
}

func TestDirtyFlagNotPersisted(t *testing.T) {
	doc := buildDocument(t)
	doc.MarkDirty()
	assert.True(t, doc.Dirty())

	data, err := doc.MarshalText()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dirty")

	loaded, err := UnmarshalText(data)
	require.NoError(t, err)
	assert.False(t, loaded.Dirty())
}

func TestUnknownFieldsIgnored(t *testing.T) {
	data := []byte("name: Mystery\nversion: 3\nfuture_feature:\n  setting: 42\n")
	doc, err := UnmarshalText(data)
	require.NoError(t, err)
	assert.Equal(t, "Mystery", doc.Name)
	assert.NotNil(t, doc.OutputManager)
	assert.NotNil(t, doc.ModuleManager)
	assert.Equal(t, DefaultSettings().CanvasWidth, doc.Settings.CanvasWidth)
}

func TestIDCountersRepairAfterLoad(t *testing.T) {
	doc := buildDocument(t)
	data, err := doc.MarshalText()
	require.NoError(t, err)
	loaded, err := UnmarshalText(data)
	require.NoError(t, err)

	// New entities never collide with loaded IDs.
	newOutput := loaded.OutputManager.AddOutput("Second", output.NewCanvasRegion(0, 0, 1, 1), 1280, 720)
	assert.Equal(t, output.ID(2), newOutput)

	newModule := loaded.ModuleManager.CreateModule("Next")
	assert.Equal(t, uint64(2), newModule)

	mod := loaded.ModuleManager.Module(1)
	require.NotNil(t, mod)
	newPart := mod.AddPart(module.Part{Type: module.PartTypeLayer, Layer: &module.LayerSpec{Opacity: 1}})
	assert.Equal(t, module.PartID(2), newPart)
}

func TestSaveAndLoadFiles(t *testing.T) {
	dir := t.TempDir()
	doc := buildDocument(t)
	doc.MarkDirty()

	textPath := filepath.Join(dir, "show.mapflow")
	require.NoError(t, doc.Save(textPath))
	assert.False(t, doc.Dirty(), "save clears the dirty flag")

	loaded, err := Load(textPath)
	require.NoError(t, err)
	assert.Equal(t, doc.Name, loaded.Name)

	binPath := filepath.Join(dir, "show.mapflowb")
	require.NoError(t, doc.Save(binPath))
	loadedBin, err := Load(binPath)
	require.NoError(t, err)
	assert.Equal(t, doc.Name, loadedBin.Name)

	_, err = Load(filepath.Join(dir, "missing.mapflow"))
	require.Error(t, err)
}

func TestDefaultsAreSane(t *testing.T) {
	audio := DefaultAudioConfig()
	assert.Equal(t, 44100, audio.SampleRate)
	assert.Equal(t, 1024, audio.FFTSize)

	settings := DefaultSettings()
	assert.Equal(t, uint16(1), settings.DMXUniverse)
	assert.Equal(t, uint32(30), settings.DMXRefreshRate)
	assert.Equal(t, 60, settings.TargetFPS)
}
