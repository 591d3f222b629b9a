// Package project defines the persisted project document and its text and
// binary serializations. Unknown fields in loaded documents fall back to
// defaults so newer files open in older builds.
package project

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrLongNight/mapflow-go/control/hue"
	"github.com/MrLongNight/mapflow-go/engine/anim"
	"github.com/MrLongNight/mapflow-go/engine/module"
	"github.com/MrLongNight/mapflow-go/engine/output"
	"github.com/MrLongNight/mapflow-go/engine/renderer/compositor"
	"github.com/MrLongNight/mapflow-go/engine/renderer/shadergraph"
)

// FormatVersion is the current document version.
const FormatVersion = 3

// AudioConfig holds the persisted analyzer settings.
type AudioConfig struct {
	DeviceName string  `yaml:"device_name,omitempty"`
	SampleRate int     `yaml:"sample_rate"`
	FFTSize    int     `yaml:"fft_size"`
	NoiseGate  float32 `yaml:"noise_gate"`
	Smoothing  float32 `yaml:"smoothing"`
}

// DefaultAudioConfig returns the analyzer defaults.
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{SampleRate: 44100, FFTSize: 1024, NoiseGate: 0.01, Smoothing: 0.6}
}

// OscillatorConfig drives the LFO modulation sources.
type OscillatorConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Frequency float32 `yaml:"frequency"`
	Amplitude float32 `yaml:"amplitude"`
	Waveform  string  `yaml:"waveform,omitempty"`
}

// EffectEntry persists one effect chain element.
type EffectEntry struct {
	ID           uint64             `yaml:"id"`
	Name         string             `yaml:"name"`
	Enabled      bool               `yaml:"enabled"`
	Params       map[string]float32 `yaml:"params,omitempty"`
	LutSelection string             `yaml:"lut_selection,omitempty"`
	// GraphID links shader-graph effects to their graph.
	GraphID uint64 `yaml:"graph_id,omitempty"`
}

// Assignment routes a control target to a MIDI/OSC address.
type Assignment struct {
	Address string `yaml:"address"`
	Target  string `yaml:"target"`
}

// Settings holds miscellaneous per-project options.
type Settings struct {
	CanvasWidth    uint32 `yaml:"canvas_width"`
	CanvasHeight   uint32 `yaml:"canvas_height"`
	TargetFPS      int    `yaml:"target_fps"`
	LutDirectory   string `yaml:"lut_directory,omitempty"`
	DMXUniverse    uint16 `yaml:"dmx_universe"`
	DMXRefreshRate uint32 `yaml:"dmx_refresh_rate"`
}

// DefaultSettings returns the settings defaults.
func DefaultSettings() Settings {
	return Settings{
		CanvasWidth:    1920,
		CanvasHeight:   1080,
		TargetFPS:      60,
		DMXUniverse:    1,
		DMXRefreshRate: 30,
	}
}

// Document is the full persisted project.
type Document struct {
	Name    string `yaml:"name"`
	Version int    `yaml:"version"`

	LayerManager   compositor.Stack                           `yaml:"layer_manager"`
	OutputManager  *output.Manager                            `yaml:"output_manager"`
	ModuleManager  *module.Manager                            `yaml:"module_manager"`
	EffectAnimator *anim.EffectAnimator                       `yaml:"effect_animator"`
	ShaderGraphs   map[shadergraph.GraphID]*shadergraph.Graph `yaml:"shader_graphs"`
	EffectChain    []EffectEntry                              `yaml:"effect_chain"`
	Assignments    []Assignment                               `yaml:"assignment_manager"`
	AudioConfig    AudioConfig                                `yaml:"audio_config"`
	Oscillator     OscillatorConfig                           `yaml:"oscillator_config"`
	HueConfig      hue.Config                                 `yaml:"hue_config"`
	Settings       Settings                                   `yaml:"settings"`

	// dirty tracks unsaved edits; never persisted.
	dirty bool
}

// NewDocument creates a named document with defaults.
func NewDocument(name string) *Document {
	return &Document{
		Name:           name,
		Version:        FormatVersion,
		OutputManager:  output.NewManager(1920, 1080),
		ModuleManager:  module.NewManager(),
		EffectAnimator: anim.NewEffectAnimator(),
		ShaderGraphs:   make(map[shadergraph.GraphID]*shadergraph.Graph),
		AudioConfig:    DefaultAudioConfig(),
		Settings:       DefaultSettings(),
	}
}

// MarkDirty flags unsaved edits.
func (d *Document) MarkDirty() { d.dirty = true }

// Dirty reports unsaved edits.
func (d *Document) Dirty() bool { return d.dirty }

// MarshalText renders the document as YAML.
func (d *Document) MarshalText() ([]byte, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize project %q: %w", d.Name, err)
	}
	return data, nil
}

// UnmarshalText parses a YAML document. Unknown fields are ignored; absent
// fields keep their defaults.
func UnmarshalText(data []byte) (*Document, error) {
	doc := NewDocument("")
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse project: %w", err)
	}
	doc.normalize()
	return doc, nil
}

// MarshalBinary renders the document in the gob binary form.
func (d *Document) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(d); err != nil {
		return nil, fmt.Errorf("failed to encode project %q: %w", d.Name, err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary parses the gob binary form.
func UnmarshalBinary(data []byte) (*Document, error) {
	doc := NewDocument("")
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, fmt.Errorf("failed to decode project: %w", err)
	}
	doc.normalize()
	return doc, nil
}

// normalize repairs nil sub-managers of sparse documents.
func (d *Document) normalize() {
	if d.OutputManager == nil {
		d.OutputManager = output.NewManager(d.Settings.CanvasWidth, d.Settings.CanvasHeight)
	}
	if d.ModuleManager == nil {
		d.ModuleManager = module.NewManager()
	}
	if d.EffectAnimator == nil {
		d.EffectAnimator = anim.NewEffectAnimator()
	}
	if d.ShaderGraphs == nil {
		d.ShaderGraphs = make(map[shadergraph.GraphID]*shadergraph.Graph)
	}
	if d.Version == 0 {
		d.Version = FormatVersion
	}
	d.OutputManager.Normalize()
	d.ModuleManager.Normalize()
	for _, graph := range d.ShaderGraphs {
		graph.Normalize()
	}
	d.dirty = false
}

// Save writes the document to disk, choosing the binary form for the
// .mapflowb extension and YAML otherwise. The dirty flag clears on success.
//
// Parameters:
//   - path: the destination file
//
// Returns:
//   - error: serialization or write failure
func (d *Document) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isBinaryPath(path) {
		data, err = d.MarshalBinary()
	} else {
		data, err = d.MarshalText()
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write project %q: %w", path, err)
	}
	d.dirty = false
	return nil
}

// Load reads a document from disk, detecting the form by extension.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project %q: %w", path, err)
	}
	if isBinaryPath(path) {
		return UnmarshalBinary(data)
	}
	return UnmarshalText(data)
}

func isBinaryPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mapflowb")
}
