package module

import (
	"math/rand"

	"github.com/chewxy/math32"

	"github.com/MrLongNight/mapflow-go/engine/audio"
)

// TriggerKind distinguishes the trigger part variants.
type TriggerKind int

const (
	// TriggerAudioFFT derives outputs from the audio analyzer.
	TriggerAudioFFT TriggerKind = iota
	// TriggerBeat is a single-output beat pulse.
	TriggerBeat
	// TriggerFixed fires on a fixed time interval.
	TriggerFixed
	// TriggerRandom fires randomly with a configured probability per second.
	TriggerRandom
	// TriggerMidi is driven by injected MIDI events.
	TriggerMidi
	// TriggerOsc is driven by injected OSC events.
	TriggerOsc
	// TriggerShortcut is driven by injected keyboard shortcut events.
	TriggerShortcut
)

// OutputKind identifies one dynamic output of an audio trigger: a frequency
// band, a volume reading, the beat pulse, or the tempo estimate.
type OutputKind struct {
	class outputClass
	band  audio.Band
}

type outputClass int

const (
	outputClassBand outputClass = iota
	outputClassRMS
	outputClassPeak
	outputClassBeat
	outputClassBPM
)

// BandOutput returns the OutputKind for one frequency band.
func BandOutput(band audio.Band) OutputKind {
	return OutputKind{class: outputClassBand, band: band}
}

// Fixed output kinds.
var (
	RMSOutput  = OutputKind{class: outputClassRMS}
	PeakOutput = OutputKind{class: outputClassPeak}
	BeatOutput = OutputKind{class: outputClassBeat}
	BPMOutput  = OutputKind{class: outputClassBPM}
)

// Name returns the display label for this output. The trigger inspector
// shows these on the sockets; the inverted-output set is keyed by them.
func (k OutputKind) Name() string {
	switch k.class {
	case outputClassBand:
		return k.band.String() + " Out"
	case outputClassRMS:
		return "RMS Volume"
	case outputClassPeak:
		return "Peak Volume"
	case outputClassBeat:
		return "Beat"
	case outputClassBPM:
		return "BPM"
	default:
		return "Unknown"
	}
}

// IsBPM reports whether this kind is the reserved tempo output.
func (k OutputKind) IsBPM() bool { return k.class == outputClassBPM }

// AudioTriggerOutputConfig selects which output sockets an audio trigger
// exposes. The socket ordering is fixed: the nine band outputs (when
// enabled), then RMS, peak, beat, and BPM.
type AudioTriggerOutputConfig struct {
	FrequencyBands bool `yaml:"frequency_bands"`
	VolumeOutputs  bool `yaml:"volume_outputs"`
	BeatOutput     bool `yaml:"beat_output"`
	BPMOutput      bool `yaml:"bpm_output"`
	// Inverted holds the kinds whose threshold logic is negated.
	Inverted map[OutputKind]bool `yaml:"-"`
	// InvertedNames persists the inverted set by display name.
	InvertedNames []string `yaml:"inverted_outputs,omitempty"`
}

// DefaultAudioTriggerOutputConfig enables the beat output only.
func DefaultAudioTriggerOutputConfig() AudioTriggerOutputConfig {
	return AudioTriggerOutputConfig{BeatOutput: true}
}

// IsInverted reports whether the given output negates its threshold.
func (c *AudioTriggerOutputConfig) IsInverted(kind OutputKind) bool {
	if c.Inverted != nil && c.Inverted[kind] {
		return true
	}
	name := kind.Name()
	for _, n := range c.InvertedNames {
		if n == name {
			return true
		}
	}
	return false
}

// Invert marks an output kind as inverted.
func (c *AudioTriggerOutputConfig) Invert(kind OutputKind) {
	if c.Inverted == nil {
		c.Inverted = make(map[OutputKind]bool)
	}
	c.Inverted[kind] = true
	c.InvertedNames = append(c.InvertedNames, kind.Name())
}

// TriggerSpec configures a Trigger part.
type TriggerSpec struct {
	Kind TriggerKind `yaml:"kind"`

	// Band is the primary band shown in the editor for audio triggers.
	Band audio.Band `yaml:"band,omitempty"`
	// Threshold in [0, 1]; an output is active when its value exceeds it.
	Threshold float32 `yaml:"threshold"`
	// OutputConfig drives the dynamic socket layout of audio triggers.
	OutputConfig AudioTriggerOutputConfig `yaml:"output_config"`

	// Interval is the period in seconds for fixed triggers.
	Interval float64 `yaml:"interval,omitempty"`
	// Probability is the chance per second for random triggers.
	Probability float32 `yaml:"probability,omitempty"`
	// Address is the bound external address for MIDI/OSC/shortcut triggers.
	Address string `yaml:"address,omitempty"`
}

// SocketLayout returns the ordered output kinds this trigger emits. When
// every toggle of an audio trigger is off, a single beat output at socket 0
// is synthesized so the part never dangles without outputs.
func (t *TriggerSpec) SocketLayout() []OutputKind {
	if t.Kind != TriggerAudioFFT {
		return []OutputKind{BeatOutput}
	}

	var layout []OutputKind
	if t.OutputConfig.FrequencyBands {
		for band := audio.Band(0); band < audio.BandCount; band++ {
			layout = append(layout, BandOutput(band))
		}
	}
	if t.OutputConfig.VolumeOutputs {
		layout = append(layout, RMSOutput, PeakOutput)
	}
	if t.OutputConfig.BeatOutput {
		layout = append(layout, BeatOutput)
	}
	if t.OutputConfig.BPMOutput {
		layout = append(layout, BPMOutput)
	}
	if len(layout) == 0 {
		layout = []OutputKind{BeatOutput}
	}
	return layout
}

// ActiveKey addresses one trigger output socket in the active set.
type ActiveKey struct {
	PartID PartID
	Socket int
}

// TriggerSystem evaluates every trigger part each frame against the current
// audio analysis and injected external events, producing the active set
// consumed by the module evaluator.
type TriggerSystem struct {
	active map[ActiveKey]bool

	// fixedClocks accumulates elapsed time per fixed trigger part.
	fixedClocks map[PartID]float64
	// externalEvents holds injected MIDI/OSC/shortcut activations, cleared
	// each update.
	externalEvents map[PartID]float32

	rng *rand.Rand
}

// NewTriggerSystem creates an empty trigger system.
func NewTriggerSystem() *TriggerSystem {
	return &TriggerSystem{
		active:         make(map[ActiveKey]bool),
		fixedClocks:    make(map[PartID]float64),
		externalEvents: make(map[PartID]float32),
		rng:            rand.New(rand.NewSource(1)),
	}
}

// InjectEvent records an external activation (MIDI note, OSC message,
// keyboard shortcut) for the given trigger part. The value applies to the
// next Update only.
//
// Parameters:
//   - partID: the trigger part bound to the external address
//   - value: activation strength in [0, 1]
func (s *TriggerSystem) InjectEvent(partID PartID, value float32) {
	s.externalEvents[partID] = value
}

// IsActive reports whether the given trigger output socket fired in the
// last Update.
func (s *TriggerSystem) IsActive(partID PartID, socket int) bool {
	return s.active[ActiveKey{PartID: partID, Socket: socket}]
}

// ActiveTriggers returns the current active set. The map is owned by the
// system and valid until the next Update.
func (s *TriggerSystem) ActiveTriggers() map[ActiveKey]bool {
	return s.active
}

// Update re-evaluates every trigger part. Previous state is cleared first;
// an output is present in the active set only if it fired this frame.
//
// Parameters:
//   - manager: the module graphs to scan for trigger parts
//   - analysis: current audio analyzer output
//   - dt: seconds since the previous update
func (s *TriggerSystem) Update(manager *Manager, analysis audio.Analysis, dt float64) {
	clear(s.active)

	for _, mod := range manager.Modules {
		for i := range mod.Parts {
			part := &mod.Parts[i]
			if part.Type != PartTypeTrigger || part.Trigger == nil {
				continue
			}
			s.evaluatePart(part, analysis, dt)
		}
	}

	clear(s.externalEvents)
}

func (s *TriggerSystem) evaluatePart(part *Part, analysis audio.Analysis, dt float64) {
	spec := part.Trigger

	switch spec.Kind {
	case TriggerAudioFFT:
		for socket, kind := range spec.SocketLayout() {
			if kind.IsBPM() {
				// The tempo socket carries a value for modulation but is
				// reserved as a boolean trigger.
				continue
			}
			value := s.outputValue(kind, analysis)
			if s.activeFor(value, spec.Threshold, spec.OutputConfig.IsInverted(kind)) {
				s.active[ActiveKey{PartID: part.ID, Socket: socket}] = true
			}
		}

	case TriggerBeat:
		if analysis.BeatDetected {
			s.active[ActiveKey{PartID: part.ID, Socket: 0}] = true
		}

	case TriggerFixed:
		if spec.Interval <= 0 {
			return
		}
		clock := s.fixedClocks[part.ID] + dt
		if clock >= spec.Interval {
			clock -= spec.Interval
			s.active[ActiveKey{PartID: part.ID, Socket: 0}] = true
		}
		s.fixedClocks[part.ID] = clock

	case TriggerRandom:
		if s.rng.Float64() < float64(spec.Probability)*dt {
			s.active[ActiveKey{PartID: part.ID, Socket: 0}] = true
		}

	case TriggerMidi, TriggerOsc, TriggerShortcut:
		if value, ok := s.externalEvents[part.ID]; ok {
			if s.activeFor(value, spec.Threshold, false) {
				s.active[ActiveKey{PartID: part.ID, Socket: 0}] = true
			}
		}
	}
}

// outputValue maps an output kind to its analyzer reading.
func (s *TriggerSystem) outputValue(kind OutputKind, analysis audio.Analysis) float32 {
	switch kind.class {
	case outputClassBand:
		return analysis.BandEnergies[kind.band]
	case outputClassRMS:
		return analysis.RMSVolume
	case outputClassPeak:
		return analysis.PeakVolume
	case outputClassBeat:
		if analysis.BeatDetected {
			return 1
		}
		return 0
	case outputClassBPM:
		if analysis.HasBPM {
			return analysis.BPM / 200 // normalized tempo
		}
		return 0
	default:
		return 0
	}
}

// activeFor applies threshold logic with inversion. NaN never activates,
// even inverted; +Inf exceeds any finite threshold; -Inf never does.
func (s *TriggerSystem) activeFor(value, threshold float32, inverted bool) bool {
	if math32.IsNaN(value) {
		return false
	}
	active := value > threshold
	if inverted {
		active = !active
	}
	return active
}
