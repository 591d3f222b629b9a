package module

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrLongNight/mapflow-go/engine/audio"
)

func addAudioTrigger(t *testing.T, manager *Manager, config AudioTriggerOutputConfig, threshold float32) (uint64, PartID) {
	t.Helper()
	moduleID := manager.CreateModule("Test Module")
	mod := manager.Module(moduleID)
	require.NotNil(t, mod)

	partID := mod.AddPart(Part{
		Type: PartTypeTrigger,
		Trigger: &TriggerSpec{
			Kind:         TriggerAudioFFT,
			Band:         audio.BandBass,
			Threshold:    threshold,
			OutputConfig: config,
		},
	})
	return moduleID, partID
}

func TestTriggerSystemInitiallyEmpty(t *testing.T) {
	system := NewTriggerSystem()
	assert.Empty(t, system.ActiveTriggers())

	system.Update(NewManager(), audio.Analysis{}, 0.016)
	assert.Empty(t, system.ActiveTriggers())
}

func TestSocketCountFormula(t *testing.T) {
	cases := []struct {
		config AudioTriggerOutputConfig
		want   int
	}{
		{AudioTriggerOutputConfig{}, 1}, // all disabled: fallback beat socket
		{AudioTriggerOutputConfig{FrequencyBands: true}, 9},
		{AudioTriggerOutputConfig{VolumeOutputs: true}, 2},
		{AudioTriggerOutputConfig{BeatOutput: true}, 1},
		{AudioTriggerOutputConfig{BPMOutput: true}, 1},
		{AudioTriggerOutputConfig{FrequencyBands: true, VolumeOutputs: true, BeatOutput: true, BPMOutput: true}, 13},
		{AudioTriggerOutputConfig{VolumeOutputs: true, BeatOutput: true}, 3},
	}

	for _, tc := range cases {
		spec := TriggerSpec{Kind: TriggerAudioFFT, OutputConfig: tc.config}
		assert.Len(t, spec.SocketLayout(), tc.want)
	}
}

func TestAudioFFTBands(t *testing.T) {
	system := NewTriggerSystem()
	manager := NewManager()
	_, partID := addAudioTrigger(t, manager, AudioTriggerOutputConfig{FrequencyBands: true}, 0.5)

	for band := 0; band < audio.BandCount; band++ {
		var analysis audio.Analysis
		analysis.BandEnergies[band] = 0.8

		system.Update(manager, analysis, 0.016)

		assert.True(t, system.IsActive(partID, band), "band %d should be active", band)
		assert.Len(t, system.ActiveTriggers(), 1, "only one band should be active")
	}
}

func TestAudioFFTVolumeAndBeatSockets(t *testing.T) {
	system := NewTriggerSystem()
	manager := NewManager()
	config := AudioTriggerOutputConfig{VolumeOutputs: true, BeatOutput: true}
	_, partID := addAudioTrigger(t, manager, config, 0.5)

	analysis := audio.Analysis{
		RMSVolume:    0.6,
		PeakVolume:   0.4,
		BeatDetected: true,
	}
	system.Update(manager, analysis, 0.016)

	// Bands disabled, so RMS sits at socket 0, peak at 1, beat at 2.
	assert.True(t, system.IsActive(partID, 0), "RMS socket should be active")
	assert.False(t, system.IsActive(partID, 1), "peak socket should not be active")
	assert.True(t, system.IsActive(partID, 2), "beat socket should be active")
}

func TestUpdateClearsPreviousState(t *testing.T) {
	system := NewTriggerSystem()
	manager := NewManager()
	_, partID := addAudioTrigger(t, manager, AudioTriggerOutputConfig{BeatOutput: true}, 0.5)

	analysis := audio.Analysis{BeatDetected: true}
	system.Update(manager, analysis, 0.016)
	assert.True(t, system.IsActive(partID, 0))

	analysis.BeatDetected = false
	system.Update(manager, analysis, 0.016)
	assert.False(t, system.IsActive(partID, 0))
}

func TestThresholdBoundary(t *testing.T) {
	system := NewTriggerSystem()
	manager := NewManager()
	_, partID := addAudioTrigger(t, manager, AudioTriggerOutputConfig{FrequencyBands: true}, 0.8)

	var analysis audio.Analysis
	analysis.BandEnergies[audio.BandBass] = 0.79
	system.Update(manager, analysis, 0.016)
	assert.False(t, system.IsActive(partID, int(audio.BandBass)))

	analysis.BandEnergies[audio.BandBass] = 0.81
	system.Update(manager, analysis, 0.016)
	assert.True(t, system.IsActive(partID, int(audio.BandBass)))
}

func TestDynamicSocketIndexing(t *testing.T) {
	system := NewTriggerSystem()
	manager := NewManager()
	config := AudioTriggerOutputConfig{VolumeOutputs: true, BeatOutput: true, BPMOutput: true}
	_, partID := addAudioTrigger(t, manager, config, 0.5)

	analysis := audio.Analysis{
		RMSVolume:    0.9,
		PeakVolume:   0.9,
		BeatDetected: true,
		BPM:          120,
		HasBPM:       true,
	}
	system.Update(manager, analysis, 0.016)

	assert.True(t, system.IsActive(partID, 0), "RMS should be active")
	assert.True(t, system.IsActive(partID, 1), "peak should be active")
	assert.True(t, system.IsActive(partID, 2), "beat should be active")
	assert.False(t, system.IsActive(partID, 3), "BPM socket is reserved and never fires")
}

func TestFallbackBeatSocket(t *testing.T) {
	system := NewTriggerSystem()
	manager := NewManager()
	_, partID := addAudioTrigger(t, manager, AudioTriggerOutputConfig{}, 0.5)

	analysis := audio.Analysis{BeatDetected: true}
	system.Update(manager, analysis, 0.016)

	assert.True(t, system.IsActive(partID, 0), "fallback beat output should be active")
}

func TestNaNAndInfinityRobustness(t *testing.T) {
	system := NewTriggerSystem()
	manager := NewManager()
	config := AudioTriggerOutputConfig{FrequencyBands: true, VolumeOutputs: true, BeatOutput: true, BPMOutput: true}
	_, partID := addAudioTrigger(t, manager, config, 0.5)

	var analysis audio.Analysis
	analysis.BandEnergies[0] = float32(math.NaN())
	analysis.BandEnergies[1] = float32(math.Inf(1))
	analysis.BandEnergies[2] = float32(math.Inf(-1))
	analysis.RMSVolume = float32(math.NaN())
	analysis.PeakVolume = float32(math.Inf(1))

	system.Update(manager, analysis, 0.016)

	assert.False(t, system.IsActive(partID, 0), "NaN input must not trigger")
	assert.True(t, system.IsActive(partID, 1), "+Inf exceeds any finite threshold")
	assert.False(t, system.IsActive(partID, 2), "-Inf must not trigger")
	assert.False(t, system.IsActive(partID, 9), "NaN RMS must not trigger")
	assert.True(t, system.IsActive(partID, 10), "+Inf peak must trigger")
}

func TestInvertedBandOutput(t *testing.T) {
	system := NewTriggerSystem()
	manager := NewManager()

	config := AudioTriggerOutputConfig{FrequencyBands: true}
	config.Invert(BandOutput(audio.BandBass))
	_, partID := addAudioTrigger(t, manager, config, 0.5)

	var analysis audio.Analysis
	analysis.BandEnergies[audio.BandBass] = 0.4
	system.Update(manager, analysis, 0.016)
	assert.True(t, system.IsActive(partID, int(audio.BandBass)),
		"inverted bass should be active below threshold")

	analysis.BandEnergies[audio.BandBass] = 0.6
	system.Update(manager, analysis, 0.016)
	assert.False(t, system.IsActive(partID, int(audio.BandBass)),
		"inverted bass should be inactive above threshold")

	// The sub-bass socket is not inverted and keeps normal logic.
	analysis.BandEnergies[audio.BandBass] = 0
	analysis.BandEnergies[audio.BandSubBass] = 0.6
	system.Update(manager, analysis, 0.016)
	assert.True(t, system.IsActive(partID, int(audio.BandSubBass)))
}

func TestInvertedOutputByPersistedName(t *testing.T) {
	system := NewTriggerSystem()
	manager := NewManager()

	// A config loaded from a project file carries inverted outputs as names.
	config := AudioTriggerOutputConfig{
		VolumeOutputs: true,
		InvertedNames: []string{"RMS Volume"},
	}
	_, partID := addAudioTrigger(t, manager, config, 0.5)

	analysis := audio.Analysis{RMSVolume: 0.4}
	system.Update(manager, analysis, 0.016)
	assert.True(t, system.IsActive(partID, 0), "inverted RMS active below threshold")

	analysis.RMSVolume = 0.6
	system.Update(manager, analysis, 0.016)
	assert.False(t, system.IsActive(partID, 0), "inverted RMS inactive above threshold")
}

func TestFixedTriggerInterval(t *testing.T) {
	system := NewTriggerSystem()
	manager := NewManager()
	moduleID := manager.CreateModule("Timing")
	mod := manager.Module(moduleID)
	partID := mod.AddPart(Part{
		Type:    PartTypeTrigger,
		Trigger: &TriggerSpec{Kind: TriggerFixed, Interval: 0.1},
	})

	fired := 0
	for i := 0; i < 10; i++ {
		system.Update(manager, audio.Analysis{}, 0.05)
		if system.IsActive(partID, 0) {
			fired++
		}
	}
	// 500ms of updates with a 100ms interval fires five times.
	assert.Equal(t, 5, fired)
}

func TestExternalEventTrigger(t *testing.T) {
	system := NewTriggerSystem()
	manager := NewManager()
	moduleID := manager.CreateModule("External")
	mod := manager.Module(moduleID)
	partID := mod.AddPart(Part{
		Type:    PartTypeTrigger,
		Trigger: &TriggerSpec{Kind: TriggerMidi, Threshold: 0.5, Address: "note:36"},
	})

	system.InjectEvent(partID, 1.0)
	system.Update(manager, audio.Analysis{}, 0.016)
	assert.True(t, system.IsActive(partID, 0))

	// Events apply to a single update.
	system.Update(manager, audio.Analysis{}, 0.016)
	assert.False(t, system.IsActive(partID, 0))
}
