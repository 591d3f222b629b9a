package audio

// AnalyzerBuilderOption is a functional option used to configure an Analyzer during construction.
type AnalyzerBuilderOption func(*analyzer)

// WithSampleRate sets the input sample rate in Hz.
//
// Parameters:
//   - rate: samples per second (defaults to 44100 if <= 0)
//
// Returns:
//   - AnalyzerBuilderOption: a function that sets the sample rate
func WithSampleRate(rate int) AnalyzerBuilderOption {
	return func(a *analyzer) {
		if rate > 0 {
			a.sampleRate = rate
		}
	}
}

// WithFFTSize sets the analysis window length. Must be a power of two;
// invalid values keep the default of 1024.
//
// Parameters:
//   - size: FFT window length in samples
//
// Returns:
//   - AnalyzerBuilderOption: a function that sets the FFT size
func WithFFTSize(size int) AnalyzerBuilderOption {
	return func(a *analyzer) {
		if size >= 64 && size&(size-1) == 0 {
			a.fftSize = size
		}
	}
}

// WithNoiseGate sets the level below which band and volume readings are
// treated as silence.
//
// Parameters:
//   - gate: linear threshold in [0, 1]
//
// Returns:
//   - AnalyzerBuilderOption: a function that sets the noise gate
func WithNoiseGate(gate float32) AnalyzerBuilderOption {
	return func(a *analyzer) {
		if gate >= 0 {
			a.noiseGate = gate
		}
	}
}

// WithSmoothing sets the exponential smoothing factor applied to band and
// RMS readings. 0 disables smoothing, values near 1 respond slowly.
//
// Parameters:
//   - smoothing: smoothing factor in [0, 1)
//
// Returns:
//   - AnalyzerBuilderOption: a function that sets the smoothing factor
func WithSmoothing(smoothing float32) AnalyzerBuilderOption {
	return func(a *analyzer) {
		if smoothing >= 0 && smoothing < 1 {
			a.smoothing = smoothing
		}
	}
}

// WithBeatSensitivity sets the multiple of the rolling average energy a
// low-band excursion must exceed to register as a beat.
//
// Parameters:
//   - sensitivity: threshold multiplier (> 1)
//
// Returns:
//   - AnalyzerBuilderOption: a function that sets the beat sensitivity
func WithBeatSensitivity(sensitivity float32) AnalyzerBuilderOption {
	return func(a *analyzer) {
		if sensitivity > 1 {
			a.beatSens = sensitivity
		}
	}
}
