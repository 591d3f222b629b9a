// Package audio analyzes PCM input into the per-frame quantities the trigger
// system consumes: log-spaced band energies, RMS and peak volume, beat
// detection, and a tempo estimate.
package audio

import (
	"sync"

	"github.com/chewxy/math32"
	"github.com/faiface/beep"
)

// BandCount is the number of frequency bands the analyzer emits.
const BandCount = 9

// Band identifies one of the analyzer's log-spaced frequency bands.
type Band int

const (
	BandSubBass Band = iota
	BandBass
	BandLowMid
	BandMid
	BandHighMid
	BandPresence
	BandHigh
	BandVeryHigh
	BandBrilliance
)

// bandEdges holds the inclusive lower bound of each band in Hz; the last
// band extends to the top of the audible range.
var bandEdges = [BandCount + 1]float32{20, 60, 150, 400, 1000, 2500, 5000, 10000, 16000, 22050}

func (b Band) String() string {
	switch b {
	case BandSubBass:
		return "Sub Bass"
	case BandBass:
		return "Bass"
	case BandLowMid:
		return "Low Mid"
	case BandMid:
		return "Mid"
	case BandHighMid:
		return "High Mid"
	case BandPresence:
		return "Presence"
	case BandHigh:
		return "High"
	case BandVeryHigh:
		return "Very High"
	case BandBrilliance:
		return "Brilliance"
	default:
		return "Unknown"
	}
}

// Analysis is one analyzer tick's output. All floats are finite; inputs that
// would produce NaN or infinities are gated to zero before emission.
type Analysis struct {
	BandEnergies [BandCount]float32
	RMSVolume    float32
	PeakVolume   float32
	BeatDetected bool
	BeatStrength float32
	BPM          float32
	HasBPM       bool
}

// Analyzer consumes PCM from a beep.Streamer and produces Analysis values.
// Tick is non-blocking with respect to the device: it pulls only the samples
// the streamer already has buffered.
type Analyzer interface {
	// Tick pulls one window of samples and computes the next Analysis.
	// When the streamer cannot fill a window the previous analysis decays
	// toward silence instead of emitting garbage.
	//
	// Returns:
	//   - Analysis: the analysis for this tick
	Tick() Analysis

	// Latest returns the most recent analysis without consuming samples.
	Latest() Analysis

	// SampleRate returns the configured input sample rate.
	SampleRate() int
}

type analyzer struct {
	mu sync.Mutex

	streamer   beep.Streamer
	sampleRate int
	fftSize    int

	noiseGate float32
	smoothing float32

	window []float32
	mono   []float32
	re     []float32
	im     []float32
	mags   []float32

	samples [][2]float64

	latest Analysis

	// Beat detection state: rolling low-band energy history.
	energyHistory  []float32
	historyIndex   int
	historyFilled  bool
	beatSens       float32
	beatHold       int // ticks remaining before another beat may fire
	ticksSinceBeat int
	intervals      []float32
}

var _ Analyzer = &analyzer{}

// NewAnalyzer creates an analyzer reading from the given streamer.
//
// Parameters:
//   - streamer: PCM source; nil yields a silent analyzer
//   - options: functional options for analyzer configuration
//
// Returns:
//   - Analyzer: the configured analyzer
func NewAnalyzer(streamer beep.Streamer, options ...AnalyzerBuilderOption) Analyzer {
	a := &analyzer{
		streamer:   streamer,
		sampleRate: 44100,
		fftSize:    1024,
		noiseGate:  0.01,
		smoothing:  0.6,
		beatSens:   1.4,
	}
	for _, opt := range options {
		opt(a)
	}

	a.window = make([]float32, a.fftSize)
	hannWindow(a.window)
	a.mono = make([]float32, a.fftSize)
	a.re = make([]float32, a.fftSize)
	a.im = make([]float32, a.fftSize)
	a.mags = make([]float32, a.fftSize/2)
	a.samples = make([][2]float64, a.fftSize)
	a.energyHistory = make([]float32, 43) // roughly one second at 1024/44100 per tick
	return a
}

func (a *analyzer) SampleRate() int { return a.sampleRate }

func (a *analyzer) Latest() Analysis {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.latest
}

func (a *analyzer) Tick() Analysis {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	if a.streamer != nil {
		n, _ = a.streamer.Stream(a.samples)
	}
	if n < a.fftSize {
		// Not enough input this tick: decay toward silence.
		for i := range a.latest.BandEnergies {
			a.latest.BandEnergies[i] *= a.smoothing
		}
		a.latest.RMSVolume *= a.smoothing
		a.latest.PeakVolume *= a.smoothing
		a.latest.BeatDetected = false
		a.latest.BeatStrength = 0
		return a.latest
	}

	// Mix to mono, apply window, accumulate RMS and peak.
	var sumSquares, peak float32
	for i := 0; i < a.fftSize; i++ {
		s := float32(a.samples[i][0]+a.samples[i][1]) * 0.5
		if !isFinite(s) {
			s = 0
		}
		if abs := math32.Abs(s); abs > peak {
			peak = abs
		}
		sumSquares += s * s
		a.mono[i] = s
		a.re[i] = s * a.window[i]
		a.im[i] = 0
	}
	rms := math32.Sqrt(sumSquares / float32(a.fftSize))

	fft(a.re, a.im)
	magnitudes(a.re, a.im, a.mags)

	var next Analysis
	binWidth := float32(a.sampleRate) / float32(a.fftSize)
	for band := 0; band < BandCount; band++ {
		lo := int(bandEdges[band] / binWidth)
		hi := int(bandEdges[band+1] / binWidth)
		if hi > len(a.mags) {
			hi = len(a.mags)
		}
		if lo >= hi {
			continue
		}
		var sum float32
		for bin := lo; bin < hi; bin++ {
			sum += a.mags[bin]
		}
		energy := sum / float32(hi-lo)
		// Perceptual scaling keeps quiet-but-present highs usable.
		energy = math32.Sqrt(energy) * 2
		if energy < a.noiseGate || !isFinite(energy) {
			energy = 0
		}
		next.BandEnergies[band] = clamp01(a.smoothing*a.latest.BandEnergies[band] + (1-a.smoothing)*energy)
	}

	if rms < a.noiseGate || !isFinite(rms) {
		rms = 0
	}
	if peak < a.noiseGate || !isFinite(peak) {
		peak = 0
	}
	next.RMSVolume = clamp01(a.smoothing*a.latest.RMSVolume + (1-a.smoothing)*rms)
	next.PeakVolume = clamp01(peak)

	a.detectBeat(&next)

	a.latest = next
	return next
}

// detectBeat compares instantaneous low-band energy against its rolling
// average; a sufficiently large excursion is a beat. Beat spacing feeds the
// tempo estimate.
func (a *analyzer) detectBeat(next *Analysis) {
	lowEnergy := (next.BandEnergies[BandSubBass] + next.BandEnergies[BandBass]) * 0.5

	var sum float32
	count := len(a.energyHistory)
	if !a.historyFilled {
		count = a.historyIndex
	}
	for i := 0; i < count; i++ {
		sum += a.energyHistory[i]
	}
	avg := float32(0)
	if count > 0 {
		avg = sum / float32(count)
	}

	a.energyHistory[a.historyIndex] = lowEnergy
	a.historyIndex++
	if a.historyIndex == len(a.energyHistory) {
		a.historyIndex = 0
		a.historyFilled = true
	}

	a.ticksSinceBeat++
	if a.beatHold > 0 {
		a.beatHold--
	}

	if count >= 8 && a.beatHold == 0 && lowEnergy > avg*a.beatSens && lowEnergy > a.noiseGate {
		next.BeatDetected = true
		if avg > 0 {
			next.BeatStrength = clamp01((lowEnergy - avg) / avg)
		} else {
			next.BeatStrength = 1
		}
		a.beatHold = 8 // refractory period, ~186ms at the default tick rate

		tickSeconds := float32(a.fftSize) / float32(a.sampleRate)
		interval := float32(a.ticksSinceBeat) * tickSeconds
		a.ticksSinceBeat = 0
		if interval > 0.2 && interval < 2.0 {
			a.intervals = append(a.intervals, interval)
			if len(a.intervals) > 8 {
				a.intervals = a.intervals[1:]
			}
		}
		if len(a.intervals) >= 4 {
			var total float32
			for _, iv := range a.intervals {
				total += iv
			}
			mean := total / float32(len(a.intervals))
			if mean > 0 {
				next.BPM = 60 / mean
				next.HasBPM = true
			}
		}
	}
}

func isFinite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}

func clamp01(v float32) float32 {
	if !isFinite(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
