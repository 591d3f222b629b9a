package audio

import (
	"math/bits"

	"github.com/chewxy/math32"
)

// fft computes an in-place iterative radix-2 FFT over the interleaved
// real/imaginary buffers. Length must be a power of two.
func fft(re, im []float32) {
	n := len(re)
	if n < 2 {
		return
	}

	// Bit-reversal permutation.
	shift := 64 - uint(bits.TrailingZeros(uint(n)))
	for i := 1; i < n; i++ {
		j := int(bits.Reverse64(uint64(i)) >> shift)
		if j > i {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}

	// Danielson-Lanczos butterflies.
	for length := 2; length <= n; length <<= 1 {
		ang := -2 * math32.Pi / float32(length)
		wRe := math32.Cos(ang)
		wIm := math32.Sin(ang)
		for start := 0; start < n; start += length {
			curRe, curIm := float32(1), float32(0)
			half := length / 2
			for k := 0; k < half; k++ {
				i := start + k
				j := i + half
				tRe := re[j]*curRe - im[j]*curIm
				tIm := re[j]*curIm + im[j]*curRe
				re[j] = re[i] - tRe
				im[j] = im[i] - tIm
				re[i] += tRe
				im[i] += tIm
				curRe, curIm = curRe*wRe-curIm*wIm, curRe*wIm+curIm*wRe
			}
		}
	}
}

// hannWindow fills out with the Hann window of the given length.
func hannWindow(out []float32) {
	n := len(out)
	if n < 2 {
		for i := range out {
			out[i] = 1
		}
		return
	}
	for i := range out {
		out[i] = 0.5 * (1 - math32.Cos(2*math32.Pi*float32(i)/float32(n-1)))
	}
}

// magnitudes writes the normalized magnitude spectrum of the first half of
// the FFT output into out.
func magnitudes(re, im, out []float32) {
	n := len(re)
	scale := 2 / float32(n)
	for i := range out {
		out[i] = math32.Hypot(re[i], im[i]) * scale
	}
}
