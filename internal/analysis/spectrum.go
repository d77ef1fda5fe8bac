package analysis

import (
	"errors"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

var ErrShortSeries = errors.New("analysis: need at least two samples")

// Spectrum is a one-sided magnitude spectrum.
type Spectrum struct {
	Freqs []float64
	Power []float64
}

// PowerSpectrum removes the mean, zero-pads to a power of two and returns
// magnitudes for frequencies below Nyquist. dt is the sample spacing.
func PowerSpectrum(series []float64, dt float64) (*Spectrum, error) {
	if len(series) < 2 || dt <= 0 {
		return nil, ErrShortSeries
	}

	mean := 0.0
	for _, v := range series {
		mean += v
	}
	mean /= float64(len(series))

	n := 1
	for n < len(series) {
		n <<= 1
	}
	buf := make([]float64, n)
	for i, v := range series {
		buf[i] = v - mean
	}
	f := fft.FFTReal(buf)

	sp := &Spectrum{Freqs: make([]float64, n/2), Power: make([]float64, n/2)}
	for k := 0; k < n/2; k++ {
		sp.Freqs[k] = float64(k) / (float64(n) * dt)
		sp.Power[k] = cmplx.Abs(f[k])
	}
	return sp, nil
}

// Dominant returns the strongest non-DC frequency and its magnitude.
func (s *Spectrum) Dominant() (freq, power float64) {
	for k := 1; k < len(s.Power); k++ {
		if s.Power[k] > power {
			freq, power = s.Freqs[k], s.Power[k]
		}
	}
	return freq, power
}
