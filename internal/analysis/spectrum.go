package analysis

import (
	"fmt"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/spectral"
	"github.com/mjibson/go-dsp/window"

	"github.com/san-kum/mechsim/internal/sim"
)

// Spectrum is a one-sided power spectrum; Power[i] belongs to Freqs[i] Hz.
type Spectrum struct {
	Freqs []float64
	Power []float64
}

// PowerSpectrum removes the mean from samples taken dt seconds apart,
// applies a Hann window and returns the periodogram.
func PowerSpectrum(samples []float64, dt float64) (Spectrum, error) {
	n := len(samples)
	if n < 4 {
		return Spectrum{}, ErrTooShort
	}
	if dt <= 0 {
		return Spectrum{}, fmt.Errorf("analysis: sample interval must be positive, got %g", dt)
	}

	x := demean(samples)
	window.Apply(x, window.Hann)
	coeffs := fft.FFTReal(x)

	half := n/2 + 1
	ps := Spectrum{Freqs: make([]float64, half), Power: make([]float64, half)}
	for k := 0; k < half; k++ {
		a := cmplx.Abs(coeffs[k])
		ps.Freqs[k] = float64(k) / (float64(n) * dt)
		ps.Power[k] = a * a / float64(n)
	}
	return ps, nil
}

// Welch estimates the power spectral density by averaging windowed
// segments of nfft samples overlapping by half. nfft <= 0 picks the
// largest power of two not above len(samples)/2.
func Welch(samples []float64, dt float64, nfft int) (Spectrum, error) {
	if len(samples) < 4 {
		return Spectrum{}, ErrTooShort
	}
	if dt <= 0 {
		return Spectrum{}, fmt.Errorf("analysis: sample interval must be positive, got %g", dt)
	}
	if nfft <= 0 {
		nfft = 2
		for nfft*4 <= len(samples) {
			nfft *= 2
		}
	}

	pxx, freqs := spectral.Pwelch(demean(samples), 1/dt, &spectral.PwelchOptions{
		NFFT:     nfft,
		Noverlap: nfft / 2,
		Window:   window.Hann,
	})
	return Spectrum{Freqs: freqs, Power: pxx}, nil
}

// FrameSpectrum is PowerSpectrum over a named series of recorded frames.
func FrameSpectrum(frames []sim.Frame, name string, index int) (Spectrum, error) {
	dt, err := sampleInterval(frames)
	if err != nil {
		return Spectrum{}, err
	}
	xs, err := Series(frames, name, index)
	if err != nil {
		return Spectrum{}, err
	}
	return PowerSpectrum(xs, dt)
}

// DominantFrequency returns the frequency with the most power, ignoring
// the DC bin. It is 0 for a flat signal.
func (s Spectrum) DominantFrequency() float64 {
	best, bestPower := 0, 0.0
	for k := 1; k < len(s.Power); k++ {
		if s.Power[k] > bestPower {
			best, bestPower = k, s.Power[k]
		}
	}
	if best == 0 {
		return 0
	}
	return s.Freqs[best]
}

func demean(samples []float64) []float64 {
	mean := 0.0
	for _, v := range samples {
		mean += v
	}
	mean /= float64(len(samples))

	out := make([]float64, len(samples))
	for i, v := range samples {
		out[i] = v - mean
	}
	return out
}
