package codec

import (
	"log/slog"
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// RenderConfig controls the chunk rendering pipeline.
type RenderConfig struct {
	SampleRate      int
	MinBandHz       float64
	MaxBandHz       float64
	PointsPerSecond int
}

// ClampBand normalizes a band-pass range to valid digital frequencies for the
// given sample rate. Nyquist forbids filtering above sampleRate/2, and a zero
// lower bound degenerates the filter, so out-of-range requests are pulled in
// and reported rather than rejected.
func ClampBand(minHz, maxHz float64, sampleRate int) (float64, float64) {
	const (
		highestBand = 0.4999999
		lowestBand  = 0.0000001
	)
	sr := float64(sampleRate)
	minBand := minHz / sr
	maxBand := maxHz / sr
	corrected := false
	if maxBand >= 0.5 {
		maxBand = highestBand
		corrected = true
	}
	if minBand <= 0 {
		minBand = lowestBand
		corrected = true
	}
	if corrected {
		slog.Warn("band-pass range exceeds Nyquist limits, clamping",
			"requested_min_hz", minHz, "requested_max_hz", maxHz,
			"effective_min_hz", minBand*sr, "effective_max_hz", maxBand*sr)
	}
	return minBand * sr, maxBand * sr
}

// BandpassFilter zeroes spectral content outside [minHz, maxHz] in place of a
// copy of samples, via forward/inverse FFT.
func BandpassFilter(samples []float64, minHz, maxHz float64, sampleRate int) []float64 {
	n := len(samples)
	if n == 0 {
		return nil
	}
	coeffs := fft.FFTReal(samples)

	minBin := int(minHz / float64(sampleRate) * float64(n))
	maxBin := int(maxHz / float64(sampleRate) * float64(n))
	if maxBin > n/2 {
		maxBin = n / 2
	}
	for k := 1; k <= n/2; k++ {
		if k < minBin || k > maxBin {
			coeffs[k] = 0
			coeffs[n-k] = 0
		}
	}
	coeffs[0] = 0 // remove DC offset

	inv := fft.IFFT(coeffs)
	out := make([]float64, n)
	for i, c := range inv {
		out[i] = real(c)
	}
	return out
}

// EnvelopeSmooth replaces each value with the mean magnitude over a trailing
// window, producing the amplitude envelope used for display.
func EnvelopeSmooth(samples []float64, window int) {
	if window <= 1 || len(samples) == 0 {
		return
	}
	mags := make([]float64, len(samples))
	for i, v := range samples {
		mags[i] = math.Abs(v)
	}
	var sum float64
	for i := range samples {
		sum += mags[i]
		if i >= window {
			sum -= mags[i-window]
		}
		div := window
		if i < window {
			div = i + 1
		}
		samples[i] = sum / float64(div)
	}
}

// Downsample reduces samples to the requested number of display points, one
// RMS value per bucket. skip leading pre-roll frames are excluded from the
// output but still feed the filter history.
func Downsample(samples []float64, skip, points int) []float64 {
	if skip < 0 {
		skip = 0
	}
	if skip > len(samples) {
		skip = len(samples)
	}
	body := samples[skip:]
	if points <= 0 || len(body) == 0 {
		return nil
	}
	step := len(body) / points
	if step == 0 {
		step = 1
	}
	out := make([]float64, 0, points)
	for i := 0; i < len(body) && len(out) < points; i += step {
		var sum float64
		count := 0
		for j := 0; j < step && i+j < len(body); j++ {
			v := body[i+j]
			sum += v * v
			count++
		}
		out = append(out, math.Sqrt(sum/float64(count)))
	}
	return out
}

// SmoothPixels applies a 3-tap average so adjacent display columns do not
// flicker against each other.
func SmoothPixels(vals []float64) {
	if len(vals) < 3 {
		return
	}
	prev := vals[0]
	for i := 1; i < len(vals)-1; i++ {
		cur := vals[i]
		vals[i] = (prev + cur + vals[i+1]) / 3
		prev = cur
	}
}

// RenderChunk runs the full display pipeline over raw mono samples: band-pass,
// envelope smoothing, downsample to display resolution, pixel smoothing.
// skip frames of pre-roll at the head of samples are consumed by the filter
// but excluded from the rendered output.
func RenderChunk(samples []float64, skip int, cfg RenderConfig) []float64 {
	if len(samples) == 0 {
		return nil
	}
	minHz, maxHz := ClampBand(cfg.MinBandHz, cfg.MaxBandHz, cfg.SampleRate)
	filtered := BandpassFilter(samples, minHz, maxHz, cfg.SampleRate)
	EnvelopeSmooth(filtered, 20)

	seconds := float64(len(samples)-skip) / float64(cfg.SampleRate)
	points := int(seconds * float64(cfg.PointsPerSecond))
	if points < 1 {
		points = 1
	}
	vals := Downsample(filtered, skip, points)
	SmoothPixels(vals)
	return vals
}
