package audioengine

// ApplyQuickGain scales normalized samples in place, clamping to [-1, 1].
func ApplyQuickGain(samples []float64, factor float64) {
	for i := range samples {
		val := samples[i] * factor
		if val > 1 {
			val = 1
		} else if val < -1 {
			val = -1
		}
		samples[i] = val
	}
}

// PeakAmplitude returns the largest absolute sample value.
func PeakAmplitude(samples []float64) float64 {
	var peak float64
	for _, v := range samples {
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}
