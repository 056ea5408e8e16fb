package ident

import (
	"math"
	"strings"
	"testing"

	"annotix/pkg/audioengine"
)

func tone(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * 440 * float64(i) / 8000)
	}
	return out
}

func TestFingerprintStable(t *testing.T) {
	samples := tone(20000)
	a := Fingerprint(samples)
	b := Fingerprint(samples)
	if a != b {
		t.Fatalf("fingerprint not deterministic: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "ATX-V1-") {
		t.Fatalf("unexpected format: %s", a)
	}
}

func TestFingerprintDetectsTruncation(t *testing.T) {
	samples := tone(20000)
	if Fingerprint(samples) == Fingerprint(samples[:15000]) {
		t.Fatal("truncated audio produced the same fingerprint")
	}
}

func TestFingerprintDetectsContentChange(t *testing.T) {
	a := tone(20000)
	b := tone(20000)
	b[10000] = 0.9 // mid window
	if Fingerprint(a) == Fingerprint(b) {
		t.Fatal("content change not reflected")
	}
}

type sliceReader struct {
	samples []float64
}

func (r *sliceReader) ReadSamples(_ *audioengine.Handle, start int64, dst []float64) (int, error) {
	if start >= int64(len(r.samples)) {
		return 0, nil
	}
	return copy(dst, r.samples[start:]), nil
}

func TestFingerprintReaderMatchesSliceForm(t *testing.T) {
	samples := tone(20000)
	h := audioengine.NewHandle("x.wav")

	want := Fingerprint(samples)
	got, err := FingerprintReader(&sliceReader{samples: samples}, h, int64(len(samples)))
	if err != nil {
		t.Fatalf("reader fingerprint: %v", err)
	}
	if got != want {
		t.Fatalf("reader and slice fingerprints differ: %s vs %s", got, want)
	}
}

func TestFingerprintShortAudio(t *testing.T) {
	if got := Fingerprint(tone(10)); !strings.HasPrefix(got, "ATX-V1-") {
		t.Fatalf("short audio: %s", got)
	}
}
