// Package ident derives a stable identity string for an open audio file so
// annotation documents can record which recording they belong to.
package ident

import (
	"encoding/binary"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"

	"annotix/pkg/audioengine"
)

// window is how many samples each probe region contributes.
const window = 4096

// Fingerprint hashes three probe windows of the normalized mono signal, the
// head, the middle and the tail, plus the total length. Sampling three
// regions keeps the hash cheap on long recordings while still catching
// truncation and content swaps.
func Fingerprint(samples []float64) string {
	h := newHash(int64(len(samples)))
	for _, start := range windowStarts(int64(len(samples))) {
		end := start + window
		if end > int64(len(samples)) {
			end = int64(len(samples))
		}
		hashWindow(h, samples[start:end])
	}
	return finish(h)
}

// FingerprintReader is Fingerprint over a sample reader, so the whole file
// never has to be copied out just to identify it.
func FingerprintReader(r audioengine.SampleReader, h *audioengine.Handle, totalFrames int64) (string, error) {
	hs := newHash(totalFrames)
	buf := make([]float64, window)
	for _, start := range windowStarts(totalFrames) {
		n, err := r.ReadSamples(h, start, buf)
		if err != nil {
			return "", fmt.Errorf("fingerprint read at %d: %w", start, err)
		}
		hashWindow(hs, buf[:n])
	}
	return finish(hs), nil
}

func windowStarts(total int64) []int64 {
	starts := []int64{0, total/2 - window/2, total - window}
	for i, s := range starts {
		if s < 0 {
			starts[i] = 0
		}
	}
	return starts
}

func newHash(total int64) hash.Hash {
	h, _ := blake2b.New256(nil)
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(total))
	h.Write(lenBuf[:])
	return h
}

func hashWindow(h hash.Hash, samples []float64) {
	var buf [2]byte
	for _, v := range samples {
		// quantize to 16 bits so float noise does not shift the hash
		binary.BigEndian.PutUint16(buf[:], uint16(int16(v*32767)))
		h.Write(buf[:])
	}
}

func finish(h hash.Hash) string {
	return fmt.Sprintf("ATX-V1-%x", h.Sum(nil)[:12])
}
