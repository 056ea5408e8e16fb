package waveform

import (
	"fmt"
	"math"

	"annotix/pkg/spec"
)

// Chunk is one rendered window of waveform display points, identified by the
// owning audio handle and its position in the file. Chunks are passed by
// value so consumers can never observe a render in progress.
type Chunk struct {
	HandleID   uint64
	Index      int
	FirstFrame int64
	Frames     int64
	Points     []float64
}

// Policy fixes the chunking geometry for one worker.
type Policy struct {
	ChunkSeconds   int
	PreRollSeconds float64
}

func DefaultPolicy() Policy {
	return Policy{
		ChunkSeconds:   spec.ChunkSizeSeconds,
		PreRollSeconds: spec.PreRollSeconds,
	}
}

// ChunkFrames returns the number of frames covered by one chunk. The frame
// count is computed from the runtime sample rate; absurd rates that would
// overflow the multiplication are rejected instead of wrapping.
func ChunkFrames(sampleRate, chunkSeconds int) (int64, error) {
	if sampleRate <= 0 {
		return 0, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if chunkSeconds <= 0 {
		return 0, fmt.Errorf("invalid chunk duration %ds", chunkSeconds)
	}
	if int64(sampleRate) > math.MaxInt64/int64(chunkSeconds) {
		return 0, fmt.Errorf("sample rate %d overflows chunk frame arithmetic", sampleRate)
	}
	return int64(sampleRate) * int64(chunkSeconds), nil
}

// NumChunks returns how many chunks cover totalFrames.
func NumChunks(totalFrames, chunkFrames int64) int {
	if totalFrames <= 0 || chunkFrames <= 0 {
		return 0
	}
	return int((totalFrames + chunkFrames - 1) / chunkFrames)
}

// IndexForFrame returns the chunk index containing frame.
func IndexForFrame(frame, chunkFrames int64) int {
	if frame < 0 || chunkFrames <= 0 {
		return 0
	}
	return int(frame / chunkFrames)
}
