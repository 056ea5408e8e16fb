package waveform

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"annotix/internal/codec"
	"annotix/pkg/audioengine"
)

// pollInterval paces both the render loop when it has nothing to do and the
// Terminate liveness poll.
const pollInterval = 25 * time.Millisecond

// ProgressFunc reports the current hearing frame; the worker renders around
// it.
type ProgressFunc func() int64

// DeliverFunc receives each finished chunk by value.
type DeliverFunc func(Chunk)

// Buffer is the background waveform worker for one audio handle. It keeps the
// chunk under the playback position and its two neighbors rendered, handing
// results to deliver. The worker remembers only the current neighborhood; it
// never reaches back across the thread boundary to ask, and anything the
// position has moved away from is forgotten so a rewind renders it again. It
// runs until Terminate asks it to finish; termination is cooperative, the
// worker is never killed.
type Buffer struct {
	reader      audioengine.SampleReader
	handle      *audioengine.Handle
	meta        audioengine.Metadata
	cfg         codec.RenderConfig
	chunkFrames int64
	preRoll     int64

	progress ProgressFunc
	deliver  DeliverFunc
	rendered map[int]bool // worker-goroutine local

	finish atomic.Bool
	done   chan struct{}
}

func NewBuffer(reader audioengine.SampleReader, handle *audioengine.Handle, meta audioengine.Metadata,
	pol Policy, cfg codec.RenderConfig, progress ProgressFunc, deliver DeliverFunc) (*Buffer, error) {
	chunkFrames, err := ChunkFrames(meta.SampleRate, pol.ChunkSeconds)
	if err != nil {
		return nil, err
	}
	return &Buffer{
		reader:      reader,
		handle:      handle,
		meta:        meta,
		cfg:         cfg,
		chunkFrames: chunkFrames,
		preRoll:     int64(pol.PreRollSeconds * float64(meta.SampleRate)),
		progress:    progress,
		deliver:     deliver,
		rendered:    make(map[int]bool),
		done:        make(chan struct{}),
	}, nil
}

// Start launches the worker goroutine.
func (b *Buffer) Start() {
	go b.run()
}

func (b *Buffer) run() {
	defer close(b.done)
	total := NumChunks(b.meta.TotalFrames, b.chunkFrames)
	for !b.finish.Load() {
		cur := IndexForFrame(b.progress(), b.chunkFrames)
		// forget chunks outside the neighborhood; the cache on the other
		// side evicts them, so they must be renderable again after a rewind
		for idx := range b.rendered {
			if idx < cur-1 || idx > cur+1 {
				delete(b.rendered, idx)
			}
		}
		rendered := false
		// current chunk first, then the one ahead, then the one behind
		for _, idx := range []int{cur, cur + 1, cur - 1} {
			if idx < 0 || idx >= total || b.rendered[idx] {
				continue
			}
			ch, err := b.renderChunk(idx)
			if err != nil {
				slog.Warn("waveform chunk render failed", "chunk", idx, "error", err)
				continue
			}
			b.rendered[idx] = true
			b.deliver(ch)
			rendered = true
			break
		}
		if !rendered {
			time.Sleep(pollInterval)
		}
	}
}

// renderChunk reads the chunk's frames plus a short pre-roll so the band-pass
// filter has history at the chunk boundary; the pre-roll is dropped from the
// rendered points.
func (b *Buffer) renderChunk(idx int) (Chunk, error) {
	firstFrame := int64(idx) * b.chunkFrames
	frames := b.chunkFrames
	if firstFrame+frames > b.meta.TotalFrames {
		frames = b.meta.TotalFrames - firstFrame
	}
	if frames <= 0 {
		return Chunk{}, fmt.Errorf("chunk %d past end of media", idx)
	}

	skip := b.preRoll
	start := firstFrame - skip
	if start < 0 {
		start = 0
		skip = firstFrame
	}

	buf := make([]float64, skip+frames)
	n, err := b.reader.ReadSamples(b.handle, start, buf)
	if err != nil {
		return Chunk{}, err
	}
	if int64(n) <= skip {
		return Chunk{}, fmt.Errorf("chunk %d: short read of %d frames", idx, n)
	}

	points := codec.RenderChunk(buf[:n], int(skip), b.cfg)
	return Chunk{
		HandleID:   b.handle.ID(),
		Index:      idx,
		FirstFrame: firstFrame,
		Frames:     frames,
		Points:     points,
	}, nil
}

// Alive reports whether the worker goroutine is still running.
func (b *Buffer) Alive() bool {
	select {
	case <-b.done:
		return false
	default:
		return true
	}
}

// Terminate asks the worker to finish and polls for its exit up to timeout.
// It reports whether the worker actually stopped; a false return means the
// worker is still draining and the caller should log it, not assume the
// goroutine is gone.
func (b *Buffer) Terminate(timeout time.Duration) bool {
	b.finish.Store(true)
	deadline := time.Now().Add(timeout)
	for {
		select {
		case <-b.done:
			return true
		default:
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
}
