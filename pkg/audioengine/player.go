package audioengine

import (
	"errors"
	"sync/atomic"
)

var (
	// ErrNoAudio is returned by transport commands issued without an open
	// handle.
	ErrNoAudio = errors.New("no audio open")
	// ErrStaleHandle is returned when a command names a handle that has been
	// invalidated by a file switch.
	ErrStaleHandle = errors.New("stale audio handle")
	// ErrUnsupportedFormat is returned by Open for files the engine cannot
	// decode.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Handle is the opaque identity of one open audio file. A handle is created
// by a successful Open and invalidated by the next Open or by Close; commands
// carrying an invalidated handle fail with ErrStaleHandle.
type Handle struct {
	id   uint64
	path string
}

var handleSeq atomic.Uint64

// NewHandle mints a fresh handle for path. For use by Player implementations
// only; the session layer never creates handles itself.
func NewHandle(path string) *Handle {
	return &Handle{id: handleSeq.Add(1), path: path}
}

// ID returns the unique id of this handle.
func (h *Handle) ID() uint64 { return h.id }

// Path returns the file path the handle was opened from.
func (h *Handle) Path() string { return h.path }

// Metadata describes an open audio file.
type Metadata struct {
	TotalFrames int64
	SampleRate  int
	Channels    int
}

// Player is the frame-accurate transport capability the session engine
// consumes. Commands are asynchronous: the state change they request is only
// authoritative once the corresponding Event arrives on Events(). Events are
// delivered in production order.
type Player interface {
	// Open decodes the file and makes it the current handle, invalidating
	// any previous one.
	Open(path string) (*Handle, Metadata, error)
	// PlayAt starts main playback of h at the given frame.
	PlayAt(h *Handle, frame int64) error
	// Pause halts streaming, keeping the playback position; a Stopped event
	// reports the hearing frame.
	Pause() error
	// Stop halts streaming; a Stopped event reports the hearing frame.
	Stop() error
	// Seek repositions an active playback. When nothing is streaming the
	// caller owns the position and passes it to the next PlayAt.
	Seek(frame int64) error
	// Events is the precision event stream.
	Events() <-chan Event
	// Progress emits hearing-frame ticks during main playback.
	Progress() <-chan int64
	// Close releases the player and closes both streams.
	Close() error
}

// SampleReader provides raw decoded samples for waveform rendering, mixed to
// mono and normalized to [-1, 1].
type SampleReader interface {
	ReadSamples(h *Handle, startFrame int64, dst []float64) (int, error)
}
