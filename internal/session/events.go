package session

import "annotix/internal/waveform"

// Snapshot is the immutable view of the session handed to collaborators.
type Snapshot struct {
	State        State
	ErrorMessage string
	Path         string
	CurrentFrame int64
	TotalFrames  int64
	SampleRate   int
	Channels     int
}

// StateChanged is published on every state machine transition.
type StateChanged struct {
	Snapshot Snapshot
}

// ProgressChanged is published when the playback position moves, whether by
// playback progress or by an explicit seek.
type ProgressChanged struct {
	Frame int64
}

// ChunkReady is published when the waveform worker hands over a rendered
// chunk. The chunk is a value copy, never a live reference into the worker.
type ChunkReady struct {
	Chunk waveform.Chunk
}

// LogChanged is published by the annotation layer after any log mutation.
type LogChanged struct {
	Count int
}
