package session

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"annotix/internal/codec"
	"annotix/internal/dispatch"
	"annotix/internal/waveform"
	"annotix/pkg/audioengine"
	"annotix/pkg/spec"
)

// workerStopTimeout bounds the waveform worker termination poll on file
// switch and close.
const workerStopTimeout = 2 * time.Second

// intent is the pending transport command, used to disambiguate the backend's
// Stopped event. The event alone cannot tell a pause from a stop; the command
// layer is the source of truth for the resulting state.
type intent int

const (
	intentNone intent = iota
	intentPause
	intentStop
)

// Config carries the session-level knobs.
type Config struct {
	ForcedListen    bool
	MinBandHz       float64
	MaxBandHz       float64
	PointsPerSecond int
	CacheSize       int
	ChunkSeconds    int
	PreRollSeconds  float64
}

// DefaultConfig mirrors the preference defaults.
func DefaultConfig() Config {
	return Config{
		MinBandHz:       spec.DefaultMinBandHz,
		MaxBandHz:       spec.DefaultMaxBandHz,
		PointsPerSecond: spec.ZoomlessPixelsPerSecond,
		CacheSize:       waveform.DefaultCacheSize,
		ChunkSeconds:    spec.ChunkSizeSeconds,
		PreRollSeconds:  spec.PreRollSeconds,
	}
}

// Manager owns the audio session: the open handle, the state machine, the
// progress tracker and the waveform worker. All fields are owned by the
// dispatch context; every method must run on the bus (external callers go
// through Bus.Invoke). The audio backend and the waveform worker feed back in
// only through queued messages.
type Manager struct {
	bus    *dispatch.Bus
	player audioengine.Player
	reader audioengine.SampleReader
	cfg    Config

	state        State
	errMsg       string
	handle       *audioengine.Handle
	meta         audioengine.Metadata
	path         string
	currentFrame int64

	tracker Tracker
	cache   *waveform.Cache
	buffer  *waveform.Buffer

	pending intent
	history []int64

	// hearing mirrors currentFrame for the waveform worker, which runs off
	// the dispatch context and must not touch session fields.
	hearing atomic.Int64

	pumpDone chan struct{}
}

// NewManager wires a manager to its backend and starts the event pump. The
// reader is usually the same object as the player.
func NewManager(bus *dispatch.Bus, player audioengine.Player, reader audioengine.SampleReader, cfg Config) *Manager {
	if cfg.PointsPerSecond <= 0 {
		cfg.PointsPerSecond = spec.ZoomlessPixelsPerSecond
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = waveform.DefaultCacheSize
	}
	if cfg.ChunkSeconds <= 0 {
		cfg.ChunkSeconds = spec.ChunkSizeSeconds
	}
	if cfg.PreRollSeconds <= 0 {
		cfg.PreRollSeconds = spec.PreRollSeconds
	}
	m := &Manager{
		bus:      bus,
		player:   player,
		reader:   reader,
		cfg:      cfg,
		state:    NoAudio,
		cache:    waveform.NewCache(cfg.CacheSize),
		pumpDone: make(chan struct{}),
	}
	go m.pump()
	return m
}

// pump forwards backend events and progress ticks onto the dispatch context,
// preserving production order. It exits when the player closes its streams.
func (m *Manager) pump() {
	defer close(m.pumpDone)
	events := m.player.Events()
	progress := m.player.Progress()
	for events != nil || progress != nil {
		select {
		case e, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			ev := e
			m.bus.Submit(func() { m.onEvent(ev) })
		case f, ok := <-progress:
			if !ok {
				progress = nil
				continue
			}
			frame := f
			m.hearing.Store(frame)
			m.bus.Submit(func() { m.onProgress(frame) })
		}
	}
}

// Open loads a new audio file, replacing any current session. An empty path
// is the file chooser's "none" and is a no-op, not an error.
func (m *Manager) Open(path string) error {
	if path == "" {
		return nil
	}
	if m.state == Loading {
		return fmt.Errorf("%w: open while %s", ErrIllegalCommand, m.state)
	}
	if m.state == Playing || m.state == Paused {
		if err := m.player.Stop(); err != nil {
			slog.Warn("stop before open failed", "error", err)
		}
	}
	m.stopWorker()

	m.to(Loading)
	handle, meta, err := m.player.Open(path)
	if err != nil {
		m.errMsg = err.Error()
		if m.handle != nil {
			// the backend rejects before replacing, the previous file is
			// still open; restart its worker and surface the failure
			if werr := m.startWorker(); werr != nil {
				slog.Warn("waveform worker restart failed", "error", werr)
			}
			m.to(Failed)
		} else {
			m.to(NoAudio)
		}
		return fmt.Errorf("open %s: %w", path, err)
	}

	m.handle = handle
	m.meta = meta
	m.path = path
	m.errMsg = ""
	m.currentFrame = 0
	m.hearing.Store(0)
	m.tracker.Reset()
	m.history = nil
	m.pending = intentNone
	m.cache.Reset(handle.ID())
	return m.startWorker()
}

// startWorker launches the waveform render worker for the current handle.
// The handle is guaranteed stable until stopWorker runs.
func (m *Manager) startWorker() error {
	cfg := codec.RenderConfig{
		SampleRate:      m.meta.SampleRate,
		MinBandHz:       m.cfg.MinBandHz,
		MaxBandHz:       m.cfg.MaxBandHz,
		PointsPerSecond: m.cfg.PointsPerSecond,
	}
	pol := waveform.Policy{
		ChunkSeconds:   m.cfg.ChunkSeconds,
		PreRollSeconds: m.cfg.PreRollSeconds,
	}
	buf, err := waveform.NewBuffer(m.reader, m.handle, m.meta, pol, cfg,
		func() int64 { return m.hearing.Load() },
		func(ch waveform.Chunk) {
			m.bus.Submit(func() {
				m.cache.Put(ch)
				dispatch.Publish(m.bus, ChunkReady{Chunk: ch})
			})
		})
	if err != nil {
		return fmt.Errorf("waveform worker: %w", err)
	}
	m.buffer = buf
	buf.Start()
	return nil
}

// stopWorker cooperatively terminates the waveform worker. A timeout is
// reported, never escalated: the worker is not killed, the outcome is simply
// unknown.
func (m *Manager) stopWorker() {
	if m.buffer == nil {
		return
	}
	if !m.buffer.Terminate(workerStopTimeout) {
		slog.Warn("waveform worker did not stop within timeout",
			"timeout", workerStopTimeout, "path", m.path)
	}
	m.buffer = nil
}

// Close tears the session down and returns to NoAudio.
func (m *Manager) Close() error {
	if m.handle == nil {
		return fmt.Errorf("%w: close with no audio open", ErrIllegalCommand)
	}
	if m.state == Playing || m.state == Paused {
		if err := m.player.Stop(); err != nil {
			slog.Warn("stop before close failed", "error", err)
		}
	}
	m.stopWorker()
	m.handle = nil
	m.meta = audioengine.Metadata{}
	m.path = ""
	m.currentFrame = 0
	m.hearing.Store(0)
	m.tracker.Reset()
	m.history = nil
	m.cache.Reset(0)
	m.to(NoAudio)
	return nil
}

// Shutdown closes the session and releases the backend. Safe to call from
// outside the dispatch context.
func (m *Manager) Shutdown() {
	m.bus.Invoke(func() {
		if m.handle != nil {
			if err := m.Close(); err != nil {
				slog.Warn("close on shutdown failed", "error", err)
			}
		}
	})
	if err := m.player.Close(); err != nil {
		slog.Warn("player close failed", "error", err)
	}
	<-m.pumpDone
}

// Play starts or resumes playback from the current frame.
func (m *Manager) Play() error {
	if m.state != Ready && m.state != Paused {
		return fmt.Errorf("%w: play while %s", ErrIllegalCommand, m.state)
	}
	start := m.currentFrame
	if err := m.player.PlayAt(m.handle, start); err != nil {
		return err
	}
	m.history = append(m.history, start)
	return nil
}

// Pause halts playback keeping the position. The Paused state lands when the
// backend's Stopped event arrives.
func (m *Manager) Pause() error {
	if m.state != Playing {
		return fmt.Errorf("%w: pause while %s", ErrIllegalCommand, m.state)
	}
	m.pending = intentPause
	if err := m.player.Pause(); err != nil {
		m.pending = intentNone
		return err
	}
	return nil
}

// Stop halts playback and returns the session to Ready.
func (m *Manager) Stop() error {
	if m.state != Playing && m.state != Paused {
		return fmt.Errorf("%w: stop while %s", ErrIllegalCommand, m.state)
	}
	m.pending = intentStop
	if err := m.player.Stop(); err != nil {
		m.pending = intentNone
		return err
	}
	return nil
}

// TogglePlayPause is the spacebar: pause when playing, play otherwise.
func (m *Manager) TogglePlayPause() error {
	if m.state == Playing {
		return m.Pause()
	}
	return m.Play()
}

// Seek moves the playback position. Seeking never feeds the forced-listen
// high-water mark.
func (m *Manager) Seek(frame int64) error {
	if m.handle == nil || m.state == Loading {
		return fmt.Errorf("%w: seek while %s", ErrIllegalCommand, m.state)
	}
	if frame < 0 {
		frame = 0
	}
	if frame >= m.meta.TotalFrames {
		frame = m.meta.TotalFrames - 1
	}
	if m.state == Playing || m.state == Paused {
		if err := m.player.Seek(frame); err != nil {
			return err
		}
	}
	m.setFrame(frame)
	return nil
}

// SeekBy moves relative to the current position, clamped to media bounds.
func (m *Manager) SeekBy(deltaFrames int64) error {
	return m.Seek(m.currentFrame + deltaFrames)
}

// SeekToStart rewinds to frame zero.
func (m *Manager) SeekToStart() error {
	return m.Seek(0)
}

// ReplayLast backs up a fixed short window and plays from there, the "what
// did I just hear" command.
func (m *Manager) ReplayLast() error {
	if m.state != Ready && m.state != Paused {
		return fmt.Errorf("%w: replay while %s", ErrIllegalCommand, m.state)
	}
	start := m.currentFrame - m.MillisToFrame(spec.ReplayWindowMillis)
	if start < 0 {
		start = 0
	}
	if err := m.player.PlayAt(m.handle, start); err != nil {
		return err
	}
	m.history = append(m.history, start)
	return nil
}

// ReplayLastPlay consumes the top of the play-history stack and restarts
// from that position; each call walks one play further back.
func (m *Manager) ReplayLastPlay() error {
	if m.state != Ready && m.state != Paused {
		return fmt.Errorf("%w: replay while %s", ErrIllegalCommand, m.state)
	}
	if len(m.history) == 0 {
		return fmt.Errorf("no previous play position")
	}
	start := m.history[len(m.history)-1]
	if err := m.player.PlayAt(m.handle, start); err != nil {
		return err
	}
	m.history = m.history[:len(m.history)-1]
	return nil
}

// onEvent applies one backend event to the state machine. Events arrive in
// production order; semantically invalid ones are logged and survived, never
// dropped silently.
func (m *Manager) onEvent(e audioengine.Event) {
	if m.handle == nil {
		// late event from a torn-down session
		slog.Debug("event after close ignored", "event", e.String())
		return
	}
	if m.state == Loading {
		// during a file switch only the new handle's Opened counts; events
		// still in flight from the previous session are stale
		if ev, ok := e.(audioengine.Opened); ok && ev.Handle.ID() == m.handle.ID() {
			m.to(Ready)
		} else {
			slog.Debug("stale event during load ignored", "event", e.String())
		}
		return
	}
	switch ev := e.(type) {
	case audioengine.Opened:
		// already handled at load time
	case audioengine.Playing:
		m.setFrame(ev.StartFrame)
		m.to(Playing)
	case audioengine.Stopped:
		if ev.Frame < m.tracker.LastFrame() {
			slog.Warn("backend reported out-of-order stop frame",
				"frame", ev.Frame, "last_progress", m.tracker.LastFrame())
		}
		m.tracker.NoteFrame(ev.Frame)
		m.setFrame(ev.Frame)
		if m.pending == intentPause {
			m.to(Paused)
		} else {
			m.to(Ready)
		}
		m.pending = intentNone
	case audioengine.EndOfMedia:
		if ev.Frame != m.meta.TotalFrames-1 {
			slog.Warn("backend end-of-media frame does not match media length",
				"frame", ev.Frame, "total_frames", m.meta.TotalFrames)
		}
		m.tracker.NoteFrame(ev.Frame)
		m.tracker.OfferGreatestProgress(ev.Frame)
		m.setFrame(ev.Frame)
		m.pending = intentNone
		m.to(Ready)
	case audioengine.PlaybackError:
		m.errMsg = ev.Message
		m.setFrame(0)
		m.pending = intentNone
		m.to(Failed)
	}
}

// onProgress applies one hearing-frame tick.
func (m *Manager) onProgress(frame int64) {
	if m.handle == nil || m.state != Playing {
		return
	}
	m.tracker.NoteFrame(frame)
	m.setFrame(frame)
}

// ResetError leaves the Failed state: back to Ready when audio is still
// open, otherwise to NoAudio.
func (m *Manager) ResetError() error {
	if m.state != Failed {
		return fmt.Errorf("%w: reset while %s", ErrIllegalCommand, m.state)
	}
	m.errMsg = ""
	if m.handle != nil {
		m.to(Ready)
	} else {
		m.to(NoAudio)
	}
	return nil
}

// to performs a state transition, logging rather than failing on an entry
// missing from the table so playback stays responsive.
func (m *Manager) to(next State) {
	if next == m.state {
		return
	}
	if !m.state.CanTransition(next) {
		slog.Warn("undefined state transition forced", "from", m.state.String(), "to", next.String())
	}
	m.state = next
	dispatch.Publish(m.bus, StateChanged{Snapshot: m.Snapshot()})
}

func (m *Manager) setFrame(frame int64) {
	if m.meta.TotalFrames > 0 {
		if frame < 0 {
			frame = 0
		}
		if frame >= m.meta.TotalFrames {
			frame = m.meta.TotalFrames - 1
		}
	}
	m.currentFrame = frame
	m.hearing.Store(frame)
	dispatch.Publish(m.bus, ProgressChanged{Frame: frame})
}

// Snapshot returns the current session view as a value.
func (m *Manager) Snapshot() Snapshot {
	return Snapshot{
		State:        m.state,
		ErrorMessage: m.errMsg,
		Path:         m.path,
		CurrentFrame: m.currentFrame,
		TotalFrames:  m.meta.TotalFrames,
		SampleRate:   m.meta.SampleRate,
		Channels:     m.meta.Channels,
	}
}

// State returns the current state machine position.
func (m *Manager) State() State { return m.state }

// Handle returns the current audio handle, nil when no file is open.
func (m *Manager) Handle() *audioengine.Handle { return m.handle }

// Tracker exposes the progress tracker for forced-listen queries.
func (m *Manager) Tracker() *Tracker { return &m.tracker }

// ChunkAt returns the cached waveform chunk covering frame, if resident.
func (m *Manager) ChunkAt(frame int64) (waveform.Chunk, bool) {
	if m.handle == nil || m.meta.SampleRate <= 0 {
		return waveform.Chunk{}, false
	}
	chunkFrames, err := waveform.ChunkFrames(m.meta.SampleRate, m.cfg.ChunkSeconds)
	if err != nil {
		return waveform.Chunk{}, false
	}
	return m.cache.Get(waveform.IndexForFrame(frame, chunkFrames))
}

// CanAnnotateAt enforces forced listen: an annotation at the given time is
// only accepted once playback has actually reached it.
func (m *Manager) CanAnnotateAt(timeMillis float64) bool {
	if !m.cfg.ForcedListen {
		return true
	}
	return m.tracker.GreatestFrame() >= m.MillisToFrame(timeMillis)
}

// MillisToFrame converts a media time to a frame index.
func (m *Manager) MillisToFrame(ms float64) int64 {
	return int64(ms / 1000 * float64(m.meta.SampleRate))
}

// FrameToMillis converts a frame index to media time.
func (m *Manager) FrameToMillis(frame int64) float64 {
	if m.meta.SampleRate == 0 {
		return 0
	}
	return float64(frame) / float64(m.meta.SampleRate) * 1000
}
