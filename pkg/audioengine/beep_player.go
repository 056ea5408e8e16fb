package audioengine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/speaker"
)

// progressInterval is the hearing-frame poll period during main playback.
const progressInterval = 25 * time.Millisecond

// frameStreamer streams decoded frames from an in-memory buffer. pos is the
// next frame to hand to the speaker; it is atomic because the speaker
// goroutine advances it while the player goroutines read and reposition it.
type frameStreamer struct {
	pcm [][2]float64
	pos atomic.Int64
}

func (s *frameStreamer) Stream(samples [][2]float64) (int, bool) {
	pos := s.pos.Load()
	if pos >= int64(len(s.pcm)) {
		return 0, false
	}
	n := copy(samples, s.pcm[pos:])
	s.pos.Store(pos + int64(n))
	return n, true
}

func (s *frameStreamer) Err() error { return nil }

// BeepPlayer is the speaker-backed Player. One playback session at a time;
// opening a new file tears down the previous one and invalidates its handle.
type BeepPlayer struct {
	mu     sync.Mutex
	handle *Handle
	meta   Metadata
	pcm    [][2]float64
	mono   []float64

	streamer *frameStreamer
	ctrl     *beep.Ctrl
	vol      *effects.Volume
	volumeDB float64
	playing  bool
	paused   bool
	cancel   chan struct{}

	events   chan Event
	progress chan int64
	closed   bool

	sampleRate int
}

// NewBeepPlayer builds an idle player. The speaker device is initialized
// lazily on the first Open, once the source sample rate is known.
func NewBeepPlayer() *BeepPlayer {
	return &BeepPlayer{
		events:   make(chan Event, 32),
		progress: make(chan int64, 8),
	}
}

func (p *BeepPlayer) Events() <-chan Event   { return p.events }
func (p *BeepPlayer) Progress() <-chan int64 { return p.progress }

func (p *BeepPlayer) emit(e Event) {
	if p.closed {
		return
	}
	p.events <- e
}

// Open decodes path in full and installs it as the current handle. Any active
// playback of the previous file is torn down first.
func (p *BeepPlayer) Open(path string) (*Handle, Metadata, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, Metadata{}, fmt.Errorf("player closed")
	}

	pcm, meta, err := decodeFile(path)
	if err != nil {
		return nil, Metadata{}, err
	}

	p.stopLocked()

	if p.sampleRate != meta.SampleRate {
		sr := beep.SampleRate(meta.SampleRate)
		if err := speaker.Init(sr, sr.N(time.Millisecond*100)); err != nil {
			return nil, Metadata{}, fmt.Errorf("init speaker: %w", err)
		}
		p.sampleRate = meta.SampleRate
	}

	p.handle = NewHandle(path)
	p.meta = meta
	p.pcm = pcm
	p.mono = make([]float64, len(pcm))
	for i, fr := range pcm {
		p.mono[i] = (fr[0] + fr[1]) / 2
	}

	p.emit(Opened{Handle: p.handle})
	return p.handle, meta, nil
}

// PlayAt begins main playback of h at frame. The start frame is clamped to
// the media bounds.
func (p *BeepPlayer) PlayAt(h *Handle, frame int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkHandle(h); err != nil {
		return err
	}
	if frame < 0 {
		frame = 0
	}
	if frame >= p.meta.TotalFrames {
		frame = p.meta.TotalFrames - 1
	}

	p.stopLocked()

	s := &frameStreamer{pcm: p.pcm}
	s.pos.Store(frame)
	vol := &effects.Volume{
		Streamer: s,
		Base:     2,
		Volume:   p.volumeDB,
	}
	ctrl := &beep.Ctrl{Streamer: vol}

	done := make(chan struct{})
	cancel := make(chan struct{})
	speaker.Clear()
	speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
		close(done)
	})))

	p.streamer = s
	p.vol = vol
	p.ctrl = ctrl
	p.cancel = cancel
	p.playing = true
	p.paused = false

	go p.watch(s, done, cancel)

	p.emit(Playing{StartFrame: frame})
	return nil
}

// watch polls the hearing frame every progressInterval and reports end of
// media when the streamer drains naturally. It exits when the playback
// session is torn down.
func (p *BeepPlayer) watch(s *frameStreamer, done, cancel chan struct{}) {
	t := time.NewTicker(progressInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			p.mu.Lock()
			if p.cancel != cancel {
				// torn down concurrently, the teardown owns reporting
				p.mu.Unlock()
				return
			}
			p.playing = false
			p.paused = false
			p.cancel = nil
			p.emit(EndOfMedia{Frame: p.meta.TotalFrames - 1})
			p.mu.Unlock()
			return
		case <-cancel:
			return
		case <-t.C:
			if p.pausedNow() {
				continue
			}
			select {
			case p.progress <- hearingFrame(s):
			default:
			}
		}
	}
}

func (p *BeepPlayer) pausedNow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused || !p.playing
}

// hearingFrame is the last frame handed to the speaker. pos points at the
// next frame to stream.
func hearingFrame(s *frameStreamer) int64 {
	pos := s.pos.Load() - 1
	if pos < 0 {
		pos = 0
	}
	if max := int64(len(s.pcm)) - 1; pos > max {
		pos = max
	}
	return pos
}

// Pause halts streaming and reports the hearing frame. Resuming is a fresh
// PlayAt from wherever the command layer decides.
func (p *BeepPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil {
		return ErrNoAudio
	}
	if !p.playing || p.paused {
		return fmt.Errorf("pause: no active playback")
	}
	speaker.Lock()
	p.ctrl.Paused = true
	frame := hearingFrame(p.streamer)
	speaker.Unlock()
	p.paused = true
	p.emit(Stopped{Frame: frame})
	return nil
}

// Stop tears down the playback session and reports the hearing frame.
func (p *BeepPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil {
		return ErrNoAudio
	}
	if !p.playing {
		return fmt.Errorf("stop: no active playback")
	}
	frame := hearingFrame(p.streamer)
	p.stopLocked()
	p.emit(Stopped{Frame: frame})
	return nil
}

// stopLocked tears down any active playback session without emitting events.
// Callers decide what, if anything, to report.
func (p *BeepPlayer) stopLocked() {
	if p.cancel != nil {
		close(p.cancel)
		p.cancel = nil
	}
	if p.playing {
		speaker.Clear()
	}
	p.playing = false
	p.paused = false
	p.streamer = nil
	p.ctrl = nil
	p.vol = nil
}

// Seek repositions an active playback session in place. With no active
// session the position belongs to the caller and there is nothing to do.
func (p *BeepPlayer) Seek(frame int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil {
		return ErrNoAudio
	}
	if frame < 0 || frame >= p.meta.TotalFrames {
		return fmt.Errorf("seek frame %d out of range [0,%d)", frame, p.meta.TotalFrames)
	}
	if p.streamer == nil {
		return nil
	}
	speaker.Lock()
	p.streamer.pos.Store(frame)
	speaker.Unlock()
	return nil
}

// SetVolume adjusts loudness in powers of two, applied live to any active
// session and remembered for the next one.
func (p *BeepPlayer) SetVolume(volumeDB float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volumeDB = volumeDB
	if p.vol != nil {
		speaker.Lock()
		p.vol.Volume = volumeDB
		speaker.Unlock()
	}
}

// ReadSamples copies normalized mono samples starting at startFrame. Returns
// the number copied; a start at or past the end copies nothing.
func (p *BeepPlayer) ReadSamples(h *Handle, startFrame int64, dst []float64) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkHandle(h); err != nil {
		return 0, err
	}
	if startFrame < 0 {
		return 0, fmt.Errorf("read samples: negative start frame %d", startFrame)
	}
	if startFrame >= int64(len(p.mono)) {
		return 0, nil
	}
	return copy(dst, p.mono[startFrame:]), nil
}

// Close stops playback, drops the handle and closes both event streams.
func (p *BeepPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.stopLocked()
	p.handle = nil
	p.pcm = nil
	p.mono = nil
	p.closed = true
	close(p.events)
	close(p.progress)
	return nil
}

func (p *BeepPlayer) checkHandle(h *Handle) error {
	if p.handle == nil {
		return ErrNoAudio
	}
	if h == nil || h.id != p.handle.id {
		return ErrStaleHandle
	}
	return nil
}
