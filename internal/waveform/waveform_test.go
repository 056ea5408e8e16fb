package waveform

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"annotix/internal/codec"
	"annotix/pkg/audioengine"
	"annotix/pkg/spec"
)

func TestChunkFrames(t *testing.T) {
	got, err := ChunkFrames(44100, spec.ChunkSizeSeconds)
	require.NoError(t, err)
	require.Equal(t, int64(44100*spec.ChunkSizeSeconds), got)

	_, err = ChunkFrames(0, 10)
	require.Error(t, err)
	_, err = ChunkFrames(-1, 10)
	require.Error(t, err)
	_, err = ChunkFrames(44100, 0)
	require.Error(t, err)
}

func TestChunkFramesOverflowRejected(t *testing.T) {
	// a sample rate large enough that rate × seconds would wrap int64
	_, err := ChunkFrames(int(math.MaxInt64/2+1), 10)
	require.Error(t, err)
}

func TestChunkIndexMath(t *testing.T) {
	const cf = 441000
	require.Equal(t, 0, IndexForFrame(0, cf))
	require.Equal(t, 0, IndexForFrame(440999, cf))
	require.Equal(t, 1, IndexForFrame(441000, cf))

	require.Equal(t, 0, NumChunks(0, cf))
	require.Equal(t, 1, NumChunks(1, cf))
	require.Equal(t, 1, NumChunks(441000, cf))
	require.Equal(t, 2, NumChunks(441001, cf))
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(3)
	c.Reset(7)
	for i := 0; i < 3; i++ {
		c.Put(Chunk{HandleID: 7, Index: i})
	}
	// touch 0 so 1 becomes the eviction candidate
	_, ok := c.Get(0)
	require.True(t, ok)

	c.Put(Chunk{HandleID: 7, Index: 3})
	require.Equal(t, 3, c.Len())
	require.False(t, c.Contains(1))
	require.True(t, c.Contains(0))
	require.True(t, c.Contains(2))
	require.True(t, c.Contains(3))
}

func TestCacheInvalidatedWholesaleOnHandleSwitch(t *testing.T) {
	c := NewCache(3)
	c.Reset(1)
	c.Put(Chunk{HandleID: 1, Index: 0})
	c.Put(Chunk{HandleID: 1, Index: 1})

	c.Reset(2)
	require.Zero(t, c.Len(), "handle switch drops every chunk")

	// a late delivery from the old handle's worker must be discarded
	c.Put(Chunk{HandleID: 1, Index: 2})
	require.Zero(t, c.Len())

	c.Put(Chunk{HandleID: 2, Index: 0})
	require.Equal(t, 1, c.Len())
}

// sineReader serves a synthetic tone, optionally delaying each read so
// termination timing can be exercised.
type sineReader struct {
	handle *audioengine.Handle
	total  int64
	delay  time.Duration
}

func (r *sineReader) ReadSamples(h *audioengine.Handle, start int64, dst []float64) (int, error) {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	n := r.total - start
	if n <= 0 {
		return 0, nil
	}
	if n > int64(len(dst)) {
		n = int64(len(dst))
	}
	for i := int64(0); i < n; i++ {
		dst[i] = math.Sin(2 * math.Pi * 440 * float64(start+i) / 8000)
	}
	return int(n), nil
}

func testBuffer(t *testing.T, delay time.Duration) (*Buffer, *sync.Map, *atomic.Int64) {
	t.Helper()
	handle := audioengine.NewHandle("test.wav")
	meta := audioengine.Metadata{TotalFrames: 24000, SampleRate: 8000, Channels: 1}
	reader := &sineReader{handle: handle, total: meta.TotalFrames, delay: delay}

	var delivered sync.Map
	var pos atomic.Int64
	cfg := codec.RenderConfig{SampleRate: 8000, MinBandHz: 40, MaxBandHz: 3000, PointsPerSecond: 50}
	buf, err := NewBuffer(reader, handle, meta, DefaultPolicy(), cfg,
		func() int64 { return pos.Load() },
		func(ch Chunk) { delivered.Store(ch.Index, ch) })
	require.NoError(t, err)
	return buf, &delivered, &pos
}

func TestBufferRendersAroundPosition(t *testing.T) {
	buf, delivered, _ := testBuffer(t, 0)
	buf.Start()
	defer buf.Terminate(2 * time.Second)

	require.Eventually(t, func() bool {
		_, ok := delivered.Load(0)
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	v, _ := delivered.Load(0)
	ch := v.(Chunk)
	require.Equal(t, int64(0), ch.FirstFrame)
	require.NotEmpty(t, ch.Points)
	for _, p := range ch.Points {
		require.GreaterOrEqual(t, p, 0.0, "rendered points are magnitudes")
	}
}

func TestRewindReRendersEvictedChunk(t *testing.T) {
	handle := audioengine.NewHandle("test.wav")
	meta := audioengine.Metadata{TotalFrames: 48000, SampleRate: 8000, Channels: 1}
	reader := &sineReader{handle: handle, total: meta.TotalFrames}
	cfg := codec.RenderConfig{SampleRate: 8000, MinBandHz: 40, MaxBandHz: 3000, PointsPerSecond: 50}
	pol := Policy{ChunkSeconds: 1, PreRollSeconds: 0.25}

	var mu sync.Mutex
	cache := NewCache(DefaultCacheSize)
	cache.Reset(handle.ID())
	var pos atomic.Int64

	buf, err := NewBuffer(reader, handle, meta, pol, cfg,
		func() int64 { return pos.Load() },
		func(ch Chunk) {
			mu.Lock()
			cache.Put(ch)
			mu.Unlock()
		})
	require.NoError(t, err)
	buf.Start()
	defer buf.Terminate(5 * time.Second)

	resident := func(idx int) func() bool {
		return func() bool {
			mu.Lock()
			defer mu.Unlock()
			return cache.Contains(idx)
		}
	}

	// play forward through all six chunks so the early ones fall out of the
	// cache
	for idx := 0; idx < 6; idx++ {
		pos.Store(int64(idx) * 8000)
		require.Eventually(t, resident(idx), 5*time.Second, 10*time.Millisecond)
	}
	mu.Lock()
	evicted := !cache.Contains(0)
	mu.Unlock()
	require.True(t, evicted, "chunk 0 should have been evicted on the way forward")

	// rewinding must bring the evicted chunk back even though the worker
	// rendered it once already
	pos.Store(0)
	require.Eventually(t, resident(0), 5*time.Second, 10*time.Millisecond,
		"chunk at the rewound position never re-rendered")
}

func TestTerminateWithGenerousTimeout(t *testing.T) {
	buf, _, _ := testBuffer(t, 0)
	buf.Start()
	require.True(t, buf.Terminate(5*time.Second))
	require.False(t, buf.Alive())
}

func TestTerminateNearZeroTimeoutMayFail(t *testing.T) {
	buf, delivered, _ := testBuffer(t, 200*time.Millisecond)
	buf.Start()

	// worker is mid-render; an immediate deadline reports failure rather
	// than pretending the goroutine is gone
	ok := buf.Terminate(0)
	if ok {
		require.False(t, buf.Alive())
		return
	}

	require.True(t, buf.Terminate(5*time.Second), "finish signal eventually honored")
	// deliveries that raced the termination are still well-formed values
	delivered.Range(func(_, v any) bool {
		require.IsType(t, Chunk{}, v)
		return true
	})
}
