package audioengine

import (
	"testing"

	"github.com/go-audio/audio"
	"github.com/stretchr/testify/require"
)

func TestPCMFromIntBufferStereo(t *testing.T) {
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 2, SampleRate: 44100},
		Data:   []int{0, 16384, -32768, 32767},
	}
	pcm, err := pcmFromIntBuffer(buf, 16)
	require.NoError(t, err)
	require.Len(t, pcm, 2)
	require.InDelta(t, 0, pcm[0][0], 1e-9)
	require.InDelta(t, 0.5, pcm[0][1], 1e-9)
	require.InDelta(t, -1, pcm[1][0], 1e-9)
	require.InDelta(t, 1, pcm[1][1], 1e-3)
}

func TestPCMFromIntBufferMonoDuplicates(t *testing.T) {
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 1, SampleRate: 8000},
		Data:   []int{16384, -16384},
	}
	pcm, err := pcmFromIntBuffer(buf, 16)
	require.NoError(t, err)
	require.Len(t, pcm, 2)
	require.Equal(t, pcm[0][0], pcm[0][1], "mono fills both channels")
	require.InDelta(t, 0.5, pcm[0][0], 1e-9)
}

func TestPCMFromIntBufferRejectsBadShapes(t *testing.T) {
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 6, SampleRate: 48000},
		Data:   make([]int, 12),
	}
	_, err := pcmFromIntBuffer(buf, 16)
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	buf.Format.NumChannels = 2
	_, err = pcmFromIntBuffer(buf, 64)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestApplyQuickGainClamps(t *testing.T) {
	samples := []float64{0.5, -0.5, 0.9}
	ApplyQuickGain(samples, 2)
	require.Equal(t, []float64{1, -1, 1}, samples)
}

func TestPeakAmplitude(t *testing.T) {
	require.Equal(t, 0.8, PeakAmplitude([]float64{0.1, -0.8, 0.3}))
	require.Zero(t, PeakAmplitude(nil))
}

func TestFrameStreamer(t *testing.T) {
	s := &frameStreamer{pcm: make([][2]float64, 10)}
	s.pos.Store(8)

	out := make([][2]float64, 4)
	n, ok := s.Stream(out)
	require.True(t, ok)
	require.Equal(t, 2, n)
	require.Equal(t, int64(10), s.pos.Load())

	n, ok = s.Stream(out)
	require.False(t, ok, "drained streamer reports completion")
	require.Zero(t, n)
	require.NoError(t, s.Err())
}

func TestDecodeFileUnsupportedExtension(t *testing.T) {
	_, _, err := decodeFile("notes.txt")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}
