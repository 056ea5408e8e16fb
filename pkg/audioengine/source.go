package audioengine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hraban/opus"
)

// decodeFile loads an entire audio file into interleaved stereo float frames.
// Mono sources are duplicated into both channels so the playback path only
// ever deals with stereo.
func decodeFile(path string) ([][2]float64, Metadata, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return decodeWAV(path)
	case ".opus", ".ogg":
		return decodeOpus(path)
	default:
		return nil, Metadata{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func decodeWAV(path string) ([][2]float64, Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, Metadata{}, fmt.Errorf("%w: not a valid wav file", ErrUnsupportedFormat)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("decode wav: %w", err)
	}
	pcm, err := pcmFromIntBuffer(buf, int(dec.BitDepth))
	if err != nil {
		return nil, Metadata{}, err
	}
	meta := Metadata{
		TotalFrames: int64(len(pcm)),
		SampleRate:  buf.Format.SampleRate,
		Channels:    buf.Format.NumChannels,
	}
	return pcm, meta, nil
}

// pcmFromIntBuffer normalizes integer PCM to stereo float frames in [-1, 1].
func pcmFromIntBuffer(buf *audio.IntBuffer, bitDepth int) ([][2]float64, error) {
	channels := buf.Format.NumChannels
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, channels)
	}
	if bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("%w: %d bit samples", ErrUnsupportedFormat, bitDepth)
	}
	scale := float64(int64(1) << (bitDepth - 1))
	frames := len(buf.Data) / channels
	pcm := make([][2]float64, frames)
	for i := 0; i < frames; i++ {
		l := float64(buf.Data[i*channels]) / scale
		r := l
		if channels == 2 {
			r = float64(buf.Data[i*channels+1]) / scale
		}
		pcm[i] = [2]float64{l, r}
	}
	return pcm, nil
}

// decodeOpus decodes an ogg/opus stream. Opus always plays out at 48kHz and
// the stream decoder hands back interleaved stereo.
func decodeOpus(path string) ([][2]float64, Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("open opus: %w", err)
	}
	defer f.Close()

	s, err := opus.NewStream(f)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	defer s.Close()

	var pcm [][2]float64
	frame := make([]float32, 2*5760) // max opus frame, 120ms at 48k stereo
	for {
		n, err := s.ReadFloat32(frame)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, Metadata{}, fmt.Errorf("decode opus: %w", err)
		}
		for i := 0; i < n; i++ {
			pcm = append(pcm, [2]float64{float64(frame[i*2]), float64(frame[i*2+1])})
		}
	}
	meta := Metadata{
		TotalFrames: int64(len(pcm)),
		SampleRate:  48000,
		Channels:    2,
	}
	return pcm, meta, nil
}
