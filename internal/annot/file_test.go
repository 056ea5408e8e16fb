package annot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"annotix/pkg/spec"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.tmp")

	l := NewLog()
	for _, ms := range []float64{5000, 100, 3000} {
		l.Add(entryAt(t, ms, "word"))
	}
	meta := NewMetadata("alice", map[string]string{"audio_file": "rec.wav"})
	require.NoError(t, Save(l, meta, path))

	got, gotMeta, err := Load(path, spec.DefaultIntrusionMarker)
	require.NoError(t, err)
	require.Equal(t, "alice", gotMeta.Annotator)
	require.Equal(t, spec.Version, gotMeta.ProgramVersion)
	require.Equal(t, "rec.wav", gotMeta.SystemInfo["audio_file"])
	require.Len(t, got, 3)
	require.Equal(t, []float64{100, 3000, 5000}, []float64{got[0].Time, got[1].Time, got[2].Time})
}

func TestLoadWithoutMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bare.tmp")
	require.NoError(t, os.WriteFile(path, []byte(`{"annotations":[{"time":1000,"text":"dog"}]}`), 0o644))

	got, meta, err := Load(path, "<IU>")
	require.NoError(t, err)
	require.Equal(t, "Unknown", meta.Annotator)
	require.NotEmpty(t, meta.Timestamp)
	require.Len(t, got, 1)
	require.Equal(t, "dog", got[0].Text)
	require.Equal(t, Regular, got[0].Type, "untyped entry classified by text heuristic")
	require.Equal(t, "Unknown", got[0].Annotator)
}

func TestLoadClassifiesUntypedIntrusion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "iu.tmp")
	require.NoError(t, os.WriteFile(path, []byte(`{"annotations":[{"time":5,"text":"<IU> noise"}]}`), 0o644))

	got, _, err := Load(path, "<IU>")
	require.NoError(t, err)
	require.Equal(t, Intrusion, got[0].Type)
}

func TestLoadFailures(t *testing.T) {
	dir := t.TempDir()

	_, _, err := Load(filepath.Join(dir, "missing.tmp"), "<IU>")
	require.Error(t, err, "missing file is an error even though missing metadata is not")

	bad := filepath.Join(dir, "bad.tmp")
	require.NoError(t, os.WriteFile(bad, []byte("not json"), 0o644))
	_, _, err = Load(bad, "<IU>")
	require.Error(t, err)

	neg := filepath.Join(dir, "neg.tmp")
	require.NoError(t, os.WriteFile(neg, []byte(`{"annotations":[{"time":-5,"text":"x"}]}`), 0o644))
	_, _, err = Load(neg, "<IU>")
	require.Error(t, err, "negative time is structurally invalid")
}

func TestAtomicSaveFailureLeavesDestinationUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.tmp")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))

	testHookFailWrite = func() error { return errors.New("disk full") }
	defer func() { testHookFailWrite = nil }()

	l := NewLog()
	l.Add(entryAt(t, 100, "x"))
	err := Save(l, NewMetadata("alice", nil), path)
	require.Error(t, err)

	data, rerr := os.ReadFile(path)
	require.NoError(t, rerr)
	require.Equal(t, "original", string(data), "failed save must not touch the destination")

	entries, derr := os.ReadDir(dir)
	require.NoError(t, derr)
	require.Len(t, entries, 1, "no leftover temporary file")
}

func TestCreateRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.tmp")
	l := NewLog()
	meta := NewMetadata("alice", nil)

	require.NoError(t, Create(l, meta, path))
	err := Create(l, meta, path)
	require.ErrorIs(t, err, ErrFileExists)
}

func TestFinalize(t *testing.T) {
	dir := t.TempDir()
	work := filepath.Join(dir, "rec.tmp")
	final := filepath.Join(dir, "rec.ann")

	l := NewLog()
	l.Add(entryAt(t, 100, "x"))
	require.NoError(t, Save(l, NewMetadata("alice", nil), work))

	require.NoError(t, Finalize(work, final))
	_, err := os.Stat(work)
	require.True(t, os.IsNotExist(err), "working file is consumed")

	got, _, err := Load(final, "<IU>")
	require.NoError(t, err)
	require.Len(t, got, 1)

	// a second finalize must refuse to clobber the finished document
	require.NoError(t, Save(l, NewMetadata("alice", nil), work))
	require.ErrorIs(t, Finalize(work, final), ErrFileExists)
}
