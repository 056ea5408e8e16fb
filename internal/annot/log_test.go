package annot

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func entryAt(t *testing.T, ms float64, text string) Entry {
	t.Helper()
	e, err := NewEntry(ms, text, Regular, "tester")
	require.NoError(t, err)
	return e
}

func TestLogStaysSortedByTime(t *testing.T) {
	l := NewLog()
	for _, ms := range []float64{5000, 100, 3000} {
		l.Add(entryAt(t, ms, "x"))
	}

	got := l.Entries()
	require.Len(t, got, 3)
	require.Equal(t, []float64{100, 3000, 5000}, []float64{got[0].Time, got[1].Time, got[2].Time})
}

func TestLogTiesKeepInsertionOrder(t *testing.T) {
	l := NewLog()
	l.Add(entryAt(t, 100, "first"))
	l.Add(entryAt(t, 200, "middle"))
	l.Add(entryAt(t, 100, "second"))
	l.Add(entryAt(t, 100, "third"))

	got := l.Entries()
	require.Equal(t, []string{"first", "second", "third", "middle"},
		[]string{got[0].Text, got[1].Text, got[2].Text, got[3].Text})
}

func TestAddBatchSortsOnce(t *testing.T) {
	l := NewLog()
	l.AddBatch([]Entry{
		entryAt(t, 900, "c"),
		entryAt(t, 100, "a"),
		entryAt(t, 500, "b"),
	})
	got := l.Entries()
	require.Equal(t, []string{"a", "b", "c"}, []string{got[0].Text, got[1].Text, got[2].Text})
}

func TestRemoveAt(t *testing.T) {
	l := NewLog()
	l.Add(entryAt(t, 100, "a"))
	l.Add(entryAt(t, 200, "b"))

	require.Error(t, l.RemoveAt(2))
	require.Error(t, l.RemoveAt(-1))
	require.NoError(t, l.RemoveAt(0))
	require.Equal(t, 1, l.Len())

	e, err := l.At(0)
	require.NoError(t, err)
	require.Equal(t, "b", e.Text)

	l.RemoveAll()
	require.Zero(t, l.Len())
}

func TestEntriesIsSnapshot(t *testing.T) {
	l := NewLog()
	l.Add(entryAt(t, 100, "a"))
	snap := l.Entries()
	l.Add(entryAt(t, 50, "b"))
	require.Len(t, snap, 1, "snapshot must not see later mutation")
}

func TestNewEntryRejectsNegativeTime(t *testing.T) {
	_, err := NewEntry(-1, "x", Regular, "tester")
	require.Error(t, err)
}

func TestClassifyText(t *testing.T) {
	cases := []struct {
		text string
		want Type
	}{
		{"<IU>", Intrusion},
		{"dog <IU> cat", Intrusion},
		{"dog", Regular},
		{"", Regular},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ClassifyText(tc.text, "<IU>"), "text %q", tc.text)
	}
	require.Equal(t, Regular, ClassifyText("<IU>", ""), "empty marker never matches")
}
