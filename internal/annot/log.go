package annot

import (
	"fmt"
	"sort"
)

// Log is the ordered collection of annotation entries for the current audio
// file. It is always kept sorted by time, ties broken by insertion order.
// Owned by the dispatch context; not safe for concurrent mutation.
type Log struct {
	entries []Entry
}

func NewLog() *Log {
	return &Log{}
}

// Add inserts e keeping the log sorted. Entries with equal times keep their
// insertion order.
func (l *Log) Add(e Entry) {
	// upper bound: first index with time strictly greater, so equal times
	// land after existing ones
	i := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].Time > e.Time
	})
	l.entries = append(l.entries, Entry{})
	copy(l.entries[i+1:], l.entries[i:])
	l.entries[i] = e
}

// AddBatch inserts all entries with a single re-sort, for bulk imports.
func (l *Log) AddBatch(entries []Entry) {
	if len(entries) == 0 {
		return
	}
	l.entries = append(l.entries, entries...)
	sort.SliceStable(l.entries, func(i, j int) bool {
		return l.entries[i].Time < l.entries[j].Time
	})
}

// RemoveAt deletes the entry at index i.
func (l *Log) RemoveAt(i int) error {
	if i < 0 || i >= len(l.entries) {
		return fmt.Errorf("annotation index %d out of range [0,%d)", i, len(l.entries))
	}
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
	return nil
}

// RemoveAll clears the log.
func (l *Log) RemoveAll() {
	l.entries = nil
}

func (l *Log) Len() int {
	return len(l.entries)
}

// At returns the entry at index i.
func (l *Log) At(i int) (Entry, error) {
	if i < 0 || i >= len(l.entries) {
		return Entry{}, fmt.Errorf("annotation index %d out of range [0,%d)", i, len(l.entries))
	}
	return l.entries[i], nil
}

// Entries returns a snapshot copy of the log, sorted by time.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}
