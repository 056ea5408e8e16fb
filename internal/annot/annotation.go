package annot

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type classifies an annotation entry.
type Type int

const (
	Regular Type = iota
	Intrusion
	Custom
)

func (t Type) String() string {
	switch t {
	case Regular:
		return "regular"
	case Intrusion:
		return "intrusion"
	case Custom:
		return "custom"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType maps a persisted type tag to a Type. Unknown non-empty tags are
// treated as Custom; ok is false for the empty tag.
func ParseType(s string) (Type, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "regular":
		return Regular, true
	case "intrusion":
		return Intrusion, true
	case "custom":
		return Custom, true
	case "":
		return Regular, false
	}
	return Custom, true
}

// ClassifyText re-derives a Type from annotation text using the configured
// intrusion marker (exact or substring match). This is a heuristic for files
// without explicit type tags and is not a guaranteed inverse of whatever
// produced the original tag.
func ClassifyText(text, intrusionMarker string) Type {
	if intrusionMarker == "" {
		return Regular
	}
	if text == intrusionMarker || strings.Contains(text, intrusionMarker) {
		return Intrusion
	}
	return Regular
}

// Entry is a single time-stamped annotation. Entries are immutable once
// created; edits produce new values.
type Entry struct {
	ID        uuid.UUID
	Time      float64 // milliseconds from the start of the recording
	Text      string
	Type      Type
	Annotator string
	CreatedAt time.Time
}

// NewEntry creates an entry stamped with a fresh id and the current time.
func NewEntry(timeMillis float64, text string, typ Type, annotator string) (Entry, error) {
	if timeMillis < 0 {
		return Entry{}, fmt.Errorf("annotation time must be non-negative, got %v", timeMillis)
	}
	return Entry{
		ID:        uuid.New(),
		Time:      timeMillis,
		Text:      text,
		Type:      typ,
		Annotator: annotator,
		CreatedAt: time.Now(),
	}, nil
}

// WithText returns a copy of e carrying new text.
func (e Entry) WithText(text string) Entry {
	e.Text = text
	return e
}

// WithTime returns a copy of e at a new timestamp.
func (e Entry) WithTime(timeMillis float64) Entry {
	e.Time = timeMillis
	return e
}
