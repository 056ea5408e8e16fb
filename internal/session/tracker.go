package session

// Tracker records playback progress for the current audio file: the most
// recently reported frame and the greatest frame ever reached. The high-water
// mark backs the forced-listen policy, so it only ever moves forward and is
// fed exclusively by playback reports, never by seeks.
type Tracker struct {
	last     int64
	greatest int64
}

// NoteFrame records a reported playback position and offers it as progress.
func (t *Tracker) NoteFrame(frame int64) {
	t.last = frame
	t.OfferGreatestProgress(frame)
}

// OfferGreatestProgress raises the high-water mark if frame exceeds it.
// Lower or equal offers leave it untouched.
func (t *Tracker) OfferGreatestProgress(frame int64) {
	if frame > t.greatest {
		t.greatest = frame
	}
}

// LastFrame returns the most recently reported playback position.
func (t *Tracker) LastFrame() int64 { return t.last }

// GreatestFrame returns the monotonic high-water mark.
func (t *Tracker) GreatestFrame() int64 { return t.greatest }

// Reset clears both values for a new audio file.
func (t *Tracker) Reset() {
	t.last = 0
	t.greatest = 0
}
