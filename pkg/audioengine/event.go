package audioengine

import "fmt"

// Event is the notification a precision player passes to its consumers. By
// the time an event is reported the corresponding status change has already
// occurred: the player stops streaming before Stopped is delivered.
//
// Event is a sealed sum type: consumers type-switch over the variants below,
// and adding a variant forces every switch with a default-less shape to be
// revisited. Events are delivered in production order and never coalesced.
type Event interface {
	precisionEvent()
	fmt.Stringer
}

// Opened reports that Open is done executing.
type Opened struct {
	Handle *Handle
}

// Playing reports that main playback is underway. Delivered exactly once per
// PlayAt call; progress ticks are a separate stream.
type Playing struct {
	StartFrame int64
}

// Stopped reports that streaming halted at the last hearing frame. The event
// alone cannot distinguish a pause from an explicit stop; the command layer
// owns that decision.
type Stopped struct {
	Frame int64
}

// EndOfMedia reports playback reached the end of the audio media. Frame is
// the final frame of the file.
type EndOfMedia struct {
	Frame int64
}

// PlaybackError reports a backend failure during playback.
type PlaybackError struct {
	Message string
}

func (Opened) precisionEvent()        {}
func (Playing) precisionEvent()       {}
func (Stopped) precisionEvent()       {}
func (EndOfMedia) precisionEvent()    {}
func (PlaybackError) precisionEvent() {}

func (e Opened) String() string     { return fmt.Sprintf("FILE OPENED: %s", e.Handle.Path()) }
func (e Playing) String() string    { return fmt.Sprintf("PLAYBACK BEGUN: %d", e.StartFrame) }
func (e Stopped) String() string    { return fmt.Sprintf("PLAYBACK STOPPED: %d", e.Frame) }
func (e EndOfMedia) String() string { return fmt.Sprintf("END OF MEDIA REACHED: %d", e.Frame) }
func (e PlaybackError) String() string {
	return fmt.Sprintf("PLAYBACK ERROR: %s", e.Message)
}
