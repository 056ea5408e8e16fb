package session

import (
	"errors"
	"fmt"
)

// ErrIllegalCommand is returned when a transport command is not valid in the
// current session state. The command causes no state change; callers use it
// to keep controls honest.
var ErrIllegalCommand = errors.New("command illegal in current state")

// State is the session's position in the playback lifecycle. NoAudio is
// initial; there is no terminal state, a session can be reopened forever.
type State int

const (
	NoAudio State = iota
	Loading
	Ready
	Playing
	Paused
	Failed
)

func (s State) String() string {
	switch s {
	case NoAudio:
		return "no-audio"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Failed:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// transitions is the full legality table. Failed is reachable from every
// non-initial state; leaving Failed requires an explicit reset to Ready or
// NoAudio.
var transitions = map[State][]State{
	NoAudio: {Loading},
	Loading: {Ready, NoAudio, Failed},
	Ready:   {Playing, Loading, NoAudio, Failed},
	Playing: {Paused, Ready, Loading, Failed},
	Paused:  {Playing, Ready, Loading, NoAudio, Failed},
	Failed:  {Ready, NoAudio, Loading},
}

// CanTransition reports whether moving from s to next is defined.
func (s State) CanTransition(next State) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Transition validates and performs a state change.
func Transition(cur, next State) (State, error) {
	if !cur.CanTransition(next) {
		return cur, fmt.Errorf("%w: %s -> %s", ErrIllegalCommand, cur, next)
	}
	return next, nil
}
