// Package playback tracks the coarse lifecycle of one loaded media item.
package playback

// State represents the current playback state of the loaded item
type State int

// Playback state constants
const (
	StateIdle      State = iota // Nothing loaded
	StatePreparing              // Item requested, waiting for the engine
	StateReady                  // Item ready, not yet playing
	StatePlaying
	StatePaused
	StateSeeking // Seek in flight, returns to Playing or Paused
	StateStalled // Buffer ran empty while playing
	StateEnded   // Reached the end of a non-live item
	StateFailed  // Data source or playback failure, see Machine.Err
)

// String returns the string representation of the playback state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateSeeking:
		return "seeking"
	case StateStalled:
		return "stalled"
	case StateEnded:
		return "ended"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsValid checks if the state is a known value
func (s State) IsValid() bool {
	return s >= StateIdle && s <= StateFailed
}

// IsTerminal reports whether only a new load can leave the state
func (s State) IsTerminal() bool {
	return s == StateEnded || s == StateFailed
}

// HoldsControls reports whether overlays should stay up in this state
// because the user likely needs them.
func (s State) HoldsControls() bool {
	switch s {
	case StatePaused, StateStalled, StateFailed, StateEnded:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if a transition from the current state to newState is valid.
// Any state may move to Preparing when a new item is loaded.
func (s State) CanTransitionTo(newState State) bool {
	if newState == StatePreparing {
		return true
	}

	switch s {
	case StatePreparing:
		return newState == StateReady || newState == StateFailed
	case StateReady:
		return newState == StatePlaying || newState == StateFailed
	case StatePlaying:
		return newState == StatePaused || newState == StateStalled || newState == StateSeeking ||
			newState == StateEnded || newState == StateFailed
	case StatePaused:
		return newState == StatePlaying || newState == StateSeeking || newState == StateFailed
	case StateSeeking:
		return newState == StatePlaying || newState == StatePaused || newState == StateFailed
	case StateStalled:
		// Pausing during a stall is a user decision and must not auto-resume
		return newState == StatePlaying || newState == StatePaused || newState == StateFailed
	default:
		// Idle, Ended and Failed only leave through a new load
		return false
	}
}
