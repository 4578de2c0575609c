package playback

import (
	"fmt"
	"time"
)

// Transition describes one state change of a Machine
type Transition struct {
	From       State
	To         State
	Err        *Error // set when To is StateFailed
	Generation uint64 // item generation the transition belongs to
	At         time.Time
}

// Machine is the playback lifecycle of the current item. It is not safe for
// concurrent use; callers serialize access on one context.
type Machine struct {
	state      State
	err        *Error
	generation uint64

	// seekToken identifies the seek in flight, seekReturn the state it goes back to
	seekToken  uint64
	seekReturn State

	listeners []func(Transition)
}

// NewMachine creates a Machine in the Idle state
func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

// State returns the current state
func (m *Machine) State() State {
	return m.state
}

// Err returns the failure carried by the Failed state, nil otherwise
func (m *Machine) Err() *Error {
	if m.state != StateFailed {
		return nil
	}
	return m.err
}

// Generation returns the generation of the current item. It changes on every Load.
func (m *Machine) Generation() uint64 {
	return m.generation
}

// OnTransition registers a listener called after every transition
func (m *Machine) OnTransition(fn func(Transition)) {
	m.listeners = append(m.listeners, fn)
}

// Load resets the machine to Preparing for a new item, from any state. Any
// seek tied to the previous item is invalidated. It returns the new generation.
func (m *Machine) Load() uint64 {
	m.generation++
	m.seekToken++
	m.seekReturn = StateIdle
	m.err = nil
	m.transition(StatePreparing, nil)
	return m.generation
}

// ItemReady moves a preparing item to Ready
func (m *Machine) ItemReady() error {
	if m.state != StatePreparing {
		return m.invalid("item ready", StateReady)
	}
	m.transition(StateReady, nil)
	return nil
}

// Fail moves any loaded, non-terminal item to Failed
func (m *Machine) Fail(err *Error) error {
	if err == nil {
		err = NewPlaybackError(nil)
	}
	if !m.state.CanTransitionTo(StateFailed) {
		return m.invalid("fail", StateFailed)
	}
	m.err = err
	m.transition(StateFailed, err)
	return nil
}

// Play starts or resumes playback. During a seek it makes the seek return to Playing.
func (m *Machine) Play() error {
	switch m.state {
	case StatePlaying:
		return nil
	case StateSeeking:
		m.seekReturn = StatePlaying
		return nil
	case StateReady, StatePaused:
		m.transition(StatePlaying, nil)
		return nil
	default:
		return m.invalid("play", StatePlaying)
	}
}

// Pause pauses playback. Pausing a stalled item cancels its auto-resume.
// During a seek it makes the seek return to Paused.
func (m *Machine) Pause() error {
	switch m.state {
	case StatePaused:
		return nil
	case StateSeeking:
		m.seekReturn = StatePaused
		return nil
	case StatePlaying, StateStalled:
		m.transition(StatePaused, nil)
		return nil
	default:
		return m.invalid("pause", StatePaused)
	}
}

// BufferEmpty stalls a playing item
func (m *Machine) BufferEmpty() error {
	if m.state != StatePlaying {
		return m.invalid("buffer empty", StateStalled)
	}
	m.transition(StateStalled, nil)
	return nil
}

// BufferReady resumes a stalled item. Stalled is only entered from Playing, so
// this never starts content the user had paused.
func (m *Machine) BufferReady() error {
	if m.state != StateStalled {
		return nil
	}
	m.transition(StatePlaying, nil)
	return nil
}

// BeginSeek starts a seek from Playing or Paused and returns its token. A seek
// issued while another is in flight supersedes it and keeps its return state.
func (m *Machine) BeginSeek() (uint64, error) {
	switch m.state {
	case StateSeeking:
		m.seekToken++
		return m.seekToken, nil
	case StatePlaying, StatePaused:
		m.seekToken++
		m.seekReturn = m.state
		m.transition(StateSeeking, nil)
		return m.seekToken, nil
	default:
		return 0, m.invalid("seek", StateSeeking)
	}
}

// CompleteSeek returns to the state that preceded the seek. Completions of
// superseded seeks report ErrStaleSeek and change nothing.
func (m *Machine) CompleteSeek(token uint64) error {
	if m.state != StateSeeking || token != m.seekToken {
		return ErrStaleSeek
	}
	m.transition(m.seekReturn, nil)
	return nil
}

// ReachedEnd ends a playing item. Callers only report it for non-live streams.
func (m *Machine) ReachedEnd() error {
	if m.state != StatePlaying {
		return m.invalid("reached end", StateEnded)
	}
	m.transition(StateEnded, nil)
	return nil
}

func (m *Machine) transition(to State, err *Error) {
	t := Transition{From: m.state, To: to, Err: err, Generation: m.generation, At: time.Now()}
	m.state = to
	for _, fn := range m.listeners {
		fn(t)
	}
}

func (m *Machine) invalid(event string, to State) error {
	return fmt.Errorf("%w: %s from %s to %s", ErrInvalidTransition, event, m.state, to)
}
