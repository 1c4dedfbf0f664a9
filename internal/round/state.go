package round

import (
	"errors"
	"fmt"
)

var (
	ErrInFlight   = errors.New("round: a request is already in flight")
	ErrNotWaiting = errors.New("round: no request in flight")
	ErrFinished   = errors.New("round: all rounds are complete")
)

// Status is the phase of the exchange state machine.
type Status uint8

const (
	// Idle means no request is in flight and rounds remain.
	Idle Status = iota
	// Waiting means exactly one request is in flight.
	Waiting
	// Finished is terminal, all rounds have been consumed.
	Finished
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Waiting:
		return "waiting"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Snapshot is a copy of a State at some point in time.
type Snapshot struct {
	Round    Number `json:"round"`
	Total    Number `json:"total"`
	Waiting  bool   `json:"waiting"`
	Finished bool   `json:"finished"`
	Status   string `json:"status"`
}

// State records the progress of the exchange: the number of completed rounds,
// whether a request is in flight, and whether all rounds are done.
//
// State is not safe for concurrent use, the owner serializes access.
type State struct {
	total    Number
	number   Number
	waiting  bool
	finished bool
}

// NewState returns the state of an exchange that will run total rounds.
func NewState(total Number) *State {
	return &State{total: total}
}

// Number is the count of completed rounds.
func (s *State) Number() Number { return s.number }

// Total is the number of rounds to run.
func (s *State) Total() Number { return s.total }

// Waiting is true while a request is in flight.
func (s *State) Waiting() bool { return s.waiting }

// Finished is true once all rounds have completed.
func (s *State) Finished() bool { return s.finished }

// Status returns the current phase.
func (s *State) Status() Status {
	switch {
	case s.finished:
		return Finished
	case s.waiting:
		return Waiting
	default:
		return Idle
	}
}

// Busy reports whether new parameters must be ignored.
func (s *State) Busy() bool {
	return s.waiting || s.finished
}

// Exhausted marks the state as finished when all rounds have been consumed,
// and reports whether it is.
func (s *State) Exhausted() bool {
	if s.number >= s.total {
		s.finished = true
	}
	return s.finished
}

// Begin marks a request as in flight.
func (s *State) Begin() error {
	if s.finished {
		return ErrFinished
	}
	if s.waiting {
		return ErrInFlight
	}
	s.waiting = true
	return nil
}

// Complete records a successful round: the request is no longer in flight and the
// round number is incremented. It returns true when this was the last round.
func (s *State) Complete() (bool, error) {
	if !s.waiting {
		return s.finished, ErrNotWaiting
	}
	s.waiting = false
	s.number++
	return s.Exhausted(), nil
}

// Abandon records a failed round. The round number is left unchanged so that the
// round is retried.
func (s *State) Abandon() {
	s.waiting = false
}

// Snapshot returns a copy of the state.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Round:    s.number,
		Total:    s.total,
		Waiting:  s.waiting,
		Finished: s.finished,
		Status:   s.Status().String(),
	}
}
