package protocol

import (
	"errors"
	"fmt"

	"github.com/taurusgroup/elgamal-client/internal/round"
)

// ErrUnavailable is returned (possibly wrapped) by an Endpoint that cannot be reached.
var ErrUnavailable = errors.New("protocol: encryption endpoint unavailable")

// Error is a custom error for exchanges which contains information about the round
// in which it occurred.
type Error struct {
	// RoundNumber where the error occurred
	RoundNumber round.Number
	// Err is the underlying error
	Err error
}

func (e Error) Error() string {
	return fmt.Sprintf("round %d: %s", e.RoundNumber, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}
