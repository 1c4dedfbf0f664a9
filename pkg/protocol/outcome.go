package protocol

import (
	"errors"

	"github.com/taurusgroup/elgamal-client/pkg/elgamal"
)

// Outcome is the result of a request to the encryption endpoint.
//
// It is one of Success, EndpointUnavailable or EndpointError.
type Outcome interface {
	outcome()
}

// Success carries the ciphertext returned by the endpoint.
type Success struct {
	Ciphertext elgamal.Ciphertext
}

// EndpointUnavailable means the endpoint could not be reached when the request was sent.
type EndpointUnavailable struct {
	Err error
}

// EndpointError means the endpoint was reached but the exchange failed.
type EndpointError struct {
	Err error
}

func (Success) outcome()             {}
func (EndpointUnavailable) outcome() {}
func (EndpointError) outcome()       {}

// OutcomeOf classifies the return values of Endpoint.Encrypt.
func OutcomeOf(resp *EncryptResponse, err error) Outcome {
	switch {
	case errors.Is(err, ErrUnavailable):
		return EndpointUnavailable{Err: err}
	case err != nil:
		return EndpointError{Err: err}
	case resp == nil:
		return EndpointError{Err: errors.New("protocol: empty response")}
	default:
		return Success{Ciphertext: resp.Ciphertext()}
	}
}
