// Package decrypt implements the decrypting side of a two-party ElGamal exchange.
//
// Each round, the decrypting party receives domain parameters (p, a), draws an
// ephemeral exponent n, and sends b = aⁿ (mod p) to the encrypting party. The
// ciphertext (y₁, y₂) it gets back is opened with n, and the round is counted.
//
// HandleParameters and Recover are the two transitions of the exchange. They
// operate on a *round.State owned by the caller, who must serialize them.
package decrypt

import (
	"fmt"
	"io"

	"github.com/taurusgroup/elgamal-client/internal/hash"
	"github.com/taurusgroup/elgamal-client/internal/round"
	"github.com/taurusgroup/elgamal-client/pkg/elgamal"
)

const (
	// ProtocolID identifies this protocol in session identifiers and logs.
	ProtocolID = "elgamal/decrypt"

	// TotalRounds is the default number of rounds after which the exchange stops.
	TotalRounds round.Number = 5
)

// Exchange holds the context of a single round while its request is in flight.
//
// It owns the ephemeral secret, which is erased once the response has been
// handled, whether it succeeded or not.
type Exchange struct {
	// Round is the round this exchange completes, starting at 1.
	Round round.Number
	// Params are the domain parameters the secret was drawn for.
	Params elgamal.Parameters
	// Public is the contribution b = aⁿ (mod p) sent to the encrypting party.
	Public elgamal.PublicKey

	secret *elgamal.Secret
	ssid   []byte
}

func newExchange(number round.Number, secret *elgamal.Secret) *Exchange {
	params := secret.Parameters()
	public := secret.PublicKey()
	h := hash.New(&hash.BytesWithDomain{
		TheDomain: "Protocol ID",
		Bytes:     []byte(ProtocolID),
	})
	if err := h.WriteAny(number, params, public); err != nil {
		panic(fmt.Sprintf("decrypt: session transcript: %v", err))
	}
	return &Exchange{
		Round:  number,
		Params: params,
		Public: public,
		secret: secret,
		ssid:   h.Sum(),
	}
}

// SSID is a digest of the public transcript of this exchange.
func (e *Exchange) SSID() []byte { return e.ssid }

// Done is true once the secret has been discarded.
func (e *Exchange) Done() bool { return e.secret == nil }

// Discard erases the secret of e. It is used when the request for e was never sent.
func (e *Exchange) Discard() {
	if e.secret != nil {
		e.secret.Erase()
		e.secret = nil
	}
}

// HandleParameters starts a new round from params if the state permits it.
//
// It returns (nil, nil) when the parameters must be ignored: a request is in
// flight, or the exchange is finished. When all rounds are consumed, the state
// is marked as finished. Parameters with p < 3 are rejected with
// elgamal.ErrInvalidParameters and leave the state untouched.
//
// Otherwise a fresh exponent n ∈ [1, p-2] is drawn from rand and the returned
// Exchange carries b = aⁿ (mod p). The state is not modified: the caller calls
// State.Begin once the request is actually sent.
func HandleParameters(s *round.State, params elgamal.Parameters, rand io.Reader) (*Exchange, error) {
	if s.Busy() {
		return nil, nil
	}
	if s.Exhausted() {
		return nil, nil
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	secret, err := elgamal.GenerateSecret(rand, params)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return newExchange(s.Number()+1, secret), nil
}

// Recover opens the ciphertext returned for e, and records the completed round in s.
//
// The decrypted value is y₂⋅y₁^(p-1-n) (mod p) as a signed integer. The secret of
// e is erased.
func Recover(s *round.State, e *Exchange, c *elgamal.Ciphertext) (int64, error) {
	if e.Done() {
		return 0, fmt.Errorf("decrypt: round %d: exchange already handled", e.Round)
	}
	if !s.Waiting() {
		return 0, round.ErrNotWaiting
	}
	x := e.secret.Decrypt(c)
	e.Discard()
	if _, err := s.Complete(); err != nil {
		return 0, err
	}
	return x, nil
}

// Abandon records that the request for e failed. The round is not counted, and
// the secret of e is erased, so that the next parameters start over.
func Abandon(s *round.State, e *Exchange) {
	e.Discard()
	s.Abandon()
}
