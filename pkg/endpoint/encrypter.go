package endpoint

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/taurusgroup/elgamal-client/pkg/elgamal"
	"github.com/taurusgroup/elgamal-client/pkg/math/sample"
	"github.com/taurusgroup/elgamal-client/pkg/pool"
)

var (
	ErrNoParameters     = errors.New("endpoint: no parameters")
	ErrInvalidPublicKey = errors.New("endpoint: invalid public key")
)

// MessageFunc chooses the plaintext encrypted for a request.
type MessageFunc func(rand io.Reader, params elgamal.Parameters) (uint64, error)

// RandomMessage draws the plaintext uniformly from [0, p).
func RandomMessage(rand io.Reader, params elgamal.Parameters) (uint64, error) {
	return sample.Uint64N(rand, params.P)
}

// Record is an encryption performed by an Encrypter.
type Record struct {
	Params     elgamal.Parameters
	Public     elgamal.PublicKey
	Message    uint64
	Ciphertext elgamal.Ciphertext
}

// Encrypter is the encrypting party: it holds the current parameters and
// encrypts a message under each public contribution it receives, with a fresh nonce.
type Encrypter struct {
	rand    io.Reader
	message MessageFunc

	mtx    sync.Mutex
	params *elgamal.Parameters
	sent   []Record
}

// NewEncrypter returns an Encrypter without parameters. A nil rand defaults to
// crypto/rand.Reader and a nil message to RandomMessage.
func NewEncrypter(r io.Reader, message MessageFunc) *Encrypter {
	if r == nil {
		r = rand.Reader
	}
	if message == nil {
		message = RandomMessage
	}
	return &Encrypter{
		rand:    pool.NewLockedReader(r),
		message: message,
	}
}

// SetParameters replaces the parameters used for subsequent requests.
func (e *Encrypter) SetParameters(params elgamal.Parameters) error {
	if err := params.Validate(); err != nil {
		return err
	}
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.params = &params
	return nil
}

// Parameters returns the current parameters, if any.
func (e *Encrypter) Parameters() (elgamal.Parameters, bool) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if e.params == nil {
		return elgamal.Parameters{}, false
	}
	return *e.params, true
}

// Ready is true once parameters have been set.
func (e *Encrypter) Ready() bool {
	_, ok := e.Parameters()
	return ok
}

// Encrypt encrypts a new message under public.
func (e *Encrypter) Encrypt(public elgamal.PublicKey) (*elgamal.Ciphertext, error) {
	params, ok := e.Parameters()
	if !ok {
		return nil, ErrNoParameters
	}
	if public == 0 || uint64(public) >= params.P {
		return nil, fmt.Errorf("%w: %d is not in [1, %d)", ErrInvalidPublicKey, public, params.P)
	}
	m, err := e.message(e.rand, params)
	if err != nil {
		return nil, fmt.Errorf("endpoint: failed to choose message: %w", err)
	}
	c, _, err := elgamal.EncryptRandom(e.rand, params, public, m)
	if err != nil {
		return nil, fmt.Errorf("endpoint: failed to encrypt: %w", err)
	}

	e.mtx.Lock()
	e.sent = append(e.sent, Record{Params: params, Public: public, Message: m, Ciphertext: *c})
	e.mtx.Unlock()
	return c, nil
}

// Sent returns every encryption performed so far.
func (e *Encrypter) Sent() []Record {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return append([]Record(nil), e.sent...)
}
