package protocol

import (
	"fmt"

	"github.com/taurusgroup/elgamal-client/pkg/elgamal"
)

// ParamsMessage is delivered by the parameter feed, once per published set of
// domain parameters.
type ParamsMessage struct {
	P uint64 `cbor:"p" json:"p"`
	A uint64 `cbor:"a" json:"a"`
}

// Parameters returns the domain parameters carried by m.
func (m ParamsMessage) Parameters() elgamal.Parameters {
	return elgamal.Parameters{P: m.P, A: m.A}
}

// String implements fmt.Stringer.
func (m ParamsMessage) String() string {
	return fmt.Sprintf("params: p=%d a=%d", m.P, m.A)
}

// ResultMessage is emitted to the result sink once per completed round.
type ResultMessage struct {
	Value int64 `cbor:"value" json:"value"`
}

// String implements fmt.Stringer.
func (m ResultMessage) String() string {
	return fmt.Sprintf("result: %d", m.Value)
}

// EncryptRequest asks the encryption endpoint to encrypt under PublicKey.
type EncryptRequest struct {
	PublicKey uint64 `cbor:"public_key" json:"public_key"`
}

// EncryptResponse is the ciphertext pair returned by the encryption endpoint.
type EncryptResponse struct {
	Y1 uint64 `cbor:"y1" json:"y1"`
	Y2 uint64 `cbor:"y2" json:"y2"`
}

// Ciphertext returns the pair as an elgamal.Ciphertext.
func (r EncryptResponse) Ciphertext() elgamal.Ciphertext {
	return elgamal.Ciphertext{Y1: r.Y1, Y2: r.Y2}
}
