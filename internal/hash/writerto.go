package hash

import "io"

// WriterToWithDomain is a value that writes its own encoding and names the
// domain of that encoding.
//
// round.Number, elgamal.Parameters, elgamal.PublicKey and elgamal.Ciphertext
// implement it, so that a session transcript cannot confuse one for another.
type WriterToWithDomain interface {
	io.WriterTo

	// Domain returns a label that is unique to the implementing type.
	Domain() string
}

// writeWithDomain writes `(<domain><data>)` to w.
func writeWithDomain(w io.Writer, object WriterToWithDomain) error {
	for _, chunk := range [][]byte{[]byte("("), []byte(object.Domain())} {
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
	if _, err := object.WriteTo(w); err != nil {
		return err
	}
	_, err := w.Write([]byte(")"))
	return err
}

// BytesWithDomain labels a raw byte string with a domain, such as the protocol
// identifier that opens every session transcript.
type BytesWithDomain struct {
	TheDomain string
	Bytes     []byte
}

// WriteTo implements io.WriterTo.
func (b BytesWithDomain) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.Bytes)
	return int64(n), err
}

// Domain implements WriterToWithDomain.
func (b BytesWithDomain) Domain() string {
	return b.TheDomain
}
