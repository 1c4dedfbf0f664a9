// Package protocol drives the decrypting side of the ElGamal exchange against its
// collaborators: a feed of domain parameters, a remote encryption endpoint, and a
// sink for the recovered values.
package protocol

import "context"

// Feed delivers parameter events.
type Feed interface {
	// Subscribe returns a channel of parameter events. The channel is closed when
	// ctx is done or the feed ends.
	Subscribe(ctx context.Context) (<-chan *ParamsMessage, error)
}

// Sink receives the value recovered in each completed round.
type Sink interface {
	Publish(ctx context.Context, msg *ResultMessage) error
}

// Endpoint is the encrypting party.
type Endpoint interface {
	// Probe returns nil if the endpoint is ready to accept a request. It must
	// return once ctx is done.
	Probe(ctx context.Context) error
	// Encrypt sends the public contribution and returns the ciphertext pair.
	// An error wrapping ErrUnavailable means the endpoint could not be reached.
	Encrypt(ctx context.Context, req *EncryptRequest) (*EncryptResponse, error)
}

type sessionKey struct{}

// WithSession returns a copy of ctx carrying the session id of an exchange, so that
// transports may forward it to the encrypting party.
func WithSession(ctx context.Context, ssid []byte) context.Context {
	return context.WithValue(ctx, sessionKey{}, ssid)
}

// SessionFrom returns the session id stored in ctx by WithSession, if any.
func SessionFrom(ctx context.Context) ([]byte, bool) {
	ssid, ok := ctx.Value(sessionKey{}).([]byte)
	return ssid, ok
}
