package main

import (
	"context"
	"fmt"

	"github.com/taurusgroup/elgamal-client/pkg/elgamal"
	"github.com/taurusgroup/elgamal-client/pkg/endpoint"
	"github.com/taurusgroup/elgamal-client/pkg/protocol"
)

// localEndpoint connects a Handler directly to an Encrypter in the same process.
type localEndpoint struct {
	enc *endpoint.Encrypter
}

func (l localEndpoint) Probe(ctx context.Context) error {
	if !l.enc.Ready() {
		return fmt.Errorf("example: %w", protocol.ErrUnavailable)
	}
	return ctx.Err()
}

func (l localEndpoint) Encrypt(_ context.Context, req *protocol.EncryptRequest) (*protocol.EncryptResponse, error) {
	c, err := l.enc.Encrypt(elgamal.PublicKey(req.PublicKey))
	if err != nil {
		return nil, err
	}
	return &protocol.EncryptResponse{Y1: c.Y1, Y2: c.Y2}, nil
}
