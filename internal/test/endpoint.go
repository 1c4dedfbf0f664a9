package test

import (
	"context"
	"fmt"
	"sync"

	"github.com/taurusgroup/elgamal-client/pkg/elgamal"
	"github.com/taurusgroup/elgamal-client/pkg/protocol"
)

// Mode selects how an Endpoint behaves.
type Mode int

const (
	// Available answers every request.
	Available Mode = iota
	// Unavailable fails the probe.
	Unavailable
	// Failing accepts the probe but fails every request.
	Failing
	// Dropping accepts the probe but reports the endpoint unreachable on request.
	Dropping
	// Stalling accepts the probe, then holds every request until Release is called.
	Stalling
)

// Endpoint is a scriptable protocol.Endpoint which encrypts Messages in order with
// a fixed Nonce.
type Endpoint struct {
	Params   elgamal.Parameters
	Nonce    uint64
	Messages []uint64

	mtx      sync.Mutex
	mode     Mode
	probes   int
	requests []protocol.EncryptRequest
	sessions [][]byte
	release  chan struct{}
	next     int
}

// NewEndpoint returns an available Endpoint for params.
func NewEndpoint(params elgamal.Parameters, nonce uint64, messages ...uint64) *Endpoint {
	return &Endpoint{
		Params:   params,
		Nonce:    nonce,
		Messages: messages,
		release:  make(chan struct{}),
	}
}

// SetMode changes the behavior for subsequent calls.
func (e *Endpoint) SetMode(m Mode) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.mode = m
}

// Release lets stalled requests proceed. Released requests are answered as in the
// Available mode. It may be called once.
func (e *Endpoint) Release() {
	close(e.release)
}

// Probe implements protocol.Endpoint.
func (e *Endpoint) Probe(ctx context.Context) error {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.probes++
	if e.mode == Unavailable {
		return fmt.Errorf("test: probe: %w", protocol.ErrUnavailable)
	}
	return ctx.Err()
}

// Encrypt implements protocol.Endpoint.
func (e *Endpoint) Encrypt(ctx context.Context, req *protocol.EncryptRequest) (*protocol.EncryptResponse, error) {
	e.mtx.Lock()
	e.requests = append(e.requests, *req)
	ssid, _ := protocol.SessionFrom(ctx)
	e.sessions = append(e.sessions, ssid)
	mode := e.mode
	e.mtx.Unlock()

	switch mode {
	case Failing:
		return nil, ErrEndpoint
	case Dropping, Unavailable:
		return nil, fmt.Errorf("test: encrypt: %w", protocol.ErrUnavailable)
	case Stalling:
		select {
		case <-e.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	e.mtx.Lock()
	defer e.mtx.Unlock()
	var m uint64
	if len(e.Messages) > 0 {
		m = e.Messages[e.next%len(e.Messages)]
		e.next++
	}
	c := elgamal.Encrypt(e.Params, elgamal.PublicKey(req.PublicKey), m, e.Nonce)
	return &protocol.EncryptResponse{Y1: c.Y1, Y2: c.Y2}, nil
}

// Probes returns the number of probes received.
func (e *Endpoint) Probes() int {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.probes
}

// Requests returns the requests received so far.
func (e *Endpoint) Requests() []protocol.EncryptRequest {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return append([]protocol.EncryptRequest(nil), e.requests...)
}

// Sessions returns the session ids attached to each request.
func (e *Endpoint) Sessions() [][]byte {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return append([][]byte(nil), e.sessions...)
}
