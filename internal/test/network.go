// Package test contains doubles for the collaborators of protocol.Handler.
package test

import (
	"context"
	"errors"
	"sync"

	"github.com/taurusgroup/elgamal-client/pkg/elgamal"
	"github.com/taurusgroup/elgamal-client/pkg/protocol"
)

// KnownParameters is the small group used in the worked example: p = 23, a = 5.
var KnownParameters = elgamal.Parameters{P: 23, A: 5}

// Feed is an in-memory protocol.Feed which can be subscribed to once.
type Feed struct {
	c    chan *protocol.ParamsMessage
	once sync.Once
}

// NewFeed returns a Feed which buffers up to size events.
func NewFeed(size int) *Feed {
	return &Feed{c: make(chan *protocol.ParamsMessage, size)}
}

// Subscribe implements protocol.Feed.
func (f *Feed) Subscribe(context.Context) (<-chan *protocol.ParamsMessage, error) {
	return f.c, nil
}

// Send delivers params to the subscriber.
func (f *Feed) Send(params elgamal.Parameters) {
	f.c <- &protocol.ParamsMessage{P: params.P, A: params.A}
}

// Close ends the feed.
func (f *Feed) Close() {
	f.once.Do(func() { close(f.c) })
}

// Sink is a protocol.Sink which records every value.
type Sink struct {
	mtx    sync.Mutex
	values []int64
	Err    error
}

// Publish implements protocol.Sink.
func (s *Sink) Publish(_ context.Context, msg *protocol.ResultMessage) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.values = append(s.values, msg.Value)
	return nil
}

// Values returns the values published so far.
func (s *Sink) Values() []int64 {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return append([]int64(nil), s.values...)
}

// ErrEndpoint is returned by an Endpoint in the Failing mode.
var ErrEndpoint = errors.New("test: endpoint failure")
