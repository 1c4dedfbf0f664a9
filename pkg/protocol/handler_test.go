package protocol_test

import (
	"context"
	"errors"
	mrand "math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/taurusgroup/elgamal-client/internal/round"
	"github.com/taurusgroup/elgamal-client/internal/test"
	"github.com/taurusgroup/elgamal-client/pkg/elgamal"
	"github.com/taurusgroup/elgamal-client/pkg/protocol"
)

func newHandler(endpoint protocol.Endpoint, sink protocol.Sink, rounds round.Number, rand *mrand.Rand) *protocol.Handler {
	l := zerolog.Nop()
	cfg := protocol.Config{
		Rounds:       rounds,
		ProbeTimeout: 100 * time.Millisecond,
		Logger:       &l,
	}
	if rand != nil {
		cfg.Rand = rand
	}
	return protocol.NewHandler(endpoint, sink, cfg)
}

func params(p elgamal.Parameters) *protocol.ParamsMessage {
	return &protocol.ParamsMessage{P: p.P, A: p.A}
}

func TestHandlerKnownScenario(t *testing.T) {
	endpoint := test.NewEndpoint(test.KnownParameters, 3, 15)
	sink := &test.Sink{}
	l := zerolog.Nop()
	h := protocol.NewHandler(endpoint, sink, protocol.Config{Rand: test.ExponentReader(6), Logger: &l})

	require.NoError(t, h.Accept(context.Background(), params(test.KnownParameters)))
	h.Wait()

	assert.Equal(t, []protocol.EncryptRequest{{PublicKey: 8}}, endpoint.Requests())
	assert.Equal(t, []int64{15}, sink.Values())
	assert.Equal(t, round.Snapshot{
		Round:  1,
		Total:  5,
		Status: "idle",
	}, h.State())
	require.Len(t, endpoint.Sessions(), 1)
	assert.Len(t, endpoint.Sessions()[0], 32)
	assert.NoError(t, h.Err())
}

func TestHandlerSingleFlight(t *testing.T) {
	endpoint := test.NewEndpoint(test.KnownParameters, 3, 15)
	endpoint.SetMode(test.Stalling)
	sink := &test.Sink{}
	h := newHandler(endpoint, sink, 0, mrand.New(mrand.NewSource(0)))
	ctx := context.Background()

	require.NoError(t, h.Accept(ctx, params(test.KnownParameters)))
	number, ok := h.Pending()
	require.True(t, ok)
	assert.Equal(t, round.Number(1), number)

	waiting := h.State()
	assert.True(t, waiting.Waiting)
	for i := 0; i < 5; i++ {
		require.NoError(t, h.Accept(ctx, params(test.KnownParameters)))
		assert.Equal(t, waiting, h.State())
	}
	assert.Equal(t, 1, endpoint.Probes())
	require.Eventually(t, func() bool {
		return len(endpoint.Requests()) == 1
	}, time.Second, time.Millisecond)

	endpoint.Release()
	h.Wait()
	assert.Len(t, endpoint.Requests(), 1)
	assert.Equal(t, []int64{15}, sink.Values())
	assert.Equal(t, round.Number(1), h.State().Round)
	_, ok = h.Pending()
	assert.False(t, ok)
}

func TestHandlerTerminal(t *testing.T) {
	endpoint := test.NewEndpoint(test.KnownParameters, 3, 1, 2, 3)
	sink := &test.Sink{}
	h := newHandler(endpoint, sink, 3, mrand.New(mrand.NewSource(0)))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, h.Accept(ctx, params(test.KnownParameters)))
		h.Wait()
	}
	require.True(t, h.Done())
	assert.Equal(t, []int64{1, 2, 3}, sink.Values())
	final := h.State()
	assert.Equal(t, "finished", final.Status)
	assert.Equal(t, round.Number(3), final.Round)

	probes := endpoint.Probes()
	for i := 0; i < 3; i++ {
		require.NoError(t, h.Accept(ctx, params(test.KnownParameters)))
		require.NoError(t, h.Accept(ctx, &protocol.ParamsMessage{P: 1}))
		h.Wait()
	}
	assert.Equal(t, probes, endpoint.Probes())
	assert.Len(t, endpoint.Requests(), 3)
	assert.Equal(t, []int64{1, 2, 3}, sink.Values())
	assert.Equal(t, final, h.State())
}

func TestHandlerUnavailable(t *testing.T) {
	endpoint := test.NewEndpoint(test.KnownParameters, 3, 15)
	endpoint.SetMode(test.Unavailable)
	sink := &test.Sink{}
	h := newHandler(endpoint, sink, 0, mrand.New(mrand.NewSource(0)))
	ctx := context.Background()

	require.NoError(t, h.Accept(ctx, params(test.KnownParameters)))
	h.Wait()
	assert.Equal(t, 1, endpoint.Probes())
	assert.Empty(t, endpoint.Requests())
	assert.Empty(t, sink.Values())
	assert.Equal(t, round.Snapshot{Total: 5, Status: "idle"}, h.State())

	endpoint.SetMode(test.Available)
	require.NoError(t, h.Accept(ctx, params(test.KnownParameters)))
	h.Wait()
	assert.Equal(t, []int64{15}, sink.Values())
	assert.Equal(t, round.Number(1), h.State().Round)
}

func TestHandlerProbeTimeout(t *testing.T) {
	endpoint := &slowEndpoint{}
	h := newHandler(endpoint, &test.Sink{}, 0, mrand.New(mrand.NewSource(0)))

	start := time.Now()
	require.NoError(t, h.Accept(context.Background(), params(test.KnownParameters)))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, h.State().Waiting)
	assert.Zero(t, endpoint.requests)
}

func TestHandlerEndpointFailure(t *testing.T) {
	for _, tc := range []struct {
		name        string
		mode        test.Mode
		unavailable bool
	}{
		{"failing", test.Failing, false},
		{"dropping", test.Dropping, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			endpoint := test.NewEndpoint(test.KnownParameters, 3, 15)
			endpoint.SetMode(tc.mode)
			sink := &test.Sink{}
			h := newHandler(endpoint, sink, 0, mrand.New(mrand.NewSource(0)))
			ctx := context.Background()

			require.NoError(t, h.Accept(ctx, params(test.KnownParameters)))
			h.Wait()
			assert.Empty(t, sink.Values())
			assert.Equal(t, round.Snapshot{Total: 5, Status: "idle"}, h.State())

			err := h.Err()
			var perr protocol.Error
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, round.Number(1), perr.RoundNumber)
			assert.Equal(t, tc.unavailable, protocol.IsUnavailable(err))

			// the round is retried with a fresh secret
			endpoint.SetMode(test.Available)
			require.NoError(t, h.Accept(ctx, params(test.KnownParameters)))
			h.Wait()
			assert.Equal(t, []int64{15}, sink.Values())
			assert.Equal(t, round.Number(1), h.State().Round)
			assert.Len(t, endpoint.Requests(), 2)
		})
	}
}

func TestHandlerInvalidParameters(t *testing.T) {
	endpoint := test.NewEndpoint(test.KnownParameters, 3, 15)
	h := newHandler(endpoint, &test.Sink{}, 0, mrand.New(mrand.NewSource(0)))

	for _, p := range []uint64{0, 1, 2} {
		err := h.Accept(context.Background(), &protocol.ParamsMessage{P: p, A: 5})
		assert.ErrorIs(t, err, elgamal.ErrInvalidParameters)
	}
	assert.Zero(t, endpoint.Probes())
	assert.Equal(t, round.Snapshot{Total: 5, Status: "idle"}, h.State())
}

func TestHandlerSinkFailure(t *testing.T) {
	endpoint := test.NewEndpoint(test.KnownParameters, 3, 15)
	sink := &test.Sink{Err: errors.New("sink closed")}
	h := newHandler(endpoint, sink, 0, mrand.New(mrand.NewSource(0)))

	require.NoError(t, h.Accept(context.Background(), params(test.KnownParameters)))
	h.Wait()
	assert.Equal(t, round.Number(1), h.State().Round)
}

func TestHandlerRun(t *testing.T) {
	params := elgamal.Parameters{P: 1019, A: 2}
	messages := []uint64{11, 22, 33, 44, 55}
	endpoint := test.NewEndpoint(params, 17, messages...)
	sink := &test.Sink{}
	feed := test.NewFeed(16)
	h := newHandler(endpoint, sink, 0, mrand.New(mrand.NewSource(0)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var g errgroup.Group
	g.Go(func() error {
		return h.Run(ctx, feed)
	})

	require.Eventually(t, func() bool {
		if h.Done() {
			return true
		}
		if _, ok := h.Pending(); !ok {
			feed.Send(params)
		}
		return false
	}, 5*time.Second, 5*time.Millisecond)

	feed.Close()
	require.NoError(t, g.Wait())
	h.Wait()
	assert.Equal(t, []int64{11, 22, 33, 44, 55}, sink.Values())
	assert.Len(t, endpoint.Requests(), 5)
}

func TestHandlerRunCancel(t *testing.T) {
	h := newHandler(test.NewEndpoint(test.KnownParameters, 3), &test.Sink{}, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.Run(ctx, test.NewFeed(0))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHandlerProbeUnlocked(t *testing.T) {
	endpoint := &gatedEndpoint{
		Endpoint: test.NewEndpoint(test.KnownParameters, 3, 15),
		entered:  make(chan struct{}, 1),
		open:     make(chan struct{}),
	}
	sink := &test.Sink{}
	l := zerolog.Nop()
	h := protocol.NewHandler(endpoint, sink, protocol.Config{
		ProbeTimeout: 10 * time.Second,
		Rand:         mrand.New(mrand.NewSource(0)),
		Logger:       &l,
	})
	ctx := context.Background()

	accepted := make(chan error, 1)
	go func() { accepted <- h.Accept(ctx, params(test.KnownParameters)) }()
	<-endpoint.entered

	// the handler stays observable while the probe is pending
	assert.True(t, h.Probing())
	assert.False(t, h.State().Waiting)
	_, pending := h.Pending()
	assert.False(t, pending)
	require.NoError(t, h.Accept(ctx, params(test.KnownParameters)))
	assert.Equal(t, 1, endpoint.Probes())

	close(endpoint.open)
	require.NoError(t, <-accepted)
	assert.False(t, h.Probing())
	h.Wait()
	assert.Equal(t, []int64{15}, sink.Values())
	assert.Len(t, endpoint.Requests(), 1)
}

// gatedEndpoint holds every probe until open is closed.
type gatedEndpoint struct {
	*test.Endpoint
	entered chan struct{}
	open    chan struct{}
}

func (e *gatedEndpoint) Probe(ctx context.Context) error {
	if err := e.Endpoint.Probe(ctx); err != nil {
		return err
	}
	e.entered <- struct{}{}
	select {
	case <-e.open:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// slowEndpoint answers the probe only once its context is done.
type slowEndpoint struct {
	requests int
}

func (e *slowEndpoint) Probe(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (e *slowEndpoint) Encrypt(context.Context, *protocol.EncryptRequest) (*protocol.EncryptResponse, error) {
	e.requests++
	return nil, errors.New("unexpected request")
}
