package protocol

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/taurusgroup/elgamal-client/internal/round"
	"github.com/taurusgroup/elgamal-client/pkg/elgamal"
	"github.com/taurusgroup/elgamal-client/protocols/decrypt"
)

// DefaultProbeTimeout bounds the availability probe issued before each request.
const DefaultProbeTimeout = time.Second

// Config holds the optional settings of a Handler. The zero value is usable.
type Config struct {
	// Rounds is the number of rounds to complete, decrypt.TotalRounds if 0.
	Rounds round.Number
	// ProbeTimeout bounds Endpoint.Probe, DefaultProbeTimeout if 0.
	ProbeTimeout time.Duration
	// Rand is the source of ephemeral secrets, crypto/rand.Reader if nil.
	Rand io.Reader
	// Logger is the base logger. If nil, a console logger at info level is used.
	Logger *zerolog.Logger
}

type inflight struct {
	exchange *decrypt.Exchange
	started  time.Time
}

// Handler runs the decrypting side of the exchange.
//
// Parameter events are given to Accept, which starts at most one request at a
// time. The response is handled asynchronously, and the recovered value is
// published to the Sink. All methods are safe for concurrent use.
type Handler struct {
	endpoint     Endpoint
	sink         Sink
	rand         io.Reader
	probeTimeout time.Duration

	mtx     sync.Mutex
	state   *round.State
	pending *inflight
	probing bool
	err     error
	wg      sync.WaitGroup

	Log zerolog.Logger
}

// NewHandler returns a Handler which requests ciphertexts from endpoint and
// publishes recovered values to sink.
func NewHandler(endpoint Endpoint, sink Sink, cfg Config) *Handler {
	if cfg.Rounds == 0 {
		cfg.Rounds = decrypt.TotalRounds
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Reader
	}
	h := &Handler{
		endpoint:     endpoint,
		sink:         sink,
		rand:         cfg.Rand,
		probeTimeout: cfg.ProbeTimeout,
		state:        round.NewState(cfg.Rounds),
	}
	var base zerolog.Logger
	if cfg.Logger != nil {
		base = *cfg.Logger
	} else {
		base = zerolog.New(zerolog.NewConsoleWriter()).Level(zerolog.InfoLevel).With().Timestamp().Logger()
	}
	h.Log = base.With().
		Str("protocol", decrypt.ProtocolID).
		Int("rounds", int(cfg.Rounds)).
		Logger()
	h.Log.Info().Msg("start")
	return h
}

// Run delivers every event of feed to Accept until ctx is done or the feed is closed.
func (h *Handler) Run(ctx context.Context, feed Feed) error {
	events, err := feed.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("protocol: failed to subscribe: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-events:
			if !ok {
				return nil
			}
			// faults are logged by Accept and never stop the loop
			_ = h.Accept(ctx, msg)
		}
	}
}

// Accept handles a parameter event.
//
// The event is ignored while a probe or a request is in flight, and once all
// rounds are complete. Otherwise, a fresh secret is drawn and, if the endpoint
// answers the probe in time, the public contribution is sent. The lock is not
// held during the probe. Accept does not wait for the response. ctx bounds both
// the probe and the request.
//
// Errors are returned for invalid parameters and for a failing randomness
// source. They are also logged, and the Handler remains usable.
func (h *Handler) Accept(ctx context.Context, msg *ParamsMessage) error {
	if msg == nil {
		return nil
	}
	h.mtx.Lock()
	if h.probing {
		h.mtx.Unlock()
		h.Log.Debug().Stringer("msg", msg).Msg("probe in progress, ignoring parameters")
		return nil
	}
	exchange, err := decrypt.HandleParameters(h.state, msg.Parameters(), h.rand)
	if err != nil {
		h.mtx.Unlock()
		if errors.Is(err, elgamal.ErrInvalidParameters) {
			h.Log.Error().Err(err).Uint64("p", msg.P).Msg("invalid parameters")
		} else {
			h.Log.Error().Err(err).Msg("failed to draw secret")
		}
		return err
	}
	if exchange == nil {
		finished, total := h.state.Finished(), h.state.Total()
		h.mtx.Unlock()
		if finished {
			h.Log.Debug().Stringer("msg", msg).Msgf("all %d rounds are complete, ignoring parameters", total)
		} else {
			h.Log.Debug().Stringer("msg", msg).Msg("request in flight, ignoring parameters")
		}
		return nil
	}
	h.probing = true
	h.mtx.Unlock()

	// The state stays idle during the probe; probing keeps other events out.
	probeCtx, cancel := context.WithTimeout(ctx, h.probeTimeout)
	err = h.endpoint.Probe(probeCtx)
	cancel()

	h.mtx.Lock()
	defer h.mtx.Unlock()
	h.probing = false
	if err != nil {
		exchange.Discard()
		h.Log.Warn().Err(err).Msg("encryption endpoint is not available yet")
		return nil
	}

	if err = h.state.Begin(); err != nil {
		// only Accept moves the state out of idle, and probing excluded other calls
		panic(fmt.Sprintf("protocol: %v", err))
	}
	h.pending = &inflight{exchange: exchange, started: time.Now()}
	h.Log.Info().
		Int("round", int(exchange.Round)).
		Uint64("p", exchange.Params.P).
		Uint64("a", exchange.Params.A).
		Uint64("b", uint64(exchange.Public)).
		Msg("sending public contribution")
	h.Log.Debug().Int("round", int(exchange.Round)).Hex("ssid", exchange.SSID()).Msg("session")

	h.wg.Add(1)
	go h.send(WithSession(ctx, exchange.SSID()), h.pending)
	return nil
}

func (h *Handler) send(ctx context.Context, p *inflight) {
	defer h.wg.Done()
	resp, err := h.endpoint.Encrypt(ctx, &EncryptRequest{PublicKey: uint64(p.exchange.Public)})
	h.resolve(ctx, p, OutcomeOf(resp, err))
}

// resolve is the response callback for the request of p. The result is published
// with the lock held, so that values reach the sink in round order.
func (h *Handler) resolve(ctx context.Context, p *inflight, outcome Outcome) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	number := p.exchange.Round
	if h.pending != p {
		h.Log.Error().Int("round", int(number)).Msg("response for an unknown request")
		return
	}
	h.pending = nil

	switch o := outcome.(type) {
	case Success:
		x, err := decrypt.Recover(h.state, p.exchange, &o.Ciphertext)
		if err != nil {
			h.abandon(p, err)
			return
		}
		h.Log.Info().
			Int("round", int(number)).
			Int64("result", x).
			Dur("elapsed", time.Since(p.started)).
			Msg("round result")
		if err = h.sink.Publish(ctx, &ResultMessage{Value: x}); err != nil {
			h.Log.Error().Err(err).Int("round", int(number)).Msg("failed to publish result")
		}
		if h.state.Finished() {
			h.Log.Info().Msgf("task complete: %d rounds finished", h.state.Total())
		}
	case EndpointUnavailable:
		h.abandon(p, o.Err)
	case EndpointError:
		h.abandon(p, o.Err)
	default:
		panic(fmt.Sprintf("protocol: unknown outcome %T", outcome))
	}
}

// abandon must be called with h.mtx held.
func (h *Handler) abandon(p *inflight, err error) {
	decrypt.Abandon(h.state, p.exchange)
	h.err = Error{RoundNumber: p.exchange.Round, Err: err}
	h.Log.Error().Err(err).Int("round", int(p.exchange.Round)).Msg("encryption request failed")
}

// State returns a snapshot of the round state.
func (h *Handler) State() round.Snapshot {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.state.Snapshot()
}

// Probing is true while Accept waits for the endpoint probe.
func (h *Handler) Probing() bool {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.probing
}

// Pending returns the round of the request in flight, if there is one.
func (h *Handler) Pending() (round.Number, bool) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	if h.pending == nil {
		return 0, false
	}
	return h.pending.exchange.Round, true
}

// Err returns the last failure of a request, wrapped in an Error. Failures are
// recovered by retrying the round, so this is informational.
func (h *Handler) Err() error {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.err
}

// Done is true once all rounds are complete.
func (h *Handler) Done() bool {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.state.Finished()
}

// Wait blocks until no request goroutine is running.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// IsUnavailable reports whether err is due to an unreachable endpoint.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
