package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/taurusgroup/elgamal-client/internal/config"
	"github.com/taurusgroup/elgamal-client/pkg/bus"
	"github.com/taurusgroup/elgamal-client/pkg/elgamal"
	"github.com/taurusgroup/elgamal-client/pkg/endpoint"
	"github.com/taurusgroup/elgamal-client/pkg/math/sample"
	"github.com/taurusgroup/elgamal-client/pkg/pool"
	"github.com/taurusgroup/elgamal-client/pkg/protocol"
)

// Server is the encrypting party. It serves encryption requests, and regularly
// publishes its parameters to the bridge of a Client.
type Server struct {
	Encrypter *endpoint.Encrypter
	Params    elgamal.Parameters

	publisher *bus.Client
	cfg       config.Config
	log       zerolog.Logger
}

// NewServer builds a Server from cfg. If no parameters are configured, a safe
// prime and a generator are drawn from rand.
func NewServer(cfg config.Config, log zerolog.Logger, rand io.Reader) (*Server, error) {
	params := elgamal.Parameters{P: cfg.P, A: cfg.A}
	if params.P == 0 {
		pl := pool.NewPool(0)
		p, err := sample.SafePrime(rand, cfg.Bits, pl)
		pl.TearDown()
		if err != nil {
			return nil, fmt.Errorf("node: %w", err)
		}
		a, err := sample.Generator(rand, p)
		if err != nil {
			return nil, fmt.Errorf("node: %w", err)
		}
		params = elgamal.Parameters{P: p, A: a}
	}
	enc := endpoint.NewEncrypter(rand, nil)
	if err := enc.SetParameters(params); err != nil {
		return nil, err
	}
	timeout := cfg.Interval
	if timeout < time.Second {
		timeout = time.Second
	}
	publisher, err := bus.NewClient(cfg.Bridge, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	return &Server{
		Encrypter: enc,
		Params:    params,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}, nil
}

// Serve runs the endpoint on ln and publishes the parameters every interval
// until ctx is done. Failed publications are logged and retried.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: endpoint.NewServer(s.Encrypter, s.log), ReadHeaderTimeout: 5 * time.Second}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info().
			Str("addr", ln.Addr().String()).
			Uint64("p", s.Params.P).
			Uint64("a", s.Params.A).
			Msg("endpoint listening")
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("node: endpoint: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		msg := protocol.ParamsMessage{P: s.Params.P, A: s.Params.A}
		for {
			if seq, err := s.publisher.Publish(ctx, s.cfg.ParamsTopic, msg); err != nil {
				if ctx.Err() == nil {
					s.log.Warn().Err(err).Msg("failed to publish parameters")
				}
			} else {
				s.log.Debug().Uint64("seq", seq).Msg("published parameters")
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})
	g.Go(func() error {
		<-ctx.Done()
		return shutdown(srv)
	})
	return g.Wait()
}
