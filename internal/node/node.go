// Package node runs the two parties of the exchange as network services.
package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/taurusgroup/elgamal-client/internal/config"
	"github.com/taurusgroup/elgamal-client/internal/round"
	"github.com/taurusgroup/elgamal-client/internal/wire"
	"github.com/taurusgroup/elgamal-client/pkg/bus"
	"github.com/taurusgroup/elgamal-client/pkg/endpoint"
	"github.com/taurusgroup/elgamal-client/pkg/protocol"
)

const shutdownTimeout = 5 * time.Second

// Client is the decrypting party: a bus with its HTTP bridge, and the Handler
// reading parameters from the bus and publishing results to it.
type Client struct {
	Bus     *bus.Bus
	Bridge  *bus.Bridge
	Handler *protocol.Handler

	cfg config.Config
	log zerolog.Logger
}

// NewClient builds a Client from cfg. Randomness is drawn from crypto/rand.
func NewClient(cfg config.Config, log zerolog.Logger) (*Client, error) {
	ep, err := endpoint.NewClient(cfg.Endpoint, &http.Client{})
	if err != nil {
		return nil, err
	}
	b := bus.New(cfg.Backlog, log)
	c := &Client{
		Bus:    b,
		Bridge: bus.NewBridge(b, bus.ProtocolSchema(cfg.ParamsTopic, cfg.ResultTopic)),
		Handler: protocol.NewHandler(ep, bus.NewSink(b, cfg.ResultTopic), protocol.Config{
			Rounds:       round.Number(cfg.Rounds),
			ProbeTimeout: cfg.ProbeTimeout,
			Logger:       &log,
		}),
		cfg: cfg,
		log: log,
	}
	c.Bridge.Handle("GET /status", http.HandlerFunc(c.status))
	return c, nil
}

func (c *Client) status(w http.ResponseWriter, _ *http.Request) {
	_ = wire.Write(w, wire.ContentTypeJSON, http.StatusOK, c.Handler.State())
}

// Serve runs the bridge on ln and the Handler until ctx is done.
func (c *Client) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: c.Bridge, ReadHeaderTimeout: 5 * time.Second}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.log.Info().Str("addr", ln.Addr().String()).Msg("bridge listening")
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("node: bridge: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := c.Handler.Run(ctx, bus.NewFeed(c.Bus, c.cfg.ParamsTopic))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		return shutdown(srv)
	})
	err := g.Wait()
	c.Handler.Wait()
	c.Bus.Close()
	return err
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
