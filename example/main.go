package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/taurusgroup/elgamal-client/pkg/bus"
	"github.com/taurusgroup/elgamal-client/pkg/elgamal"
	"github.com/taurusgroup/elgamal-client/pkg/endpoint"
	"github.com/taurusgroup/elgamal-client/pkg/math/sample"
	"github.com/taurusgroup/elgamal-client/pkg/pool"
	"github.com/taurusgroup/elgamal-client/pkg/protocol"
)

const (
	paramsTopic = "elgamal_params"
	resultTopic = "elgamal_result"
)

func run(ctx context.Context, log zerolog.Logger) error {
	pl := pool.NewPool(0)
	defer pl.TearDown()
	p, err := sample.SafePrime(rand.Reader, 31, pl)
	if err != nil {
		return err
	}
	a, err := sample.Generator(rand.Reader, p)
	if err != nil {
		return err
	}
	params := elgamal.Parameters{P: p, A: a}

	enc := endpoint.NewEncrypter(rand.Reader, nil)
	if err = enc.SetParameters(params); err != nil {
		return err
	}
	b := bus.New(0, log)
	defer b.Close()
	h := protocol.NewHandler(localEndpoint{enc: enc}, bus.NewSink(b, resultTopic), protocol.Config{Logger: &log})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := h.Run(ctx, bus.NewFeed(b, paramsTopic))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for !h.Done() {
			if _, err := b.PublishValue(paramsTopic, protocol.ParamsMessage{P: p, A: a}); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
		cancel()
		return nil
	})
	if err = g.Wait(); err != nil {
		return err
	}
	h.Wait()

	sent := enc.Sent()
	for i, msg := range b.Since(resultTopic, 0) {
		var result protocol.ResultMessage
		if err = msg.Decode(&result); err != nil {
			return err
		}
		fmt.Printf("round %d: sent %d, recovered %d\n", i+1, sent[i].Message, result.Value)
		if uint64(result.Value) != sent[i].Message {
			return errors.New("recovered value does not match")
		}
	}
	return nil
}

func main() {
	log := zerolog.New(zerolog.NewConsoleWriter()).Level(zerolog.InfoLevel).With().Timestamp().Logger()
	if err := run(context.Background(), log); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
