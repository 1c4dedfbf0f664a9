package bus

import (
	"context"

	"github.com/taurusgroup/elgamal-client/pkg/protocol"
)

// Feed is a protocol.Feed reading parameters from a topic.
type Feed struct {
	bus   *Bus
	topic string
}

// NewFeed returns a Feed for the given topic.
func NewFeed(b *Bus, topic string) *Feed {
	return &Feed{bus: b, topic: topic}
}

// Subscribe implements protocol.Feed. Payloads which do not decode as parameters
// are logged and skipped.
func (f *Feed) Subscribe(ctx context.Context) (<-chan *protocol.ParamsMessage, error) {
	in, err := f.bus.Subscribe(ctx, f.topic)
	if err != nil {
		return nil, err
	}
	out := make(chan *protocol.ParamsMessage)
	go func() {
		defer close(out)
		for msg := range in {
			var params protocol.ParamsMessage
			if err := msg.Decode(&params); err != nil {
				f.bus.Log.Warn().Err(err).Str("topic", f.topic).Uint64("seq", msg.Seq).Msg("invalid parameters message")
				continue
			}
			select {
			case out <- &params:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Sink is a protocol.Sink publishing results on a topic.
type Sink struct {
	bus   *Bus
	topic string
}

// NewSink returns a Sink for the given topic.
func NewSink(b *Bus, topic string) *Sink {
	return &Sink{bus: b, topic: topic}
}

// Publish implements protocol.Sink.
func (s *Sink) Publish(_ context.Context, msg *protocol.ResultMessage) error {
	_, err := s.bus.PublishValue(s.topic, msg)
	return err
}

var (
	_ protocol.Feed = (*Feed)(nil)
	_ protocol.Sink = (*Sink)(nil)
)
