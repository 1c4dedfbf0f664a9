// Package bus is an in-process publish/subscribe bus with named topics.
//
// Payloads are stored CBOR encoded. Each topic keeps a bounded backlog, so that
// late readers can catch up with Since, and delivers new messages to its
// subscribers. A subscriber which does not keep up misses messages rather than
// blocking publishers.
package bus

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/taurusgroup/elgamal-client/internal/wire"
)

// DefaultBacklog is the number of messages kept per topic.
const DefaultBacklog = 64

var ErrClosed = errors.New("bus: closed")

// Message is a payload published on a topic.
type Message struct {
	// Seq numbers the messages of a topic, starting at 1.
	Seq   uint64
	Topic string
	// Data is the CBOR encoded payload.
	Data []byte
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v interface{}) error {
	return wire.Unmarshal(wire.ContentTypeCBOR, m.Data, v)
}

type topic struct {
	seq     uint64
	backlog []Message
	subs    map[int]chan Message
}

// Bus is safe for concurrent use.
type Bus struct {
	backlog int

	mtx    sync.Mutex
	topics map[string]*topic
	nextID int
	closed bool
	done   chan struct{}

	Log zerolog.Logger
}

// New returns a Bus keeping backlog messages per topic, DefaultBacklog if backlog ≤ 0.
func New(backlog int, log zerolog.Logger) *Bus {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Bus{
		backlog: backlog,
		topics:  make(map[string]*topic),
		done:    make(chan struct{}),
		Log:     log.With().Str("component", "bus").Logger(),
	}
}

func (b *Bus) topic(name string) *topic {
	t, ok := b.topics[name]
	if !ok {
		t = &topic{subs: make(map[int]chan Message)}
		b.topics[name] = t
	}
	return t
}

// Publish appends data to the topic and delivers it to current subscribers. It
// returns the sequence number of the message.
func (b *Bus) Publish(name string, data []byte) (uint64, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.closed {
		return 0, ErrClosed
	}
	t := b.topic(name)
	t.seq++
	msg := Message{Seq: t.seq, Topic: name, Data: append([]byte(nil), data...)}
	t.backlog = append(t.backlog, msg)
	if len(t.backlog) > b.backlog {
		t.backlog = append(t.backlog[:0:0], t.backlog[len(t.backlog)-b.backlog:]...)
	}
	for id, c := range t.subs {
		select {
		case c <- msg:
		default:
			b.Log.Warn().Str("topic", name).Int("subscriber", id).Uint64("seq", msg.Seq).Msg("subscriber is behind, dropping message")
		}
	}
	return msg.Seq, nil
}

// PublishValue encodes v as CBOR and publishes it.
func (b *Bus) PublishValue(name string, v interface{}) (uint64, error) {
	data, err := wire.Marshal(wire.ContentTypeCBOR, v)
	if err != nil {
		return 0, err
	}
	return b.Publish(name, data)
}

// Subscribe returns a channel receiving the messages published on the topic from
// now on. The channel is closed when ctx is done or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context, name string) (<-chan Message, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	t := b.topic(name)
	id := b.nextID
	b.nextID++
	c := make(chan Message, b.backlog)
	t.subs[id] = c

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
			return
		}
		b.mtx.Lock()
		defer b.mtx.Unlock()
		if _, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(c)
		}
	}()
	return c, nil
}

// Since returns the retained messages of the topic with a sequence number greater
// than after.
func (b *Bus) Since(name string, after uint64) []Message {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	t, ok := b.topics[name]
	if !ok {
		return nil
	}
	i := sort.Search(len(t.backlog), func(i int) bool {
		return t.backlog[i].Seq > after
	})
	return append([]Message(nil), t.backlog[i:]...)
}

// Topics returns the names of the topics used so far, sorted.
func (b *Bus) Topics() []string {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	names := make([]string, 0, len(b.topics))
	for name := range b.topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every subscription. Subsequent calls to Publish and Subscribe fail.
func (b *Bus) Close() {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
	for _, t := range b.topics {
		for id, c := range t.subs {
			delete(t.subs, id)
			close(c)
		}
	}
}
