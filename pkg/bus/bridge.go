package bus

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/taurusgroup/elgamal-client/internal/wire"
	"github.com/taurusgroup/elgamal-client/pkg/protocol"
)

// Schema maps the topics exposed by a Bridge to a constructor of their payload type.
type Schema map[string]func() interface{}

// ProtocolSchema exposes the parameter and result topics of the exchange.
func ProtocolSchema(paramsTopic, resultTopic string) Schema {
	return Schema{
		paramsTopic: func() interface{} { return new(protocol.ParamsMessage) },
		resultTopic: func() interface{} { return new(protocol.ResultMessage) },
	}
}

// Envelope is a message as returned by the bridge.
type Envelope struct {
	Seq     uint64      `cbor:"seq" json:"seq"`
	Payload interface{} `cbor:"payload" json:"payload"`
}

// PublishResponse acknowledges a published message.
type PublishResponse struct {
	Seq uint64 `cbor:"seq" json:"seq"`
}

// Bridge exposes the topics of a Schema over HTTP:
//
//	POST /topics/{topic}           publish a JSON or CBOR payload
//	GET  /topics/{topic}?after=N   messages retained after sequence number N
type Bridge struct {
	bus    *Bus
	schema Schema
	mux    *http.ServeMux
}

// NewBridge returns the http.Handler of the bridge. Further routes can be added
// with Handle.
func NewBridge(b *Bus, schema Schema) *Bridge {
	br := &Bridge{
		bus:    b,
		schema: schema,
		mux:    http.NewServeMux(),
	}
	br.mux.HandleFunc("POST /topics/{topic}", br.publish)
	br.mux.HandleFunc("GET /topics/{topic}", br.since)
	return br
}

// Handle registers h for pattern on the bridge mux.
func (br *Bridge) Handle(pattern string, h http.Handler) {
	br.mux.Handle(pattern, h)
}

func (br *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	br.mux.ServeHTTP(w, r)
}

func (br *Bridge) publish(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("topic")
	newPayload, ok := br.schema[name]
	if !ok {
		http.Error(w, "unknown topic", http.StatusNotFound)
		return
	}
	in := wire.MediaType(r.Header.Get("Content-Type"))
	payload := newPayload()
	if err := wire.Decode(in, r.Body, payload); err != nil {
		if errors.Is(err, wire.ErrUnsupportedMediaType) {
			http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	seq, err := br.bus.PublishValue(name, payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	br.bus.Log.Debug().Str("topic", name).Uint64("seq", seq).Msg("published from bridge")
	_ = wire.Write(w, in, http.StatusOK, PublishResponse{Seq: seq})
}

func (br *Bridge) since(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("topic")
	newPayload, ok := br.schema[name]
	if !ok {
		http.Error(w, "unknown topic", http.StatusNotFound)
		return
	}
	var after uint64
	if s := r.URL.Query().Get("after"); s != "" {
		var err error
		if after, err = strconv.ParseUint(s, 10, 64); err != nil {
			http.Error(w, "invalid after", http.StatusBadRequest)
			return
		}
	}
	out := wire.MediaType(r.Header.Get("Accept"))
	if out != wire.ContentTypeCBOR && out != wire.ContentTypeJSON {
		http.Error(w, "unsupported media type", http.StatusNotAcceptable)
		return
	}

	msgs := br.bus.Since(name, after)
	envelopes := make([]Envelope, 0, len(msgs))
	for _, msg := range msgs {
		payload := newPayload()
		if err := msg.Decode(payload); err != nil {
			br.bus.Log.Error().Err(err).Str("topic", name).Uint64("seq", msg.Seq).Msg("failed to decode retained message")
			continue
		}
		envelopes = append(envelopes, Envelope{Seq: msg.Seq, Payload: payload})
	}
	_ = wire.Write(w, out, http.StatusOK, envelopes)
}
