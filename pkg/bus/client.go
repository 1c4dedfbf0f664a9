package bus

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/taurusgroup/elgamal-client/internal/wire"
	"github.com/taurusgroup/elgamal-client/pkg/protocol"
)

// RawEnvelope is an Envelope whose payload is left encoded.
type RawEnvelope struct {
	Seq     uint64          `cbor:"seq"`
	Payload cbor.RawMessage `cbor:"payload"`
}

// Decode unmarshals the payload into v.
func (e RawEnvelope) Decode(v interface{}) error {
	return wire.Unmarshal(wire.ContentTypeCBOR, e.Payload, v)
}

// Client talks to a remote Bridge using CBOR.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient returns a Client for the bridge at base. If httpClient is nil,
// http.DefaultClient is used.
func NewClient(base string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("bus: invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("bus: invalid url %q: scheme must be http or https", base)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: u, http: httpClient}, nil
}

func (c *Client) url(name string, after uint64) string {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/topics/" + url.PathEscape(name)
	if after > 0 {
		u.RawQuery = url.Values{"after": {strconv.FormatUint(after, 10)}}.Encode()
	}
	return u.String()
}

// Publish encodes v and publishes it on the remote topic.
func (c *Client) Publish(ctx context.Context, name string, v interface{}) (uint64, error) {
	body, err := wire.Marshal(wire.ContentTypeCBOR, v)
	if err != nil {
		return 0, fmt.Errorf("bus: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(name, 0), bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("bus: %w", err)
	}
	req.Header.Set("Content-Type", wire.ContentTypeCBOR)

	var resp PublishResponse
	if err = c.do(req, &resp); err != nil {
		return 0, fmt.Errorf("bus: publish %s: %w", name, err)
	}
	return resp.Seq, nil
}

// Fetch returns the messages retained on the remote topic after sequence number after.
func (c *Client) Fetch(ctx context.Context, name string, after uint64) ([]RawEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(name, after), nil)
	if err != nil {
		return nil, fmt.Errorf("bus: %w", err)
	}
	req.Header.Set("Accept", wire.ContentTypeCBOR)

	var envelopes []RawEnvelope
	if err = c.do(req, &envelopes); err != nil {
		return nil, fmt.Errorf("bus: fetch %s: %w", name, err)
	}
	return envelopes, nil
}

func (c *Client) do(req *http.Request, v interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, wire.MaxBodySize))
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	return wire.Decode(wire.MediaType(resp.Header.Get("Content-Type")), resp.Body, v)
}

// RemoteSink is a protocol.Sink publishing results on a remote topic.
type RemoteSink struct {
	Client *Client
	Topic  string
}

// Publish implements protocol.Sink.
func (s RemoteSink) Publish(ctx context.Context, msg *protocol.ResultMessage) error {
	_, err := s.Client.Publish(ctx, s.Topic, msg)
	return err
}
