// Package endpoint carries the encryption exchange over HTTP.
//
// The encrypting party serves two routes:
//
//	GET  /healthz   200 once it holds parameters, 503 otherwise
//	POST /encrypt   EncryptRequest -> EncryptResponse
//
// Bodies are CBOR unless the request asks for JSON.
package endpoint

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/taurusgroup/elgamal-client/internal/wire"
	"github.com/taurusgroup/elgamal-client/pkg/protocol"
)

const (
	PathHealth  = "/healthz"
	PathEncrypt = "/encrypt"

	// SessionHeader carries the hex encoded session id of the exchange.
	SessionHeader = "Elgamal-Session"
)

// ErrUnavailable is returned (wrapped) when the encrypting party cannot be reached
// or is not ready.
var ErrUnavailable = protocol.ErrUnavailable

// Client implements protocol.Endpoint against a remote Server.
type Client struct {
	base      *url.URL
	http      *http.Client
	mediaType string
}

var _ protocol.Endpoint = (*Client)(nil)

// NewClient returns a Client for the server at base, such as "http://127.0.0.1:8461".
// If httpClient is nil, http.DefaultClient is used.
func NewClient(base string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("endpoint: invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("endpoint: invalid url %q: scheme must be http or https", base)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: u, http: httpClient, mediaType: wire.ContentTypeCBOR}, nil
}

// UseJSON makes the client send and accept JSON bodies.
func (c *Client) UseJSON() *Client {
	c.mediaType = wire.ContentTypeJSON
	return c
}

func (c *Client) url(path string) string {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u.String()
}

// Probe implements protocol.Endpoint.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(PathHealth), nil)
	if err != nil {
		return fmt.Errorf("endpoint: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("endpoint: probe: %w: %v", ErrUnavailable, err)
	}
	defer drain(resp.Body)
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusServiceUnavailable:
		return fmt.Errorf("endpoint: probe: %w: not ready", ErrUnavailable)
	default:
		return fmt.Errorf("endpoint: probe: unexpected status %s", resp.Status)
	}
}

// Encrypt implements protocol.Endpoint. The session id stored in ctx, if any, is
// sent in the SessionHeader.
func (c *Client) Encrypt(ctx context.Context, msg *protocol.EncryptRequest) (*protocol.EncryptResponse, error) {
	body, err := wire.Marshal(c.mediaType, msg)
	if err != nil {
		return nil, fmt.Errorf("endpoint: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(PathEncrypt), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("endpoint: %w", err)
	}
	req.Header.Set("Content-Type", c.mediaType)
	req.Header.Set("Accept", c.mediaType)
	if ssid, ok := protocol.SessionFrom(ctx); ok {
		req.Header.Set(SessionHeader, hex.EncodeToString(ssid))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("endpoint: encrypt: %w: %v", ErrUnavailable, err)
	}
	defer drain(resp.Body)
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusServiceUnavailable:
		return nil, fmt.Errorf("endpoint: encrypt: %w: not ready", ErrUnavailable)
	default:
		return nil, fmt.Errorf("endpoint: encrypt: unexpected status %s: %s", resp.Status, readError(resp.Body))
	}

	var out protocol.EncryptResponse
	if err = wire.Decode(wire.MediaType(resp.Header.Get("Content-Type")), resp.Body, &out); err != nil {
		return nil, fmt.Errorf("endpoint: encrypt: %w", err)
	}
	return &out, nil
}

func readError(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 256))
	return strings.TrimSpace(string(data))
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, wire.MaxBodySize))
	_ = body.Close()
}
