package endpoint_test

import (
	"context"
	"encoding/hex"
	"io"
	mrand "math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taurusgroup/elgamal-client/pkg/elgamal"
	"github.com/taurusgroup/elgamal-client/pkg/endpoint"
	"github.com/taurusgroup/elgamal-client/pkg/protocol"
)

var params = elgamal.Parameters{P: 1019, A: 2}

func newServer(t *testing.T, enc *endpoint.Encrypter) (*httptest.Server, *endpoint.Client) {
	t.Helper()
	srv := httptest.NewServer(endpoint.NewServer(enc, zerolog.Nop()))
	t.Cleanup(srv.Close)
	c, err := endpoint.NewClient(srv.URL, srv.Client())
	require.NoError(t, err)
	return srv, c
}

func TestProbe(t *testing.T) {
	enc := endpoint.NewEncrypter(mrand.New(mrand.NewSource(0)), nil)
	_, c := newServer(t, enc)
	ctx := context.Background()

	err := c.Probe(ctx)
	assert.ErrorIs(t, err, endpoint.ErrUnavailable)
	assert.True(t, protocol.IsUnavailable(err))

	require.NoError(t, enc.SetParameters(params))
	assert.NoError(t, c.Probe(ctx))
}

func TestProbeClosed(t *testing.T) {
	srv, c := newServer(t, endpoint.NewEncrypter(nil, nil))
	srv.Close()
	assert.ErrorIs(t, c.Probe(context.Background()), endpoint.ErrUnavailable)
	_, err := c.Encrypt(context.Background(), &protocol.EncryptRequest{PublicKey: 2})
	assert.ErrorIs(t, err, endpoint.ErrUnavailable)
}

func TestEncrypt(t *testing.T) {
	rand := mrand.New(mrand.NewSource(1))
	enc := endpoint.NewEncrypter(mrand.New(mrand.NewSource(2)), nil)
	require.NoError(t, enc.SetParameters(params))
	_, c := newServer(t, enc)

	for _, client := range []*endpoint.Client{c, copyJSON(t, c)} {
		secret, err := elgamal.GenerateSecret(rand, params)
		require.NoError(t, err)
		resp, err := client.Encrypt(context.Background(), &protocol.EncryptRequest{PublicKey: uint64(secret.PublicKey())})
		require.NoError(t, err)

		sent := enc.Sent()
		last := sent[len(sent)-1]
		assert.Equal(t, last.Ciphertext, resp.Ciphertext())
		ciphertext := resp.Ciphertext()
		assert.Equal(t, int64(last.Message), secret.Decrypt(&ciphertext))
	}
	assert.Len(t, enc.Sent(), 2)
}

func copyJSON(t *testing.T, c *endpoint.Client) *endpoint.Client {
	t.Helper()
	clone := *c
	return clone.UseJSON()
}

func TestEncryptSession(t *testing.T) {
	enc := endpoint.NewEncrypter(mrand.New(mrand.NewSource(0)), nil)
	require.NoError(t, enc.SetParameters(params))
	got := make(chan string, 1)
	server := endpoint.NewServer(enc, zerolog.Nop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get(endpoint.SessionHeader)
		server.ServeHTTP(w, r)
	}))
	defer srv.Close()
	c, err := endpoint.NewClient(srv.URL, srv.Client())
	require.NoError(t, err)

	ssid := []byte{0xde, 0xad, 0xbe, 0xef}
	_, err = c.Encrypt(protocol.WithSession(context.Background(), ssid), &protocol.EncryptRequest{PublicKey: 4})
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(ssid), <-got)
}

func TestEncryptErrors(t *testing.T) {
	enc := endpoint.NewEncrypter(mrand.New(mrand.NewSource(0)), nil)
	_, c := newServer(t, enc)
	ctx := context.Background()

	_, err := c.Encrypt(ctx, &protocol.EncryptRequest{PublicKey: 4})
	assert.ErrorIs(t, err, endpoint.ErrUnavailable)

	require.NoError(t, enc.SetParameters(params))
	for _, b := range []uint64{0, params.P, params.P + 1} {
		_, err = c.Encrypt(ctx, &protocol.EncryptRequest{PublicKey: b})
		require.Error(t, err)
		assert.False(t, protocol.IsUnavailable(err))
		assert.Contains(t, err.Error(), "400")
	}
}

func TestServerMediaTypes(t *testing.T) {
	enc := endpoint.NewEncrypter(mrand.New(mrand.NewSource(0)), nil)
	require.NoError(t, enc.SetParameters(params))
	srv, _ := newServer(t, enc)

	resp, err := srv.Client().Post(srv.URL+endpoint.PathEncrypt, "text/plain", strings.NewReader("4"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	resp, err = srv.Client().Post(srv.URL+endpoint.PathEncrypt, "application/json", strings.NewReader(`{"public_key":4}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	resp, err = srv.Client().Post(srv.URL+endpoint.PathEncrypt, "application/json", strings.NewReader(`{`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = srv.Client().Get(srv.URL + endpoint.PathEncrypt)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestNewClient(t *testing.T) {
	_, err := endpoint.NewClient("ftp://example.com", nil)
	assert.Error(t, err)
	_, err = endpoint.NewClient("::", nil)
	assert.Error(t, err)
	_, err = endpoint.NewClient("http://127.0.0.1:8461/base/", nil)
	assert.NoError(t, err)
}

func TestEncrypter(t *testing.T) {
	enc := endpoint.NewEncrypter(mrand.New(mrand.NewSource(0)), func(_ io.Reader, _ elgamal.Parameters) (uint64, error) {
		return 15, nil
	})
	_, ok := enc.Parameters()
	assert.False(t, ok)
	_, err := enc.Encrypt(8)
	assert.ErrorIs(t, err, endpoint.ErrNoParameters)

	assert.ErrorIs(t, enc.SetParameters(elgamal.Parameters{P: 2, A: 1}), elgamal.ErrInvalidParameters)
	require.NoError(t, enc.SetParameters(elgamal.Parameters{P: 23, A: 5}))
	c, err := enc.Encrypt(8)
	require.NoError(t, err)

	secret, err := elgamal.NewSecret(elgamal.Parameters{P: 23, A: 5}, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(15), secret.Decrypt(c))
	require.Len(t, enc.Sent(), 1)
	assert.Equal(t, uint64(15), enc.Sent()[0].Message)
}
