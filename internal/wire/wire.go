// Package wire encodes HTTP bodies as CBOR or JSON.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

const (
	ContentTypeCBOR = "application/cbor"
	ContentTypeJSON = "application/json"
)

// MaxBodySize bounds the bodies read by Decode.
const MaxBodySize = 1 << 16

var ErrUnsupportedMediaType = errors.New("wire: unsupported media type")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = (cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		MaxMapPairs: 64,
	}).DecMode(); err != nil {
		panic(err)
	}
}

// MediaType returns the media type of a Content-Type or Accept header, without
// parameters. An empty header defaults to CBOR.
func MediaType(header string) string {
	if header == "" {
		return ContentTypeCBOR
	}
	// only the first entry of an Accept list is considered
	first, _, _ := strings.Cut(header, ",")
	t, _, err := mime.ParseMediaType(strings.TrimSpace(first))
	if err != nil {
		return ""
	}
	if t == "*/*" {
		return ContentTypeCBOR
	}
	return t
}

// Marshal encodes v with the given media type.
func Marshal(mediaType string, v interface{}) ([]byte, error) {
	switch mediaType {
	case ContentTypeCBOR:
		return encMode.Marshal(v)
	case ContentTypeJSON:
		return json.Marshal(v)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMediaType, mediaType)
	}
}

// Unmarshal decodes data with the given media type into v.
func Unmarshal(mediaType string, data []byte, v interface{}) error {
	switch mediaType {
	case ContentTypeCBOR:
		return decMode.Unmarshal(data, v)
	case ContentTypeJSON:
		return json.Unmarshal(data, v)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedMediaType, mediaType)
	}
}

// Decode reads a body of at most MaxBodySize bytes and decodes it into v.
func Decode(mediaType string, r io.Reader, v interface{}) error {
	data, err := io.ReadAll(io.LimitReader(r, MaxBodySize+1))
	if err != nil {
		return fmt.Errorf("wire: failed to read body: %w", err)
	}
	if len(data) > MaxBodySize {
		return errors.New("wire: body too large")
	}
	if err = Unmarshal(mediaType, data, v); err != nil {
		return fmt.Errorf("wire: failed to decode %s: %w", mediaType, err)
	}
	return nil
}

// Write encodes v with the given media type and writes it as the response.
func Write(w http.ResponseWriter, mediaType string, status int, v interface{}) error {
	data, err := Marshal(mediaType, v)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", mediaType)
	w.WriteHeader(status)
	_, err = w.Write(data)
	return err
}
