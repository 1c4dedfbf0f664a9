package endpoint

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/taurusgroup/elgamal-client/internal/wire"
	"github.com/taurusgroup/elgamal-client/pkg/elgamal"
	"github.com/taurusgroup/elgamal-client/pkg/protocol"
)

// Server exposes an Encrypter over HTTP.
type Server struct {
	enc *Encrypter
	mux *http.ServeMux

	Log zerolog.Logger
}

// NewServer returns the http.Handler of the encrypting party.
func NewServer(enc *Encrypter, log zerolog.Logger) *Server {
	s := &Server{
		enc: enc,
		mux: http.NewServeMux(),
		Log: log.With().Str("component", "endpoint").Logger(),
	}
	s.mux.HandleFunc("GET "+PathHealth, s.health)
	s.mux.HandleFunc("POST "+PathEncrypt, s.encrypt)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	if !s.enc.Ready() {
		http.Error(w, "no parameters", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) encrypt(w http.ResponseWriter, r *http.Request) {
	in := wire.MediaType(r.Header.Get("Content-Type"))
	out := in
	if accept := r.Header.Get("Accept"); accept != "" {
		if mt := wire.MediaType(accept); mt == wire.ContentTypeCBOR || mt == wire.ContentTypeJSON {
			out = mt
		}
	}

	var req protocol.EncryptRequest
	if err := wire.Decode(in, r.Body, &req); err != nil {
		if errors.Is(err, wire.ErrUnsupportedMediaType) {
			http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c, err := s.enc.Encrypt(elgamal.PublicKey(req.PublicKey))
	switch {
	case errors.Is(err, ErrNoParameters):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	case errors.Is(err, ErrInvalidPublicKey):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		s.Log.Error().Err(err).Msg("encryption failed")
		http.Error(w, "encryption failed", http.StatusInternalServerError)
		return
	}

	s.Log.Info().
		Str("session", r.Header.Get(SessionHeader)).
		Uint64("b", req.PublicKey).
		Uint64("y1", c.Y1).
		Uint64("y2", c.Y2).
		Msg("encrypted")
	if err = wire.Write(w, out, http.StatusOK, protocol.EncryptResponse{Y1: c.Y1, Y2: c.Y2}); err != nil {
		s.Log.Warn().Err(err).Msg("failed to write response")
	}
}
