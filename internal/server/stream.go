package server

import (
	"encoding/json"
	"net/http"

	"github.com/rotisserie/eris"
)

// ndjsonStream writes one JSON object per line and flushes after each,
// so the client sees progress while the run is still going. The header
// goes out lazily on the first line; until then the handler can still
// fail the request with a proper status code.
type ndjsonStream struct {
	w       http.ResponseWriter
	enc     *json.Encoder
	started bool
}

func newNDJSONStream(w http.ResponseWriter) *ndjsonStream {
	return &ndjsonStream{w: w, enc: json.NewEncoder(w)}
}

func (s *ndjsonStream) Started() bool {
	return s.started
}

func (s *ndjsonStream) Write(v any) error {
	if !s.started {
		s.w.Header().Set("Content-Type", "application/x-ndjson")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	if err := s.enc.Encode(v); err != nil {
		return eris.Wrap(err, "server: encode stream line")
	}
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
