// Package render writes JSON responses and classified errors with the
// headers every endpoint shares.
package render

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/apperr"
)

const ContentTypeJSON = "application/json; charset=utf-8"

func setHeaders(h http.Header) {
	h.Set("Content-Type", ContentTypeJSON)
	h.Set("Access-Control-Allow-Origin", "*")
}

// JSON writes v with the given status. It encodes before touching w, and an
// unencodable value panics: that is a programming error, not a client one.
func JSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("render: encode %T: %v", v, err))
	}
	setHeaders(w.Header())
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

// OK writes v with status 200.
func OK(w http.ResponseWriter, v any) {
	JSON(w, http.StatusOK, v)
}

// Error classifies err and writes its {short, long} body. It returns the
// classification so callers can log and count by kind.
func Error(w http.ResponseWriter, err error) apperr.ServiceError {
	se := apperr.Classify(err)
	JSON(w, se.HTTPStatus(), se)
	return se
}
