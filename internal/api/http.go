package api

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the wire shape of an error response (spec.md §7 "status
// endpoint always returns a JSON body... failures never surface as stack
// traces to the client").
type ErrorBody struct {
	Error string `json:"error"`
}

// WriteError writes err to w as a JSON body with the status code implied by
// its Kind.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, KindOf(err).HTTPStatus(), ErrorBody{Error: err.Error()})
}

// WriteJSON writes v as a JSON response body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
