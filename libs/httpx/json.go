package httpx

import (
	"encoding/json"
	"net/http"
)

// WriteJSON marshals v before touching the response so a marshal failure
// can still be reported as a 500.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// DecodeJSON decodes a request body, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// Failure is the body of every unsuccessful response.
type Failure struct {
	Success              bool   `json:"success"`
	Error                string `json:"error"`
	HTTPStatusEquivalent int    `json:"httpStatusEquivalent"`
	Retryable            bool   `json:"retryable,omitempty"`
}

// WriteFailure answers status with a Failure body.
func WriteFailure(w http.ResponseWriter, status int, msg string, retryable bool) {
	WriteJSON(w, status, Failure{Error: msg, HTTPStatusEquivalent: status, Retryable: retryable})
}
