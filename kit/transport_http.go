package kit

import (
	"encoding/json"
	"errors"
	"net/http"
)

// StatusError carries the HTTP status an endpoint error should map to.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string { return e.Err.Error() }
func (e *StatusError) Unwrap() error { return e.Err }

// WithStatus tags err with an HTTP status code.
func WithStatus(code int, err error) error {
	if err == nil {
		return nil
	}
	return &StatusError{Code: code, Err: err}
}

// HTTPHandler adapts an Endpoint to net/http. decode builds the request
// value from the incoming request; a decode error is a 400. Responses are
// written as JSON; errors as {"error": "..."} with the status carried by a
// StatusError, 500 otherwise.
func HTTPHandler(endpoint Endpoint, decode func(*http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := WithTransport(r.Context(), "http")
		ctx = WithRemoteAddr(ctx, r.RemoteAddr)
		if id := r.Header.Get("X-Request-Id"); id != "" {
			ctx = WithRequestID(ctx, id)
		}

		var req any
		if decode != nil {
			var err error
			if req, err = decode(r); err != nil {
				WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
		}

		resp, err := endpoint(ctx, req)
		if err != nil {
			code := http.StatusInternalServerError
			var se *StatusError
			if errors.As(err, &se) {
				code = se.Code
			}
			WriteJSON(w, code, map[string]string{"error": err.Error()})
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
