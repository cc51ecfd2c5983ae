package kit

import (
	"encoding/json"
	"net/http"
)

// HTTPDecodeFunc extracts the endpoint request from an HTTP request.
type HTTPDecodeFunc func(r *http.Request) (any, error)

// StatusFunc maps an endpoint error to an HTTP status.
type StatusFunc func(err error) int

// HTTPHandler serves endpoint as JSON. Decode errors are 400; endpoint
// errors use status, or 500 when status is nil.
func HTTPHandler(endpoint Endpoint, decode HTTPDecodeFunc, status StatusFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := WithTransport(r.Context(), "http")
		ctx = WithRemoteAddr(ctx, r.RemoteAddr)
		if id := r.Header.Get("X-Request-ID"); id != "" {
			ctx = WithRequestID(ctx, id)
		}

		req, err := decode(r)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := endpoint(ctx, req)
		if err != nil {
			code := http.StatusInternalServerError
			if status != nil {
				code = status(err)
			}
			WriteError(w, code, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes {"error": err}.
func WriteError(w http.ResponseWriter, code int, err error) {
	WriteJSON(w, code, map[string]string{"error": err.Error()})
}
