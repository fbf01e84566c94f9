package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Fixed messages sent back to api clients.
const (
	MsgBookNotFound        = "Book not found"
	MsgBookUpdated         = "Book updated successfully"
	MsgBookDeleted         = "Book deleted successfully"
	MsgInternalServerError = "Internal Server Error"
	MsgInvalidRequestBody  = "Invalid request body"
	MsgRouteNotFound       = "Not Found"
)

// MsgRequestTimedOut is the json body sent when a request times out.
const MsgRequestTimedOut = `{"message":"Request timed out"}`

// StatusClientClosedRequest is the Nginx non standard status code
// used to record requests cancelled by the client.
const StatusClientClosedRequest = 499

// CustomResponseWriter is a wrapper for http.ResponseWriter. It is
// used to record response details like status code and body size.
type CustomResponseWriter struct {
	http.ResponseWriter
	code  int
	bytes int
	wrote bool
}

// NewCustomResponseWriter provides CustomResponseWriter with 200 as status code.
func NewCustomResponseWriter(rw http.ResponseWriter) *CustomResponseWriter {
	return &CustomResponseWriter{
		ResponseWriter: rw,
		code:           http.StatusOK,
	}
}

// WriteHeader implements http.ResponseWriter interface.
func (cw *CustomResponseWriter) WriteHeader(code int) {
	if !cw.wrote {
		cw.code = code
		cw.wrote = true
		cw.ResponseWriter.WriteHeader(code)
	}
}

// Write implements http.ResponseWriter interface.
func (cw *CustomResponseWriter) Write(b []byte) (int, error) {
	if !cw.wrote {
		cw.WriteHeader(cw.code)
	}
	n, err := cw.ResponseWriter.Write(b)
	cw.bytes += n
	return n, err
}

// Status returns the written status code.
func (cw *CustomResponseWriter) Status() int {
	return cw.code
}

// Bytes returns bytes written as response body.
func (cw *CustomResponseWriter) Bytes() int {
	return cw.bytes
}

// Unwrap returns native response writer and used by
// the http.ResponseController during its operation.
func (cw *CustomResponseWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}

// MessageResponse is the data model sent for every error and
// for the update and delete confirmations.
type MessageResponse struct {
	Message string `json:"message"`
}

// WriteJSON sends v as json with the given status code. When the request context is
// already done nothing is sent: the status 499 (Client Closed Request) is recorded
// for a cancelled request and 504 for a timed out one, for statistics purpose.
func WriteJSON(ctx context.Context, w http.ResponseWriter, status int, v interface{}) error {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			w.WriteHeader(http.StatusGatewayTimeout)
		} else {
			w.WriteHeader(StatusClientClosedRequest)
		}
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// WriteMessage sends a {"message": ...} body with the given status code.
func WriteMessage(ctx context.Context, w http.ResponseWriter, status int, message string) error {
	return WriteJSON(ctx, w, status, MessageResponse{Message: message})
}

// TimeoutHandler is http.TimeoutHandler whose timeout response is sent
// as json like every other api message.
func TimeoutHandler(h http.Handler, dt time.Duration) http.Handler {
	th := http.TimeoutHandler(h, dt, MsgRequestTimedOut)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		th.ServeHTTP(timeoutResponseWriter{w}, r)
	})
}

// timeoutResponseWriter sets the json content type on untyped 503 responses.
type timeoutResponseWriter struct {
	http.ResponseWriter
}

func (tw timeoutResponseWriter) WriteHeader(code int) {
	if code == http.StatusServiceUnavailable && tw.Header().Get("Content-Type") == "" {
		tw.Header().Set("Content-Type", "application/json; charset=UTF-8")
	}
	tw.ResponseWriter.WriteHeader(code)
}
