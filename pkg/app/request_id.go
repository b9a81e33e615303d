package app

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"
)

// RequestIDHeader carries the request ID in both directions. Inbound IDs are
// kept, so callers can correlate their logs with the node's.
const RequestIDHeader = "X-Request-Id"

const maxRequestIDLength = 128

type requestIDContextKey struct{}

// RequestID returns the ID assigned to the request being served, or "" outside
// of a request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.New().String()
		}

		if txn := newrelic.FromContext(r.Context()); txn != nil {
			txn.AddAttribute("request_id", id)
		}

		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDContextKey{}, id)))
	})
}
