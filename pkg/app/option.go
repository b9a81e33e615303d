package app

import (
	"net/http"

	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/code-payments/code-vault/pkg/metrics"
)

// Middleware decorates the app's HTTP handler.
type Middleware func(next http.Handler) http.Handler

// Option configures the environment run by Run().
type Option func(o *opts)

type opts struct {
	middleware []Middleware
}

// WithMiddleware configures the app's HTTP server to use the provided
// middleware.
//
// Middleware is evaluated in addition order, and configured middleware is
// executed after the app's default New Relic and request ID middleware.
func WithMiddleware(middleware Middleware) Option {
	return func(o *opts) {
		o.middleware = append(o.middleware, middleware)
	}
}

func (o *opts) wrap(handler http.Handler) http.Handler {
	for i := len(o.middleware) - 1; i >= 0; i-- {
		handler = o.middleware[i](handler)
	}
	return handler
}

// newRelicMiddleware starts a web transaction for every request and attaches
// the application, so traces, metrics and events made while serving it are
// recorded.
func newRelicMiddleware(nr *newrelic.Application) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			txn := nr.StartTransaction(r.Method + " " + r.URL.Path)
			defer txn.End()

			txn.SetWebRequestHTTP(r)
			w = txn.SetWebResponse(w)
			r = newrelic.RequestWithTransactionContext(r, txn)
			r = r.WithContext(metrics.WithApplication(r.Context(), nr))

			next.ServeHTTP(w, r)
		})
	}
}
