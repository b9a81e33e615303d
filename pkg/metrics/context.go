// Package metrics records New Relic traces, custom metrics and events. Every
// helper is a no-op when the context carries no New Relic application or
// transaction.
package metrics

import (
	"context"

	"github.com/newrelic/go-agent/v3/newrelic"
)

type newRelicContextKey struct{}

// WithApplication returns a context that records metrics and events to app.
func WithApplication(ctx context.Context, app *newrelic.Application) context.Context {
	if app == nil {
		return ctx
	}
	return context.WithValue(ctx, newRelicContextKey{}, app)
}

// ApplicationFromContext returns the application set with WithApplication.
func ApplicationFromContext(ctx context.Context) (*newrelic.Application, bool) {
	app, ok := ctx.Value(newRelicContextKey{}).(*newrelic.Application)
	return app, ok && app != nil
}

// StartTransaction starts a background transaction on the context's
// application, so nested TraceMethodCall segments are recorded. The returned
// func ends it.
func StartTransaction(ctx context.Context, name string) (context.Context, func()) {
	app, ok := ApplicationFromContext(ctx)
	if !ok {
		return ctx, func() {}
	}

	txn := app.StartTransaction(name)
	return newrelic.NewContext(ctx, txn), txn.End
}
