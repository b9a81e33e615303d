package metrics

import (
	"context"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// MethodTracer is a segment of the New Relic transaction carried by the
// context, named "<struct or package> <method>". A nil tracer is valid and
// records nothing, which is what TraceMethodCall returns outside a
// transaction.
type MethodTracer struct {
	name string
	txn  *newrelic.Transaction
	seg  *newrelic.Segment
}

func TraceMethodCall(ctx context.Context, structOrPackageName, methodName string) *MethodTracer {
	txn := newrelic.FromContext(ctx)
	if txn == nil {
		return nil
	}

	name := structOrPackageName + " " + methodName
	return &MethodTracer{
		name: name,
		txn:  txn,
		seg:  txn.StartSegment(name),
	}
}

func (t *MethodTracer) AddAttribute(key string, value interface{}) {
	if t == nil {
		return
	}
	t.seg.AddAttribute(key, value)
}

func (t *MethodTracer) AddAttributes(attributes map[string]interface{}) {
	if t == nil {
		return
	}
	for key, value := range attributes {
		t.seg.AddAttribute(key, value)
	}
}

// OnError notices err on the transaction, attributed to the traced method.
func (t *MethodTracer) OnError(err error) {
	if t == nil || err == nil {
		return
	}

	t.seg.AddAttribute("error", true)
	t.txn.NoticeError(newrelic.Error{
		Message:    err.Error(),
		Class:      t.name,
		Attributes: map[string]interface{}{"method": t.name},
	})
}

func (t *MethodTracer) End() {
	if t == nil {
		return
	}
	t.seg.End()
}
