package notify

import (
	"context"

	"admincore/internal/model"
	"admincore/pkg/circuitbreaker"
)

// BreakerTransport stops calling a failing transport until it recovers.
// Every failure, including an open breaker, surfaces as a TransportError.
type BreakerTransport struct {
	next    Transport
	breaker *circuitbreaker.CircuitBreaker
}

func NewBreakerTransport(next Transport, breaker *circuitbreaker.CircuitBreaker) *BreakerTransport {
	return &BreakerTransport{next: next, breaker: breaker}
}

func (t *BreakerTransport) Send(ctx context.Context, to, subject, body string) error {
	err := t.breaker.Execute(func() error {
		return t.next.Send(ctx, to, subject, body)
	})
	if err != nil {
		return &model.TransportError{To: to, Err: err}
	}
	return nil
}

func (t *BreakerTransport) State() circuitbreaker.State {
	return t.breaker.GetState()
}
