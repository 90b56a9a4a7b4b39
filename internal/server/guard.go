package server

import (
	"context"

	"github.com/avezina/deepscout/internal/research"
	"github.com/avezina/deepscout/internal/resilience"
)

// guardedResearcher routes every downstream call through a circuit breaker.
// Once the research API fails repeatedly, calls short-circuit with
// [resilience.ErrCircuitOpen] instead of waiting out the request timeout.
type guardedResearcher struct {
	inner Researcher
	cb    *resilience.CircuitBreaker
}

// Guard wraps r with the given circuit breaker. A nil breaker returns r
// unchanged.
func Guard(r Researcher, cb *resilience.CircuitBreaker) Researcher {
	if cb == nil {
		return r
	}
	return &guardedResearcher{inner: r, cb: cb}
}

func (g *guardedResearcher) Perform(ctx context.Context, req research.Request) (*research.Response, error) {
	var resp *research.Response
	err := g.cb.Execute(func() error {
		var err error
		resp, err = g.inner.Perform(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Ready delegates to the wrapped researcher when it exposes a readiness
// check.
func (g *guardedResearcher) Ready(ctx context.Context) error {
	if rc, ok := g.inner.(readyChecker); ok {
		return rc.Ready(ctx)
	}
	return nil
}

// readyChecker is implemented by researchers that can report configuration
// readiness, such as [research.Client].
type readyChecker interface {
	Ready(ctx context.Context) error
}
