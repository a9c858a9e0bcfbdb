package query

import (
	"context"

	"go.uber.org/atomic"
)

// MutationFunc performs a side effect on the controller
type MutationFunc func(ctx context.Context) error

// Mutation runs a MutationFunc and tracks whether a call is in flight
type Mutation struct {
	fn        MutationFunc
	onSuccess func()
	pending   *atomic.Int32
	metrics   *metrics
}

// NewMutation binds fn to the client metrics. onSuccess runs after fn
// returned nil and before the mutation stops being pending.
func (c *Client) NewMutation(fn MutationFunc, onSuccess func()) *Mutation {
	return &Mutation{
		fn:        fn,
		onSuccess: onSuccess,
		pending:   atomic.NewInt32(0),
		metrics:   c.metrics,
	}
}

func (m *Mutation) Mutate(ctx context.Context) error {
	m.pending.Inc()
	defer m.pending.Dec()

	if err := m.fn(ctx); err != nil {
		m.metrics.mutationTotal.WithLabelValues("failure").Inc()
		return err
	}
	m.metrics.mutationTotal.WithLabelValues("success").Inc()

	if m.onSuccess != nil {
		m.onSuccess()
	}
	return nil
}

func (m *Mutation) IsPending() bool {
	return m.pending.Load() > 0
}
