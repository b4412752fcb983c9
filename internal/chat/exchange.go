// Package chat drives text and voice exchanges against the conversation
// log: optimistic placeholders go in synchronously, the backend call runs in
// the background, and every exchange ends by reconciling its own
// placeholders, whether the call succeeded or not.
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/comigor/loanadvisor-go/internal/conversation"
	"github.com/comigor/loanadvisor-go/internal/logger"
	"github.com/comigor/loanadvisor-go/internal/metrics"
)

// Kind is the exchange flavour, used in logs and metric labels.
type Kind string

const (
	KindText  Kind = "text"
	KindVoice Kind = "voice"
)

// Fixed turn texts.
const (
	TextPlaceholder  = "Processing your request..."
	TextFailure      = "Error connecting to the chat service. Please try again."
	VoiceSent        = "Voice message sent..."
	VoiceProcessing  = "Processing your voice request..."
	VoiceFailedUser  = "Voice message failed to send."
	VoiceFallbackErr = "Error processing your voice request. Please try again."
)

// Exchange is the handle of one dispatched request. It always resolves;
// nothing can abort it once dispatched.
type Exchange struct {
	ID   string
	Kind Kind

	done chan struct{}
	err  error
}

// Done is closed once the exchange's placeholders have been replaced.
func (e *Exchange) Done() <-chan struct{} { return e.done }

// Wait blocks until the exchange resolves or ctx ends. Giving up on the
// wait does not cancel the exchange.
func (e *Exchange) Wait(ctx context.Context) error {
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err is the dispatch error the exchange was resolved with, or nil on
// success. It is informational; the log already holds the error turn.
// Only valid after Done is closed.
func (e *Exchange) Err() error { return e.err }

// Option configures a controller.
type Option func(*runner)

// WithMetrics reports exchange outcomes to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *runner) { r.metrics = m }
}

// runner is the part both controllers share: placeholder append, background
// dispatch, reconciliation by exchange id.
type runner struct {
	log     *conversation.Log
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

func (r *runner) init(log *conversation.Log, opts []Option) {
	r.log = log
	for _, opt := range opts {
		opt(r)
	}
}

// open appends the placeholders built by turns for a fresh exchange id.
func (r *runner) open(kind Kind, turns func(id string) []conversation.Turn) (*Exchange, error) {
	ex := &Exchange{ID: uuid.NewString(), Kind: kind, done: make(chan struct{})}
	if _, err := r.log.AppendAll(turns(ex.ID)...); err != nil {
		return nil, err
	}
	return ex, nil
}

// dispatch runs call in the background and reconciles ex with its result.
// The call's context ignores cancellation of ctx.
func (r *runner) dispatch(ctx context.Context, ex *Exchange, call func(ctx context.Context) ([]conversation.Turn, error)) {
	started := time.Now()
	if r.metrics != nil {
		r.metrics.ExchangesInFlight.Inc()
	}
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		defer close(ex.done)

		turns, err := call(context.WithoutCancel(ctx))
		ex.err = err

		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeFailure
			logger.L.Warn("exchange failed", "exchange_id", ex.ID, "kind", ex.Kind, "error", err)
		}

		if rerr := r.log.Reconcile(ex.ID, turns...); rerr != nil {
			logger.L.Error("exchange reconciliation failed", "exchange_id", ex.ID, "kind", ex.Kind, "error", rerr)
		} else {
			logger.L.Info("exchange reconciled", "exchange_id", ex.ID, "kind", ex.Kind, "outcome", outcome, "elapsed", time.Since(started))
		}

		if r.metrics != nil {
			r.metrics.ExchangesInFlight.Dec()
			r.metrics.Exchanges.WithLabelValues(string(ex.Kind), outcome).Inc()
			r.metrics.ExchangeDuration.WithLabelValues(string(ex.Kind)).Observe(time.Since(started).Seconds())
		}
	}()
}

// Wait blocks until every exchange dispatched so far has resolved.
func (r *runner) Wait() { r.wg.Wait() }
