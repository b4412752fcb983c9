package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/comigor/loanadvisor-go/internal/backend"
	"github.com/comigor/loanadvisor-go/internal/conversation"
	"github.com/comigor/loanadvisor-go/internal/metrics"
)

// mockTextBackend mirrors TextBackend.
type mockTextBackend struct {
	ChatFunc func(ctx context.Context, message string) (string, error)

	mu    sync.Mutex
	calls []string
}

func (m *mockTextBackend) Chat(ctx context.Context, message string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, message)
	m.mu.Unlock()
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, message)
	}
	return "ok", nil
}

func (m *mockTextBackend) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func waitExchange(t *testing.T, ex *Exchange) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ex.Wait(ctx))
}

func contents(turns []conversation.Turn) []string {
	out := make([]string, len(turns))
	for i, t := range turns {
		out[i] = t.Content
	}
	return out
}

func TestSend_OptimisticThenReconciled(t *testing.T) {
	release := make(chan struct{})
	be := &mockTextBackend{ChatFunc: func(ctx context.Context, message string) (string, error) {
		<-release
		return "<p>You qualify for ₹5L</p>", nil
	}}
	log := conversation.NewLog(conversation.Greeting)
	c := NewTextController(log, be)

	ex, err := c.Send(context.Background(), "Check my loan eligibility")
	require.NoError(t, err)
	require.NotNil(t, ex)

	// before resolution: greeting, user, placeholder
	turns := log.Snapshot()
	require.Len(t, turns, 3)
	require.Equal(t, conversation.RoleUser, turns[1].Role)
	require.Equal(t, "Check my loan eligibility", turns[1].Content)
	require.True(t, turns[2].Placeholder)
	require.Equal(t, TextPlaceholder, turns[2].Content)

	close(release)
	waitExchange(t, ex)
	require.NoError(t, ex.Err())

	turns = log.Snapshot()
	require.Len(t, turns, 3)
	require.False(t, turns[2].Placeholder)
	require.Equal(t, conversation.RoleAssistant, turns[2].Role)
	require.Equal(t, "<p>You qualify for ₹5L</p>", turns[2].Content)
	require.Zero(t, log.Pending())
}

func TestSend_BlankIsNoop(t *testing.T) {
	be := &mockTextBackend{}
	log := conversation.NewLog(conversation.Greeting)
	c := NewTextController(log, be)

	for _, msg := range []string{"", "   ", "\n\t "} {
		ex, err := c.Send(context.Background(), msg)
		require.NoError(t, err)
		require.Nil(t, ex)
	}
	c.Wait()
	require.Equal(t, 1, log.Len())
	require.Zero(t, be.Calls())
}

func TestSend_FailureKeepsUserTurn(t *testing.T) {
	be := &mockTextBackend{ChatFunc: func(ctx context.Context, message string) (string, error) {
		return "", backend.ErrNetwork
	}}
	log := conversation.NewLog(conversation.Greeting)
	c := NewTextController(log, be)

	ex, err := c.Send(context.Background(), "hello")
	require.NoError(t, err)
	waitExchange(t, ex)
	require.ErrorIs(t, ex.Err(), backend.ErrNetwork)

	require.Equal(t, []string{conversation.Greeting, "hello", TextFailure}, contents(log.Snapshot()))
	require.Zero(t, log.Pending())
}

func TestSend_SanitizesServerMarkup(t *testing.T) {
	be := &mockTextBackend{ChatFunc: func(ctx context.Context, message string) (string, error) {
		return `<p onclick="x()">Rate 9%</p><script>steal()</script>`, nil
	}}
	log := conversation.NewLog(conversation.Greeting)
	c := NewTextController(log, be)

	ex, err := c.Send(context.Background(), "rate?")
	require.NoError(t, err)
	waitExchange(t, ex)
	require.Equal(t, "<p>Rate 9%</p>", log.Snapshot()[2].Content)
}

func TestSend_InterleavedExchangesReconcileTheirOwnTurns(t *testing.T) {
	gates := map[string]chan struct{}{"first": make(chan struct{}), "second": make(chan struct{})}
	be := &mockTextBackend{ChatFunc: func(ctx context.Context, message string) (string, error) {
		<-gates[message]
		return "re: " + message, nil
	}}
	log := conversation.NewLog(conversation.Greeting)
	c := NewTextController(log, be)

	first, err := c.Send(context.Background(), "first")
	require.NoError(t, err)
	second, err := c.Send(context.Background(), "second")
	require.NoError(t, err)
	require.Equal(t, 5, log.Len())

	close(gates["second"])
	waitExchange(t, second)
	require.Equal(t, []string{conversation.Greeting, "first", TextPlaceholder, "second", "re: second"}, contents(log.Snapshot()))

	close(gates["first"])
	waitExchange(t, first)
	require.Equal(t, []string{conversation.Greeting, "first", "re: first", "second", "re: second"}, contents(log.Snapshot()))
}

func TestSend_CallerCancellationDoesNotAbort(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	be := &mockTextBackend{ChatFunc: func(ctx context.Context, message string) (string, error) {
		close(started)
		<-release
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "answer", nil
	}}
	log := conversation.NewLog(conversation.Greeting)
	c := NewTextController(log, be)

	ctx, cancel := context.WithCancel(context.Background())
	ex, err := c.Send(ctx, "hi")
	require.NoError(t, err)
	<-started
	cancel()

	// an abandoned wait leaves the exchange running
	require.ErrorIs(t, ex.Wait(ctx), context.Canceled)
	close(release)
	waitExchange(t, ex)
	require.NoError(t, ex.Err())
	require.Equal(t, "answer", log.Snapshot()[2].Content)
}

func TestSend_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	be := &mockTextBackend{ChatFunc: func(ctx context.Context, message string) (string, error) {
		if message == "bad" {
			return "", errors.New("boom")
		}
		return "fine", nil
	}}
	c := NewTextController(conversation.NewLog(conversation.Greeting), be, WithMetrics(m))

	for _, msg := range []string{"good", "bad", "good"} {
		_, err := c.Send(context.Background(), msg)
		require.NoError(t, err)
	}
	c.Wait()

	require.Equal(t, 2.0, testutil.ToFloat64(m.Exchanges.WithLabelValues(string(KindText), metrics.OutcomeSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Exchanges.WithLabelValues(string(KindText), metrics.OutcomeFailure)))
	require.Equal(t, 0.0, testutil.ToFloat64(m.ExchangesInFlight))
}

func TestSend_LengthGrowsByTwo(t *testing.T) {
	for _, fail := range []bool{false, true} {
		be := &mockTextBackend{ChatFunc: func(ctx context.Context, message string) (string, error) {
			if fail {
				return "", errors.New("down")
			}
			return "ok", nil
		}}
		log := conversation.NewLog(conversation.Greeting)
		c := NewTextController(log, be)

		before := log.Len()
		ex, err := c.Send(context.Background(), "question")
		require.NoError(t, err)
		require.Equal(t, before+2, log.Len())
		waitExchange(t, ex)
		require.Equal(t, before+2, log.Len())
	}
}
