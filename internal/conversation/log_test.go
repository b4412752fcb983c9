package conversation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comigor/loanadvisor-go/internal/markup"
)

type recordingObserver struct {
	mu    sync.Mutex
	turns []Turn
}

func (r *recordingObserver) TurnFinalized(t Turn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, t)
}

func contents(turns []Turn) []string {
	out := make([]string, len(turns))
	for i, t := range turns {
		out[i] = t.Content
	}
	return out
}

func TestNewLog_SeedsGreeting(t *testing.T) {
	obs := &recordingObserver{}
	l := NewLog(Greeting, WithObserver(obs))

	require.Equal(t, 1, l.Len())
	seed := l.Snapshot()[0]
	require.Equal(t, RoleAssistant, seed.Role)
	require.Equal(t, Greeting, seed.Content)
	require.NotEmpty(t, seed.ID)
	require.False(t, seed.CreatedAt.IsZero())
	require.Len(t, obs.turns, 1)
}

func TestAppend_ReturnsLength(t *testing.T) {
	l := NewLog("hi")
	n, err := l.Append(UserTurn("", "a"))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = l.AppendAll(UserTurn("", "b"), AssistantTurn("", markup.Sanitize("c")))
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, []string{"hi", "a", "b", "c"}, contents(l.Snapshot()))
}

func TestReplaceTail(t *testing.T) {
	l := NewLog("hi")
	_, err := l.AppendAll(UserTurn("x", "q"), PlaceholderTurn("x", RoleAssistant, "wait"))
	require.NoError(t, err)

	require.NoError(t, l.ReplaceTail(1, AssistantTurn("x", "answer")))
	require.Equal(t, []string{"hi", "q", "answer"}, contents(l.Snapshot()))
	require.Zero(t, l.Pending())
}

func TestReplaceTail_CountExceedsLength(t *testing.T) {
	l := NewLog("hi")
	err := l.ReplaceTail(2, UserTurn("", "a"))
	require.ErrorIs(t, err, ErrPrecondLog)
	require.Equal(t, 1, l.Len())

	require.ErrorIs(t, l.ReplaceTail(-1), ErrPrecondLog)
}

func TestReplaceTail_EntireLog(t *testing.T) {
	l := NewLog("hi")
	require.NoError(t, l.ReplaceTail(1, UserTurn("", "a"), UserTurn("", "b")))
	require.Equal(t, []string{"a", "b"}, contents(l.Snapshot()))
}

func TestReconcile_ByExchangeAcrossInterleaving(t *testing.T) {
	l := NewLog("hi")
	_, err := l.AppendAll(UserTurn("a", "first"), PlaceholderTurn("a", RoleAssistant, "wait a"))
	require.NoError(t, err)
	_, err = l.AppendAll(UserTurn("b", "second"), PlaceholderTurn("b", RoleAssistant, "wait b"))
	require.NoError(t, err)

	// a resolves after b was appended; a trailing-window replace would hit b.
	require.NoError(t, l.Reconcile("a", AssistantTurn("a", "answer a")))
	require.Equal(t, []string{"hi", "first", "answer a", "second", "wait b"}, contents(l.Snapshot()))

	require.NoError(t, l.Reconcile("b", AssistantTurn("b", "answer b")))
	require.Equal(t, []string{"hi", "first", "answer a", "second", "answer b"}, contents(l.Snapshot()))
	require.Zero(t, l.Pending())
}

func TestReconcile_Pair(t *testing.T) {
	l := NewLog("hi")
	_, err := l.AppendAll(
		PlaceholderTurn("v", RoleUser, "sent"),
		PlaceholderTurn("v", RoleAssistant, "processing"),
	)
	require.NoError(t, err)
	require.Equal(t, 2, l.Pending())

	require.NoError(t, l.Reconcile("v", UserTurn("v", "spoken"), AssistantTurn("v", "reply")))
	require.Equal(t, []string{"hi", "spoken", "reply"}, contents(l.Snapshot()))
}

func TestReconcile_Errors(t *testing.T) {
	l := NewLog("hi")
	require.ErrorIs(t, l.Reconcile("missing", UserTurn("", "x")), ErrUnknownExchange)

	_, err := l.AppendAll(PlaceholderTurn("v", RoleUser, "u"), PlaceholderTurn("v", RoleAssistant, "a"))
	require.NoError(t, err)

	// the window must be replaced one for one
	require.ErrorIs(t, l.Reconcile("v", UserTurn("v", "only one")), ErrPrecondLog)
	require.Equal(t, 2, l.Pending())

	require.NoError(t, l.Reconcile("v", UserTurn("v", "u2"), AssistantTurn("v", "a2")))
	require.ErrorIs(t, l.Reconcile("v", UserTurn("v", "again")), ErrUnknownExchange)
}

func TestAppend_RejectsDuplicatePlaceholder(t *testing.T) {
	l := NewLog("hi")
	_, err := l.Append(PlaceholderTurn("x", RoleAssistant, "one"))
	require.NoError(t, err)

	_, err = l.Append(PlaceholderTurn("x", RoleAssistant, "two"))
	require.ErrorIs(t, err, ErrDuplicatePlaceholder)

	_, err = l.AppendAll(PlaceholderTurn("y", RoleAssistant, "a"), PlaceholderTurn("y", RoleAssistant, "b"))
	require.ErrorIs(t, err, ErrDuplicatePlaceholder)
	require.Equal(t, 2, l.Len())
}

func TestObserver_SeesOnlyFinalTurns(t *testing.T) {
	obs := &recordingObserver{}
	l := NewLog("hi", WithObserver(obs))

	_, err := l.AppendAll(UserTurn("x", "q"), PlaceholderTurn("x", RoleAssistant, "wait"))
	require.NoError(t, err)
	require.NoError(t, l.Reconcile("x", AssistantTurn("x", "done")))

	require.Equal(t, []string{"hi", "q", "done"}, contents(obs.turns))
}

func TestWithClock(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l := NewLog("hi", WithClock(func() time.Time { return fixed }))
	require.Equal(t, fixed, l.Snapshot()[0].CreatedAt)
}

func TestSnapshot_IsACopy(t *testing.T) {
	l := NewLog("hi")
	snap := l.Snapshot()
	snap[0].Content = "changed"
	require.Equal(t, "hi", l.Snapshot()[0].Content)
}

func TestLog_ConcurrentExchanges(t *testing.T) {
	l := NewLog("hi")
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := l.AppendAll(UserTurn(id, "q"), PlaceholderTurn(id, RoleAssistant, "wait"))
			require.NoError(t, err)
			require.NoError(t, l.Reconcile(id, AssistantTurn(id, markup.HTML(id))))
		}(string(rune('A' + i)))
	}
	wg.Wait()

	require.Equal(t, 1+2*n, l.Len())
	require.Zero(t, l.Pending())

	// every exchange's answer follows its own question
	turns := l.Snapshot()
	for i := 1; i < len(turns); i += 2 {
		require.Equal(t, turns[i].ExchangeID, turns[i+1].ExchangeID)
		require.Equal(t, RoleUser, turns[i].Role)
		require.Equal(t, RoleAssistant, turns[i+1].Role)
	}
}
