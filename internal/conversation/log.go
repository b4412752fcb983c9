// Package conversation implements the ordered message log of one chat
// session and its optimistic-update protocol: exchanges append placeholder
// turns up front and later swap them for final turns.
package conversation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrPrecondLog is returned when a replacement window does not fit the log.
	ErrPrecondLog = errors.New("conversation: replacement window exceeds log")
	// ErrUnknownExchange is returned when no placeholder of an exchange is left.
	ErrUnknownExchange = errors.New("conversation: no pending placeholders for exchange")
	// ErrDuplicatePlaceholder is returned when an exchange already holds an
	// unresolved placeholder for the same role.
	ErrDuplicatePlaceholder = errors.New("conversation: exchange already has a pending placeholder for role")
)

// Observer is told about every finalized turn, in log order per exchange.
type Observer interface {
	TurnFinalized(t Turn)
}

// Option configures a Log.
type Option func(*Log)

// WithObserver registers o for finalized turns, including the greeting.
func WithObserver(o Observer) Option {
	return func(l *Log) { l.observers = append(l.observers, o) }
}

// WithClock overrides time.Now for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// Log is the conversation of one session. It is safe for concurrent use;
// Append, AppendAll, ReplaceTail and Reconcile are its only mutations.
type Log struct {
	mu        sync.Mutex
	turns     []Turn
	observers []Observer
	now       func() time.Time
}

// NewLog creates a conversation seeded with a single assistant greeting.
func NewLog(greeting string, opts ...Option) *Log {
	l := &Log{now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	seed := l.stamp(Turn{Role: RoleAssistant, Content: greeting})
	l.turns = []Turn{seed}
	l.notify([]Turn{seed})
	return l
}

// Append adds t to the end and returns the new length.
func (l *Log) Append(t Turn) (int, error) {
	return l.AppendAll(t)
}

// AppendAll appends turns atomically, so no other exchange can land between
// them. It returns the new length.
func (l *Log) AppendAll(turns ...Turn) (int, error) {
	l.mu.Lock()
	stamped := make([]Turn, 0, len(turns))
	for _, t := range turns {
		if t.Placeholder && l.hasPlaceholder(t.ExchangeID, t.Role, stamped) {
			l.mu.Unlock()
			return 0, fmt.Errorf("%w: exchange %s role %s", ErrDuplicatePlaceholder, t.ExchangeID, t.Role)
		}
		stamped = append(stamped, l.stamp(t))
	}
	l.turns = append(l.turns, stamped...)
	n := len(l.turns)
	l.mu.Unlock()

	l.notify(stamped)
	return n, nil
}

// ReplaceTail removes the last count entries and appends turns in their
// place. Everything before the window keeps its order.
func (l *Log) ReplaceTail(count int, turns ...Turn) error {
	l.mu.Lock()
	if count < 0 || count > len(l.turns) {
		n := len(l.turns)
		l.mu.Unlock()
		return fmt.Errorf("%w: count %d, length %d", ErrPrecondLog, count, n)
	}
	final := l.splice(len(l.turns)-count, count, turns)
	l.mu.Unlock()

	l.notify(final)
	return nil
}

// Reconcile replaces the pending placeholders of exchangeID with turns,
// wherever they sit in the log. The window must be replaced one for one so
// an exchange contributes the same length on success and on failure.
func (l *Log) Reconcile(exchangeID string, turns ...Turn) error {
	l.mu.Lock()
	start, count := -1, 0
	for i, t := range l.turns {
		if t.Placeholder && t.ExchangeID == exchangeID {
			if start == -1 {
				start = i
			} else if i != start+count {
				l.mu.Unlock()
				return fmt.Errorf("%w: placeholders of exchange %s are not contiguous", ErrPrecondLog, exchangeID)
			}
			count++
		}
	}
	if start == -1 {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownExchange, exchangeID)
	}
	if count != len(turns) {
		l.mu.Unlock()
		return fmt.Errorf("%w: exchange %s holds %d placeholders, got %d turns", ErrPrecondLog, exchangeID, count, len(turns))
	}
	final := l.splice(start, count, turns)
	l.mu.Unlock()

	l.notify(final)
	return nil
}

// Len returns the number of turns.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}

// Snapshot returns a copy of the turns in display order.
func (l *Log) Snapshot() []Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Pending returns how many placeholder turns are still unresolved.
func (l *Log) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, t := range l.turns {
		if t.Placeholder {
			n++
		}
	}
	return n
}

// splice must be called with mu held. It returns the stamped replacements.
func (l *Log) splice(start, count int, turns []Turn) []Turn {
	stamped := make([]Turn, len(turns))
	for i, t := range turns {
		stamped[i] = l.stamp(t)
	}
	tail := append([]Turn(nil), l.turns[start+count:]...)
	l.turns = append(append(l.turns[:start], stamped...), tail...)
	return stamped
}

func (l *Log) hasPlaceholder(exchangeID string, role Role, batch []Turn) bool {
	for _, list := range [][]Turn{l.turns, batch} {
		for _, t := range list {
			if t.Placeholder && t.ExchangeID == exchangeID && t.Role == role {
				return true
			}
		}
	}
	return false
}

func (l *Log) stamp(t Turn) Turn {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = l.now()
	}
	return t
}

func (l *Log) notify(turns []Turn) {
	for _, t := range turns {
		if t.Placeholder {
			continue
		}
		for _, o := range l.observers {
			o.TurnFinalized(t)
		}
	}
}
