package conversation

import (
	"time"

	"github.com/comigor/loanadvisor-go/internal/audio"
	"github.com/comigor/loanadvisor-go/internal/markup"
)

// Role says who a turn is attributed to.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Greeting seeds every new conversation.
const Greeting = "Hello! I'm your Loan Advisor AI. How can I assist you with your financial journey today?"

// Turn is a single entry in the conversation log. A Turn is a value: the log
// hands out copies and replaces entries by position, it never edits one.
type Turn struct {
	ID         string          `json:"id"`
	ExchangeID string          `json:"exchange_id,omitempty"`
	Role       Role            `json:"role"`
	Content    string          `json:"content"`
	Audio      *audio.Resource `json:"-"`
	// Placeholder marks an optimistic turn that reconciliation must replace.
	Placeholder bool      `json:"placeholder,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserTurn is final plain-text user content.
func UserTurn(exchangeID, content string) Turn {
	return Turn{ExchangeID: exchangeID, Role: RoleUser, Content: content}
}

// AssistantTurn is final assistant content. Only sanitized markup is accepted.
func AssistantTurn(exchangeID string, content markup.HTML) Turn {
	return Turn{ExchangeID: exchangeID, Role: RoleAssistant, Content: content.String()}
}

// AssistantAudioTurn is final assistant content with a synthesized reply clip.
func AssistantAudioTurn(exchangeID string, content markup.HTML, clip *audio.Resource) Turn {
	t := AssistantTurn(exchangeID, content)
	t.Audio = clip
	return t
}

// PlaceholderTurn is an optimistic turn owned by exchangeID.
func PlaceholderTurn(exchangeID string, role Role, content string) Turn {
	return Turn{ExchangeID: exchangeID, Role: role, Content: content, Placeholder: true}
}

// HasAudio reports whether the turn carries a playable clip.
func (t Turn) HasAudio() bool { return t.Audio != nil && t.Audio.Len() > 0 }
