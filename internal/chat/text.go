package chat

import (
	"context"
	"strings"

	"github.com/comigor/loanadvisor-go/internal/conversation"
	"github.com/comigor/loanadvisor-go/internal/markup"
)

// TextBackend answers a text message with rich-text content.
type TextBackend interface {
	Chat(ctx context.Context, message string) (string, error)
}

// TextController drives text exchanges.
type TextController struct {
	runner
	backend TextBackend
}

// NewTextController returns a controller appending to log.
func NewTextController(log *conversation.Log, backend TextBackend, opts ...Option) *TextController {
	c := &TextController{backend: backend}
	c.runner.init(log, opts)
	return c
}

// Send appends the user turn and a processing placeholder, then asks the
// backend in the background. A blank message is ignored: Send returns a nil
// Exchange and leaves the log untouched.
func (c *TextController) Send(ctx context.Context, message string) (*Exchange, error) {
	if strings.TrimSpace(message) == "" {
		return nil, nil
	}

	ex, err := c.open(KindText, func(id string) []conversation.Turn {
		return []conversation.Turn{
			conversation.UserTurn(id, message),
			conversation.PlaceholderTurn(id, conversation.RoleAssistant, TextPlaceholder),
		}
	})
	if err != nil {
		return nil, err
	}

	c.dispatch(ctx, ex, func(ctx context.Context) ([]conversation.Turn, error) {
		reply, err := c.backend.Chat(ctx, message)
		if err != nil {
			return []conversation.Turn{conversation.AssistantTurn(ex.ID, TextFailure)}, err
		}
		return []conversation.Turn{conversation.AssistantTurn(ex.ID, markup.Sanitize(reply))}, nil
	})
	return ex, nil
}
