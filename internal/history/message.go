package history

import "time"

// Message is one finalized conversation turn as written to the transcript.
type Message struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	TurnID     string    `json:"turn_id"`
	ExchangeID string    `json:"exchange_id,omitempty"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	HasAudio   bool      `json:"has_audio"`
	CreatedAt  time.Time `json:"created_at"`
}
