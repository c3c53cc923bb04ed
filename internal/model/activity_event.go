package model

import "time"

const (
	ActivitySessionStarted  = "session.started"
	ActivitySessionEnded    = "session.ended"
	ActivityPromptCompleted = "prompt.completed"
	ActivityPromptFailed    = "prompt.failed"
)

// ActivityEvent is an audit record sent over the message queue. It is
// logged by the consumer and never stored.
type ActivityEvent struct {
	Type       string    `json:"type"`
	ClientID   string    `json:"client_id"`
	Name       string    `json:"name,omitempty"`
	Model      string    `json:"model,omitempty"`
	Grounding  bool      `json:"grounding,omitempty"`
	Sources    int       `json:"sources,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
