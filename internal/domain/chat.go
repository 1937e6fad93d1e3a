package domain

import "time"

// Chat turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is one exchange unit in a user's conversation history.
// Seq is the append order within a user's history; timestamps are not
// guaranteed monotonic and are informational only.
type ChatTurn struct {
	Seq       int64     `json:"seq"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// StreamDelta is one event on a generation stream. A stream carries zero or
// more content deltas followed by exactly one terminal event: Done for a
// clean completion, or Err for an interrupted one. The channel is closed
// after the terminal event, so consumers can distinguish "finished" from
// "truncated" without relying on channel closure alone.
type StreamDelta struct {
	Content string
	Done    bool
	Err     error
}
