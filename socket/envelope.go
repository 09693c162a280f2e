package socket

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when no reply arrives before the request timeout.
var ErrTimeout = errors.New("socket: request timed out")

// Request is what callers hand to the transport.
type Request struct {
	Topic   string
	Payload any
	// Timeout overrides the client default when positive.
	Timeout time.Duration
}

// envelope is the message published on a topic channel.
type envelope struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	ReplyTo   string          `json:"replyTo"`
	TimeoutMs int64           `json:"timeout,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// reply is published by the responder on the request's reply channel.
type reply struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// RemoteError carries an error message reported by the responder.
type RemoteError struct {
	Topic   string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("socket: %s: %s", e.Topic, e.Message)
}
