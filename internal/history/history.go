// Package history keeps the per-chat dialog transcript: an append-only,
// chronologically ordered buffer with a hard cap. Oldest entries are evicted
// first once the cap is reached.
package history

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const DefaultMaxMessages = 20

type DialogMessage struct {
	ID         string    `json:"id"`
	Role       Role      `json:"role"`
	Text       string    `json:"text"`
	ProducedBy string    `json:"produced_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Buffer is not safe for concurrent use; the session store serializes access.
type Buffer struct {
	max  int
	msgs []DialogMessage
}

func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = DefaultMaxMessages
	}
	return &Buffer{max: max}
}

func (b *Buffer) Append(role Role, text, producedBy string, now time.Time) DialogMessage {
	msg := DialogMessage{
		ID:         uuid.NewString(),
		Role:       role,
		Text:       text,
		ProducedBy: producedBy,
		CreatedAt:  now.UTC(),
	}
	b.msgs = append(b.msgs, msg)
	if len(b.msgs) > b.max {
		b.msgs = b.msgs[len(b.msgs)-b.max:]
	}
	return msg
}

func (b *Buffer) Len() int {
	return len(b.msgs)
}

func (b *Buffer) Max() int {
	return b.max
}

// Last returns up to k most recent messages, oldest first.
func (b *Buffer) Last(k int) []DialogMessage {
	if k <= 0 || len(b.msgs) == 0 {
		return nil
	}
	if k > len(b.msgs) {
		k = len(b.msgs)
	}
	out := make([]DialogMessage, k)
	copy(out, b.msgs[len(b.msgs)-k:])
	return out
}

// Messages returns a copy of the full transcript, oldest first.
func (b *Buffer) Messages() []DialogMessage {
	if len(b.msgs) == 0 {
		return nil
	}
	out := make([]DialogMessage, len(b.msgs))
	copy(out, b.msgs)
	return out
}

func (b *Buffer) Reset() {
	b.msgs = nil
}

// Restore replaces the transcript with a persisted snapshot, keeping only the
// most recent entries if the snapshot exceeds the cap.
func (b *Buffer) Restore(msgs []DialogMessage) {
	if len(msgs) > b.max {
		msgs = msgs[len(msgs)-b.max:]
	}
	b.msgs = append(b.msgs[:0], msgs...)
}
