// Package session owns the volatile per-chat conversation state: the pending
// input expectation, the sticky response mode, and the dialog history buffer.
package session

import (
	"github.com/olzhask/aqylbot/internal/history"
)

// PendingInput is the short-lived expectation of what the next message means.
// It takes priority over mode routing for exactly one message.
type PendingInput int

const (
	PendingNone PendingInput = iota
	PendingCity
	PendingQuestion
	PendingCurrencyDirection
	PendingCurrencyAmount
)

func (p PendingInput) String() string {
	switch p {
	case PendingNone:
		return "none"
	case PendingCity:
		return "city"
	case PendingQuestion:
		return "question"
	case PendingCurrencyDirection:
		return "currency_direction"
	case PendingCurrencyAmount:
		return "currency_amount"
	default:
		return "unknown"
	}
}

// Mode is the sticky persona classification applied to default-routed messages.
type Mode string

const (
	ModeDefault  Mode = "default"
	ModeStudy    Mode = "study"
	ModeCoding   Mode = "coding"
	ModeCreative Mode = "creative"
)

// Direction carries the parsed currency pair between the direction and the
// amount prompt.
type Direction struct {
	From string
	To   string
}

type Session struct {
	ChatID    int64
	Pending   PendingInput
	Mode      Mode
	Direction Direction
	History   *history.Buffer
}

// ResetState returns the session to the idle menu: no pending input, default
// mode. The history buffer is left alone; use History.Reset for a full wipe.
func (s *Session) ResetState() {
	s.Pending = PendingNone
	s.Mode = ModeDefault
	s.Direction = Direction{}
}
