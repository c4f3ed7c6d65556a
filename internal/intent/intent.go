// Package intent classifies free text into a conversation mode by keyword
// membership. It is a deterministic substring classifier: rule order is the
// priority order, the first matching rule wins, and no match keeps the
// current mode.
package intent

import (
	"strings"

	"github.com/olzhask/aqylbot/internal/session"
)

// Rule is one keyword set. The persona pack declares the rules; their order
// there (study, coding, creative) is the tie-break order.
type Rule struct {
	Mode     session.Mode
	Keywords []string
}

// Route returns the new sticky mode for text. Pure: no side effects.
func Route(rules []Rule, mode session.Mode, text string) session.Mode {
	lowered := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.Keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(lowered, kw) {
				return r.Mode
			}
		}
	}
	return mode
}
