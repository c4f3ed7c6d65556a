package persona

import (
	"strings"
	"testing"
	"time"

	"github.com/olzhask/aqylbot/internal/history"
	"github.com/olzhask/aqylbot/internal/session"
	"github.com/olzhask/aqylbot/llm"
)

func mustLoad(t *testing.T) *Pack {
	t.Helper()
	p, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return p
}

func TestLoadEmbeddedPack(t *testing.T) {
	p := mustLoad(t)
	rules := p.Rules()
	if len(rules) != 3 {
		t.Fatalf("rules = %d, want 3", len(rules))
	}
	// Priority order is fixed: study, coding, creative.
	want := []session.Mode{session.ModeStudy, session.ModeCoding, session.ModeCreative}
	for i, r := range rules {
		if r.Mode != want[i] {
			t.Fatalf("rules[%d].Mode = %s, want %s", i, r.Mode, want[i])
		}
		if len(r.Keywords) == 0 {
			t.Fatalf("rules[%d] has no keywords", i)
		}
	}
}

func TestPromptSubstitution(t *testing.T) {
	p := mustLoad(t)
	for _, mode := range []session.Mode{session.ModeStudy, session.ModeCoding, session.ModeCreative, session.ModeDefault} {
		got := p.Prompt(mode, "вопрос-123")
		if !strings.Contains(got, "вопрос-123") {
			t.Fatalf("mode %s: user text not substituted: %q", mode, got)
		}
		if strings.Contains(got, "{text}") {
			t.Fatalf("mode %s: placeholder left in prompt", mode)
		}
	}
	// Unknown mode falls back to the default template.
	if p.Prompt(session.Mode("bogus"), "x") != p.Prompt(session.ModeDefault, "x") {
		t.Fatalf("unknown mode must use default template")
	}
}

func TestMessagesWindow(t *testing.T) {
	p := mustLoad(t)
	now := time.Now()
	var recent []history.DialogMessage
	for i := 0; i < 10; i++ {
		role := history.RoleUser
		if i%2 == 1 {
			role = history.RoleAssistant
		}
		recent = append(recent, history.DialogMessage{Role: role, Text: strings.Repeat("m", i+1), CreatedAt: now})
	}

	msgs := p.Messages(session.ModeDefault, "q", recent, 4)
	if len(msgs) != 5 {
		t.Fatalf("len = %d, want 4 history + 1 prompt", len(msgs))
	}
	// Most-recent-last: the entry before the prompt is the newest history item.
	if msgs[3].Content != strings.Repeat("m", 10) {
		t.Fatalf("history window wrong: %+v", msgs[:4])
	}
	last := msgs[len(msgs)-1]
	if last.Role != llm.RoleUser || !strings.Contains(last.Content, "q") {
		t.Fatalf("final message = %+v", last)
	}
}

func TestMessagesRoleMapping(t *testing.T) {
	p := mustLoad(t)
	recent := []history.DialogMessage{
		{Role: history.RoleUser, Text: "u"},
		{Role: history.RoleAssistant, Text: "a"},
	}
	msgs := p.Messages(session.ModeStudy, "next", recent, 6)
	if msgs[0].Role != llm.RoleUser || msgs[1].Role != llm.RoleAssistant {
		t.Fatalf("role mapping wrong: %+v", msgs[:2])
	}
}
