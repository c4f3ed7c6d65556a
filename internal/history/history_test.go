package history

import (
	"fmt"
	"testing"
	"time"
)

func TestBufferCapFIFO(t *testing.T) {
	b := NewBuffer(5)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		b.Append(RoleUser, fmt.Sprintf("msg-%d", i), "", now.Add(time.Duration(i)*time.Second))
		if b.Len() > 5 {
			t.Fatalf("after append %d: len = %d, want <= 5", i, b.Len())
		}
	}
	msgs := b.Messages()
	if len(msgs) != 5 {
		t.Fatalf("len = %d, want 5", len(msgs))
	}
	// Oldest evicted first: the survivors are the last five appends.
	for i, m := range msgs {
		want := fmt.Sprintf("msg-%d", 7+i)
		if m.Text != want {
			t.Fatalf("msgs[%d].Text = %q, want %q", i, m.Text, want)
		}
	}
}

func TestBufferChronologicalOrder(t *testing.T) {
	b := NewBuffer(10)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.Append(RoleUser, "q", "", now)
	b.Append(RoleAssistant, "a", "gemini", now.Add(time.Second))
	msgs := b.Messages()
	if msgs[0].Role != RoleUser || msgs[1].Role != RoleAssistant {
		t.Fatalf("order broken: %+v", msgs)
	}
	if !msgs[0].CreatedAt.Before(msgs[1].CreatedAt) {
		t.Fatalf("timestamps not chronological")
	}
	if msgs[1].ProducedBy != "gemini" {
		t.Fatalf("ProducedBy = %q, want gemini", msgs[1].ProducedBy)
	}
}

func TestBufferLast(t *testing.T) {
	b := NewBuffer(10)
	now := time.Now()
	for i := 0; i < 4; i++ {
		b.Append(RoleUser, fmt.Sprintf("m%d", i), "", now)
	}
	last := b.Last(2)
	if len(last) != 2 || last[0].Text != "m2" || last[1].Text != "m3" {
		t.Fatalf("Last(2) = %+v", last)
	}
	if got := b.Last(99); len(got) != 4 {
		t.Fatalf("Last(99) len = %d, want 4", len(got))
	}
	if got := b.Last(0); got != nil {
		t.Fatalf("Last(0) = %+v, want nil", got)
	}
}

func TestBufferRestoreTrimsToCap(t *testing.T) {
	b := NewBuffer(3)
	now := time.Now()
	var msgs []DialogMessage
	for i := 0; i < 6; i++ {
		msgs = append(msgs, DialogMessage{Role: RoleUser, Text: fmt.Sprintf("m%d", i), CreatedAt: now})
	}
	b.Restore(msgs)
	got := b.Messages()
	if len(got) != 3 || got[0].Text != "m3" {
		t.Fatalf("Restore kept %+v", got)
	}
}

func TestBufferReset(t *testing.T) {
	b := NewBuffer(3)
	b.Append(RoleUser, "x", "", time.Now())
	b.Reset()
	if b.Len() != 0 {
		t.Fatalf("len after reset = %d", b.Len())
	}
}
