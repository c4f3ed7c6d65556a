package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/olzhask/aqylbot/internal/history"
)

func TestRecordAndCount(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	msgs := []history.DialogMessage{
		{ID: "m1", Role: history.RoleUser, Text: "привет", CreatedAt: now},
		{ID: "m2", Role: history.RoleAssistant, Text: "здравствуй", ProducedBy: "gemini", CreatedAt: now.Add(time.Second)},
	}
	for _, m := range msgs {
		if err := l.Record(ctx, 42, m); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	// Same id twice is ignored, not duplicated.
	if err := l.Record(ctx, 42, msgs[0]); err != nil {
		t.Fatalf("Record dup: %v", err)
	}

	n, err := l.CountForChat(ctx, 42)
	if err != nil || n != 2 {
		t.Fatalf("CountForChat = %d, %v", n, err)
	}
	n, err = l.CountForChat(ctx, 7)
	if err != nil || n != 0 {
		t.Fatalf("CountForChat(7) = %d, %v", n, err)
	}
}
