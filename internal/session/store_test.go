package session

import (
	"sync"
	"testing"
	"time"

	"github.com/olzhask/aqylbot/internal/history"
)

func TestStoreGetOrCreate(t *testing.T) {
	st := NewStore(10)
	st.Update(42, func(s *Session) {
		if s.ChatID != 42 {
			t.Fatalf("ChatID = %d", s.ChatID)
		}
		if s.Mode != ModeDefault || s.Pending != PendingNone {
			t.Fatalf("fresh session not idle: mode=%s pending=%s", s.Mode, s.Pending)
		}
		s.Mode = ModeStudy
	})
	st.Update(42, func(s *Session) {
		if s.Mode != ModeStudy {
			t.Fatalf("session not reused, mode = %s", s.Mode)
		}
	})
	if st.Len() != 1 {
		t.Fatalf("Len = %d, want 1", st.Len())
	}
}

func TestStoreConcurrentAppends(t *testing.T) {
	st := NewStore(8)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.Update(7, func(s *Session) {
				s.History.Append(history.RoleUser, "m", "", time.Now())
			})
		}()
	}
	wg.Wait()
	st.Update(7, func(s *Session) {
		if s.History.Len() != 8 {
			t.Fatalf("history len = %d, want cap 8", s.History.Len())
		}
	})
}

func TestSnapshotRoundTrip(t *testing.T) {
	st := NewStore(10)
	now := time.Now()
	st.Update(1, func(s *Session) {
		s.History.Append(history.RoleUser, "hello", "", now)
		s.History.Append(history.RoleAssistant, "hi", "gemini", now)
	})
	st.Update(2, func(s *Session) {}) // empty history, should be omitted

	snap := st.HistorySnapshot()
	if len(snap) != 1 || len(snap[1]) != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}

	st2 := NewStore(10)
	st2.RestoreHistory(snap)
	st2.Update(1, func(s *Session) {
		if s.History.Len() != 2 {
			t.Fatalf("restored len = %d", s.History.Len())
		}
	})
}

func TestResetState(t *testing.T) {
	s := &Session{
		Pending:   PendingCurrencyAmount,
		Mode:      ModeCreative,
		Direction: Direction{From: "BTC", To: "USD"},
		History:   history.NewBuffer(5),
	}
	s.History.Append(history.RoleUser, "x", "", time.Now())
	s.ResetState()
	if s.Pending != PendingNone || s.Mode != ModeDefault || s.Direction != (Direction{}) {
		t.Fatalf("ResetState left %+v", s)
	}
	if s.History.Len() != 1 {
		t.Fatalf("ResetState must not clear history")
	}
}
