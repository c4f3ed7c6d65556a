package session

import (
	"sync"

	"github.com/olzhask/aqylbot/internal/history"
)

// Store holds all chat sessions with get-or-create semantics. Mutations go
// through Update so that the read-modify-write of a session (state transition
// plus history append) is atomic per chat even when the bot serves updates
// from multiple goroutines.
type Store struct {
	mu         sync.Mutex
	sessions   map[int64]*Session
	historyMax int
}

func NewStore(historyMax int) *Store {
	return &Store{
		sessions:   make(map[int64]*Session),
		historyMax: historyMax,
	}
}

func (st *Store) getOrCreateLocked(chatID int64) *Session {
	s, ok := st.sessions[chatID]
	if !ok {
		s = &Session{
			ChatID:  chatID,
			Mode:    ModeDefault,
			History: history.NewBuffer(st.historyMax),
		}
		st.sessions[chatID] = s
	}
	return s
}

// Update runs fn with exclusive access to the chat's session.
func (st *Store) Update(chatID int64, fn func(*Session)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(st.getOrCreateLocked(chatID))
}

// View runs fn with the session and returns fn's result; fn must not mutate.
func (st *Store) View(chatID int64, fn func(*Session)) {
	st.Update(chatID, fn)
}

// HistorySnapshot copies every chat's transcript for persistence.
func (st *Store) HistorySnapshot() map[int64][]history.DialogMessage {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[int64][]history.DialogMessage, len(st.sessions))
	for id, s := range st.sessions {
		if msgs := s.History.Messages(); len(msgs) > 0 {
			out[id] = msgs
		}
	}
	return out
}

// RestoreHistory seeds sessions from a persisted snapshot at startup.
func (st *Store) RestoreHistory(snap map[int64][]history.DialogMessage) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for id, msgs := range snap {
		st.getOrCreateLocked(id).History.Restore(msgs)
	}
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
