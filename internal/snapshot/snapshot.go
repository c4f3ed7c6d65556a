// Package snapshot persists the chat-id → history mapping as a whole, on a
// best-effort basis: writes are coalesced to at most one per interval,
// last-writer-wins, and failures are logged, never surfaced to the user.
package snapshot

import (
	"context"
	"log/slog"
	"time"

	"github.com/olzhask/aqylbot/internal/history"
)

// Backend stores and loads the whole history mapping.
type Backend interface {
	Load(ctx context.Context) (map[int64][]history.DialogMessage, error)
	Save(ctx context.Context, snap map[int64][]history.DialogMessage) error
}

// Source is the live state being snapshotted (the session store).
type Source interface {
	HistorySnapshot() map[int64][]history.DialogMessage
}

const DefaultInterval = 2 * time.Second

type Snapshotter struct {
	backend  Backend
	source   Source
	interval time.Duration
	logger   *slog.Logger
	dirty    chan struct{}
}

func New(backend Backend, source Source, interval time.Duration, logger *slog.Logger) *Snapshotter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Snapshotter{
		backend:  backend,
		source:   source,
		interval: interval,
		logger:   logger,
		dirty:    make(chan struct{}, 1),
	}
}

// Mark schedules a snapshot. Never blocks; marks arriving while a save is
// pending coalesce into one write.
func (s *Snapshotter) Mark() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// Run loops until ctx is cancelled, then takes a final snapshot.
func (s *Snapshotter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.save(context.Background())
			return
		case <-s.dirty:
		}

		s.save(ctx)

		// Rate floor: further marks wait out the interval.
		select {
		case <-ctx.Done():
			s.save(context.Background())
			return
		case <-time.After(s.interval):
		}
	}
}

func (s *Snapshotter) save(ctx context.Context) {
	snap := s.source.HistorySnapshot()
	if err := s.backend.Save(ctx, snap); err != nil {
		s.logger.Warn("snapshot_save_error", "chats", len(snap), "error", err.Error())
		return
	}
	s.logger.Debug("snapshot_saved", "chats", len(snap))
}
