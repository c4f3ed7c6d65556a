// Package audit keeps an append-only trail of every dialog exchange in a
// local sqlite database. It is strictly best-effort: the reply path never
// waits on it and never fails because of it.
package audit

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/olzhask/aqylbot/internal/history"
)

const schema = `
CREATE TABLE IF NOT EXISTS exchanges (
	id          TEXT PRIMARY KEY,
	chat_id     INTEGER NOT NULL,
	role        TEXT NOT NULL,
	text        TEXT NOT NULL,
	produced_by TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_exchanges_chat ON exchanges (chat_id, created_at);
`

type Log struct {
	db *sql.DB
}

func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit open %s: %w", path, err)
	}
	// modernc sqlite is single-writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit schema: %w", err)
	}
	return &Log{db: db}, nil
}

func (l *Log) Record(ctx context.Context, chatID int64, msg history.DialogMessage) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO exchanges (id, chat_id, role, text, produced_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, chatID, string(msg.Role), msg.Text, msg.ProducedBy, msg.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	)
	if err != nil {
		return fmt.Errorf("audit insert: %w", err)
	}
	return nil
}

// CountForChat is used by tests and operational tooling.
func (l *Log) CountForChat(ctx context.Context, chatID int64) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exchanges WHERE chat_id = ?`, chatID).Scan(&n)
	return n, err
}

func (l *Log) Close() error {
	return l.db.Close()
}
