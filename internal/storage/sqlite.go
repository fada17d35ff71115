package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "telebrief/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Save(ctx context.Context, recipient int64, messageIDs []int) error {
	ids, err := json.Marshal(messageIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO digest_messages(recipient, message_ids, created_at) VALUES(?,?,?)
		 ON CONFLICT(recipient) DO UPDATE SET message_ids=excluded.message_ids, created_at=excluded.created_at`,
		recipient, string(ids), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *sqliteStore) Get(ctx context.Context, recipient int64) ([]int, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT message_ids FROM digest_messages WHERE recipient = ?`, recipient,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []int
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		// Corrupt row reads as "no data", same as the file driver.
		s.log.Warn("delivery record row unreadable; treating as empty",
			logx.Int64("recipient", recipient), logx.Err(err))
		return nil, nil
	}
	return ids, nil
}

func (s *sqliteStore) Clear(ctx context.Context, recipient int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM digest_messages WHERE recipient = ?`, recipient)
	return err
}
