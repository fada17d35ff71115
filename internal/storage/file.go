package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	logx "telebrief/pkg/logx"
)

// fileStore keeps all recipients in one JSON document, keyed by recipient ID.
// Every mutation loads and rewrites the whole file; the document is small
// (one record per recipient) so this stays cheap and keeps recovery trivial.
type fileStore struct {
	log  logx.Logger
	path string

	mu sync.Mutex
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) Save(ctx context.Context, recipient int64, messageIDs []int) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.loadLocked()
	data[key(recipient)] = Record{
		MessageIDs: append([]int(nil), messageIDs...),
		CreatedAt:  time.Now().UTC(),
	}
	return s.writeLocked(data)
}

func (s *fileStore) Get(ctx context.Context, recipient int64) ([]int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.loadLocked()[key(recipient)]
	if !ok {
		return nil, nil
	}
	return append([]int(nil), rec.MessageIDs...), nil
}

func (s *fileStore) Clear(ctx context.Context, recipient int64) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.loadLocked()
	if _, ok := data[key(recipient)]; !ok {
		return nil
	}
	delete(data, key(recipient))
	return s.writeLocked(data)
}

// loadLocked reads the backing document. A missing or unparseable file is
// "no data", never an error.
func (s *fileStore) loadLocked() map[string]Record {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return map[string]Record{}
	}
	var data map[string]Record
	if err := json.Unmarshal(b, &data); err != nil || data == nil {
		if err != nil {
			s.log.Warn("delivery record file unreadable; treating as empty",
				logx.String("path", s.path), logx.Err(err))
		}
		return map[string]Record{}
	}
	return data
}

func (s *fileStore) writeLocked(data map[string]Record) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func key(recipient int64) string { return strconv.FormatInt(recipient, 10) }
