package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/okian/giteval/internal/domain/model"
	"github.com/okian/giteval/internal/domain/rank"
)

const defaultFileMode = 0o600

// FileStore persists all user records as one JSON object keyed by identity.
// Every Put rewrites the file through a temp-file rename, so a torn write
// can never corrupt the committed state.
type FileStore struct {
	mu    sync.RWMutex
	path  string
	mode  os.FileMode
	table *rank.Table
	users map[string]model.UserRecord
	open  bool
}

// FileOption applies a configuration option to the FileStore.
type FileOption func(*FileStore)

// WithFileMode sets the permission bits used when writing the store file.
func WithFileMode(mode os.FileMode) FileOption {
	return func(s *FileStore) {
		if mode != 0 {
			s.mode = mode
		}
	}
}

// NewFileStore opens (or creates) the JSON store at path. Records whose
// stored rank disagrees with the rank derived from their score are upgraded
// on load; structurally broken records are rejected.
func NewFileStore(path string, table *rank.Table, opts ...FileOption) (*FileStore, error) {
	s := &FileStore{
		path:  path,
		mode:  defaultFileMode,
		table: table,
		users: make(map[string]model.UserRecord),
		open:  true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read store file: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}
	var users map[string]model.UserRecord
	if err := json.Unmarshal(raw, &users); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	for id, rec := range users {
		if strings.TrimSpace(rec.LinkedHandle) == "" || rec.Score < 0 {
			return fmt.Errorf("%w: identity %q", ErrInvalidRecord, id)
		}
		// Rank is derived state; recompute rather than trust the file.
		rec.Rank = s.table.ForScore(rec.Score)
		users[id] = rec
	}
	s.users = users
	return nil
}

// flush writes the full user map durably. Callers hold s.mu.
func (s *FileStore) flush() error {
	data, err := json.MarshalIndent(s.users, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".users-*.json")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write store file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close store file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), s.mode); err != nil {
		return fmt.Errorf("chmod store file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("commit store file: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, identity string) (model.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return model.UserRecord{}, ErrStoreClosed
	}
	rec, ok := s.users[identity]
	if !ok {
		return model.UserRecord{}, fmt.Errorf("%w: %s", ErrNotFound, identity)
	}
	return rec, nil
}

// FindByHandle implements Store. Identity order makes the first-match rule
// deterministic when duplicate handles sneak in.
func (s *FileStore) FindByHandle(_ context.Context, handle string) (string, model.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return "", model.UserRecord{}, ErrStoreClosed
	}
	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if strings.EqualFold(s.users[id].LinkedHandle, handle) {
			return id, s.users[id], nil
		}
	}
	return "", model.UserRecord{}, fmt.Errorf("%w: handle %s", ErrNotFound, handle)
}

// Put implements Store.
func (s *FileStore) Put(_ context.Context, identity string, rec model.UserRecord) error {
	if err := rec.Validate(s.table); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrStoreClosed
	}
	prev, existed := s.users[identity]
	s.users[identity] = rec
	if err := s.flush(); err != nil {
		// Keep memory consistent with disk on a failed commit.
		if existed {
			s.users[identity] = prev
		} else {
			delete(s.users, identity)
		}
		return err
	}
	return nil
}

// Count implements Store.
func (s *FileStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return 0, ErrStoreClosed
	}
	return len(s.users), nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}
